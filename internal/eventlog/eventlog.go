// Package eventlog persists error-level log entries so they survive restarts
// and can be inspected from the admin side, and prunes them after a
// retention period.
package eventlog

import (
	"context"
	"fmt"
	"time"

	"lazychat/internal/clock"
	"lazychat/internal/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	DefaultRetention = 15 * 24 * time.Hour
	maxMessageLength = 4000
	writeTimeout     = 3 * time.Second
)

type Store struct {
	db        *gorm.DB
	clock     clock.Clock
	retention time.Duration
}

func New(db *gorm.DB, retention time.Duration, clk clock.Clock) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Store{db: db, clock: clk, retention: retention}
}

func (s *Store) Record(ctx context.Context, level models.LogLevel, source, message string) error {
	if len(message) > maxMessageLength {
		message = message[:maxMessageLength]
	}
	entry := &models.EventLog{
		Level:     level,
		Source:    source,
		Message:   message,
		CreatedAt: s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.EventLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.EventLog
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

// Prune deletes entries older than the retention period.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-s.retention)
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.EventLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune event log: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Hook is a zerolog hook writing error, fatal and panic entries to the store.
type Hook struct {
	store  *Store
	source string
}

func NewHook(store *Store, source string) *Hook {
	return &Hook{store: store, source: source}
}

func (h *Hook) Run(_ *zerolog.Event, level zerolog.Level, message string) {
	var lvl models.LogLevel
	switch level {
	case zerolog.ErrorLevel:
		lvl = models.LogLevelError
	case zerolog.FatalLevel, zerolog.PanicLevel:
		lvl = models.LogLevelCritical
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	// Errors are dropped here: logging them would re-enter the hook.
	_ = h.store.Record(ctx, lvl, h.source, message)
}
