package syncer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
)

// CooldownWindow is the minimum gap between a finished sync and the next one.
const CooldownWindow = 10 * time.Minute

// ServerTimeLayout is the naive local timestamp format LazyChat reports
// last_sync_at in.
const ServerTimeLayout = "2006-01-02 15:04:05"

// CooldownStore holds at most one completion timestamp.
type CooldownStore interface {
	Load() (time.Time, bool, error)
	Save(completedAt time.Time) error
	Clear() error
}

// Remaining returns how much of the cooldown is left at now, never negative.
func Remaining(completedAt, now time.Time) time.Duration {
	left := CooldownWindow - now.Sub(completedAt)
	if left < 0 {
		return 0
	}
	return left
}

// FormatRemaining renders d as MM:SS, rounding partial seconds up so the
// countdown never shows 00:00 while the control is still disabled.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "00:00"
	}
	secs := int(math.Ceil(d.Seconds()))
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// ParseServerTime reads a last_sync_at value as local time.
func ParseServerTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	t, err := time.ParseInLocation(ServerTimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid sync timestamp %q: %w", s, err)
	}
	return t, nil
}

type MemoryStore struct {
	mu sync.Mutex
	at time.Time
	ok bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.at, s.ok, nil
}

func (s *MemoryStore) Save(completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.at, s.ok = completedAt, true
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.at, s.ok = time.Time{}, false
	return nil
}

// FileStore keeps the timestamp as epoch milliseconds in a small JSON file.
// Concurrent clients race on it; the last write wins.
type FileStore struct {
	path string
}

type cooldownFile struct {
	CompletedAt int64 `json:"completed_at"`
}

// DefaultCooldownPath locates the cooldown file under the XDG state directory.
func DefaultCooldownPath() (string, error) {
	return xdg.StateFile(filepath.Join("lazychat", "sync-cooldown.json"))
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (time.Time, bool, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read cooldown file: %w", err)
	}
	var f cooldownFile
	if err := json.Unmarshal(raw, &f); err != nil || f.CompletedAt <= 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(f.CompletedAt), true, nil
}

func (s *FileStore) Save(completedAt time.Time) error {
	raw, err := json.Marshal(cooldownFile{CompletedAt: completedAt.UnixMilli()})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cooldown dir: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write cooldown file: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear cooldown file: %w", err)
	}
	return nil
}
