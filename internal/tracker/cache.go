package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lazychat/internal/clock"
	"lazychat/internal/models"

	"github.com/jellydator/ttlcache/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultTTL is how long a snapshot is remembered after its last evaluation.
const DefaultTTL = 24 * time.Hour

// Cache stores the last snapshot evaluated per product.
type Cache interface {
	Get(ctx context.Context, productID uint) (Snapshot, bool, error)
	Set(ctx context.Context, productID uint, snap Snapshot) error
	Forget(ctx context.Context, productID uint) error
}

// MemoryCache keeps snapshots in process. Entries are lost on restart, which
// only means the next update of each product is treated as a first track.
type MemoryCache struct {
	cache *ttlcache.Cache[uint, Snapshot]
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := ttlcache.New[uint, Snapshot](
		ttlcache.WithTTL[uint, Snapshot](ttl),
		ttlcache.WithDisableTouchOnHit[uint, Snapshot](),
	)
	go c.Start()
	return &MemoryCache{cache: c}
}

func (m *MemoryCache) Get(_ context.Context, productID uint) (Snapshot, bool, error) {
	item := m.cache.Get(productID)
	if item == nil {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (m *MemoryCache) Set(_ context.Context, productID uint, snap Snapshot) error {
	m.cache.Set(productID, snap, ttlcache.DefaultTTL)
	return nil
}

func (m *MemoryCache) Forget(_ context.Context, productID uint) error {
	m.cache.Delete(productID)
	return nil
}

// Len reports the number of live entries.
func (m *MemoryCache) Len() int {
	return m.cache.Len()
}

// Close stops the expiry loop.
func (m *MemoryCache) Close() {
	m.cache.Stop()
}

// DBCache keeps snapshots in the product_snapshots table so that every API
// instance shares them.
type DBCache struct {
	db    *gorm.DB
	ttl   time.Duration
	clock clock.Clock
}

func NewDBCache(db *gorm.DB, ttl time.Duration, clk clock.Clock) *DBCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &DBCache{db: db, ttl: ttl, clock: clk}
}

func (d *DBCache) Get(ctx context.Context, productID uint) (Snapshot, bool, error) {
	var row models.ProductSnapshot
	err := d.db.WithContext(ctx).First(&row, "product_id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load snapshot %d: %w", productID, err)
	}
	if !row.ExpiresAt.After(d.clock.Now()) {
		return nil, false, nil
	}
	return Snapshot(row.Fields), true, nil
}

func (d *DBCache) Set(ctx context.Context, productID uint, snap Snapshot) error {
	row := models.ProductSnapshot{
		ProductID: productID,
		Fields:    snap,
		ExpiresAt: d.clock.Now().Add(d.ttl),
	}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"fields", "expires_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to store snapshot %d: %w", productID, err)
	}
	return nil
}

func (d *DBCache) Forget(ctx context.Context, productID uint) error {
	if err := d.db.WithContext(ctx).Delete(&models.ProductSnapshot{}, "product_id = ?", productID).Error; err != nil {
		return fmt.Errorf("failed to forget snapshot %d: %w", productID, err)
	}
	return nil
}

// Prune deletes expired rows and returns how many were removed.
func (d *DBCache) Prune(ctx context.Context) (int64, error) {
	res := d.db.WithContext(ctx).Where("expires_at <= ?", d.clock.Now()).Delete(&models.ProductSnapshot{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", res.Error)
	}
	return res.RowsAffected, nil
}
