// Package catalog is the store's product, order, customer and coupon data.
// Every mutation notifies a Listener once it is committed; listener problems
// never undo or fail the mutation.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lazychat/internal/logger"
	"lazychat/internal/models"

	"gorm.io/gorm"
)

// Listener observes committed lifecycle events.
type Listener interface {
	ProductCreated(ctx context.Context, p *models.Product)
	ProductUpdated(ctx context.Context, p *models.Product)
	ProductDeleted(ctx context.Context, id uint)
	OrderCreated(ctx context.Context, o *models.Order)
	OrderUpdated(ctx context.Context, o *models.Order)
}

type Store struct {
	db       *gorm.DB
	listener Listener
	logger   *logger.Logger
}

func New(db *gorm.DB, logger *logger.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// SetListener must be called before the store is shared.
func (s *Store) SetListener(l Listener) {
	s.listener = l
}

// Page selects a slice of a listing. Zero values mean page 1 of 10.
type Page struct {
	Page    int
	PerPage int
}

func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 10
	}
	if p.PerPage > 100 {
		p.PerPage = 100
	}
	return p
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	p = p.normalize()
	return q.Offset((p.Page - 1) * p.PerPage).Limit(p.PerPage)
}

type ProductQuery struct {
	Page
	Search string
	Status models.ProductStatus
	SKU    string
}

func (s *Store) ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{})
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.SKU != "" {
		query = query.Where("sku = ?", q.SKU)
	}
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like)
	}

	total, err := countRows(query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	var products []models.Product
	if err := q.Page.apply(query.Order("id ASC")).Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

func (s *Store) Product(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, "product", id)
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	if err := s.checkSKU(ctx, p.SKU, 0); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	s.notify("product.created", func(l Listener) { l.ProductCreated(ctx, p) })
	return nil
}

// UpdateProduct loads the product, applies fn and saves the result.
func (s *Store) UpdateProduct(ctx context.Context, id uint, fn func(p *models.Product) error) (*models.Product, error) {
	p, err := s.Product(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	p.ID = id
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.checkSKU(ctx, p.SKU, id); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", id, err)
	}
	s.notify("product.updated", func(l Listener) { l.ProductUpdated(ctx, p) })
	return p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	s.notify("product.deleted", func(l Listener) { l.ProductDeleted(ctx, id) })
	return nil
}

func validateProduct(p *models.Product) error {
	verr := &ValidationError{Message: "Invalid product"}
	if strings.TrimSpace(p.Name) == "" {
		verr.add("name", 0, "name is required")
	}
	if p.StockQuantity != nil && *p.StockQuantity < 0 && p.StockStatus != models.StockStatusOnBackorder {
		verr.add("stock_quantity", 0, "negative stock requires backorders")
	}
	if len(verr.Items) > 0 {
		return verr
	}
	return nil
}

func (s *Store) checkSKU(ctx context.Context, sku string, exceptID uint) error {
	if sku == "" {
		return nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("sku = ? AND id <> ?", sku, exceptID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check sku: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("sku %q: %w", sku, ErrDuplicateSKU)
	}
	return nil
}

// notify runs a listener callback and contains any panic it raises.
func (s *Store) notify(event string, fn func(l Listener)) {
	if s.listener == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Listener for %s panicked: %v", event, r)
		}
	}()
	fn(s.listener)
}

// countRows counts on a copy of query so the caller can keep chaining it.
func countRows(query *gorm.DB) (int64, error) {
	var total int64
	err := query.Session(&gorm.Session{}).Count(&total).Error
	return total, err
}

func notFound(err error, kind string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %v: %w", kind, id, err)
}
