package catalog

import (
	"context"
	"fmt"
	"strings"

	"lazychat/internal/models"
)

type CustomerQuery struct {
	Page
	Email  string
	Search string
}

func (s *Store) ListCustomers(ctx context.Context, q CustomerQuery) ([]models.Customer, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Customer{})
	if q.Email != "" {
		query = query.Where("LOWER(email) = ?", strings.ToLower(q.Email))
	}
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}

	total, err := countRows(query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}
	var customers []models.Customer
	if err := q.Page.apply(query.Order("id ASC")).Find(&customers).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, total, nil
}

func (s *Store) Customer(ctx context.Context, id uint) (*models.Customer, error) {
	var c models.Customer
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, "customer", id)
	}
	return &c, nil
}

func (s *Store) ListCoupons(ctx context.Context, page Page) ([]models.Coupon, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Coupon{})
	total, err := countRows(query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count coupons: %w", err)
	}
	var coupons []models.Coupon
	if err := page.apply(query.Order("id ASC")).Find(&coupons).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list coupons: %w", err)
	}
	return coupons, total, nil
}
