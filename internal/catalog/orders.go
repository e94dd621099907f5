package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"lazychat/internal/models"

	"github.com/samber/lo"
	"github.com/spf13/cast"
	"gorm.io/gorm"
)

type OrderQuery struct {
	Page
	Status     models.OrderStatus
	CustomerID uint
}

func (s *Store) ListOrders(ctx context.Context, q OrderQuery) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.CustomerID != 0 {
		query = query.Where("customer_id = ?", q.CustomerID)
	}

	total, err := countRows(query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	var orders []models.Order
	if err := q.Page.apply(query.Order("id DESC")).Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

func (s *Store) Order(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	if err := s.db.WithContext(ctx).First(&o, id).Error; err != nil {
		return nil, notFound(err, "order", id)
	}
	return &o, nil
}

type LineItemInput struct {
	ProductID   uint `json:"product_id"`
	VariationID int  `json:"variation_id"`
	Quantity    int  `json:"quantity"`
}

type CouponLineInput struct {
	Code string `json:"code"`
}

type OrderInput struct {
	Status       models.OrderStatus `json:"status"`
	Currency     string             `json:"currency"`
	CustomerID   *uint              `json:"customer_id"`
	Billing      models.Address     `json:"billing"`
	Shipping     models.Address     `json:"shipping"`
	LineItems    []LineItemInput    `json:"line_items"`
	CouponLines  []CouponLineInput  `json:"coupon_lines"`
	CustomerNote string             `json:"customer_note"`
}

// CreateOrder validates every line item and coupon line first. A single
// invalid entry rejects the whole order.
func (s *Store) CreateOrder(ctx context.Context, in OrderInput) (*models.Order, error) {
	if in.Status == "" {
		in.Status = models.OrderStatusPending
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("order status %q: %w", in.Status, ErrInvalidStatus)
	}

	order := &models.Order{
		Status:       in.Status,
		Currency:     lo.Ternary(in.Currency == "", "USD", in.Currency),
		CustomerID:   in.CustomerID,
		Billing:      in.Billing,
		Shipping:     in.Shipping,
		CustomerNote: in.CustomerNote,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		verr := &ValidationError{Message: "Invalid order"}
		if len(in.LineItems) == 0 {
			verr.add("line_items", 0, "at least one line item is required")
		}
		if in.CustomerID != nil {
			var count int64
			if err := tx.Model(&models.Customer{}).Where("id = ?", *in.CustomerID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				verr.add("customer_id", 0, "customer %d does not exist", *in.CustomerID)
			}
		}

		subtotal := 0.0
		for i, item := range in.LineItems {
			line, ok := buildLineItem(tx, verr, i, item)
			if !ok {
				continue
			}
			subtotal += cast.ToFloat64(line.Total)
			order.LineItems = append(order.LineItems, line)
		}

		var coupons []models.Coupon
		for i, line := range in.CouponLines {
			coupon, ok := findCoupon(tx, verr, i, line)
			if ok {
				coupons = append(coupons, coupon)
			}
		}

		if len(verr.Items) > 0 {
			return verr
		}

		discount := 0.0
		for _, coupon := range coupons {
			amount := couponDiscount(coupon, subtotal-discount)
			discount += amount
			order.CouponLines = append(order.CouponLines, models.CouponLine{Code: coupon.Code, Discount: money(amount)})
			if err := tx.Model(&models.Coupon{}).Where("id = ?", coupon.ID).
				UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error; err != nil {
				return err
			}
		}
		order.DiscountTotal = money(discount)
		order.Total = money(math.Max(0, subtotal-discount))

		return tx.Create(order).Error
	})
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return nil, verr
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.notify("order.created", func(l Listener) { l.OrderCreated(ctx, order) })
	return order, nil
}

func buildLineItem(tx *gorm.DB, verr *ValidationError, index int, in LineItemInput) (models.LineItem, bool) {
	if in.ProductID == 0 {
		verr.add("line_items", index, "product_id is required")
		return models.LineItem{}, false
	}
	if in.Quantity <= 0 {
		verr.add("line_items", index, "quantity must be greater than zero")
		return models.LineItem{}, false
	}

	var p models.Product
	if err := tx.First(&p, in.ProductID).Error; err != nil {
		verr.add("line_items", index, "product %d does not exist", in.ProductID)
		return models.LineItem{}, false
	}

	price, sku := p.Price, p.SKU
	if in.VariationID != 0 {
		v, found := lo.Find(p.Variations, func(v models.Variation) bool { return v.ID == in.VariationID })
		if !found {
			verr.add("line_items", index, "variation %d does not belong to product %d", in.VariationID, in.ProductID)
			return models.LineItem{}, false
		}
		price, sku = v.Price, lo.Ternary(v.SKU == "", sku, v.SKU)
	}

	return models.LineItem{
		ID:          index + 1,
		ProductID:   p.ID,
		VariationID: in.VariationID,
		Name:        p.Name,
		SKU:         sku,
		Quantity:    in.Quantity,
		Price:       money(cast.ToFloat64(price)),
		Total:       money(cast.ToFloat64(price) * float64(in.Quantity)),
	}, true
}

func findCoupon(tx *gorm.DB, verr *ValidationError, index int, in CouponLineInput) (models.Coupon, bool) {
	code := strings.ToLower(strings.TrimSpace(in.Code))
	if code == "" {
		verr.add("coupon_lines", index, "code is required")
		return models.Coupon{}, false
	}
	var c models.Coupon
	if err := tx.Where("LOWER(code) = ?", code).First(&c).Error; err != nil {
		verr.add("coupon_lines", index, "coupon %q does not exist", in.Code)
		return models.Coupon{}, false
	}
	if c.DateExpires != nil && c.DateExpires.Before(time.Now()) {
		verr.add("coupon_lines", index, "coupon %q has expired", in.Code)
		return models.Coupon{}, false
	}
	return c, true
}

func couponDiscount(c models.Coupon, remaining float64) float64 {
	amount := cast.ToFloat64(c.Amount)
	var discount float64
	switch c.DiscountType {
	case models.CouponPercent:
		discount = remaining * amount / 100
	default:
		discount = amount
	}
	return math.Min(math.Max(0, discount), math.Max(0, remaining))
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", math.Round(v*100)/100)
}

// UpdateOrderStatus moves an order to status.
func (s *Store) UpdateOrderStatus(ctx context.Context, id uint, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("order status %q: %w", status, ErrInvalidStatus)
	}
	order, err := s.Order(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == status {
		return order, nil
	}
	order.Status = status
	if err := s.db.WithContext(ctx).Model(order).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("failed to update order %d: %w", id, err)
	}
	s.notify("order.updated", func(l Listener) { l.OrderUpdated(ctx, order) })
	return order, nil
}
