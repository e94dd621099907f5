package models

import "time"

type Order struct {
	ID            uint         `json:"id" gorm:"primaryKey"`
	Status        OrderStatus  `json:"status" gorm:"default:pending;index"`
	Currency      string       `json:"currency" gorm:"default:USD"`
	CustomerID    *uint        `json:"customer_id" gorm:"index"`
	Billing       Address      `json:"billing" gorm:"type:text;serializer:json"`
	Shipping      Address      `json:"shipping" gorm:"type:text;serializer:json"`
	LineItems     []LineItem   `json:"line_items" gorm:"type:text;serializer:json"`
	CouponLines   []CouponLine `json:"coupon_lines" gorm:"type:text;serializer:json"`
	DiscountTotal string       `json:"discount_total"`
	Total         string       `json:"total"`
	CustomerNote  string       `json:"customer_note" gorm:"type:text"`
	DateCreated   time.Time    `json:"date_created" gorm:"autoCreateTime"`
	DateModified  time.Time    `json:"date_modified" gorm:"autoUpdateTime"`
}

type Address struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Company   string `json:"company,omitempty"`
	Address1  string `json:"address_1,omitempty"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Postcode  string `json:"postcode,omitempty"`
	Country   string `json:"country,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type LineItem struct {
	ID          int    `json:"id"`
	ProductID   uint   `json:"product_id"`
	VariationID int    `json:"variation_id,omitempty"`
	Name        string `json:"name"`
	SKU         string `json:"sku"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
	Total       string `json:"total"`
}

type CouponLine struct {
	Code     string `json:"code"`
	Discount string `json:"discount"`
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusOnHold     OrderStatus = "on-hold"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
	OrderStatusFailed     OrderStatus = "failed"
)

var validOrderStatuses = map[OrderStatus]bool{
	OrderStatusPending:    true,
	OrderStatusProcessing: true,
	OrderStatusOnHold:     true,
	OrderStatusCompleted:  true,
	OrderStatusCancelled:  true,
	OrderStatusRefunded:   true,
	OrderStatusFailed:     true,
}

func (s OrderStatus) Valid() bool {
	return validOrderStatuses[s]
}

type Customer struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Email       string    `json:"email" gorm:"uniqueIndex;not null"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Username    string    `json:"username"`
	Billing     Address   `json:"billing" gorm:"type:text;serializer:json"`
	DateCreated time.Time `json:"date_created" gorm:"autoCreateTime"`
}

type Coupon struct {
	ID           uint               `json:"id" gorm:"primaryKey"`
	Code         string             `json:"code" gorm:"uniqueIndex;not null"`
	DiscountType CouponDiscountType `json:"discount_type" gorm:"default:fixed_cart"`
	Amount       string             `json:"amount"`
	DateExpires  *time.Time         `json:"date_expires"`
	UsageCount   int                `json:"usage_count"`
}

type CouponDiscountType string

const (
	CouponPercent      CouponDiscountType = "percent"
	CouponFixedCart    CouponDiscountType = "fixed_cart"
	CouponFixedProduct CouponDiscountType = "fixed_product"
)
