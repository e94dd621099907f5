package models

import (
	"time"
)

type Product struct {
	ID               uint          `json:"id" gorm:"primaryKey"`
	Name             string        `json:"name" gorm:"not null"`
	Slug             string        `json:"slug" gorm:"index"`
	Type             ProductType   `json:"type" gorm:"default:simple"`
	Status           ProductStatus `json:"status" gorm:"default:publish"`
	SKU              string        `json:"sku" gorm:"index"`
	Price            string        `json:"price"`
	RegularPrice     string        `json:"regular_price"`
	SalePrice        string        `json:"sale_price"`
	StockQuantity    *int          `json:"stock_quantity"`
	StockStatus      StockStatus   `json:"stock_status" gorm:"default:instock"`
	ManageStock      bool          `json:"manage_stock"`
	Description      string        `json:"description" gorm:"type:text"`
	ShortDescription string        `json:"short_description" gorm:"type:text"`
	Categories       []Term        `json:"categories" gorm:"type:text;serializer:json"`
	Tags             []Term        `json:"tags" gorm:"type:text;serializer:json"`
	Images           []Image       `json:"images" gorm:"type:text;serializer:json"`
	Variations       []Variation   `json:"variations" gorm:"type:text;serializer:json"`
	DateCreated      time.Time     `json:"date_created" gorm:"autoCreateTime"`
	DateModified     time.Time     `json:"date_modified" gorm:"autoUpdateTime"`
}

type Term struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
	Slug string `json:"slug,omitempty"`
}

type Image struct {
	ID  int    `json:"id"`
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

type Variation struct {
	ID            int               `json:"id"`
	SKU           string            `json:"sku"`
	Price         string            `json:"price"`
	RegularPrice  string            `json:"regular_price"`
	SalePrice     string            `json:"sale_price"`
	StockQuantity *int              `json:"stock_quantity"`
	StockStatus   StockStatus       `json:"stock_status"`
	Image         *Image            `json:"image,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

type ProductType string

const (
	ProductTypeSimple   ProductType = "simple"
	ProductTypeVariable ProductType = "variable"
	ProductTypeGrouped  ProductType = "grouped"
	ProductTypeExternal ProductType = "external"
)

type ProductStatus string

const (
	ProductStatusPublish ProductStatus = "publish"
	ProductStatusDraft   ProductStatus = "draft"
	ProductStatusPending ProductStatus = "pending"
	ProductStatusPrivate ProductStatus = "private"
	ProductStatusTrash   ProductStatus = "trash"
)

type StockStatus string

const (
	StockStatusInStock     StockStatus = "instock"
	StockStatusOutOfStock  StockStatus = "outofstock"
	StockStatusOnBackorder StockStatus = "onbackorder"
)

// IsVariable reports whether variation summaries apply to the product.
func (p *Product) IsVariable() bool {
	return p.Type == ProductTypeVariable
}

// OnSale mirrors WooCommerce: a non-empty sale price below the regular one.
func (p *Product) OnSale() bool {
	return p.SalePrice != "" && p.SalePrice != p.RegularPrice
}
