package models

import "time"

// Option is a single key/value setting row.
type Option struct {
	Name      string    `json:"name" gorm:"primaryKey;size:191"`
	Value     string    `json:"value" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductSnapshot caches the tracked field set of a product between webhook
// evaluations.
type ProductSnapshot struct {
	ProductID uint                   `json:"product_id" gorm:"primaryKey;autoIncrement:false"`
	Fields    map[string]interface{} `json:"fields" gorm:"type:text;serializer:json"`
	ExpiresAt time.Time              `json:"expires_at" gorm:"index"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// All lists every table the service migrates.
func All() []interface{} {
	return []interface{}{
		&Option{},
		&ProductSnapshot{},
		&APICredential{},
		&EventLog{},
		&Product{},
		&Order{},
		&Customer{},
		&Coupon{},
	}
}
