package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// APICredential is a store REST key pair. The consumer key itself is only
// kept as a hash; the secret is stored so the pair can be re-registered.
type APICredential struct {
	ID              string               `json:"id" gorm:"type:uuid;primaryKey"`
	Description     string               `json:"description" gorm:"not null"`
	Permissions     CredentialPermission `json:"permissions" gorm:"default:read"`
	ConsumerKeyHash string               `json:"-" gorm:"uniqueIndex;not null"`
	ConsumerSecret  string               `json:"-" gorm:"not null"`
	TruncatedKey    string               `json:"truncated_key"`
	LastAccess      *time.Time           `json:"last_access"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

type CredentialPermission string

const (
	PermissionRead      CredentialPermission = "read"
	PermissionWrite     CredentialPermission = "write"
	PermissionReadWrite CredentialPermission = "read_write"
)

func (c *APICredential) CanWrite() bool {
	return c.Permissions == PermissionWrite || c.Permissions == PermissionReadWrite
}

func (c *APICredential) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
