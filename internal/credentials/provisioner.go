// Package credentials issues the store REST key pair LazyChat uses to pull
// store data, and authenticates requests made with it.
package credentials

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"lazychat/internal/clock"
	"lazychat/internal/logger"
	"lazychat/internal/models"
	"lazychat/internal/saas"
	"lazychat/internal/settings"

	"gorm.io/gorm"
)

// DescriptionMarker identifies keys issued for LazyChat, matched
// case-insensitively.
const DescriptionMarker = "lazychat"

var ErrInvalidCredentials = errors.New("credentials: invalid consumer key or secret")

type SettingsStore interface {
	Load(ctx context.Context) (settings.Settings, error)
	Update(ctx context.Context, fn func(*settings.Settings) error) (settings.Settings, error)
}

type Registrar interface {
	RegisterStore(ctx context.Context, creds saas.Credentials, reg saas.StoreRegistration) error
}

type Provisioner struct {
	db        *gorm.DB
	settings  SettingsStore
	registrar Registrar
	storeURL  string
	clock     clock.Clock
	logger    *logger.Logger
}

func NewProvisioner(db *gorm.DB, st SettingsStore, registrar Registrar, storeURL string, clk clock.Clock, logger *logger.Logger) *Provisioner {
	if clk == nil {
		clk = clock.Real()
	}
	return &Provisioner{
		db:        db,
		settings:  st,
		registrar: registrar,
		storeURL:  storeURL,
		clock:     clk,
		logger:    logger,
	}
}

// Result describes one provisioning run. A registration failure leaves the
// new key pair in place.
type Result struct {
	ConsumerKey       string `json:"consumer_key"`
	ConsumerSecret    string `json:"consumer_secret"`
	TruncatedKey      string `json:"truncated_key"`
	Deleted           int64  `json:"deleted"`
	Registered        bool   `json:"registered"`
	RegistrationError string `json:"registration_error,omitempty"`
}

// Provision replaces every LazyChat key pair with a fresh read/write pair,
// stores it in settings and registers it with LazyChat.
func (p *Provisioner) Provision(ctx context.Context) (*Result, error) {
	key, err := randomToken("ck_")
	if err != nil {
		return nil, err
	}
	secret, err := randomToken("cs_")
	if err != nil {
		return nil, err
	}

	now := p.clock.Now()
	cred := &models.APICredential{
		Description:     fmt.Sprintf("LazyChat - API (%s)", now.Format("2006-01-02 15:04:05")),
		Permissions:     models.PermissionReadWrite,
		ConsumerKeyHash: HashKey(key),
		ConsumerSecret:  secret,
		TruncatedKey:    key[len(key)-7:],
		LastAccess:      &now,
	}

	result := &Result{ConsumerKey: key, ConsumerSecret: secret, TruncatedKey: cred.TruncatedKey}
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("LOWER(description) LIKE ?", "%"+DescriptionMarker+"%").Delete(&models.APICredential{})
		if res.Error != nil {
			return res.Error
		}
		result.Deleted = res.RowsAffected
		return tx.Create(cred).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue api key: %w", err)
	}
	p.logger.Info("Issued API key ...%s, removed %d previous LazyChat keys", cred.TruncatedKey, result.Deleted)

	st, err := p.settings.Update(ctx, func(st *settings.Settings) error {
		st.ConsumerKey = key
		st.ConsumerSecret = secret
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.registrar.RegisterStore(ctx, st.Credentials(), saas.StoreRegistration{
		StoreURL:       p.storeURL,
		ConsumerKey:    key,
		ConsumerSecret: secret,
	})
	if err != nil {
		p.logger.Warn("Store registration failed: %v", err)
		result.RegistrationError = saas.UserMessage(err)
		return result, nil
	}
	result.Registered = true
	return result, nil
}

// Authenticate checks a consumer key/secret pair and records the access.
func (p *Provisioner) Authenticate(ctx context.Context, key, secret string) (*models.APICredential, error) {
	if key == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}
	var cred models.APICredential
	err := p.db.WithContext(ctx).Where("consumer_key_hash = ?", HashKey(key)).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load api key: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(cred.ConsumerSecret), []byte(secret)) != 1 {
		return nil, ErrInvalidCredentials
	}

	now := p.clock.Now()
	cred.LastAccess = &now
	if err := p.db.WithContext(ctx).Model(&cred).UpdateColumn("last_access", now).Error; err != nil {
		p.logger.Warn("Could not record access for key ...%s: %v", cred.TruncatedKey, err)
	}
	return &cred, nil
}

// CountIssued returns how many LazyChat key pairs exist.
func (p *Provisioner) CountIssued(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&models.APICredential{}).
		Where("LOWER(description) LIKE ?", "%"+DescriptionMarker+"%").
		Count(&count).Error
	return count, err
}

// HashKey hashes a consumer key the way WooCommerce stores it.
func HashKey(key string) string {
	mac := hmac.New(sha256.New, []byte("wc-api"))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func randomToken(prefix string) (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return prefix + hex.EncodeToString(buf), nil
}
