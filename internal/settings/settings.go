// Package settings persists the connector state (session, shop, store
// credentials and feature flags) in the options table. Components receive a
// *Store at construction instead of reading options ad hoc.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"lazychat/internal/models"
	"lazychat/internal/saas"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	KeyAuthToken       = "lazychat_auth_token"
	KeyShopID          = "lazychat_shop_id"
	KeyShopName        = "lazychat_shop_name"
	KeyUserEmail       = "lazychat_user_email"
	KeyPluginActive    = "lazychat_plugin_active"
	KeyConsumerKey     = "lazychat_consumer_key"
	KeyConsumerSecret  = "lazychat_consumer_secret"
	KeyPendingShops    = "lazychat_pending_shops"
	KeyProductWebhooks = "lazychat_product_webhooks"
	KeyOrderWebhooks   = "lazychat_order_webhooks"
)

var allKeys = []string{
	KeyAuthToken, KeyShopID, KeyShopName, KeyUserEmail, KeyPluginActive,
	KeyConsumerKey, KeyConsumerSecret, KeyPendingShops,
	KeyProductWebhooks, KeyOrderWebhooks,
}

// PendingShop is a shop offered after a multi-shop login, kept until the
// admin picks one.
type PendingShop struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// Settings is a typed view of every stored option.
type Settings struct {
	AuthToken       string
	ShopID          string
	ShopName        string
	UserEmail       string
	Active          bool
	ConsumerKey     string
	ConsumerSecret  string
	PendingShops    []PendingShop
	ProductWebhooks bool
	OrderWebhooks   bool
}

func (s Settings) Credentials() saas.Credentials {
	return saas.Credentials{Token: s.AuthToken, ShopID: s.ShopID}
}

func (s Settings) LoggedIn() bool {
	return s.AuthToken != "" && s.ShopID != ""
}

func defaults() Settings {
	return Settings{ProductWebhooks: true, OrderWebhooks: true}
}

type Store struct {
	db *gorm.DB
	mu sync.Mutex
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Load(ctx context.Context) (Settings, error) {
	values, err := s.values(ctx)
	if err != nil {
		return Settings{}, err
	}
	return decode(values)
}

func (s *Store) values(ctx context.Context) (map[string]string, error) {
	var rows []models.Option
	if err := s.db.WithContext(ctx).Where("name IN ?", allKeys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Name] = row.Value
	}
	return values, nil
}

// Save writes every field of st.
func (s *Store) Save(ctx context.Context, st Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, st)
}

// Update applies fn to the current settings and saves the result atomically
// with respect to other Update calls on this Store.
func (s *Store) Update(ctx context.Context, fn func(*Settings) error) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.Load(ctx)
	if err != nil {
		return Settings{}, err
	}
	if err := fn(&st); err != nil {
		return Settings{}, err
	}
	if err := s.saveLocked(ctx, st); err != nil {
		return Settings{}, err
	}
	return st, nil
}

// Clear drops the session state. Webhook preferences survive a logout. It
// reads the raw options so an unreadable pending shop list can still be
// cleared.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.values(ctx)
	if err != nil {
		return err
	}
	st := defaults()
	st.ProductWebhooks = parseFlag(values, KeyProductWebhooks, true)
	st.OrderWebhooks = parseFlag(values, KeyOrderWebhooks, true)
	return s.saveLocked(ctx, st)
}

// Credentials satisfies saas.CredentialSource.
func (s *Store) Credentials(ctx context.Context) (saas.Credentials, error) {
	st, err := s.Load(ctx)
	if err != nil {
		return saas.Credentials{}, err
	}
	return st.Credentials(), nil
}

func (s *Store) saveLocked(ctx context.Context, st Settings) error {
	values, err := encode(st)
	if err != nil {
		return err
	}
	rows := make([]models.Option, 0, len(values))
	for _, key := range allKeys {
		rows = append(rows, models.Option{Name: key, Value: values[key]})
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func decode(values map[string]string) (Settings, error) {
	st := defaults()
	st.AuthToken = values[KeyAuthToken]
	st.ShopID = values[KeyShopID]
	st.ShopName = values[KeyShopName]
	st.UserEmail = values[KeyUserEmail]
	st.Active = parseFlag(values, KeyPluginActive, false)
	st.ConsumerKey = values[KeyConsumerKey]
	st.ConsumerSecret = values[KeyConsumerSecret]
	st.ProductWebhooks = parseFlag(values, KeyProductWebhooks, true)
	st.OrderWebhooks = parseFlag(values, KeyOrderWebhooks, true)
	if raw := values[KeyPendingShops]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &st.PendingShops); err != nil {
			return Settings{}, fmt.Errorf("failed to decode %s: %w", KeyPendingShops, err)
		}
	}
	return st, nil
}

func encode(st Settings) (map[string]string, error) {
	pending := ""
	if len(st.PendingShops) > 0 {
		raw, err := json.Marshal(st.PendingShops)
		if err != nil {
			return nil, fmt.Errorf("failed to encode pending shops: %w", err)
		}
		pending = string(raw)
	}
	return map[string]string{
		KeyAuthToken:       st.AuthToken,
		KeyShopID:          st.ShopID,
		KeyShopName:        st.ShopName,
		KeyUserEmail:       st.UserEmail,
		KeyPluginActive:    formatFlag(st.Active),
		KeyConsumerKey:     st.ConsumerKey,
		KeyConsumerSecret:  st.ConsumerSecret,
		KeyPendingShops:    pending,
		KeyProductWebhooks: formatFlag(st.ProductWebhooks),
		KeyOrderWebhooks:   formatFlag(st.OrderWebhooks),
	}, nil
}

// WordPress stores booleans as "yes"/"no"; older rows may hold "1"/"0".
func parseFlag(values map[string]string, key string, fallback bool) bool {
	raw, ok := values[key]
	if !ok || raw == "" {
		return fallback
	}
	switch raw {
	case "yes":
		return true
	case "no":
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func formatFlag(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// ErrNoPendingShop is returned when a shop is selected that the last login
// did not offer.
var ErrNoPendingShop = errors.New("settings: shop not in pending list")

// FindPending returns the pending shop with the given ID.
func (s Settings) FindPending(id string) (PendingShop, error) {
	for _, shop := range s.PendingShops {
		if shop.ID == id {
			return shop, nil
		}
	}
	return PendingShop{}, ErrNoPendingShop
}
