// Package auth runs the admin session: login, shop selection, activation,
// logout and disconnect.
package auth

import (
	"context"
	"errors"

	"lazychat/internal/credentials"
	"lazychat/internal/logger"
	"lazychat/internal/saas"
	"lazychat/internal/settings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

type SaaS interface {
	Login(ctx context.Context, email, password string) (*saas.LoginResult, error)
	CheckConnection(ctx context.Context, creds saas.Credentials) (saas.ConnectionStatus, error)
	NotifyPluginStatus(ctx context.Context, creds saas.Credentials, active bool) error
	Disconnect(ctx context.Context, creds saas.Credentials, deleteProducts bool) error
	Contact(ctx context.Context, creds saas.Credentials, req saas.ContactRequest) error
}

type Provisioner interface {
	Provision(ctx context.Context) (*credentials.Result, error)
}

type SettingsStore interface {
	Load(ctx context.Context) (settings.Settings, error)
	Update(ctx context.Context, fn func(*settings.Settings) error) (settings.Settings, error)
	Clear(ctx context.Context) error
}

type Manager struct {
	saas        SaaS
	settings    SettingsStore
	provisioner Provisioner
	validate    *validator.Validate
	logger      *logger.Logger
}

func NewManager(client SaaS, st SettingsStore, provisioner Provisioner, logger *logger.Logger) *Manager {
	return &Manager{
		saas:        client,
		settings:    st,
		provisioner: provisioner,
		validate:    validator.New(),
		logger:      logger,
	}
}

type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=6"`
}

type ShopChoice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LoginOutcome either asks the admin to pick a shop or reports the
// automatic selection of the only one.
type LoginOutcome struct {
	NeedsSelection bool              `json:"needs_selection"`
	Shops          []ShopChoice      `json:"shops,omitempty"`
	Selection      *SelectionOutcome `json:"selection,omitempty"`
}

type SelectionOutcome struct {
	ShopID    string              `json:"shop_id"`
	ShopName  string              `json:"shop_name"`
	Activated bool                `json:"activated"`
	Keys      *credentials.Result `json:"keys,omitempty"`
	Warnings  []string            `json:"warnings,omitempty"`
}

// Login validates the form before any network call, then stores the offered
// shops. A single shop is selected right away.
func (m *Manager) Login(ctx context.Context, req LoginRequest) (*LoginOutcome, error) {
	if err := m.validate.Struct(req); err != nil {
		return nil, inputError(err)
	}

	result, err := m.saas.Login(ctx, req.Email, req.Password)
	if err != nil {
		m.logger.Warn("LazyChat login for %s failed: %v", req.Email, err)
		return nil, err
	}

	pending := lo.Map(result.Shops, func(s saas.Shop, _ int) settings.PendingShop {
		return settings.PendingShop{ID: s.ID, Name: s.Name, Token: s.Token}
	})
	_, err = m.settings.Update(ctx, func(st *settings.Settings) error {
		st.UserEmail = result.Email
		st.PendingShops = pending
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(pending) == 1 {
		selection, err := m.SelectShop(ctx, pending[0].ID)
		if err != nil {
			return nil, err
		}
		return &LoginOutcome{Selection: selection}, nil
	}

	return &LoginOutcome{
		NeedsSelection: true,
		Shops: lo.Map(pending, func(s settings.PendingShop, _ int) ShopChoice {
			return ShopChoice{ID: s.ID, Name: s.Name}
		}),
	}, nil
}

// SelectShop stores the chosen shop's session and switches the integration
// on. Key provisioning and store registration follow; their failures become
// warnings and never undo the selection.
func (m *Manager) SelectShop(ctx context.Context, shopID string) (*SelectionOutcome, error) {
	if err := m.validate.Var(shopID, "required"); err != nil {
		return nil, &InputError{Message: "Please choose a shop."}
	}

	st, err := m.settings.Update(ctx, func(st *settings.Settings) error {
		shop, err := st.FindPending(shopID)
		if err != nil {
			return err
		}
		st.AuthToken = shop.Token
		st.ShopID = shop.ID
		st.ShopName = shop.Name
		st.Active = true
		st.PendingShops = nil
		return nil
	})
	if errors.Is(err, settings.ErrNoPendingShop) {
		return nil, &InputError{Message: "That shop is no longer available. Please log in again."}
	}
	if err != nil {
		return nil, err
	}
	m.logger.Info("Selected LazyChat shop %s (%s)", st.ShopName, st.ShopID)

	out := &SelectionOutcome{ShopID: st.ShopID, ShopName: st.ShopName, Activated: st.Active}

	keys, err := m.provisioner.Provision(ctx)
	if err != nil {
		m.logger.Error("API key provisioning failed: %v", err)
		out.Warnings = append(out.Warnings, "API keys could not be generated. Use \"Generate API keys\" to retry.")
		return out, nil
	}
	out.Keys = keys
	if keys.RegistrationError != "" {
		out.Warnings = append(out.Warnings, "Store registration failed: "+keys.RegistrationError)
	}
	return out, nil
}

// SetActive switches the integration. Turning it on requires LazyChat to
// confirm both the token and the store link first; turning it off always
// succeeds locally.
func (m *Manager) SetActive(ctx context.Context, active bool) error {
	st, err := m.settings.Load(ctx)
	if err != nil {
		return err
	}
	creds := st.Credentials()

	if active {
		if !creds.Complete() {
			return saas.ErrNotConfigured
		}
		status, err := m.saas.CheckConnection(ctx, creds)
		if err != nil {
			return err
		}
		if !status.TokenValid || !status.Linked {
			msg := status.Message
			if msg == "" {
				msg = "Your store is not connected to LazyChat yet. Please reconnect and try again."
			}
			return &NotLinkedError{Message: msg}
		}
	} else if creds.Complete() {
		if err := m.saas.NotifyPluginStatus(ctx, creds, false); err != nil {
			m.logger.Warn("Could not notify LazyChat of deactivation: %v", err)
		}
	}

	_, err = m.settings.Update(ctx, func(st *settings.Settings) error {
		st.Active = active
		return nil
	})
	if err != nil {
		return err
	}

	if active {
		if err := m.saas.NotifyPluginStatus(ctx, creds, true); err != nil {
			m.logger.Warn("Could not notify LazyChat of activation: %v", err)
		}
	}
	m.logger.Info("Integration active=%t", active)
	return nil
}

// CheckConnection asks LazyChat whether the stored session is still valid.
func (m *Manager) CheckConnection(ctx context.Context) (saas.ConnectionStatus, error) {
	st, err := m.settings.Load(ctx)
	if err != nil {
		return saas.ConnectionStatus{}, err
	}
	return m.saas.CheckConnection(ctx, st.Credentials())
}

// Logout forgets the local session only.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.settings.Clear(ctx); err != nil {
		return err
	}
	m.logger.Info("Logged out of LazyChat")
	return nil
}

// Disconnect unlinks the store upstream and, once that succeeds, logs out.
func (m *Manager) Disconnect(ctx context.Context, deleteProducts bool) error {
	st, err := m.settings.Load(ctx)
	if err != nil {
		return err
	}
	if err := m.saas.Disconnect(ctx, st.Credentials(), deleteProducts); err != nil {
		return err
	}
	return m.Logout(ctx)
}

// Contact forwards a support request.
func (m *Manager) Contact(ctx context.Context, req saas.ContactRequest) error {
	if err := m.validate.Struct(req); err != nil {
		return inputError(err)
	}
	st, err := m.settings.Load(ctx)
	if err != nil {
		return err
	}
	return m.saas.Contact(ctx, st.Credentials(), req)
}
