package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"lazychat/internal/clock"
	"lazychat/internal/credentials"
	"lazychat/internal/database"
	"lazychat/internal/logger"
	"lazychat/internal/saas"
	"lazychat/internal/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSaaS struct {
	mu          sync.Mutex
	calls       []string
	login       *saas.LoginResult
	loginErr    error
	status      saas.ConnectionStatus
	statusErr   error
	notifyErr   error
	disconnErr  error
	notified    []bool
	contactSent []saas.ContactRequest
}

func (f *fakeSaaS) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSaaS) Login(_ context.Context, email, password string) (*saas.LoginResult, error) {
	f.record("login")
	return f.login, f.loginErr
}

func (f *fakeSaaS) CheckConnection(context.Context, saas.Credentials) (saas.ConnectionStatus, error) {
	f.record("check")
	return f.status, f.statusErr
}

func (f *fakeSaaS) NotifyPluginStatus(_ context.Context, _ saas.Credentials, active bool) error {
	f.record("notify")
	f.notified = append(f.notified, active)
	return f.notifyErr
}

func (f *fakeSaaS) Disconnect(context.Context, saas.Credentials, bool) error {
	f.record("disconnect")
	return f.disconnErr
}

func (f *fakeSaaS) Contact(_ context.Context, _ saas.Credentials, req saas.ContactRequest) error {
	f.record("contact")
	f.contactSent = append(f.contactSent, req)
	return nil
}

type fakeProvisioner struct {
	result *credentials.Result
	err    error
	calls  int
}

func (f *fakeProvisioner) Provision(context.Context) (*credentials.Result, error) {
	f.calls++
	return f.result, f.err
}

func newManager(t *testing.T, client SaaS, prov Provisioner) (*Manager, *settings.Store) {
	t.Helper()
	st := settings.New(database.NewTest(t).DB)
	return NewManager(client, st, prov, logger.Nop()), st
}

func TestLoginValidationHappensBeforeNetwork(t *testing.T) {
	client := &fakeSaaS{}
	m, _ := newManager(t, client, &fakeProvisioner{})

	tests := []struct {
		name string
		req  LoginRequest
		want string
	}{
		{"empty", LoginRequest{}, "Email is required. Password is required."},
		{"short password", LoginRequest{Email: "a@example.com", Password: "12345"}, "Password must be at least 6 characters."},
		{"bad email", LoginRequest{Email: "nope", Password: "123456"}, "Please enter a valid email address."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Login(context.Background(), tt.req)
			var input *InputError
			require.ErrorAs(t, err, &input)
			assert.Equal(t, tt.want, UserMessage(err))
		})
	}
	assert.Empty(t, client.calls)
}

func TestLoginWithSeveralShopsAsksForSelection(t *testing.T) {
	ctx := context.Background()
	client := &fakeSaaS{login: &saas.LoginResult{
		Token: "acct",
		Email: "owner@example.com",
		Shops: []saas.Shop{{ID: "1", Name: "One", Token: "t1"}, {ID: "2", Name: "Two", Token: "t2"}},
	}}
	prov := &fakeProvisioner{result: &credentials.Result{Registered: true}}
	m, st := newManager(t, client, prov)

	out, err := m.Login(ctx, LoginRequest{Email: "owner@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.True(t, out.NeedsSelection)
	assert.Equal(t, []ShopChoice{{ID: "1", Name: "One"}, {ID: "2", Name: "Two"}}, out.Shops)
	assert.Zero(t, prov.calls)

	saved, err := st.Load(ctx)
	require.NoError(t, err)
	assert.False(t, saved.LoggedIn())
	assert.Len(t, saved.PendingShops, 2)

	sel, err := m.SelectShop(ctx, "2")
	require.NoError(t, err)
	assert.True(t, sel.Activated)
	assert.Empty(t, sel.Warnings)

	saved, err = st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t2", saved.AuthToken)
	assert.Equal(t, "Two", saved.ShopName)
	assert.True(t, saved.Active)
	assert.Empty(t, saved.PendingShops)
	assert.Equal(t, "owner@example.com", saved.UserEmail)
}

func TestSelectUnknownShop(t *testing.T) {
	m, _ := newManager(t, &fakeSaaS{}, &fakeProvisioner{})

	_, err := m.SelectShop(context.Background(), "9")
	var input *InputError
	require.ErrorAs(t, err, &input)

	_, err = m.SelectShop(context.Background(), "")
	require.ErrorAs(t, err, &input)
}

func TestSelectShopSurvivesProvisioningFailure(t *testing.T) {
	ctx := context.Background()
	client := &fakeSaaS{login: &saas.LoginResult{Shops: []saas.Shop{{ID: "1", Name: "One", Token: "t1"}}}}
	m, st := newManager(t, client, &fakeProvisioner{err: errors.New("disk full")})

	out, err := m.Login(ctx, LoginRequest{Email: "owner@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotNil(t, out.Selection)
	assert.Len(t, out.Selection.Warnings, 1)

	saved, err := st.Load(ctx)
	require.NoError(t, err)
	assert.True(t, saved.Active)
	assert.Equal(t, "t1", saved.AuthToken)
}

func TestLoginRejected(t *testing.T) {
	client := &fakeSaaS{loginErr: &saas.APIError{StatusCode: 401, Message: "Invalid credentials"}}
	m, _ := newManager(t, client, &fakeProvisioner{})

	_, err := m.Login(context.Background(), LoginRequest{Email: "owner@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, saas.ErrUnauthorized)
	assert.Equal(t, "Invalid credentials", UserMessage(err))
}

func loggedIn(t *testing.T, st *settings.Store, active bool) {
	t.Helper()
	require.NoError(t, st.Save(context.Background(), settings.Settings{
		AuthToken: "tok", ShopID: "1", Active: active, ProductWebhooks: true, OrderWebhooks: true,
	}))
}

func TestActivateRequiresLinkedStore(t *testing.T) {
	ctx := context.Background()
	client := &fakeSaaS{status: saas.ConnectionStatus{TokenValid: true, Linked: false}}
	m, st := newManager(t, client, &fakeProvisioner{})
	loggedIn(t, st, false)

	err := m.SetActive(ctx, true)
	assert.ErrorIs(t, err, ErrNotLinked)
	saved, _ := st.Load(ctx)
	assert.False(t, saved.Active)

	client.status.Linked = true
	require.NoError(t, m.SetActive(ctx, true))
	saved, _ = st.Load(ctx)
	assert.True(t, saved.Active)
	assert.Equal(t, []bool{true}, client.notified)
}

func TestActivateConnectionErrorKeepsFlag(t *testing.T) {
	ctx := context.Background()
	client := &fakeSaaS{statusErr: &saas.TransportError{Op: "GET", Err: errors.New("timeout")}}
	m, st := newManager(t, client, &fakeProvisioner{})
	loggedIn(t, st, false)

	err := m.SetActive(ctx, true)
	assert.Contains(t, UserMessage(err), "Could not reach LazyChat")
	saved, _ := st.Load(ctx)
	assert.False(t, saved.Active)
}

func TestActivateWithoutSession(t *testing.T) {
	client := &fakeSaaS{}
	m, _ := newManager(t, client, &fakeProvisioner{})

	err := m.SetActive(context.Background(), true)
	assert.ErrorIs(t, err, saas.ErrNotConfigured)
	assert.Empty(t, client.calls)
}

func TestDeactivateAlwaysSucceedsLocally(t *testing.T) {
	ctx := context.Background()
	client := &fakeSaaS{notifyErr: errors.New("offline")}
	m, st := newManager(t, client, &fakeProvisioner{})
	loggedIn(t, st, true)

	require.NoError(t, m.SetActive(ctx, false))
	saved, _ := st.Load(ctx)
	assert.False(t, saved.Active)
	assert.Equal(t, []string{"notify"}, client.calls)
}

func TestLogoutAndDisconnect(t *testing.T) {
	ctx := context.Background()
	client := &fakeSaaS{disconnErr: &saas.APIError{StatusCode: 500, Message: "try later"}}
	m, st := newManager(t, client, &fakeProvisioner{})
	loggedIn(t, st, true)

	require.Error(t, m.Disconnect(ctx, true))
	saved, _ := st.Load(ctx)
	assert.True(t, saved.LoggedIn(), "failed disconnect keeps the session")

	client.disconnErr = nil
	require.NoError(t, m.Disconnect(ctx, true))
	saved, _ = st.Load(ctx)
	assert.False(t, saved.LoggedIn())

	loggedIn(t, st, true)
	calls := len(client.calls)
	require.NoError(t, m.Logout(ctx))
	saved, _ = st.Load(ctx)
	assert.False(t, saved.LoggedIn())
	assert.Len(t, client.calls, calls, "logout is local only")
}

func TestContactValidation(t *testing.T) {
	client := &fakeSaaS{}
	m, _ := newManager(t, client, &fakeProvisioner{})

	err := m.Contact(context.Background(), saas.ContactRequest{Name: "Ada"})
	var input *InputError
	require.ErrorAs(t, err, &input)
	assert.Empty(t, client.calls)

	require.NoError(t, m.Contact(context.Background(), saas.ContactRequest{
		Name: "Ada", Email: "ada@example.com", Message: "Help",
	}))
	assert.Len(t, client.contactSent, 1)
}

// The whole login path against a fake LazyChat: one shop in the response is
// selected, its token stored, the integration switched on, a key pair issued
// and the store registered.
func TestLoginSingleShopEndToEnd(t *testing.T) {
	ctx := context.Background()
	var (
		mu         sync.Mutex
		registered map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			_, _ = w.Write([]byte(`{"success":true,"data":{"token":"tok-single","shops":[{"id":77,"name":"Solo"}]}}`))
		case "/woocommerce/register-store":
			assert.Equal(t, "Bearer tok-single", r.Header.Get("Authorization"))
			assert.Equal(t, "77", r.Header.Get(saas.HeaderShopID))
			mu.Lock()
			_ = json.NewDecoder(r.Body).Decode(&registered)
			mu.Unlock()
			_, _ = w.Write([]byte(`{"status":"success"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	db := database.NewTest(t).DB
	st := settings.New(db)
	client := saas.NewClient(saas.Options{BaseURL: srv.URL, PluginVersion: "1.0.0"}, logger.Nop())
	clk := clock.NewFake(time.Date(2025, 12, 22, 5, 59, 1, 0, time.UTC))
	prov := credentials.NewProvisioner(db, st, client, "https://store.test", clk, logger.Nop())
	m := NewManager(client, st, prov, logger.Nop())

	out, err := m.Login(ctx, LoginRequest{Email: "owner@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.False(t, out.NeedsSelection)
	require.NotNil(t, out.Selection)
	assert.Equal(t, "77", out.Selection.ShopID)
	assert.True(t, out.Selection.Activated)
	require.NotNil(t, out.Selection.Keys)
	assert.True(t, out.Selection.Keys.Registered)
	assert.Empty(t, out.Selection.Warnings)

	saved, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-single", saved.AuthToken)
	assert.Equal(t, "Solo", saved.ShopName)
	assert.True(t, saved.Active)
	assert.Equal(t, out.Selection.Keys.ConsumerKey, saved.ConsumerKey)

	count, err := prov.CountIssued(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "https://store.test", registered["store_url"])
	assert.Equal(t, saved.ConsumerKey, registered["consumer_key"])
	assert.Equal(t, "1.0.0", registered["plugin_version"])
}
