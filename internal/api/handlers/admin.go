package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"lazychat/internal/api/middleware"
	"lazychat/internal/auth"
	"lazychat/internal/connectors/woocommerce"
	"lazychat/internal/credentials"
	"lazychat/internal/logger"
	"lazychat/internal/saas"
	"lazychat/internal/settings"
	"lazychat/internal/syncer"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

var errSyncRejected = errors.New("sync request rejected")

type action func(c *gin.Context) (gin.H, error)

// AdminHandler serves the nonce-protected admin actions. Every response is
// {success, data: {message, ...}}.
type AdminHandler struct {
	auth        *auth.Manager
	settings    *settings.Store
	saas        *saas.Client
	provisioner *credentials.Provisioner
	connector   *woocommerce.Connector
	nonces      *middleware.Nonces
	logger      *logger.Logger
	actions     map[string]action
}

func NewAdminHandler(
	manager *auth.Manager,
	st *settings.Store,
	client *saas.Client,
	provisioner *credentials.Provisioner,
	connector *woocommerce.Connector,
	nonces *middleware.Nonces,
	logger *logger.Logger,
) *AdminHandler {
	h := &AdminHandler{
		auth:        manager,
		settings:    st,
		saas:        client,
		provisioner: provisioner,
		connector:   connector,
		nonces:      nonces,
		logger:      logger,
	}
	h.actions = map[string]action{
		"login":                h.login,
		"select_shop":          h.selectShop,
		"toggle_plugin":        h.togglePlugin,
		"check_connection":     h.checkConnection,
		"sync_products":        h.syncProducts,
		"sync_progress":        h.syncProgress,
		"disconnect":           h.disconnect,
		"logout":               h.logout,
		"generate_api_keys":    h.generateAPIKeys,
		"test_rest_api":        h.testRESTAPI,
		"fix_rest_api":         h.fixRESTAPI,
		"save_webhook_setting": h.saveWebhookSetting,
		"contact":              h.contact,
	}
	return h
}

// Nonce hands out the anti-forgery token for the admin actions.
func (h *AdminHandler) Nonce(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"nonce": h.nonces.Issue()})
}

// State describes the local session without exposing any secret.
func (h *AdminHandler) State(c *gin.Context) {
	st, err := h.settings.Load(c.Request.Context())
	if err != nil {
		h.fail(c, nil, err)
		return
	}
	h.succeed(c, gin.H{
		"message":          "",
		"logged_in":        st.LoggedIn(),
		"shop_id":          st.ShopID,
		"shop_name":        st.ShopName,
		"user_email":       st.UserEmail,
		"active":           st.Active,
		"has_api_keys":     st.ConsumerKey != "",
		"product_webhooks": st.ProductWebhooks,
		"order_webhooks":   st.OrderWebhooks,
		"pending_shops": lo.Map(st.PendingShops, func(s settings.PendingShop, _ int) auth.ShopChoice {
			return auth.ShopChoice{ID: s.ID, Name: s.Name}
		}),
	})
}

func (h *AdminHandler) Perform(c *gin.Context) {
	name := c.Param("action")
	fn, ok := h.actions[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"data":    gin.H{"message": fmt.Sprintf("Unknown action %q.", name)},
		})
		return
	}

	data, err := fn(c)
	if err != nil {
		h.logger.Warn("Admin action %s failed: %v", name, err)
		h.fail(c, data, err)
		return
	}
	h.succeed(c, data)
}

func (h *AdminHandler) succeed(c *gin.Context, data gin.H) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func (h *AdminHandler) fail(c *gin.Context, data gin.H, err error) {
	if data == nil {
		data = gin.H{}
	}
	data["message"] = auth.UserMessage(err)
	if errors.Is(err, errSyncRejected) {
		data["message"] = strings.TrimPrefix(err.Error(), errSyncRejected.Error()+": ")
	}
	c.JSON(statusFor(err), gin.H{"success": false, "data": data})
}

func statusFor(err error) int {
	var input *auth.InputError
	var transport *saas.TransportError
	var apiErr *saas.APIError
	switch {
	case errors.As(err, &input), errors.Is(err, saas.ErrNotConfigured):
		return http.StatusBadRequest
	case errors.Is(err, saas.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrNotLinked), errors.Is(err, errSyncRejected):
		return http.StatusConflict
	case errors.As(err, &transport), errors.As(err, &apiErr), errors.Is(err, saas.ErrUnexpectedShape):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func bind(c *gin.Context, req interface{}) error {
	if err := c.ShouldBind(req); err != nil {
		return &auth.InputError{Message: "The request could not be read."}
	}
	return nil
}

func (h *AdminHandler) login(c *gin.Context) (gin.H, error) {
	var req auth.LoginRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	out, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		return nil, err
	}
	if out.NeedsSelection {
		return gin.H{
			"message":         "Please choose the shop to connect.",
			"needs_selection": true,
			"shops":           out.Shops,
		}, nil
	}
	return selectionData(out.Selection), nil
}

type selectShopRequest struct {
	ShopID string `json:"shop_id" form:"shop_id"`
}

func (h *AdminHandler) selectShop(c *gin.Context) (gin.H, error) {
	var req selectShopRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	out, err := h.auth.SelectShop(c.Request.Context(), req.ShopID)
	if err != nil {
		return nil, err
	}
	return selectionData(out), nil
}

func selectionData(out *auth.SelectionOutcome) gin.H {
	msg := fmt.Sprintf("Connected to %s.", out.ShopName)
	if len(out.Warnings) > 0 {
		msg += " " + strings.Join(out.Warnings, " ")
	}
	data := gin.H{
		"message":         msg,
		"needs_selection": false,
		"shop_id":         out.ShopID,
		"shop_name":       out.ShopName,
		"activated":       out.Activated,
		"warnings":        out.Warnings,
	}
	if out.Keys != nil {
		data["truncated_key"] = out.Keys.TruncatedKey
		data["registered"] = out.Keys.Registered
	}
	return data
}

type toggleRequest struct {
	Active bool `json:"active" form:"active"`
}

func (h *AdminHandler) togglePlugin(c *gin.Context) (gin.H, error) {
	var req toggleRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	if err := h.auth.SetActive(c.Request.Context(), req.Active); err != nil {
		return gin.H{"active": !req.Active}, err
	}
	msg := "LazyChat integration deactivated."
	if req.Active {
		msg = "LazyChat integration activated."
	}
	return gin.H{"message": msg, "active": req.Active}, nil
}

func (h *AdminHandler) checkConnection(c *gin.Context) (gin.H, error) {
	status, err := h.auth.CheckConnection(c.Request.Context())
	if err != nil {
		return nil, err
	}
	msg := status.Message
	switch {
	case msg != "":
	case status.TokenValid && status.Linked:
		msg = "Your store is connected to LazyChat."
	case status.TokenValid:
		msg = "Your LazyChat session is valid but the store is not linked yet."
	default:
		msg = "Your LazyChat session is no longer valid. Please log in again."
	}
	return gin.H{
		"message":     msg,
		"token_valid": status.TokenValid,
		"linked":      status.Linked,
	}, nil
}

func (h *AdminHandler) syncProducts(c *gin.Context) (gin.H, error) {
	ctx := c.Request.Context()
	st, err := h.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	result, err := h.saas.TriggerSync(ctx, st.Credentials())
	if err != nil {
		return nil, err
	}
	if !result.Accepted {
		msg := lo.Ternary(result.Message != "", result.Message, "LazyChat did not accept the sync request.")
		return nil, fmt.Errorf("%w: %s", errSyncRejected, msg)
	}
	msg := lo.Ternary(result.Message != "", result.Message, "Product sync started.")
	return gin.H{"message": msg}, nil
}

func (h *AdminHandler) syncProgress(c *gin.Context) (gin.H, error) {
	ctx := c.Request.Context()
	st, err := h.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	p, err := h.saas.SyncProgress(ctx, st.Credentials())
	if err != nil {
		return nil, err
	}

	var msg string
	switch p.Kind {
	case saas.ProgressInProgress:
		msg = "Syncing: " + syncer.Describe(p)
	case saas.ProgressCompleted:
		msg = "Sync completed."
	case saas.ProgressNoSync:
		msg = "No sync is running."
	default:
		msg = "Unknown sync status."
	}
	if p.Message != "" && p.Kind != saas.ProgressInProgress {
		msg = p.Message
	}
	return gin.H{
		"message":  msg,
		"kind":     p.Kind.String(),
		"progress": p,
	}, nil
}

type disconnectRequest struct {
	DeleteProducts bool `json:"delete_products" form:"delete_products"`
}

func (h *AdminHandler) disconnect(c *gin.Context) (gin.H, error) {
	var req disconnectRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	if err := h.auth.Disconnect(c.Request.Context(), req.DeleteProducts); err != nil {
		return nil, err
	}
	return gin.H{"message": "Your store was disconnected from LazyChat."}, nil
}

func (h *AdminHandler) logout(c *gin.Context) (gin.H, error) {
	if err := h.auth.Logout(c.Request.Context()); err != nil {
		return nil, err
	}
	return gin.H{"message": "You have been logged out."}, nil
}

func (h *AdminHandler) generateAPIKeys(c *gin.Context) (gin.H, error) {
	keys, err := h.provisioner.Provision(c.Request.Context())
	if err != nil {
		return nil, err
	}
	msg := "API keys generated and sent to LazyChat."
	if keys.RegistrationError != "" {
		msg = "API keys generated, but store registration failed: " + keys.RegistrationError
	}
	return gin.H{
		"message":         msg,
		"consumer_key":    keys.ConsumerKey,
		"consumer_secret": keys.ConsumerSecret,
		"truncated_key":   keys.TruncatedKey,
		"registered":      keys.Registered,
	}, nil
}

func (h *AdminHandler) testRESTAPI(c *gin.Context) (gin.H, error) {
	ctx := c.Request.Context()
	st, err := h.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	return h.restCheck(c, st.ConsumerKey, st.ConsumerSecret)
}

// fixRESTAPI issues a fresh key pair and re-runs the self-test with it.
func (h *AdminHandler) fixRESTAPI(c *gin.Context) (gin.H, error) {
	keys, err := h.provisioner.Provision(c.Request.Context())
	if err != nil {
		return nil, err
	}
	data, err := h.restCheck(c, keys.ConsumerKey, keys.ConsumerSecret)
	if data != nil {
		data["registered"] = keys.Registered
	}
	return data, err
}

func (h *AdminHandler) restCheck(c *gin.Context, key, secret string) (gin.H, error) {
	check, err := h.connector.CheckREST(c.Request.Context(), key, secret)
	if err != nil {
		return nil, err
	}
	data := gin.H{"message": check.Message, "check": check}
	if !check.OK() {
		return data, &auth.InputError{Message: check.Message}
	}
	return data, nil
}

type webhookSettingRequest struct {
	Type    string `json:"type" form:"type"`
	Enabled bool   `json:"enabled" form:"enabled"`
}

func (h *AdminHandler) saveWebhookSetting(c *gin.Context) (gin.H, error) {
	var req webhookSettingRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	_, err := h.settings.Update(c.Request.Context(), func(st *settings.Settings) error {
		switch req.Type {
		case "products", "product":
			st.ProductWebhooks = req.Enabled
		case "orders", "order":
			st.OrderWebhooks = req.Enabled
		default:
			return &auth.InputError{Message: "Unknown webhook type."}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return gin.H{
		"message": "Webhook settings saved.",
		"type":    req.Type,
		"enabled": req.Enabled,
	}, nil
}

func (h *AdminHandler) contact(c *gin.Context) (gin.H, error) {
	var req saas.ContactRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	if err := h.auth.Contact(c.Request.Context(), req); err != nil {
		return nil, err
	}
	return gin.H{"message": "Thanks! Your message has been sent."}, nil
}
