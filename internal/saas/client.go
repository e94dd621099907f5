package saas

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"net/http"
	"strings"
	"time"

	"lazychat/internal/logger"

	"github.com/go-resty/resty/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/spf13/cast"
)

const (
	HeaderShopID        = "X-Lazychat-Shop-Id"
	HeaderPluginVersion = "X-Plugin-Version"
)

// Credentials authorise plugin-to-SaaS calls for one shop.
type Credentials struct {
	Token  string
	ShopID string
}

func (c Credentials) Complete() bool {
	return c.Token != "" && c.ShopID != ""
}

type Options struct {
	BaseURL            string
	PluginVersion      string
	InteractiveTimeout time.Duration
	BulkTimeout        time.Duration
	TelemetryTimeout   time.Duration
	HTTPClient         *http.Client
}

// Client talks to the LazyChat API. It holds no session state: every call
// receives the credentials it should use.
type Client struct {
	rest      *resty.Client
	logger    *logger.Logger
	version   string
	opts      Options
	sanitizer *bluemonday.Policy
}

func NewClient(opts Options, logger *logger.Logger) *Client {
	if opts.InteractiveTimeout <= 0 {
		opts.InteractiveTimeout = 15 * time.Second
	}
	if opts.BulkTimeout <= 0 {
		opts.BulkTimeout = 60 * time.Second
	}
	if opts.TelemetryTimeout <= 0 {
		opts.TelemetryTimeout = 5 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	rest := resty.NewWithClient(httpClient).
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader(HeaderPluginVersion, opts.PluginVersion)

	return &Client{
		rest:      rest,
		logger:    logger,
		version:   opts.PluginVersion,
		opts:      opts,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

type Shop struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Token string `json:"-"`
}

type LoginResult struct {
	Token string
	Email string
	Shops []Shop
}

// Login exchanges admin credentials for one token per accessible shop.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body, err := c.call(ctx, c.opts.InteractiveTimeout, http.MethodPost, "/auth/login", nil, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	if failed, msg := explicitFailure(body); failed {
		return nil, &APIError{StatusCode: http.StatusUnauthorized, Message: c.clean(msg)}
	}

	data := dataOf(body)
	result := &LoginResult{
		Token: firstString(data, "token", "access_token", "auth_token"),
		Email: email,
	}
	if user, ok := data["user"].(map[string]interface{}); ok {
		if e := cast.ToString(user["email"]); e != "" {
			result.Email = e
		}
	}

	for _, raw := range cast.ToSlice(data["shops"]) {
		shop := cast.ToStringMap(raw)
		id := cast.ToString(shop["id"])
		if id == "" {
			id = cast.ToString(shop["shop_id"])
		}
		if id == "" {
			continue
		}
		token := firstString(shop, "token", "auth_token", "access_token")
		if token == "" {
			token = result.Token
		}
		result.Shops = append(result.Shops, Shop{
			ID:    id,
			Name:  firstString(shop, "name", "shop_name"),
			Token: token,
		})
	}

	if len(result.Shops) == 0 {
		if id := cast.ToString(data["shop_id"]); id != "" && result.Token != "" {
			result.Shops = []Shop{{ID: id, Name: cast.ToString(data["shop_name"]), Token: result.Token}}
		}
	}
	if len(result.Shops) == 0 {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "No shops are linked to this LazyChat account."}
	}
	return result, nil
}

type ConnectionStatus struct {
	TokenValid bool
	Linked     bool
	Message    string
}

// CheckConnection validates the token and asks whether the SaaS considers the
// store linked.
func (c *Client) CheckConnection(ctx context.Context, creds Credentials) (ConnectionStatus, error) {
	if !creds.Complete() {
		return ConnectionStatus{}, ErrNotConfigured
	}
	body, err := c.call(ctx, c.opts.InteractiveTimeout, http.MethodGet, "/woocommerce/check-connection", &creds, nil)
	if err != nil {
		return ConnectionStatus{}, err
	}
	if failed, msg := explicitFailure(body); failed {
		return ConnectionStatus{Message: c.clean(msg)}, nil
	}
	data := dataOf(body)
	return ConnectionStatus{
		TokenValid: true,
		Linked:     cast.ToBool(data["is_connected"]) || cast.ToBool(data["woocommerce_connected"]),
		Message:    c.clean(messageOf(body)),
	}, nil
}

// NotifyPluginStatus tells the SaaS the integration was switched on or off.
func (c *Client) NotifyPluginStatus(ctx context.Context, creds Credentials, active bool) error {
	if !creds.Complete() {
		return ErrNotConfigured
	}
	body, err := c.call(ctx, c.opts.InteractiveTimeout, http.MethodPost, "/woocommerce/plugin-status", &creds, map[string]interface{}{
		"active": active,
	})
	if err != nil {
		return err
	}
	return c.failureToError(body)
}

type StoreRegistration struct {
	StoreURL       string `json:"store_url"`
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
	PluginVersion  string `json:"plugin_version"`
}

func (c *Client) RegisterStore(ctx context.Context, creds Credentials, reg StoreRegistration) error {
	if !creds.Complete() {
		return ErrNotConfigured
	}
	if reg.PluginVersion == "" {
		reg.PluginVersion = c.version
	}
	body, err := c.call(ctx, c.opts.BulkTimeout, http.MethodPost, "/woocommerce/register-store", &creds, reg)
	if err != nil {
		return err
	}
	return c.failureToError(body)
}

// TriggerSync asks the SaaS to start a bulk product sync.
func (c *Client) TriggerSync(ctx context.Context, creds Credentials) (TriggerResult, error) {
	if !creds.Complete() {
		return TriggerResult{}, ErrNotConfigured
	}
	body, err := c.call(ctx, c.opts.BulkTimeout, http.MethodPost, "/woocommerce/sync-products", &creds, map[string]interface{}{})
	if err != nil {
		return TriggerResult{}, err
	}
	result := ClassifyTrigger(body)
	result.Message = c.clean(result.Message)
	return result, nil
}

// SyncProgress polls the remote sync job. The envelope is checked strictly.
func (c *Client) SyncProgress(ctx context.Context, creds Credentials) (Progress, error) {
	if !creds.Complete() {
		return Progress{}, ErrNotConfigured
	}
	body, err := c.call(ctx, c.opts.InteractiveTimeout, http.MethodPost, "/woocommerce/sync-progress", &creds, map[string]interface{}{})
	if err != nil {
		return Progress{}, err
	}

	status := strings.ToLower(cast.ToString(body["status"]))
	data, hasData := body["data"].(map[string]interface{})
	switch {
	case failureStatuses[status]:
		return Progress{}, &APIError{StatusCode: http.StatusOK, Message: c.clean(messageOf(body))}
	case status != "success" || !hasData:
		return Progress{}, ErrUnexpectedShape
	}

	p := ParseProgress(data)
	p.Message = c.clean(p.Message)
	return p, nil
}

// Disconnect unlinks the store, optionally deleting products already synced.
func (c *Client) Disconnect(ctx context.Context, creds Credentials, deleteProducts bool) error {
	if !creds.Complete() {
		return ErrNotConfigured
	}
	body, err := c.call(ctx, c.opts.InteractiveTimeout, http.MethodPost, "/woocommerce/disconnect", &creds, map[string]interface{}{
		"delete_products": deleteProducts,
	})
	if err != nil {
		return err
	}
	return c.failureToError(body)
}

type ContactRequest struct {
	Name    string `json:"name" form:"name" validate:"required"`
	Email   string `json:"email" form:"email" validate:"required,email"`
	Subject string `json:"subject" form:"subject"`
	Message string `json:"message" form:"message" validate:"required"`
}

func (c *Client) Contact(ctx context.Context, creds Credentials, req ContactRequest) error {
	req.Message = c.clean(req.Message)
	body, err := c.call(ctx, c.opts.InteractiveTimeout, http.MethodPost, "/support/contact", &creds, req)
	if err != nil {
		return err
	}
	return c.failureToError(body)
}

// ReportError posts to the remote error log. Credentials may be empty.
func (c *Client) ReportError(ctx context.Context, creds Credentials, message string, fields map[string]interface{}) error {
	_, err := c.call(ctx, c.opts.TelemetryTimeout, http.MethodPost, "/plugin/error-log", &creds, map[string]interface{}{
		"message":        message,
		"context":        fields,
		"plugin_version": c.version,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
	return err
}

// ReportDebug posts a debug telemetry event.
func (c *Client) ReportDebug(ctx context.Context, creds Credentials, event string, fields map[string]interface{}) error {
	_, err := c.call(ctx, c.opts.TelemetryTimeout, http.MethodPost, "/plugin/debug", &creds, map[string]interface{}{
		"event":          event,
		"data":           fields,
		"plugin_version": c.version,
	})
	return err
}

// call performs one request and decodes the body loosely. Non-JSON 2xx bodies
// decode to an empty map; HTTP errors become *APIError.
func (c *Client) call(ctx context.Context, timeout time.Duration, method, path string, creds *Credentials, payload interface{}) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := c.rest.R().SetContext(ctx)
	if creds != nil {
		if creds.Token != "" {
			req.SetAuthToken(creds.Token)
		}
		if creds.ShopID != "" {
			req.SetHeader(HeaderShopID, creds.ShopID)
		}
	}
	if payload != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(payload)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Debug("LazyChat %s %s failed: %v", method, path, err)
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}

	body := decodeBody(resp.Body())
	if resp.StatusCode() >= http.StatusBadRequest {
		return body, &APIError{StatusCode: resp.StatusCode(), Message: c.clean(messageOf(body))}
	}
	return body, nil
}

func (c *Client) failureToError(body map[string]interface{}) error {
	if failed, msg := explicitFailure(body); failed {
		return &APIError{StatusCode: http.StatusOK, Message: c.clean(msg)}
	}
	return nil
}

// clean strips markup from upstream text so it can be shown as plain text.
func (c *Client) clean(msg string) string {
	return strings.TrimSpace(html.UnescapeString(c.sanitizer.Sanitize(msg)))
}

func decodeBody(raw []byte) map[string]interface{} {
	body := map[string]interface{}{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return body
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return map[string]interface{}{}
	}
	return body
}

func explicitFailure(body map[string]interface{}) (bool, string) {
	if failureStatuses[strings.ToLower(cast.ToString(body["status"]))] {
		return true, messageOf(body)
	}
	if raw, ok := body["success"]; ok && !cast.ToBool(raw) {
		return true, messageOf(body)
	}
	return false, ""
}

func dataOf(body map[string]interface{}) map[string]interface{} {
	if data, ok := body["data"].(map[string]interface{}); ok {
		return data
	}
	return body
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v := cast.ToString(m[key]); v != "" {
			return v
		}
	}
	return ""
}
