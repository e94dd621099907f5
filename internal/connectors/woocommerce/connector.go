// Package woocommerce talks to the store's own REST namespace, the way
// LazyChat will, to confirm the issued key pair actually works.
package woocommerce

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"lazychat/internal/logger"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cast"
)

// StatusPath is the health route of the connector's REST namespace.
const StatusPath = "/wp-json/lazychat/v1/status"

type Connector struct {
	rest     *resty.Client
	storeURL string
	logger   *logger.Logger
}

func New(storeURL string, timeout time.Duration, httpClient *http.Client, logger *logger.Logger) *Connector {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	rest := resty.NewWithClient(httpClient).SetHeader("Accept", "application/json")
	if timeout > 0 {
		rest.SetTimeout(timeout)
	}
	return &Connector{
		rest:     rest,
		storeURL: strings.TrimRight(storeURL, "/"),
		logger:   logger,
	}
}

// RESTCheck is the outcome of one self-test.
type RESTCheck struct {
	URL           string `json:"url"`
	Reachable     bool   `json:"reachable"`
	Authenticated bool   `json:"authenticated"`
	Active        bool   `json:"active"`
	StatusCode    int    `json:"status_code"`
	Message       string `json:"message"`
}

// OK reports whether LazyChat can use the REST API with these keys.
func (c RESTCheck) OK() bool {
	return c.Reachable && c.Authenticated && c.Active
}

// CheckREST calls the status route with the consumer key pair.
func (c *Connector) CheckREST(ctx context.Context, consumerKey, consumerSecret string) (RESTCheck, error) {
	check := RESTCheck{URL: c.storeURL + StatusPath}
	if c.storeURL == "" {
		return check, fmt.Errorf("store url is not configured")
	}
	if consumerKey == "" || consumerSecret == "" {
		check.Message = "No API keys have been generated yet."
		return check, nil
	}

	var body map[string]interface{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBasicAuth(consumerKey, consumerSecret).
		SetResult(&body).
		SetError(&body).
		Get(check.URL)
	if err != nil {
		c.logger.Warn("REST self-test against %s failed: %v", check.URL, err)
		check.Message = "The store REST API could not be reached."
		return check, nil
	}

	check.Reachable = true
	check.StatusCode = resp.StatusCode()
	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		check.Message = "The REST API rejected the stored API keys."
	case resp.StatusCode() == http.StatusForbidden:
		check.Authenticated = true
		check.Message = "The integration is not active."
	case resp.IsError():
		check.Message = fmt.Sprintf("The REST API returned HTTP %d.", resp.StatusCode())
	default:
		check.Authenticated = true
		check.Active = cast.ToBool(body["active"])
		check.Message = "The REST API is working."
		if !check.Active {
			check.Message = "The integration is not active."
		}
	}
	return check, nil
}
