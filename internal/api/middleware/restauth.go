package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"lazychat/internal/credentials"
	"lazychat/internal/logger"
	"lazychat/internal/models"
	"lazychat/internal/settings"

	"github.com/gin-gonic/gin"
)

const (
	// AuthMethodKey holds "bearer" or "consumer_key" once a REST request is
	// authenticated.
	AuthMethodKey = "lazychat.auth_method"
)

type SettingsLoader interface {
	Load(ctx context.Context) (settings.Settings, error)
}

type KeyAuthenticator interface {
	Authenticate(ctx context.Context, key, secret string) (*models.APICredential, error)
}

// RESTError writes the error shape of the store REST namespace.
func RESTError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": message,
		"data":    gin.H{"status": status},
	})
}

// RESTAuth accepts the LazyChat bearer token or a consumer key pair, sent
// either as basic auth or as consumer_key/consumer_secret query parameters.
// Every route also requires the integration to be active.
func RESTAuth(st SettingsLoader, keys KeyAuthenticator, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		current, err := st.Load(ctx)
		if err != nil {
			logger.Error("Failed to load settings for REST auth: %v", err)
			RESTError(c, http.StatusInternalServerError, "lazychat_internal_error", "Settings could not be loaded.")
			return
		}

		method, cred, ok := authenticate(c, current, keys, logger)
		if !ok {
			RESTError(c, http.StatusUnauthorized, "lazychat_rest_unauthorized", "Invalid or missing authentication.")
			return
		}
		if !current.Active {
			RESTError(c, http.StatusForbidden, "lazychat_inactive", "The LazyChat integration is not active.")
			return
		}
		if cred != nil && !readOnly(c.Request.Method) && !cred.CanWrite() {
			RESTError(c, http.StatusForbidden, "lazychat_rest_read_only", "These API keys only allow read access.")
			return
		}

		c.Set(AuthMethodKey, method)
		c.Next()
	}
}

// authenticate returns the credential for consumer key requests and nil for
// the bearer token, which always has full access.
func authenticate(c *gin.Context, current settings.Settings, keys KeyAuthenticator, logger *logger.Logger) (string, *models.APICredential, bool) {
	header := c.GetHeader("Authorization")
	if token, found := strings.CutPrefix(header, "Bearer "); found {
		token = strings.TrimSpace(token)
		ok := current.AuthToken != "" &&
			subtle.ConstantTimeCompare([]byte(token), []byte(current.AuthToken)) == 1
		return "bearer", nil, ok
	}

	key, secret, hasBasic := c.Request.BasicAuth()
	if !hasBasic {
		key, secret = c.Query("consumer_key"), c.Query("consumer_secret")
	}
	if key == "" || secret == "" {
		return "", nil, false
	}
	cred, err := keys.Authenticate(c.Request.Context(), key, secret)
	if err != nil {
		if !errors.Is(err, credentials.ErrInvalidCredentials) {
			logger.Error("Consumer key check failed: %v", err)
		}
		return "", nil, false
	}
	return "consumer_key", cred, true
}

func readOnly(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
