package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"lazychat/internal/clock"

	"github.com/gin-gonic/gin"
)

const (
	NonceHeader = "X-WP-Nonce"
	nonceAction = "lazychat_admin"
	nonceTick   = 12 * time.Hour
)

// Nonces issues anti-forgery tokens for admin actions. A token is valid for
// the tick it was issued in and the one after, so between 12 and 24 hours.
type Nonces struct {
	secret []byte
	clock  clock.Clock
}

func NewNonces(secret string, clk clock.Clock) *Nonces {
	if clk == nil {
		clk = clock.Real()
	}
	return &Nonces{secret: []byte(secret), clock: clk}
}

func (n *Nonces) Issue() string {
	return n.token(n.tick())
}

func (n *Nonces) Verify(token string) bool {
	if token == "" {
		return false
	}
	tick := n.tick()
	for _, t := range []int64{tick, tick - 1} {
		if hmac.Equal([]byte(token), []byte(n.token(t))) {
			return true
		}
	}
	return false
}

func (n *Nonces) tick() int64 {
	return n.clock.Now().Unix()/int64(nonceTick/time.Second) + 1
}

func (n *Nonces) token(tick int64) string {
	mac := hmac.New(sha256.New, n.secret)
	mac.Write([]byte(nonceAction + "|" + strconv.FormatInt(tick, 10)))
	return hex.EncodeToString(mac.Sum(nil))[:12]
}

// RequireNonce rejects admin requests without a valid token in the
// X-WP-Nonce header or the nonce form field.
func RequireNonce(n *Nonces) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(NonceHeader)
		if token == "" {
			token = c.PostForm("nonce")
		}
		if !n.Verify(token) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"data":    gin.H{"message": "Security check failed. Please reload the page and try again."},
			})
			return
		}
		c.Next()
	}
}
