package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harborhealth/caregate/internal/authz"
	"github.com/harborhealth/caregate/internal/service"
	"github.com/harborhealth/caregate/pkg/auth"
)

const (
	identityKey = "identity"
	sessionKey  = "session"

	// RefreshedTokenHeader carries the re-signed token when the sliding
	// window is extended; clients replace their stored token with it.
	RefreshedTokenHeader = "X-Session-Token"
)

// Authenticate resolves the bearer token into an authz.Identity and
// stores it on the request context. All failures produce the same 401
// body; the log carries the distinction.
func Authenticate(sessions *auth.SessionManager, authSvc *service.AuthService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			unauthorized(c)
			return
		}

		sess, err := sessions.Resolve(token)
		if err != nil {
			log.Debug("session rejected", zap.Error(err))
			unauthorized(c)
			return
		}

		ident, err := authSvc.ResolveIdentity(c.Request.Context(), sess)
		if err != nil {
			log.Debug("identity resolution failed", zap.Error(err))
			unauthorized(c)
			return
		}
		if !ident.Active || ident.Locked {
			unauthorized(c)
			return
		}

		// Sliding expiry: past the midpoint of the window, hand the client
		// a fresh token. A refresh failure (absolute lifetime exhausted)
		// just means this is the token's last window.
		if sessions.ShouldRefresh(sess) {
			if refreshed, _, rerr := sessions.Refresh(sess); rerr == nil {
				c.Header(RefreshedTokenHeader, refreshed)
			}
		}

		c.Set(identityKey, ident)
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// RequireRoles guards route groups whose every handler needs one of the
// given roles. The fine-grained decision still happens per operation in
// the service layer; this just fails obvious mismatches early.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		ident, ok := IdentityFrom(c)
		if !ok {
			unauthorized(c)
			return
		}
		if _, ok := allowed[string(ident.Role)]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}

// IdentityFrom retrieves the authenticated identity set by Authenticate.
func IdentityFrom(c *gin.Context) (authz.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return authz.Identity{}, false
	}
	ident, ok := v.(authz.Identity)
	return ident, ok
}

// SessionFrom retrieves the raw session set by Authenticate.
func SessionFrom(c *gin.Context) (*auth.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*auth.Session)
	return sess, ok
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
}
