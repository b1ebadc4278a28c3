package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
)

const principalKey = "principal"

// AuthGuard requires a valid access token and, when roles are given, one of
// those roles.
func AuthGuard(signer *auth.Signer, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := authenticate(c, signer)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if len(allowedRoles) > 0 && !hasRole(p.Role, allowedRoles) {
			abortWithError(c, apperr.Forbidden("forbidden"))
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func RequireAuth(signer *auth.Signer) gin.HandlerFunc {
	return AuthGuard(signer)
}

func AdminAuth(signer *auth.Signer) gin.HandlerFunc {
	return AuthGuard(signer, models.RoleAdmin)
}

// OptionalAuth attaches the caller when a valid token is present and lets
// guests through. A present but invalid token is still rejected.
func OptionalAuth(signer *auth.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenFrom(c) == "" {
			c.Next()
			return
		}
		p, err := authenticate(c, signer)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireRole checks the role of a caller attached by an earlier guard.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			abortWithError(c, auth.ErrAccessTokenMissing)
			return
		}
		if !hasRole(p.Role, roles) {
			abortWithError(c, apperr.Forbidden("forbidden"))
			return
		}
		c.Next()
	}
}

func CurrentPrincipal(c *gin.Context) (*auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok && p != nil
}

// CanManageUser reports whether p may read or change the user record id.
func CanManageUser(p *auth.Principal, id primitive.ObjectID) bool {
	if p == nil {
		return false
	}
	return p.Role == models.RoleAdmin || p.UserID == id
}

func authenticate(c *gin.Context, signer *auth.Signer) (*auth.Principal, error) {
	raw := tokenFrom(c)
	if raw == "" {
		return nil, auth.ErrAccessTokenMissing
	}
	return signer.Parse(raw)
}

// tokenFrom prefers the access cookie and falls back to a Bearer header.
func tokenFrom(c *gin.Context) string {
	if v, err := c.Cookie(auth.AccessCookie); err == nil && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	raw := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func hasRole(role string, allowed []string) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

func abortWithError(c *gin.Context, err error) {
	e := apperr.From(err)
	body := gin.H{"error": e.Message, "code": string(e.Code)}
	if e.Reason != "" {
		body["code"] = e.Reason
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(e), body)
}
