package server

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionUserContextKey = "shelf_session_user"

	loginPath = "/login"
	homePath  = "/"
	apiPrefix = "/api/"

	denialMissingSession = "missing_session"
	denialInvalidSession = "invalid_session"
	denialRevokedSession = "revoked_session"
	denialForbidden      = "forbidden"
)

var (
	publicPrefixes = []string{"/login", "/api/auth", "/healthz"}
	adminPrefixes  = []string{"/admin", "/api/requests", "/api/users"}

	publicAssetExtensions = map[string]struct{}{
		".svg": {}, ".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".ico": {},
	}
)

type routeClass int

const (
	routeProtected routeClass = iota
	routePublic
	routeAdmin
)

// RoleSource reports the stored role of an account; found is false once the account is gone.
type RoleSource interface {
	CurrentRole(ctx context.Context, userID int64) (string, bool, error)
}

type gatekeeper struct {
	sessions    *auth.SessionManager
	roles       RoleSource
	recheckRole bool
	onDenied    func(reason string)
	logger      *zap.Logger
}

func classifyPath(requestPath string) routeClass {
	if hasAnyPrefix(requestPath, publicPrefixes) {
		return routePublic
	}
	if _, asset := publicAssetExtensions[strings.ToLower(path.Ext(requestPath))]; asset && !isAPIPath(requestPath) {
		return routePublic
	}
	if hasAnyPrefix(requestPath, adminPrefixes) {
		return routeAdmin
	}
	return routeProtected
}

func hasAnyPrefix(value string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

func isAPIPath(requestPath string) bool {
	return strings.HasPrefix(requestPath, apiPrefix)
}

// handle authorizes every request before routing and stores the verified identity.
func (g *gatekeeper) handle(c *gin.Context) {
	requestPath := c.Request.URL.Path
	class := classifyPath(requestPath)
	if class == routePublic {
		c.Next()
		return
	}

	identity, err := g.sessions.Lookup(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrMissingSessionToken) {
			g.rejectUnauthenticated(c, denialMissingSession, false)
			return
		}
		g.logger.Debug("session rejected", zap.Error(err), zap.String("path", requestPath))
		g.rejectUnauthenticated(c, denialInvalidSession, true)
		return
	}

	if class == routeAdmin {
		if g.recheckRole && g.roles != nil {
			role, found, lookupErr := g.roles.CurrentRole(c.Request.Context(), identity.ID)
			if lookupErr != nil {
				g.logger.Error("admin role lookup failed", zap.Error(lookupErr), zap.Int64("user_id", identity.ID))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errorInternal})
				return
			}
			if !found {
				g.rejectUnauthenticated(c, denialRevokedSession, true)
				return
			}
			identity.Role = role
		}
		if !identity.IsAdmin() {
			g.denied(denialForbidden)
			if isAPIPath(requestPath) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": errorForbidden})
				return
			}
			c.Redirect(http.StatusTemporaryRedirect, homePath)
			c.Abort()
			return
		}
	}

	c.Set(sessionUserContextKey, identity)
	c.Next()
}

func (g *gatekeeper) rejectUnauthenticated(c *gin.Context, reason string, clearCookie bool) {
	g.denied(reason)
	if clearCookie {
		http.SetCookie(c.Writer, g.sessions.ClearCookie())
	}
	if isAPIPath(c.Request.URL.Path) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errorUnauthorized})
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, loginPath)
	c.Abort()
}

func (g *gatekeeper) denied(reason string) {
	if g.onDenied != nil {
		g.onDenied(reason)
	}
}

// sessionUser returns the identity stored by the gatekeeper.
func sessionUser(c *gin.Context) (auth.SessionUser, bool) {
	value, exists := c.Get(sessionUserContextKey)
	if !exists {
		return auth.SessionUser{}, false
	}
	identity, ok := value.(auth.SessionUser)
	return identity, ok
}

// viewerID is the caller's user id, or zero for anonymous public routes.
func viewerID(c *gin.Context) int64 {
	identity, ok := sessionUser(c)
	if !ok {
		return 0
	}
	return identity.ID
}
