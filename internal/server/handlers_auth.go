package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/access"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginRequestPayload struct {
	Email string `json:"email"`
}

type loginResponsePayload struct {
	Status  access.Outcome    `json:"status"`
	User    *auth.SessionUser `json:"user,omitempty"`
	Message string            `json:"message"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, errorInvalidRequest)
		return
	}

	result, err := h.access.Login(c.Request.Context(), request.Email)
	if err != nil {
		h.respondError(c, "login failed", err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveLogin(string(result.Outcome))
	}

	response := loginResponsePayload{Status: result.Outcome, Message: result.Outcome.Message()}
	if result.Outcome == access.OutcomeLoggedIn && result.User != nil {
		identity := result.User.SessionUser()
		token, _, err := h.sessions.Issue(c.Request.Context(), identity)
		if err != nil {
			h.logger.Error("failed to issue session token", zap.Error(err), zap.Int64("user_id", identity.ID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": errorInternal})
			return
		}
		http.SetCookie(c.Writer, h.sessions.NewCookie(token))
		response.User = &identity
	}
	c.JSON(http.StatusOK, response)
}

// handleCurrentUser reports the session identity, or null for missing and invalid sessions.
func (h *httpHandler) handleCurrentUser(c *gin.Context) {
	identity, err := h.sessions.Lookup(c.Request)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": identity})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	http.SetCookie(c.Writer, h.sessions.ClearCookie())
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
