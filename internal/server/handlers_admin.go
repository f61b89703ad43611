package server

import (
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	requestActionApprove = "approve"
	requestActionDeny    = "deny"
)

type createUserPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// updateUserPayload either changes a role or publishes a user's bookmarks as their favorites collection.
type updateUserPayload struct {
	UserID           int64  `json:"userId"`
	Role             string `json:"role"`
	PublishBookmarks bool   `json:"publishBookmarks"`
	UserName         string `json:"userName"`
}

type userIDPayload struct {
	UserID int64 `json:"userId"`
}

type resolveRequestPayload struct {
	RequestID int64  `json:"requestId"`
	Action    string `json:"action"`
}

type requestIDPayload struct {
	RequestID int64 `json:"requestId"`
}

func (h *httpHandler) handleListUsers(c *gin.Context) {
	accounts, err := h.users.List(c.Request.Context())
	if err != nil {
		h.respondError(c, "list users failed", err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (h *httpHandler) handleCreateUser(c *gin.Context) {
	var request createUserPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, errorInvalidRequest)
		return
	}
	account, err := h.users.Create(c.Request.Context(), users.CreateInput{
		Email:       request.Email,
		DisplayName: request.Name,
		Role:        request.Role,
	})
	if err != nil {
		h.respondError(c, "create user failed", err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (h *httpHandler) handleUpdateUser(c *gin.Context) {
	var request updateUserPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, errorInvalidRequest)
		return
	}
	if request.PublishBookmarks {
		h.publishBookmarks(c, request)
		return
	}
	if request.UserID <= 0 || strings.TrimSpace(request.Role) == "" {
		badRequest(c, errorInvalidRequest)
		return
	}
	account, err := h.users.UpdateRole(c.Request.Context(), request.UserID, request.Role)
	if err != nil {
		h.respondError(c, "update role failed", err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// publishBookmarks snapshots the chosen user's bookmarks, newest reference first, into
// that user's favorites collection. The user is picked by id, else by display name.
func (h *httpHandler) publishBookmarks(c *gin.Context, request updateUserPayload) {
	ctx := c.Request.Context()
	var (
		account users.User
		err     error
	)
	switch {
	case request.UserID > 0:
		account, err = h.users.FindByID(ctx, request.UserID)
	case strings.TrimSpace(request.UserName) != "":
		account, err = h.users.FindByDisplayName(ctx, request.UserName)
	default:
		badRequest(c, "missing_user")
		return
	}
	if err != nil {
		h.respondError(c, "publish user lookup failed", err)
		return
	}

	referenceIDs, err := h.catalog.BookmarkedReferenceIDs(ctx, account.ID)
	if err != nil {
		h.respondError(c, "publish bookmark lookup failed", err)
		return
	}
	if len(referenceIDs) == 0 {
		badRequest(c, "no_bookmarks")
		return
	}

	result, err := h.collections.Publish(ctx, account.DisplayName, referenceIDs)
	if err != nil {
		h.respondError(c, "publish failed", err)
		return
	}
	h.logger.Info("bookmarks published",
		zap.Int64("user_id", account.ID),
		zap.String("slug", result.Slug),
		zap.Int("count", result.Count),
	)
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) handleDeleteUser(c *gin.Context) {
	var request userIDPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.UserID <= 0 {
		badRequest(c, "missing_user_id")
		return
	}
	account, err := h.users.Delete(c.Request.Context(), request.UserID)
	if err != nil {
		h.respondError(c, "delete user failed", err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *httpHandler) handleListRequests(c *gin.Context) {
	requests, err := h.access.ListRequests(c.Request.Context())
	if err != nil {
		h.respondError(c, "list access requests failed", err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *httpHandler) handleResolveRequest(c *gin.Context) {
	var request resolveRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.RequestID <= 0 {
		badRequest(c, "missing_request_id")
		return
	}
	ctx := c.Request.Context()
	switch request.Action {
	case requestActionApprove:
		approved, err := h.access.Approve(ctx, request.RequestID)
		if err != nil {
			h.respondError(c, "approve access request failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "approved": approved})
	case requestActionDeny:
		if err := h.access.Deny(ctx, request.RequestID); err != nil {
			h.respondError(c, "deny access request failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	default:
		badRequest(c, "invalid_action")
	}
}

func (h *httpHandler) handleDeleteRequest(c *gin.Context) {
	var request requestIDPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.RequestID <= 0 {
		badRequest(c, "missing_request_id")
		return
	}
	if err := h.access.Delete(c.Request.Context(), request.RequestID); err != nil {
		h.respondError(c, "delete access request failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
