package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/serviceerr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorInvalidRequest = "invalid_request"
	errorInvalidID      = "invalid_id"
	errorUnauthorized   = "unauthorized"
	errorForbidden      = "forbidden"
	errorNotFound       = "not_found"
	errorInternal       = "internal_error"
)

var statusByKind = map[serviceerr.Kind]int{
	serviceerr.KindValidation:   http.StatusBadRequest,
	serviceerr.KindUnauthorized: http.StatusUnauthorized,
	serviceerr.KindForbidden:    http.StatusForbidden,
	serviceerr.KindNotFound:     http.StatusNotFound,
	serviceerr.KindConflict:     http.StatusConflict,
	serviceerr.KindInternal:     http.StatusInternalServerError,
}

// respondError maps a service error onto its status and the {"error","code"} body.
// Internal failures are logged and answered without their cause.
func (h *httpHandler) respondError(c *gin.Context, message string, err error) {
	serviceErr, ok := serviceerr.As(err)
	if !ok || serviceErr.Kind() == serviceerr.KindInternal {
		h.logger.Error(message, zap.Error(err), zap.String("request_id", requestID(c)))
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorInternal})
		return
	}
	status, found := statusByKind[serviceErr.Kind()]
	if !found {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": serviceErr.Reason(), "code": serviceErr.Code()})
}

func badRequest(c *gin.Context, reason string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": reason})
}

// parseID reads a positive integer identifier.
func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
