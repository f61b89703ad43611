package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type previewPayload struct {
	URL string `json:"url"`
}

// handlePreview never fails once a URL is supplied; unreachable pages yield null fields.
func (h *httpHandler) handlePreview(c *gin.Context) {
	var request previewPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.URL) == "" {
		badRequest(c, "missing_url")
		return
	}
	c.JSON(http.StatusOK, h.previews.Fetch(c.Request.Context(), request.URL))
}

func (h *httpHandler) handleBackfill(c *gin.Context) {
	report, err := h.backfiller.Run(c.Request.Context(), h.catalog)
	if err != nil {
		h.respondError(c, "thumbnail backfill failed", err)
		return
	}
	c.JSON(http.StatusOK, report)
}
