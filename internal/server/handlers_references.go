package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/catalog"
	"github.com/gin-gonic/gin"
)

type createReferencePayload struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Description *string `json:"description"`
	Thumbnail   *string `json:"thumbnail"`
	CategoryID  *int64  `json:"categoryId"`
	TagIDs      []int64 `json:"tagIds"`
}

type referenceIDPayload struct {
	ReferenceID int64 `json:"referenceId"`
}

type votePayload struct {
	ReferenceID int64  `json:"referenceId"`
	Direction   string `json:"direction"`
}

// handleListReferences also answers the tag lookups (?allTags=true, ?tags={id}) the front-end issues here.
func (h *httpHandler) handleListReferences(c *gin.Context) {
	ctx := c.Request.Context()
	if c.Query("allTags") == "true" {
		tags, err := h.catalog.ListTags(ctx)
		if err != nil {
			h.respondError(c, "list tags failed", err)
			return
		}
		c.JSON(http.StatusOK, tags)
		return
	}
	if raw := c.Query("tags"); raw != "" {
		referenceID, ok := parseID(raw)
		if !ok {
			badRequest(c, errorInvalidID)
			return
		}
		tags, err := h.catalog.TagsForReference(ctx, referenceID)
		if err != nil {
			h.respondError(c, "list reference tags failed", err)
			return
		}
		c.JSON(http.StatusOK, tags)
		return
	}

	filter := catalog.ReferenceFilter{
		ViewerID:     viewerID(c),
		FeaturedOnly: c.Query("featured") == "true",
		CategorySlug: strings.TrimSpace(c.Query("category")),
		Sort:         strings.TrimSpace(c.Query("sort")),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			badRequest(c, "invalid_limit")
			return
		}
		filter.Limit = limit
	}
	references, err := h.catalog.ListReferences(ctx, filter)
	if err != nil {
		h.respondError(c, "list references failed", err)
		return
	}
	c.JSON(http.StatusOK, references)
}

// handleCreateReference fetches the preview image when no thumbnail was supplied.
func (h *httpHandler) handleCreateReference(c *gin.Context) {
	var request createReferencePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, errorInvalidRequest)
		return
	}
	ctx := c.Request.Context()

	thumbnail := request.Thumbnail
	if (thumbnail == nil || strings.TrimSpace(*thumbnail) == "") && strings.TrimSpace(request.URL) != "" {
		thumbnail = h.previews.FetchImage(ctx, request.URL)
	}

	view, err := h.catalog.CreateReference(ctx, catalog.ReferenceInput{
		Title:       request.Title,
		URL:         request.URL,
		Description: request.Description,
		Thumbnail:   thumbnail,
		CategoryID:  request.CategoryID,
		TagIDs:      request.TagIDs,
	}, viewerID(c))
	if err != nil {
		h.respondError(c, "create reference failed", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *httpHandler) handleGetReference(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		badRequest(c, errorInvalidID)
		return
	}
	view, err := h.catalog.GetReference(c.Request.Context(), id, viewerID(c))
	if err != nil {
		h.respondError(c, "get reference failed", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *httpHandler) handleUpdateReference(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		badRequest(c, errorInvalidID)
		return
	}
	var patch catalog.ReferencePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, errorInvalidRequest)
		return
	}
	view, err := h.catalog.UpdateReference(c.Request.Context(), id, patch, viewerID(c))
	if err != nil {
		h.respondError(c, "update reference failed", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *httpHandler) handleDeleteReference(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		badRequest(c, errorInvalidID)
		return
	}
	if err := h.catalog.DeleteReference(c.Request.Context(), id); err != nil {
		h.respondError(c, "delete reference failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleSearch(c *gin.Context) {
	results, err := h.catalog.SearchReferences(c.Request.Context(), c.Query("q"), viewerID(c))
	if err != nil {
		h.respondError(c, "search failed", err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *httpHandler) handleToggleBookmark(c *gin.Context) {
	var request referenceIDPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.ReferenceID <= 0 {
		badRequest(c, "missing_reference_id")
		return
	}
	view, err := h.catalog.ToggleBookmark(c.Request.Context(), viewerID(c), request.ReferenceID)
	if err != nil {
		h.respondError(c, "toggle bookmark failed", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *httpHandler) handleListBookmarks(c *gin.Context) {
	bookmarks, err := h.catalog.ListBookmarks(c.Request.Context(), viewerID(c))
	if err != nil {
		h.respondError(c, "list bookmarks failed", err)
		return
	}
	c.JSON(http.StatusOK, bookmarks)
}

func (h *httpHandler) handleVote(c *gin.Context) {
	var request votePayload
	if err := c.ShouldBindJSON(&request); err != nil || request.ReferenceID <= 0 {
		badRequest(c, "missing_reference_id")
		return
	}
	votes, err := h.catalog.Vote(c.Request.Context(), request.ReferenceID, request.Direction)
	if err != nil {
		h.respondError(c, "vote failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"votes": votes})
}
