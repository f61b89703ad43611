package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/collections"
	"github.com/gin-gonic/gin"
)

type createCollectionPayload struct {
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
}

type collectionIDPayload struct {
	CollectionID int64 `json:"collectionId"`
}

func (h *httpHandler) handleListCollections(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		rows []collections.Collection
		err  error
	)
	if c.Query("favorites") == "true" {
		rows, err = h.collections.ListFavorites(ctx)
	} else {
		rows, err = h.collections.List(ctx)
	}
	if err != nil {
		h.respondError(c, "list collections failed", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *httpHandler) handleGetCollection(c *gin.Context) {
	collection, entries, err := h.collections.GetBySlug(c.Request.Context(), c.Param("slug"), viewerID(c))
	if err != nil {
		h.respondError(c, "get collection failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection": collection, "references": entries})
}

func (h *httpHandler) handleCreateCollection(c *gin.Context) {
	var request createCollectionPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, errorInvalidRequest)
		return
	}
	collection, err := h.collections.Create(c.Request.Context(), collections.CollectionInput{
		Name:        request.Name,
		Slug:        request.Slug,
		Description: request.Description,
		Icon:        request.Icon,
	})
	if err != nil {
		h.respondError(c, "create collection failed", err)
		return
	}
	c.JSON(http.StatusCreated, collection)
}

func (h *httpHandler) handleDeleteCollection(c *gin.Context) {
	var request collectionIDPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.CollectionID <= 0 {
		badRequest(c, "missing_collection_id")
		return
	}
	collection, err := h.collections.Delete(c.Request.Context(), request.CollectionID)
	if err != nil {
		h.respondError(c, "delete collection failed", err)
		return
	}
	c.JSON(http.StatusOK, collection)
}
