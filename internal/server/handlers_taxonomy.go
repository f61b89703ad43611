package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/catalog"
	"github.com/gin-gonic/gin"
)

type createTagPayload struct {
	Name string `json:"name"`
}

type tagLinkPayload struct {
	ReferenceID int64 `json:"referenceId"`
	TagID       int64 `json:"tagId"`
	DeleteTagID int64 `json:"deleteTagId"`
}

type createCategoryPayload struct {
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	Color       *string `json:"color"`
}

type updateCategoryPayload struct {
	CategoryID int64 `json:"categoryId"`
	catalog.CategoryPatch
}

type categoryIDPayload struct {
	CategoryID int64 `json:"categoryId"`
}

func (h *httpHandler) handleListTags(c *gin.Context) {
	ctx := c.Request.Context()
	if raw := c.Query("referenceId"); raw != "" {
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
	tags, err := h.catalog.ListTags(ctx)
	if err != nil {
		h.respondError(c, "list tags failed", err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (h *httpHandler) handleCreateTag(c *gin.Context) {
	var request createTagPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, errorInvalidRequest)
		return
	}
	tag, err := h.catalog.CreateTag(c.Request.Context(), request.Name)
	if err != nil {
		h.respondError(c, "create tag failed", err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

func (h *httpHandler) handleAttachTag(c *gin.Context) {
	var request tagLinkPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.ReferenceID <= 0 || request.TagID <= 0 {
		badRequest(c, "missing_reference_or_tag")
		return
	}
	if err := h.catalog.AttachTag(c.Request.Context(), request.ReferenceID, request.TagID); err != nil {
		h.respondError(c, "attach tag failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleDeleteTag removes a tag entirely when deleteTagId is set, otherwise detaches it from a reference.
func (h *httpHandler) handleDeleteTag(c *gin.Context) {
	var request tagLinkPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, errorInvalidRequest)
		return
	}
	ctx := c.Request.Context()
	if request.DeleteTagID > 0 {
		if err := h.catalog.DeleteTag(ctx, request.DeleteTagID); err != nil {
			h.respondError(c, "delete tag failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	if request.ReferenceID <= 0 || request.TagID <= 0 {
		badRequest(c, "missing_reference_or_tag")
		return
	}
	if err := h.catalog.DetachTag(ctx, request.ReferenceID, request.TagID); err != nil {
		h.respondError(c, "detach tag failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleListCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, "list categories failed", err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *httpHandler) handleCategoryReferences(c *gin.Context) {
	ctx := c.Request.Context()
	category, err := h.catalog.GetCategoryBySlug(ctx, c.Param("slug"))
	if err != nil {
		h.respondError(c, "get category failed", err)
		return
	}
	references, err := h.catalog.ListReferences(ctx, catalog.ReferenceFilter{
		ViewerID:     viewerID(c),
		CategorySlug: category.Slug,
	})
	if err != nil {
		h.respondError(c, "list category references failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category, "references": references})
}

func (h *httpHandler) handleCreateCategory(c *gin.Context) {
	var request createCategoryPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, errorInvalidRequest)
		return
	}
	category, err := h.catalog.CreateCategory(c.Request.Context(), catalog.CategoryInput{
		Name:        request.Name,
		Slug:        request.Slug,
		Description: request.Description,
		Icon:        request.Icon,
		Color:       request.Color,
	})
	if err != nil {
		h.respondError(c, "create category failed", err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *httpHandler) handleUpdateCategory(c *gin.Context) {
	var request updateCategoryPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.CategoryID <= 0 {
		badRequest(c, "missing_category_id")
		return
	}
	category, err := h.catalog.UpdateCategory(c.Request.Context(), request.CategoryID, request.CategoryPatch)
	if err != nil {
		h.respondError(c, "update category failed", err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *httpHandler) handleDeleteCategory(c *gin.Context) {
	var request categoryIDPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.CategoryID <= 0 {
		badRequest(c, "missing_category_id")
		return
	}
	category, err := h.catalog.DeleteCategory(c.Request.Context(), request.CategoryID)
	if err != nil {
		h.respondError(c, "delete category failed", err)
		return
	}
	c.JSON(http.StatusOK, category)
}
