package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/access"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/collections"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/linkpreview"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader     = "X-Request-ID"
	requestIDContextKey = "shelf_request_id"
)

var (
	errMissingSessionManager     = errors.New("session manager dependency required")
	errMissingAccessService      = errors.New("access service dependency required")
	errMissingUsersService       = errors.New("users service dependency required")
	errMissingCatalogService     = errors.New("catalog service dependency required")
	errMissingCollectionsService = errors.New("collections service dependency required")
	errMissingPreviewFetcher     = errors.New("preview fetcher dependency required")
)

// PreviewFetcher resolves link previews for URLs.
type PreviewFetcher interface {
	Fetch(ctx context.Context, rawURL string) linkpreview.Preview
	FetchImage(ctx context.Context, rawURL string) *string
}

// Dependencies wires the HTTP layer to its services. LoginLimiter, Metrics and
// Backfiller are optional.
type Dependencies struct {
	Sessions         *auth.SessionManager
	Access           *access.Service
	Users            *users.Service
	Catalog          *catalog.Service
	Collections      *collections.Service
	Previews         PreviewFetcher
	Backfiller       *linkpreview.Backfiller
	LoginLimiter     gin.HandlerFunc
	Metrics          *metrics.Recorder
	CORSOrigins      []string
	StaticDir        string
	RecheckAdminRole bool
	Logger           *zap.Logger
}

func (deps Dependencies) validate() error {
	switch {
	case deps.Sessions == nil:
		return errMissingSessionManager
	case deps.Access == nil:
		return errMissingAccessService
	case deps.Users == nil:
		return errMissingUsersService
	case deps.Catalog == nil:
		return errMissingCatalogService
	case deps.Collections == nil:
		return errMissingCollectionsService
	case deps.Previews == nil:
		return errMissingPreviewFetcher
	}
	return nil
}

// NewHTTPHandler builds the gin engine serving the JSON API and, optionally, the static front-end.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	backfiller := deps.Backfiller
	if backfiller == nil {
		backfiller = linkpreview.NewBackfiller(linkpreview.BackfillConfig{Fetcher: deps.Previews, Logger: logger})
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}

	keeper := &gatekeeper{
		sessions:    deps.Sessions,
		roles:       deps.Users,
		recheckRole: deps.RecheckAdminRole,
		logger:      logger,
	}
	if deps.Metrics != nil {
		keeper.onDenied = deps.Metrics.ObserveDenied
	}
	router.Use(keeper.handle)

	handler := &httpHandler{
		sessions:    deps.Sessions,
		access:      deps.Access,
		users:       deps.Users,
		catalog:     deps.Catalog,
		collections: deps.Collections,
		previews:    deps.Previews,
		backfiller:  backfiller,
		metrics:     deps.Metrics,
		staticDir:   deps.StaticDir,
		logger:      logger,
	}

	router.GET("/healthz", handler.handleHealth)

	api := router.Group("/api")
	loginHandlers := []gin.HandlerFunc{handler.handleLogin}
	if deps.LoginLimiter != nil {
		loginHandlers = append([]gin.HandlerFunc{deps.LoginLimiter}, loginHandlers...)
	}
	api.POST("/auth", loginHandlers...)
	api.GET("/auth", handler.handleCurrentUser)
	api.DELETE("/auth", handler.handleLogout)

	api.GET("/references", handler.handleListReferences)
	api.POST("/references", handler.handleCreateReference)
	api.GET("/references/:id", handler.handleGetReference)
	api.PATCH("/references/:id", handler.handleUpdateReference)
	api.DELETE("/references/:id", handler.handleDeleteReference)
	api.GET("/search", handler.handleSearch)
	api.POST("/bookmark", handler.handleToggleBookmark)
	api.GET("/bookmarks", handler.handleListBookmarks)
	api.POST("/vote", handler.handleVote)

	api.GET("/tags", handler.handleListTags)
	api.POST("/tags", handler.handleCreateTag)
	api.PATCH("/tags", handler.handleAttachTag)
	api.DELETE("/tags", handler.handleDeleteTag)

	api.GET("/categories", handler.handleListCategories)
	api.GET("/categories/:slug/references", handler.handleCategoryReferences)
	api.POST("/categories", handler.handleCreateCategory)
	api.PATCH("/categories", handler.handleUpdateCategory)
	api.DELETE("/categories", handler.handleDeleteCategory)

	api.GET("/collections", handler.handleListCollections)
	api.GET("/collections/:slug", handler.handleGetCollection)
	api.POST("/collections", handler.handleCreateCollection)
	api.DELETE("/collections", handler.handleDeleteCollection)

	api.GET("/users", handler.handleListUsers)
	api.POST("/users", handler.handleCreateUser)
	api.PATCH("/users", handler.handleUpdateUser)
	api.DELETE("/users", handler.handleDeleteUser)

	api.GET("/requests", handler.handleListRequests)
	api.PATCH("/requests", handler.handleResolveRequest)
	api.DELETE("/requests", handler.handleDeleteRequest)

	api.POST("/og-image", handler.handlePreview)
	api.PATCH("/og-image", handler.handleBackfill)

	router.NoRoute(handler.handleNoRoute)

	return router, nil
}

type httpHandler struct {
	sessions    *auth.SessionManager
	access      *access.Service
	users       *users.Service
	catalog     *catalog.Service
	collections *collections.Service
	previews    PreviewFetcher
	backfiller  *linkpreview.Backfiller
	metrics     *metrics.Recorder
	staticDir   string
	logger      *zap.Logger
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	trimmed := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			trimmed = append(trimmed, origin)
		}
	}
	if len(trimmed) == 0 {
		// Credentialed requests cannot use a wildcard origin, so reflect the caller instead.
		cfg.AllowOriginFunc = func(string) bool { return true }
		return cfg
	}
	cfg.AllowOrigins = trimmed
	return cfg
}

// requestLogger tags each request with an id and writes one access line when it completes.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			generated, err := uuid.NewV7()
			if err == nil {
				id = generated.String()
			}
		}
		c.Set(requestIDContextKey, id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if identity, ok := sessionUser(c); ok {
			fields = append(fields, zap.Int64("user_id", identity.ID))
		}
		logger.Info("http request", fields...)
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDContextKey)
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleNoRoute serves the static front-end when configured; unknown API paths get JSON 404s.
func (h *httpHandler) handleNoRoute(c *gin.Context) {
	requestPath := c.Request.URL.Path
	if isAPIPath(requestPath) || h.staticDir == "" || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
		c.JSON(http.StatusNotFound, gin.H{"error": errorNotFound})
		return
	}
	candidate := filepath.Join(h.staticDir, filepath.FromSlash(filepath.Clean("/"+requestPath)))
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		c.File(candidate)
		return
	}
	for _, page := range []string{candidate + ".html", filepath.Join(candidate, "index.html"), filepath.Join(h.staticDir, "index.html")} {
		if info, err := os.Stat(page); err == nil && !info.IsDir() {
			c.File(page)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": errorNotFound})
}
