package catalog

import (
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/serviceerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// CategoryDeleteNullify clears the category of affected references.
	CategoryDeleteNullify = "nullify"
	// CategoryDeleteRestrict refuses to delete categories that still hold references.
	CategoryDeleteRestrict = "restrict"

	opServiceNew = "catalog.service.new"

	reasonNotFound    = "not_found"
	reasonQueryFailed = "query_failed"
	queryByID         = "id = ?"
	queryBySlug       = "slug = ?"
)

var errMissingDatabase = errors.New("database handle is required")

// ServiceConfig describes the dependencies of the catalog service.
type ServiceConfig struct {
	Database             *gorm.DB
	CategoryDeletePolicy string
	Logger               *zap.Logger
}

// Service exposes reference, category, tag, vote and bookmark operations.
type Service struct {
	db                   *gorm.DB
	categoryDeletePolicy string
	logger               *zap.Logger
}

// NewService constructs the catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerr.New(opServiceNew, "missing_database", serviceerr.KindInternal, errMissingDatabase)
	}
	policy := strings.ToLower(strings.TrimSpace(cfg.CategoryDeletePolicy))
	switch policy {
	case "":
		policy = CategoryDeleteNullify
	case CategoryDeleteNullify, CategoryDeleteRestrict:
	default:
		return nil, serviceerr.New(opServiceNew, "invalid_category_delete_policy", serviceerr.KindInternal, nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:                   cfg.Database,
		categoryDeletePolicy: policy,
		logger:               logger,
	}, nil
}

// internal wraps and logs a store failure.
func (s *Service) internal(operation, reason string, err error, fields ...zap.Field) error {
	s.logError(operation, reason, err, fields...)
	return serviceerr.New(operation, reason, serviceerr.KindInternal, err)
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("catalog service error", attrs...)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
