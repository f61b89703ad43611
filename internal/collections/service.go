package collections

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/serviceerr"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/slugify"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opServiceNew = "collections.service.new"
	opPublish    = "collections.publish"
	opList       = "collections.list"
	opGet        = "collections.get"
	opCreate     = "collections.create"
	opDelete     = "collections.delete"

	reasonNotFound    = "not_found"
	reasonQueryFailed = "query_failed"
)

var errMissingDatabase = errors.New("database handle is required")

// ServiceConfig describes the dependencies of the collections service.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service publishes and manages collections.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService constructs the collections service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerr.New(opServiceNew, "missing_database", serviceerr.KindInternal, errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// FavoritesSlug derives the favorites slug for a display name: "Ada Lovelace" becomes
// "ada-lovelaces-favorites".
func FavoritesSlug(displayName string) string {
	return strings.Join(strings.Fields(strings.ToLower(displayName)), "-") + FavoritesSuffix
}

// Publish (re)materializes the "{displayName}'s Favorites" collection with the given
// references in input order. The whole run is one transaction.
func (s *Service) Publish(ctx context.Context, displayName string, referenceIDs []int64) (PublishResult, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return PublishResult{}, serviceerr.New(opPublish, "missing_name", serviceerr.KindValidation, nil)
	}
	if len(referenceIDs) == 0 {
		return PublishResult{}, serviceerr.New(opPublish, "no_references", serviceerr.KindValidation, nil)
	}

	result := PublishResult{
		Slug:  FavoritesSlug(displayName),
		Name:  fmt.Sprintf("%s's Favorites", displayName),
		Count: len(referenceIDs),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireReferences(tx, referenceIDs); err != nil {
			return err
		}

		var collection Collection
		err := tx.Where("slug = ?", result.Slug).Take(&collection).Error
		switch {
		case err == nil:
			if err := tx.Where("collection_id = ?", collection.ID).Delete(&Membership{}).Error; err != nil {
				return err
			}
		case serviceerr.IsNotFound(err):
			description := fmt.Sprintf("Handpicked references by %s", displayName)
			icon := initial(displayName)
			collection = Collection{
				Name:        result.Name,
				Slug:        result.Slug,
				Description: &description,
				Icon:        &icon,
			}
			if err := tx.Create(&collection).Error; err != nil {
				return err
			}
		default:
			return err
		}
		result.CollectionID = collection.ID

		memberships := make([]Membership, len(referenceIDs))
		for index, referenceID := range referenceIDs {
			memberships[index] = Membership{CollectionID: collection.ID, ReferenceID: referenceID, Order: index}
		}
		return tx.Omit(clause.Associations).Create(&memberships).Error
	})
	if err != nil {
		if _, ok := serviceerr.As(err); ok {
			return PublishResult{}, err
		}
		if serviceerr.IsForeignKeyViolation(err) {
			return PublishResult{}, serviceerr.New(opPublish, "unknown_reference", serviceerr.KindValidation, err)
		}
		s.logError(opPublish, "transaction_failed", err, zap.String("slug", result.Slug))
		return PublishResult{}, serviceerr.New(opPublish, "transaction_failed", serviceerr.KindInternal, err)
	}

	s.logger.Info("collection published",
		zap.String("slug", result.Slug),
		zap.Int("count", result.Count),
	)
	return result, nil
}

func requireReferences(tx *gorm.DB, referenceIDs []int64) error {
	distinct := make(map[int64]struct{}, len(referenceIDs))
	for _, id := range referenceIDs {
		distinct[id] = struct{}{}
	}
	ids := make([]int64, 0, len(distinct))
	for id := range distinct {
		ids = append(ids, id)
	}

	var found int64
	if err := tx.Model(&catalog.Reference{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
		return err
	}
	if int(found) != len(ids) {
		return serviceerr.New(opPublish, "unknown_reference", serviceerr.KindValidation, nil)
	}
	return nil
}

func initial(displayName string) string {
	first, _ := utf8.DecodeRuneInString(displayName)
	return string(unicode.ToUpper(first))
}

// List returns all collections ordered by name.
func (s *Service) List(ctx context.Context) ([]Collection, error) {
	collections := make([]Collection, 0)
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&collections).Error; err != nil {
		s.logError(opList, reasonQueryFailed, err)
		return nil, serviceerr.New(opList, reasonQueryFailed, serviceerr.KindInternal, err)
	}
	return collections, nil
}

// ListFavorites returns the published favorites collections.
func (s *Service) ListFavorites(ctx context.Context) ([]Collection, error) {
	collections := make([]Collection, 0)
	err := s.db.WithContext(ctx).
		Where("slug LIKE ?", "%"+FavoritesSuffix).
		Order("name ASC").
		Find(&collections).Error
	if err != nil {
		s.logError(opList, reasonQueryFailed, err)
		return nil, serviceerr.New(opList, reasonQueryFailed, serviceerr.KindInternal, err)
	}
	return collections, nil
}

// GetBySlug returns the collection with its entries in collection order.
func (s *Service) GetBySlug(ctx context.Context, slug string, viewerID int64) (Collection, []EntryView, error) {
	db := s.db.WithContext(ctx)

	var collection Collection
	err := db.Where("slug = ?", strings.TrimSpace(slug)).Take(&collection).Error
	if serviceerr.IsNotFound(err) {
		return Collection{}, nil, serviceerr.New(opGet, reasonNotFound, serviceerr.KindNotFound, err)
	}
	if err != nil {
		s.logError(opGet, reasonQueryFailed, err)
		return Collection{}, nil, serviceerr.New(opGet, reasonQueryFailed, serviceerr.KindInternal, err)
	}

	entries := make([]EntryView, 0)
	err = catalog.ViewQuery(db, viewerID, `cr."order" AS "order"`).
		Joins("JOIN collection_references AS cr ON cr.reference_id = r.id").
		Where("cr.collection_id = ?", collection.ID).
		Order(`cr."order" ASC`).
		Order("cr.id ASC").
		Scan(&entries).Error
	if err != nil {
		s.logError(opGet, reasonQueryFailed, err, zap.Int64("collection_id", collection.ID))
		return Collection{}, nil, serviceerr.New(opGet, reasonQueryFailed, serviceerr.KindInternal, err)
	}
	return collection, entries, nil
}

// CollectionInput describes a manually curated collection.
type CollectionInput struct {
	Name        string
	Slug        string
	Description *string
	Icon        *string
}

// Create inserts a collection; duplicate slugs are conflicts.
func (s *Service) Create(ctx context.Context, input CollectionInput) (Collection, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Collection{}, serviceerr.New(opCreate, "missing_name", serviceerr.KindValidation, nil)
	}
	slug := slugify.Make(input.Slug)
	if slug == "" {
		slug = slugify.Make(name)
	}
	if slug == "" {
		return Collection{}, serviceerr.New(opCreate, "invalid_slug", serviceerr.KindValidation, nil)
	}

	collection := Collection{
		Name:        name,
		Slug:        slug,
		Description: nonBlank(input.Description),
		Icon:        nonBlank(input.Icon),
	}
	if err := s.db.WithContext(ctx).Create(&collection).Error; err != nil {
		if serviceerr.IsDuplicateKey(err) {
			return Collection{}, serviceerr.New(opCreate, "duplicate_slug", serviceerr.KindConflict, err)
		}
		s.logError(opCreate, "insert_failed", err)
		return Collection{}, serviceerr.New(opCreate, "insert_failed", serviceerr.KindInternal, err)
	}
	return collection, nil
}

// Delete removes a collection and its memberships.
func (s *Service) Delete(ctx context.Context, id int64) (Collection, error) {
	db := s.db.WithContext(ctx)
	var collection Collection
	err := db.Where("id = ?", id).Take(&collection).Error
	if serviceerr.IsNotFound(err) {
		return Collection{}, serviceerr.New(opDelete, reasonNotFound, serviceerr.KindNotFound, err)
	}
	if err != nil {
		s.logError(opDelete, reasonQueryFailed, err, zap.Int64("collection_id", id))
		return Collection{}, serviceerr.New(opDelete, reasonQueryFailed, serviceerr.KindInternal, err)
	}
	if err := db.Where("id = ?", id).Delete(&Collection{}).Error; err != nil {
		s.logError(opDelete, "delete_failed", err, zap.Int64("collection_id", id))
		return Collection{}, serviceerr.New(opDelete, "delete_failed", serviceerr.KindInternal, err)
	}
	return collection, nil
}

func nonBlank(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
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
	s.logger.Error("collections service error", attrs...)
}
