package catalog

import (
	"context"
	"strings"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/serviceerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opListReferences  = "catalog.list_references"
	opGetReference    = "catalog.get_reference"
	opCreateReference = "catalog.create_reference"
	opUpdateReference = "catalog.update_reference"
	opDeleteReference = "catalog.delete_reference"
	opSearch          = "catalog.search_references"
	opVote            = "catalog.vote"
	opMissingThumbs   = "catalog.list_missing_thumbnails"
	opSetThumbnail    = "catalog.set_thumbnail"

	// SortNewest orders references by creation time, newest first.
	SortNewest = "new"
	// SortTop orders references by vote count.
	SortTop = "top"

	// VoteUp and VoteDown are the accepted vote directions.
	VoteUp   = "up"
	VoteDown = "down"

	defaultTopLimit = 10

	referenceViewColumns = "r.id, r.title, r.url, r.description, r.thumbnail, r.category_id, r.is_featured, " +
		"r.votes, r.created_at, c.name AS category_name, c.slug AS category_slug, c.icon AS category_icon, " +
		"c.color AS category_color, CASE WHEN b.reference_id IS NULL THEN 0 ELSE 1 END AS is_bookmarked"
)

// likeEscaper makes user input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ReferenceFilter narrows ListReferences.
type ReferenceFilter struct {
	ViewerID     int64
	FeaturedOnly bool
	CategorySlug string
	Sort         string
	Limit        int
}

// ReferenceInput describes a new reference.
type ReferenceInput struct {
	Title       string
	URL         string
	Description *string
	Thumbnail   *string
	CategoryID  *int64
	TagIDs      []int64
}

// ReferencePatch carries the fields of a partial reference update.
type ReferencePatch struct {
	Title       Field[string] `json:"title"`
	URL         Field[string] `json:"url"`
	Description Field[string] `json:"description"`
	Thumbnail   Field[string] `json:"thumbnail"`
	CategoryID  Field[int64]  `json:"categoryId"`
	IsFeatured  Field[bool]   `json:"isFeatured"`
}

// ViewQuery starts a query over references (aliased r) joined with their category and
// the viewer's bookmark. Extra columns are appended to the ReferenceView selection.
func ViewQuery(db *gorm.DB, viewerID int64, extraColumns ...string) *gorm.DB {
	columns := referenceViewColumns
	for _, column := range extraColumns {
		columns += ", " + column
	}
	return db.
		Table("reference_items AS r").
		Select(columns).
		Joins("LEFT JOIN categories AS c ON c.id = r.category_id").
		Joins("LEFT JOIN bookmarks AS b ON b.reference_id = r.id AND b.user_id = ?", viewerID)
}

func (s *Service) referenceViews(ctx context.Context, viewerID int64) *gorm.DB {
	return ViewQuery(s.db.WithContext(ctx), viewerID)
}

// ListReferences returns references newest first, or by votes when sorting by top.
func (s *Service) ListReferences(ctx context.Context, filter ReferenceFilter) ([]ReferenceView, error) {
	query := s.referenceViews(ctx, filter.ViewerID)
	if filter.FeaturedOnly {
		query = query.Where("r.is_featured = ?", true)
	}
	if slug := strings.TrimSpace(filter.CategorySlug); slug != "" {
		query = query.Where("c.slug = ?", slug)
	}

	limit := filter.Limit
	switch strings.ToLower(strings.TrimSpace(filter.Sort)) {
	case SortTop:
		query = query.Order("r.votes DESC")
		if limit <= 0 {
			limit = defaultTopLimit
		}
	case "", SortNewest:
	default:
		return nil, serviceerr.New(opListReferences, "invalid_sort", serviceerr.KindValidation, nil)
	}
	query = query.Order("r.created_at DESC").Order("r.id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	views := make([]ReferenceView, 0)
	if err := query.Scan(&views).Error; err != nil {
		return nil, s.internal(opListReferences, reasonQueryFailed, err)
	}
	return views, nil
}

// GetReference returns one reference as seen by the viewer.
func (s *Service) GetReference(ctx context.Context, id, viewerID int64) (ReferenceView, error) {
	var views []ReferenceView
	if err := s.referenceViews(ctx, viewerID).Where("r.id = ?", id).Limit(1).Scan(&views).Error; err != nil {
		return ReferenceView{}, s.internal(opGetReference, reasonQueryFailed, err, zap.Int64("reference_id", id))
	}
	if len(views) == 0 {
		return ReferenceView{}, serviceerr.New(opGetReference, reasonNotFound, serviceerr.KindNotFound, nil)
	}
	return views[0], nil
}

// CreateReference inserts a reference and its tag links in one transaction.
func (s *Service) CreateReference(ctx context.Context, input ReferenceInput, viewerID int64) (ReferenceView, error) {
	title := strings.TrimSpace(input.Title)
	url := strings.TrimSpace(input.URL)
	if title == "" || url == "" {
		return ReferenceView{}, serviceerr.New(opCreateReference, "missing_title_or_url", serviceerr.KindValidation, nil)
	}

	reference := Reference{
		Title:       title,
		URL:         url,
		Description: trimmedOrNil(input.Description),
		Thumbnail:   trimmedOrNil(input.Thumbnail),
		CategoryID:  input.CategoryID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&reference).Error; err != nil {
			if serviceerr.IsForeignKeyViolation(err) {
				return serviceerr.New(opCreateReference, "unknown_category", serviceerr.KindValidation, err)
			}
			return err
		}
		for _, tagID := range input.TagIDs {
			link := ReferenceTag{ReferenceID: reference.ID, TagID: tagID}
			if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
				if serviceerr.IsForeignKeyViolation(err) {
					return serviceerr.New(opCreateReference, "unknown_tag", serviceerr.KindValidation, err)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		if _, ok := serviceerr.As(err); ok {
			return ReferenceView{}, err
		}
		return ReferenceView{}, s.internal(opCreateReference, "insert_failed", err)
	}
	return s.GetReference(ctx, reference.ID, viewerID)
}

// UpdateReference applies the fields present in the patch.
func (s *Service) UpdateReference(ctx context.Context, id int64, patch ReferencePatch, viewerID int64) (ReferenceView, error) {
	updates := map[string]any{}
	if patch.Title.Set {
		if patch.Title.Value == nil || strings.TrimSpace(*patch.Title.Value) == "" {
			return ReferenceView{}, serviceerr.New(opUpdateReference, "invalid_title", serviceerr.KindValidation, nil)
		}
		updates["title"] = strings.TrimSpace(*patch.Title.Value)
	}
	if patch.URL.Set {
		if patch.URL.Value == nil || strings.TrimSpace(*patch.URL.Value) == "" {
			return ReferenceView{}, serviceerr.New(opUpdateReference, "invalid_url", serviceerr.KindValidation, nil)
		}
		updates["url"] = strings.TrimSpace(*patch.URL.Value)
	}
	if patch.Description.Set {
		updates["description"] = trimmedOrNil(patch.Description.Value)
	}
	if patch.Thumbnail.Set {
		updates["thumbnail"] = trimmedOrNil(patch.Thumbnail.Value)
	}
	if patch.CategoryID.Set {
		updates["category_id"] = patch.CategoryID.Value
	}
	if patch.IsFeatured.Set {
		if patch.IsFeatured.Value == nil {
			return ReferenceView{}, serviceerr.New(opUpdateReference, "invalid_featured", serviceerr.KindValidation, nil)
		}
		updates["is_featured"] = *patch.IsFeatured.Value
	}

	if len(updates) == 0 {
		return s.GetReference(ctx, id, viewerID)
	}

	result := s.db.WithContext(ctx).Model(&Reference{}).Where(queryByID, id).Updates(updates)
	if result.Error != nil {
		if serviceerr.IsForeignKeyViolation(result.Error) {
			return ReferenceView{}, serviceerr.New(opUpdateReference, "unknown_category", serviceerr.KindValidation, result.Error)
		}
		return ReferenceView{}, s.internal(opUpdateReference, "update_failed", result.Error, zap.Int64("reference_id", id))
	}
	if result.RowsAffected == 0 {
		return ReferenceView{}, serviceerr.New(opUpdateReference, reasonNotFound, serviceerr.KindNotFound, nil)
	}
	return s.GetReference(ctx, id, viewerID)
}

// DeleteReference removes a reference; bookmarks, tag links and collection entries cascade.
func (s *Service) DeleteReference(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Where(queryByID, id).Delete(&Reference{})
	if result.Error != nil {
		return s.internal(opDeleteReference, "delete_failed", result.Error, zap.Int64("reference_id", id))
	}
	if result.RowsAffected == 0 {
		return serviceerr.New(opDeleteReference, reasonNotFound, serviceerr.KindNotFound, nil)
	}
	return nil
}

// SearchReferences matches the query against title, description and URL.
func (s *Service) SearchReferences(ctx context.Context, query string, viewerID int64) ([]ReferenceView, error) {
	views := make([]ReferenceView, 0)
	query = strings.TrimSpace(query)
	if query == "" {
		return views, nil
	}
	pattern := "%" + likeEscaper.Replace(query) + "%"
	err := s.referenceViews(ctx, viewerID).
		Where(`r.title LIKE ? ESCAPE '\' OR r.description LIKE ? ESCAPE '\' OR r.url LIKE ? ESCAPE '\'`, pattern, pattern, pattern).
		Order("r.created_at DESC").
		Order("r.id DESC").
		Scan(&views).Error
	if err != nil {
		return nil, s.internal(opSearch, reasonQueryFailed, err)
	}
	return views, nil
}

// Vote moves the vote count by one in the given direction and returns the new count.
func (s *Service) Vote(ctx context.Context, id int64, direction string) (int64, error) {
	var delta int64
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case VoteUp:
		delta = 1
	case VoteDown:
		delta = -1
	default:
		return 0, serviceerr.New(opVote, "invalid_direction", serviceerr.KindValidation, nil)
	}

	var votes int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Reference{}).Where(queryByID, id).Update("votes", gorm.Expr("votes + ?", delta))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return serviceerr.New(opVote, reasonNotFound, serviceerr.KindNotFound, nil)
		}
		return tx.Model(&Reference{}).Select("votes").Where(queryByID, id).Scan(&votes).Error
	})
	if err != nil {
		if _, ok := serviceerr.As(err); ok {
			return 0, err
		}
		return 0, s.internal(opVote, "update_failed", err, zap.Int64("reference_id", id))
	}
	return votes, nil
}

// ListMissingThumbnails returns references that have no thumbnail yet.
func (s *Service) ListMissingThumbnails(ctx context.Context) ([]Reference, error) {
	var references []Reference
	err := s.db.WithContext(ctx).
		Where("thumbnail IS NULL OR thumbnail = ''").
		Order("id ASC").
		Find(&references).Error
	if err != nil {
		return nil, s.internal(opMissingThumbs, reasonQueryFailed, err)
	}
	return references, nil
}

// SetThumbnail stores the thumbnail URL of a reference.
func (s *Service) SetThumbnail(ctx context.Context, id int64, thumbnail string) error {
	result := s.db.WithContext(ctx).Model(&Reference{}).Where(queryByID, id).Update("thumbnail", thumbnail)
	if result.Error != nil {
		return s.internal(opSetThumbnail, "update_failed", result.Error, zap.Int64("reference_id", id))
	}
	if result.RowsAffected == 0 {
		return serviceerr.New(opSetThumbnail, reasonNotFound, serviceerr.KindNotFound, nil)
	}
	return nil
}
