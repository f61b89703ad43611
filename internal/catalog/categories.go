package catalog

import (
	"context"
	"strings"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/serviceerr"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/slugify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opListCategories = "catalog.list_categories"
	opGetCategory    = "catalog.get_category"
	opCreateCategory = "catalog.create_category"
	opUpdateCategory = "catalog.update_category"
	opDeleteCategory = "catalog.delete_category"
)

// CategoryInput describes a new category. The slug is derived from the name when empty.
type CategoryInput struct {
	Name        string
	Slug        string
	Description *string
	Icon        *string
	Color       *string
}

// CategoryPatch carries the fields of a partial category update. Slugs never change.
type CategoryPatch struct {
	Name        Field[string] `json:"name"`
	Description Field[string] `json:"description"`
	Icon        Field[string] `json:"icon"`
	Color       Field[string] `json:"color"`
}

// ListCategories returns all categories ordered by name.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	categories := make([]Category, 0)
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, s.internal(opListCategories, reasonQueryFailed, err)
	}
	return categories, nil
}

// GetCategoryBySlug returns the category or a not_found error.
func (s *Service) GetCategoryBySlug(ctx context.Context, slug string) (Category, error) {
	var category Category
	err := s.db.WithContext(ctx).Where(queryBySlug, strings.TrimSpace(slug)).Take(&category).Error
	if serviceerr.IsNotFound(err) {
		return Category{}, serviceerr.New(opGetCategory, reasonNotFound, serviceerr.KindNotFound, err)
	}
	if err != nil {
		return Category{}, s.internal(opGetCategory, reasonQueryFailed, err)
	}
	return category, nil
}

// CreateCategory inserts a category; duplicate slugs are conflicts.
func (s *Service) CreateCategory(ctx context.Context, input CategoryInput) (Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Category{}, serviceerr.New(opCreateCategory, "missing_name", serviceerr.KindValidation, nil)
	}
	slug := slugify.Make(input.Slug)
	if slug == "" {
		slug = slugify.Make(name)
	}
	if slug == "" {
		return Category{}, serviceerr.New(opCreateCategory, "invalid_slug", serviceerr.KindValidation, nil)
	}

	category := Category{
		Name:        name,
		Slug:        slug,
		Description: trimmedOrNil(input.Description),
		Icon:        trimmedOrNil(input.Icon),
		Color:       trimmedOrNil(input.Color),
	}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		if serviceerr.IsDuplicateKey(err) {
			return Category{}, serviceerr.New(opCreateCategory, "duplicate_slug", serviceerr.KindConflict, err)
		}
		return Category{}, s.internal(opCreateCategory, "insert_failed", err)
	}
	return category, nil
}

// UpdateCategory applies the fields present in the patch.
func (s *Service) UpdateCategory(ctx context.Context, id int64, patch CategoryPatch) (Category, error) {
	updates := map[string]any{}
	if patch.Name.Set {
		if patch.Name.Value == nil || strings.TrimSpace(*patch.Name.Value) == "" {
			return Category{}, serviceerr.New(opUpdateCategory, "invalid_name", serviceerr.KindValidation, nil)
		}
		updates["name"] = strings.TrimSpace(*patch.Name.Value)
	}
	if patch.Description.Set {
		updates["description"] = trimmedOrNil(patch.Description.Value)
	}
	if patch.Icon.Set {
		updates["icon"] = trimmedOrNil(patch.Icon.Value)
	}
	if patch.Color.Set {
		updates["color"] = trimmedOrNil(patch.Color.Value)
	}

	db := s.db.WithContext(ctx)
	if len(updates) > 0 {
		result := db.Model(&Category{}).Where(queryByID, id).Updates(updates)
		if result.Error != nil {
			return Category{}, s.internal(opUpdateCategory, "update_failed", result.Error, zap.Int64("category_id", id))
		}
	}

	var category Category
	err := db.Where(queryByID, id).Take(&category).Error
	if serviceerr.IsNotFound(err) {
		return Category{}, serviceerr.New(opUpdateCategory, reasonNotFound, serviceerr.KindNotFound, err)
	}
	if err != nil {
		return Category{}, s.internal(opUpdateCategory, reasonQueryFailed, err, zap.Int64("category_id", id))
	}
	return category, nil
}

// DeleteCategory removes a category following the configured delete policy.
func (s *Service) DeleteCategory(ctx context.Context, id int64) (Category, error) {
	var deleted Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(queryByID, id).Take(&deleted).Error; err != nil {
			if serviceerr.IsNotFound(err) {
				return serviceerr.New(opDeleteCategory, reasonNotFound, serviceerr.KindNotFound, err)
			}
			return err
		}

		var inUse int64
		if err := tx.Model(&Reference{}).Where("category_id = ?", id).Count(&inUse).Error; err != nil {
			return err
		}
		if inUse > 0 {
			if s.categoryDeletePolicy == CategoryDeleteRestrict {
				return serviceerr.New(opDeleteCategory, "category_in_use", serviceerr.KindConflict, nil)
			}
			if err := tx.Model(&Reference{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
				return err
			}
		}
		return tx.Where(queryByID, id).Delete(&Category{}).Error
	})
	if err != nil {
		if _, ok := serviceerr.As(err); ok {
			return Category{}, err
		}
		return Category{}, s.internal(opDeleteCategory, "delete_failed", err, zap.Int64("category_id", id))
	}
	return deleted, nil
}
