package catalog

import (
	"context"
	"strings"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/serviceerr"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/slugify"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

const (
	opListTags  = "catalog.list_tags"
	opRefTags   = "catalog.tags_for_reference"
	opCreateTag = "catalog.create_tag"
	opAttachTag = "catalog.attach_tag"
	opDetachTag = "catalog.detach_tag"
	opDeleteTag = "catalog.delete_tag"
)

// ListTags returns all tags ordered by name.
func (s *Service) ListTags(ctx context.Context) ([]Tag, error) {
	tags := make([]Tag, 0)
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, s.internal(opListTags, reasonQueryFailed, err)
	}
	return tags, nil
}

// TagsForReference returns the tags linked to a reference.
func (s *Service) TagsForReference(ctx context.Context, referenceID int64) ([]Tag, error) {
	tags := make([]Tag, 0)
	err := s.db.WithContext(ctx).
		Table("tags AS t").
		Select("t.id, t.name, t.slug").
		Joins("JOIN reference_tags AS rt ON rt.tag_id = t.id").
		Where("rt.reference_id = ?", referenceID).
		Order("t.name ASC").
		Scan(&tags).Error
	if err != nil {
		return nil, s.internal(opRefTags, reasonQueryFailed, err, zap.Int64("reference_id", referenceID))
	}
	return tags, nil
}

// CreateTag inserts a tag with a slug derived from its name.
func (s *Service) CreateTag(ctx context.Context, name string) (Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tag{}, serviceerr.New(opCreateTag, "missing_name", serviceerr.KindValidation, nil)
	}
	slug := slugify.Make(name)
	if slug == "" {
		return Tag{}, serviceerr.New(opCreateTag, "invalid_slug", serviceerr.KindValidation, nil)
	}
	tag := Tag{Name: name, Slug: slug}
	if err := s.db.WithContext(ctx).Create(&tag).Error; err != nil {
		if serviceerr.IsDuplicateKey(err) {
			return Tag{}, serviceerr.New(opCreateTag, "duplicate_tag", serviceerr.KindConflict, err)
		}
		return Tag{}, s.internal(opCreateTag, "insert_failed", err)
	}
	return tag, nil
}

// AttachTag links a tag to a reference. Attaching twice is a no-op.
func (s *Service) AttachTag(ctx context.Context, referenceID, tagID int64) error {
	link := ReferenceTag{ReferenceID: referenceID, TagID: tagID}
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link).Error
	if serviceerr.IsForeignKeyViolation(err) {
		return serviceerr.New(opAttachTag, reasonNotFound, serviceerr.KindNotFound, err)
	}
	if err != nil {
		return s.internal(opAttachTag, "insert_failed", err, zap.Int64("reference_id", referenceID), zap.Int64("tag_id", tagID))
	}
	return nil
}

// DetachTag unlinks a tag from a reference.
func (s *Service) DetachTag(ctx context.Context, referenceID, tagID int64) error {
	err := s.db.WithContext(ctx).
		Where("reference_id = ? AND tag_id = ?", referenceID, tagID).
		Delete(&ReferenceTag{}).Error
	if err != nil {
		return s.internal(opDetachTag, "delete_failed", err, zap.Int64("reference_id", referenceID), zap.Int64("tag_id", tagID))
	}
	return nil
}

// DeleteTag removes a tag and its links.
func (s *Service) DeleteTag(ctx context.Context, tagID int64) error {
	if err := s.db.WithContext(ctx).Where(queryByID, tagID).Delete(&Tag{}).Error; err != nil {
		return s.internal(opDeleteTag, "delete_failed", err, zap.Int64("tag_id", tagID))
	}
	return nil
}
