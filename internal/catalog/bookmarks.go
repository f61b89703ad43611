package catalog

import (
	"context"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/serviceerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opToggleBookmark = "catalog.toggle_bookmark"
	opListBookmarks  = "catalog.list_bookmarks"
	opBookmarkedIDs  = "catalog.bookmarked_reference_ids"
)

// ToggleBookmark flips the user's bookmark on a reference and returns the updated view.
func (s *Service) ToggleBookmark(ctx context.Context, userID, referenceID int64) (ReferenceView, error) {
	if userID <= 0 {
		return ReferenceView{}, serviceerr.New(opToggleBookmark, "missing_user", serviceerr.KindUnauthorized, nil)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Reference{}).Where(queryByID, referenceID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return serviceerr.New(opToggleBookmark, reasonNotFound, serviceerr.KindNotFound, nil)
		}

		removed := tx.Where("user_id = ? AND reference_id = ?", userID, referenceID).Delete(&Bookmark{})
		if removed.Error != nil {
			return removed.Error
		}
		if removed.RowsAffected > 0 {
			return nil
		}
		bookmark := Bookmark{UserID: userID, ReferenceID: referenceID}
		return tx.Omit(clause.Associations).Create(&bookmark).Error
	})
	if err != nil {
		if _, ok := serviceerr.As(err); ok {
			return ReferenceView{}, err
		}
		if serviceerr.IsForeignKeyViolation(err) {
			return ReferenceView{}, serviceerr.New(opToggleBookmark, "unknown_user", serviceerr.KindUnauthorized, err)
		}
		return ReferenceView{}, s.internal(opToggleBookmark, "update_failed", err,
			zap.Int64("user_id", userID), zap.Int64("reference_id", referenceID))
	}
	return s.GetReference(ctx, referenceID, userID)
}

// ListBookmarks returns the user's bookmarked references, newest reference first.
func (s *Service) ListBookmarks(ctx context.Context, userID int64) ([]ReferenceView, error) {
	views := make([]ReferenceView, 0)
	err := s.referenceViews(ctx, userID).
		Where("b.user_id IS NOT NULL").
		Order("r.created_at DESC").
		Order("r.id DESC").
		Scan(&views).Error
	if err != nil {
		return nil, s.internal(opListBookmarks, reasonQueryFailed, err, zap.Int64("user_id", userID))
	}
	return views, nil
}

// BookmarkedReferenceIDs returns the ids of the user's bookmarks in ListBookmarks order.
func (s *Service) BookmarkedReferenceIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids := make([]int64, 0)
	err := s.db.WithContext(ctx).
		Table("bookmarks AS b").
		Joins("JOIN reference_items AS r ON r.id = b.reference_id").
		Where("b.user_id = ?", userID).
		Order("r.created_at DESC").
		Order("r.id DESC").
		Pluck("r.id", &ids).Error
	if err != nil {
		return nil, s.internal(opBookmarkedIDs, reasonQueryFailed, err, zap.Int64("user_id", userID))
	}
	return ids, nil
}
