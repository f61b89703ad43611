package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/access"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationNormalizeEmails       = "2026-10-01_normalize_emails"
	migrationClearBlankThumbnails  = "2026-10-08_clear_blank_thumbnails"
	migrationDropOrphanMemberships = "2026-10-12_drop_orphan_memberships"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func migrationDefinitions() []migrationDefinition {
	return []migrationDefinition{
		{name: migrationNormalizeEmails, apply: normalizeEmails},
		{name: migrationClearBlankThumbnails, apply: clearBlankThumbnails},
		{name: migrationDropOrphanMemberships, apply: dropOrphanMemberships},
	}
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	for _, migration := range migrationDefinitions() {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// normalizeEmails lowercases and trims emails written before normalization was enforced.
func normalizeEmails(db *gorm.DB) error {
	if err := db.Model(&users.User{}).
		Where("email <> LOWER(TRIM(email))").
		Update("email", gorm.Expr("LOWER(TRIM(email))")).Error; err != nil {
		return err
	}
	return db.Model(&access.Request{}).
		Where("email <> LOWER(TRIM(email))").
		Update("email", gorm.Expr("LOWER(TRIM(email))")).Error
}

func clearBlankThumbnails(db *gorm.DB) error {
	return db.Model(&catalog.Reference{}).
		Where("TRIM(thumbnail) = ''").
		Update("thumbnail", nil).Error
}

// dropOrphanMemberships removes collection rows pointing at references that no
// longer exist; databases created without foreign keys may hold such rows.
func dropOrphanMemberships(db *gorm.DB) error {
	return db.Exec("DELETE FROM collection_references WHERE reference_id NOT IN (SELECT id FROM reference_items)").Error
}
