package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/access"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsNormalizesLegacyRows(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(Models()...); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	legacyUser := users.User{Email: " Ada@Example.COM ", DisplayName: "Ada", Role: "user"}
	if err := database.Create(&legacyUser).Error; err != nil {
		testContext.Fatalf("failed to insert user: %v", err)
	}
	legacyRequest := access.Request{Email: "Grace@Example.com", DisplayName: "Grace", Status: access.StatusPending}
	if err := database.Create(&legacyRequest).Error; err != nil {
		testContext.Fatalf("failed to insert request: %v", err)
	}
	blank := "  "
	legacyReference := catalog.Reference{Title: "Blank", URL: "https://example.com", Thumbnail: &blank}
	if err := database.Create(&legacyReference).Error; err != nil {
		testContext.Fatalf("failed to insert reference: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var storedUser users.User
	if err := database.First(&storedUser, legacyUser.ID).Error; err != nil {
		testContext.Fatalf("failed to reload user: %v", err)
	}
	if storedUser.Email != "ada@example.com" {
		testContext.Fatalf("expected normalized user email, got %q", storedUser.Email)
	}

	var storedRequest access.Request
	if err := database.First(&storedRequest, legacyRequest.ID).Error; err != nil {
		testContext.Fatalf("failed to reload request: %v", err)
	}
	if storedRequest.Email != "grace@example.com" {
		testContext.Fatalf("expected normalized request email, got %q", storedRequest.Email)
	}

	var storedReference catalog.Reference
	if err := database.First(&storedReference, legacyReference.ID).Error; err != nil {
		testContext.Fatalf("failed to reload reference: %v", err)
	}
	if storedReference.Thumbnail != nil {
		testContext.Fatalf("expected blank thumbnail to be cleared, got %q", *storedReference.Thumbnail)
	}

	var records []migrationRecord
	if err := database.Find(&records).Error; err != nil {
		testContext.Fatalf("failed to list migration records: %v", err)
	}
	if len(records) != len(migrationDefinitions()) {
		testContext.Fatalf("expected %d migration records, got %d", len(migrationDefinitions()), len(records))
	}
	for _, record := range records {
		if record.AppliedAtSeconds == 0 {
			testContext.Fatalf("expected migration timestamp to be set for %s", record.Name)
		}
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("expected second run to be a no-op: %v", err)
	}
}

func TestOpenSQLiteEnforcesForeignKeys(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "shelf.db")
	database, err := OpenSQLite(databasePath, Options{}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = Close(database) }()

	orphan := catalog.Bookmark{UserID: 404, ReferenceID: 404}
	if err := database.Create(&orphan).Error; err == nil {
		testContext.Fatalf("expected foreign key violation for orphan bookmark")
	}

	var journalMode string
	if err := database.Raw("PRAGMA journal_mode").Scan(&journalMode).Error; err != nil {
		testContext.Fatalf("failed to read journal mode: %v", err)
	}
	if !strings.EqualFold(journalMode, "wal") {
		testContext.Fatalf("expected WAL journal mode, got %q", journalMode)
	}
}

func TestOpenSQLiteRequiresPath(testContext *testing.T) {
	if _, err := OpenSQLite("  ", Options{}, nil); err == nil {
		testContext.Fatalf("expected error for blank path")
	}
}

func TestDSNAppendsPragmas(testContext *testing.T) {
	dsn := DSN("file:shelf.db?cache=shared", Options{BusyTimeoutMillis: 250, DisableWAL: true})
	expected := "file:shelf.db?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(250)"
	if dsn != expected {
		testContext.Fatalf("unexpected dsn %q", dsn)
	}
}

func TestSeedIsIdempotent(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "seed.db")
	database, err := OpenSQLite(databasePath, Options{}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = Close(database) }()

	first, err := Seed(context.Background(), database, SeedOptions{SampleReferences: true}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("seed failed: %v", err)
	}
	if first.Categories != int64(len(starterCategories)) || first.Tags != int64(len(starterTags)) {
		testContext.Fatalf("unexpected first seed report %+v", first)
	}
	if first.References != int64(len(sampleReferences)) {
		testContext.Fatalf("expected %d sample references, got %d", len(sampleReferences), first.References)
	}

	second, err := Seed(context.Background(), database, SeedOptions{SampleReferences: true}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("second seed failed: %v", err)
	}
	if second != (SeedReport{}) {
		testContext.Fatalf("expected rerun to insert nothing, got %+v", second)
	}

	var categoryCount, linkCount int64
	database.Model(&catalog.Category{}).Count(&categoryCount)
	database.Model(&catalog.ReferenceTag{}).Count(&linkCount)
	if categoryCount != 12 {
		testContext.Fatalf("expected 12 categories, got %d", categoryCount)
	}
	if linkCount == 0 {
		testContext.Fatalf("expected sample references to carry tags")
	}

	var art catalog.Category
	if err := database.Where("slug = ?", "art").Take(&art).Error; err != nil {
		testContext.Fatalf("failed to load art category: %v", err)
	}
	if art.Icon == nil || *art.Icon != "🎨" || art.Color == nil || *art.Color != "purple" {
		testContext.Fatalf("unexpected art category %+v", art)
	}
}
