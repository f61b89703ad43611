package database

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/access"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/collections"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const defaultBusyTimeoutMillis = 5000

// Options tunes the SQLite connection.
type Options struct {
	BusyTimeoutMillis int
	DisableWAL        bool
}

// Models lists every table managed by AutoMigrate.
func Models() []any {
	return []any{
		&users.User{},
		&access.Request{},
		&catalog.Category{},
		&catalog.Reference{},
		&catalog.Bookmark{},
		&catalog.Tag{},
		&catalog.ReferenceTag{},
		&collections.Collection{},
		&collections.Membership{},
		&migrationRecord{},
	}
}

// DSN appends the connection pragmas to path.
func DSN(path string, options Options) string {
	busyTimeout := options.BusyTimeoutMillis
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeoutMillis
	}
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeout),
	}
	if !options.DisableWAL {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return path + separator + strings.Join(pragmas, "&")
}

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, options Options, logger *zap.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(DSN(path, options)), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
