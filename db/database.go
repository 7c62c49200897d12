package db

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	ErrCreateDatabase  = errors.New("cannot create a database")
	ErrMigrationFailed = errors.New("failed to migrate")
	ErrUnknownDialect  = errors.New("unknown database dialect")
)

// Dialect selects the SQL driver behind gorm.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const schemaVersionKey = "schema_version"

type Database struct {
	db *gorm.DB
}

// NewDatabase opens a gorm connection for the dialect. For sqlite dsn is a file path.
func NewDatabase(dialect Dialect, dsn string) (*Database, error) {
	var dialector gorm.Dialector
	switch dialect {
	case DialectSQLite:
		dialector = sqlite.Open(dsn)
	case DialectPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		slog.Error("db: Cannot open GORM database", "error", err, "dialect", dialect)

		return nil, fmt.Errorf("%w: %w", ErrCreateDatabase, err)
	}

	return &Database{db: db}, nil
}

// DB exposes the gorm handle to the storage layer.
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Migrate creates or updates every table and stamps the schema version.
func (d *Database) Migrate(schemaVersion int) error {
	slog.Info("db: Going to start database migrations")

	for _, model := range []any{&Group{}, &Ban{}, &Warning{}, &Game{}, &Setting{}} {
		if err := d.db.AutoMigrate(model); err != nil {
			slog.Error("db: Migration failed", "error", err, "model", fmt.Sprintf("%T", model))

			return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
	}

	version := Setting{Name: schemaVersionKey, Value: strconv.Itoa(schemaVersion)}
	if err := d.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&version).Error; err != nil {
		slog.Error("db: Cannot stamp schema version", "error", err)

		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	return nil
}

// SchemaVersion returns the stamped schema version, 0 when the database was never migrated.
func (d *Database) SchemaVersion() (int, error) {
	var setting Setting
	result := d.db.Where("name = ?", schemaVersionKey).Limit(1).Find(&setting)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, nil
	}

	return strconv.Atoi(setting.Value)
}

// Close releases the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
