package migration

import (
	"errors"
	"fmt"
	"strings"

	"healthsync/internal/app/server/config"
	"healthsync/migrations"

	"github.com/golang-migrate/migrate/v4"
	// Blank import required for PostgreSQL and SQLite driver registration for migrations
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// embedScheme источник миграций, встроенных в бинарник
const embedScheme = "embed://"

// Migrator то, что нужно от migrate.Migrate
type Migrator interface {
	Up() error
	Close() (error, error)
}

// MigrationEngine фабрика мигратора, в тестах подменяется
type MigrationEngine func(sourceURL, databaseURL string) (Migrator, error)

type Migration struct {
	sourceURL   string
	databaseURL string
	engine      MigrationEngine
}

func NewMigration(conf *config.Config, engine MigrationEngine) *Migration {
	return &Migration{
		sourceURL:   SourceURL(conf.DB.Driver, conf.DB.Migrations),
		databaseURL: DatabaseURL(conf.DB.Driver, conf.DB.DatabaseURI),
		engine:      engine,
	}
}

// SourceURL каталог миграций на диске либо встроенный набор для драйвера
func SourceURL(driver, path string) string {
	if path != "" {
		return "file://" + path
	}
	return embedScheme + driver
}

// DatabaseURL адрес базы в формате драйверов golang-migrate
func DatabaseURL(driver, dsn string) string {
	if driver != config.DriverSQLite || strings.HasPrefix(dsn, "sqlite3://") {
		return dsn
	}
	return "sqlite3://" + strings.TrimPrefix(dsn, "file:")
}

// DefaultEngine создает migrate.Migrate из встроенного набора или каталога
func DefaultEngine(sourceURL, databaseURL string) (Migrator, error) {
	if dir, ok := strings.CutPrefix(sourceURL, embedScheme); ok {
		src, err := iofs.New(migrations.FS, dir)
		if err != nil {
			return nil, fmt.Errorf("open embedded migrations %q: %w", dir, err)
		}
		return migrate.NewWithSourceInstance("iofs", src, databaseURL)
	}
	return migrate.New(sourceURL, databaseURL)
}

func (mg *Migration) Up() (err error) {
	m, err := mg.engine(mg.sourceURL, mg.databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		serr, dberr := m.Close()
		if serr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration source error: %v", err, serr)
			} else {
				err = serr
			}
		}
		if dberr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration database error: %v", err, dberr)
			} else {
				err = dberr
			}
		}
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w; migration up error", err)
	}
	return nil
}
