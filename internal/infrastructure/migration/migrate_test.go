package migration

import (
	"errors"
	"path/filepath"
	"testing"

	"healthsync/internal/app/server/config"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMigrator мок Migrator
type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

func testConfig(driver, uri, path string) *config.Config {
	cfg := &config.Config{}
	cfg.DB.Driver = driver
	cfg.DB.DatabaseURI = uri
	cfg.DB.Migrations = path
	return cfg
}

func TestMigration_Up_Success(t *testing.T) {
	mockM := new(MockMigrator)

	// Настраиваем поведение
	mockM.On("Up").Return(nil)
	mockM.On("Close").Return(nil, nil)

	var gotSource, gotDB string
	// Инжектим мок через фабрику
	engine := func(source, db string) (Migrator, error) {
		gotSource, gotDB = source, db
		return mockM, nil
	}

	mg := NewMigration(testConfig(config.DriverPostgres, "postgres://localhost/healthsync", ""), engine)
	err := mg.Up()

	assert.NoError(t, err)
	assert.Equal(t, "embed://postgres", gotSource)
	assert.Equal(t, "postgres://localhost/healthsync", gotDB)
	mockM.AssertExpectations(t)
}

func TestMigration_Up_NoChange(t *testing.T) {
	mockM := new(MockMigrator)

	// ErrNoChange не должна считаться ошибкой в методе Up()
	mockM.On("Up").Return(migrate.ErrNoChange)
	mockM.On("Close").Return(nil, nil)

	engine := func(source, db string) (Migrator, error) {
		return mockM, nil
	}

	mg := NewMigration(testConfig(config.DriverPostgres, "", ""), engine)
	err := mg.Up()

	assert.NoError(t, err)
}

func TestMigration_Up_EngineError(t *testing.T) {
	// Ошибка на этапе создания мигратора (например, неверный драйвер)
	engine := func(source, db string) (Migrator, error) {
		return nil, errors.New("engine crash")
	}

	mg := NewMigration(testConfig(config.DriverPostgres, "", ""), engine)
	err := mg.Up()

	assert.Error(t, err)
	assert.Equal(t, "engine crash", err.Error())
}

func TestMigration_Up_CloseErrors(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Up").Return(errors.New("dirty database"))
	mockM.On("Close").Return(errors.New("source closed"), errors.New("db closed"))

	engine := func(source, db string) (Migrator, error) {
		return mockM, nil
	}

	err := NewMigration(testConfig(config.DriverPostgres, "", ""), engine).Up()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dirty database")
	assert.Contains(t, err.Error(), "source closed")
	assert.Contains(t, err.Error(), "db closed")
}

func TestURLs(t *testing.T) {
	assert.Equal(t, "file:///srv/migrations", SourceURL(config.DriverPostgres, "/srv/migrations"))
	assert.Equal(t, "embed://sqlite", SourceURL(config.DriverSQLite, ""))

	assert.Equal(t, "sqlite3:///tmp/h.db", DatabaseURL(config.DriverSQLite, "/tmp/h.db"))
	assert.Equal(t, "sqlite3://h.db?_foreign_keys=on", DatabaseURL(config.DriverSQLite, "file:h.db?_foreign_keys=on"))
	assert.Equal(t, "postgres://u@db/h", DatabaseURL(config.DriverPostgres, "postgres://u@db/h"))
}

func TestDefaultEngine_EmbeddedSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migrate.db")
	cfg := testConfig(config.DriverSQLite, dbPath, "")

	require.NoError(t, NewMigration(cfg, DefaultEngine).Up())
	// повторный запуск ничего не меняет
	require.NoError(t, NewMigration(cfg, DefaultEngine).Up())
}
