package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"healthsync/internal/app/server/config"
	"healthsync/internal/domain/record"
	"healthsync/internal/infrastructure/migration"

	_ "github.com/mattn/go-sqlite3"
)

// Storage хранилище на одном файле SQLite. Время хранится в наносекундах UTC.
type Storage struct {
	db *sql.DB
}

// New накатывает миграции и открывает базу
func New(ctx context.Context, cfg *config.Config) (*Storage, error) {
	mg := migration.NewMigration(cfg, migration.DefaultEngine)
	if err := mg.Up(); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	db, err := sql.Open("sqlite3", DSN(cfg.DB.DatabaseURI))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// один писатель: SQLite сериализует запись на уровне файла
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Storage{db: db}, nil
}

// DSN добавляет к пути параметры драйвера, если они не заданы явно
func DSN(uri string) string {
	uri = strings.TrimPrefix(uri, "sqlite3://")

	params := []string{"_foreign_keys=on", "_busy_timeout=5000"}
	for _, p := range params {
		name := p[:strings.IndexByte(p, '=')]
		if strings.Contains(uri, name+"=") {
			continue
		}
		if strings.Contains(uri, "?") {
			uri += "&" + p
		} else {
			uri += "?" + p
		}
	}
	return uri
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) DB() *sql.DB {
	return s.db
}

// границы, в которых UnixNano определен
var (
	minNanos = time.Unix(0, math.MinInt64)
	maxNanos = time.Unix(0, math.MaxInt64)
)

func toNanos(t time.Time) int64 {
	switch {
	case t.Before(minNanos):
		return math.MinInt64
	case t.After(maxNanos):
		return math.MaxInt64
	}
	return record.NormalizeTime(t).UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func toNullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

// nullJSON пустое тело хранится как NULL
func nullJSON(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func fromNullJSON(s sql.NullString) []byte {
	if !s.Valid {
		return nil
	}
	return []byte(s.String)
}
