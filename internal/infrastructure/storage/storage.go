package storage

import (
	"context"
	"fmt"

	"healthsync/internal/app/server/config"
	"healthsync/internal/domain/record"
	"healthsync/internal/domain/session"
	"healthsync/internal/domain/sync"
	"healthsync/internal/infrastructure/storage/postgres"
	"healthsync/internal/infrastructure/storage/sqlite"

	"golang.org/x/exp/slog"
)

// Backend набор репозиториев поверх одной базы
type Backend interface {
	Records() record.Store
	Ledger() sync.Ledger
	Sessions() session.Repository

	Ping(ctx context.Context) error
	Close() error
}

// Open открывает базу выбранного драйвера и накатывает миграции
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (Backend, error) {
	switch cfg.DB.Driver {
	case config.DriverPostgres:
		st, err := postgres.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &postgresBackend{
			Storage:  st,
			records:  postgres.NewRecordRepository(st.Pool(), log),
			ledger:   postgres.NewSyncRepository(st.Pool(), log),
			sessions: postgres.NewSessionRepository(st.Pool(), log),
		}, nil
	case config.DriverSQLite:
		st, err := sqlite.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &sqliteBackend{
			Storage:  st,
			records:  sqlite.NewRecordRepository(st.DB(), log),
			ledger:   sqlite.NewSyncRepository(st.DB(), log),
			sessions: sqlite.NewSessionRepository(st.DB(), log),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DB.Driver)
	}
}

type postgresBackend struct {
	*postgres.Storage
	records  *postgres.RecordRepository
	ledger   *postgres.SyncRepository
	sessions *postgres.SessionRepository
}

func (b *postgresBackend) Records() record.Store        { return b.records }
func (b *postgresBackend) Ledger() sync.Ledger          { return b.ledger }
func (b *postgresBackend) Sessions() session.Repository { return b.sessions }

type sqliteBackend struct {
	*sqlite.Storage
	records  *sqlite.RecordRepository
	ledger   *sqlite.SyncRepository
	sessions *sqlite.SessionRepository
}

func (b *sqliteBackend) Records() record.Store        { return b.records }
func (b *sqliteBackend) Ledger() sync.Ledger          { return b.ledger }
func (b *sqliteBackend) Sessions() session.Repository { return b.sessions }
