package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"healthsync/internal/domain/session"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

type SessionRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewSessionRepository(pool *pgxpool.Pool, log *slog.Logger) *SessionRepository {
	return &SessionRepository{
		pool: pool,
		log:  log.With("component", "session_repository"),
	}
}

func (r *SessionRepository) Create(ctx context.Context, userID int, deviceID, tokenHash string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO auth_sessions (user_id, device_id, token_hash, expires_at, created_at)
         VALUES ($1, $2, $3, $4, NOW())`,
		userID, deviceID, tokenHash, expiresAt)
	if err != nil {
		r.log.Error("failed to create session", "user_id", userID, "error", err)
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Validate(ctx context.Context, tokenHash string, now time.Time) (session.Principal, error) {
	var p session.Principal
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, device_id FROM auth_sessions
         WHERE token_hash = $1 AND expires_at > $2`,
		tokenHash, now).Scan(&p.UserID, &p.DeviceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Principal{}, session.ErrInvalidToken
		}
		return session.Principal{}, fmt.Errorf("validate session: %w", err)
	}
	return p, nil
}
