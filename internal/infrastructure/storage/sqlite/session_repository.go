package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"healthsync/internal/domain/session"

	"golang.org/x/exp/slog"
)

type SessionRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewSessionRepository(db *sql.DB, log *slog.Logger) *SessionRepository {
	return &SessionRepository{
		db:  db,
		log: log.With("component", "session_repository"),
	}
}

func (r *SessionRepository) Create(ctx context.Context, userID int, deviceID, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_sessions (user_id, device_id, token_hash, expires_at, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		userID, deviceID, tokenHash, toNanos(expiresAt), toNanos(time.Now()))
	if err != nil {
		r.log.Error("failed to create session", "user_id", userID, "error", err)
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Validate(ctx context.Context, tokenHash string, now time.Time) (session.Principal, error) {
	var p session.Principal
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, device_id FROM auth_sessions
         WHERE token_hash = ? AND expires_at > ?`,
		tokenHash, toNanos(now)).Scan(&p.UserID, &p.DeviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Principal{}, session.ErrInvalidToken
		}
		return session.Principal{}, fmt.Errorf("validate session: %w", err)
	}
	return p, nil
}
