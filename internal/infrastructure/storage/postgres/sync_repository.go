package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"healthsync/internal/domain/sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

// SyncRepository журнал сессий синхронизации на PostgreSQL
type SyncRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewSyncRepository создает новый репозиторий синхронизации
func NewSyncRepository(pool *pgxpool.Pool, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		pool: pool,
		log:  log.With("component", "sync_repository"),
	}
}

const sessionColumns = `id, user_id, device_id, client_session_id, sync_type, operation, data_types, status,
		total_items, processed_items, successful_items, failed_items, skipped_items,
		started_at, completed_at, bytes_uploaded, bytes_downloaded, compression_ratio,
		device_info, network_info, attempt_count, max_attempts, backoff_multiplier,
		next_retry_at, last_retry_at, created_at, updated_at`

// Create сохраняет новую сессию
func (r *SyncRepository) Create(ctx context.Context, s *sync.Session) error {
	dataTypes, device, network, err := encodeSessionJSON(s)
	if err != nil {
		return err
	}

	query := `INSERT INTO sync_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27)`

	_, err = r.pool.Exec(ctx, query,
		s.ID, s.UserID, s.DeviceID, s.ClientSessionID, s.SyncType, s.Operation, dataTypes, s.Status,
		s.Progress.Total, s.Progress.Processed, s.Progress.Successful, s.Progress.Failed, s.Progress.Skipped,
		s.StartedAt, s.CompletedAt, s.Transfer.BytesUploaded, s.Transfer.BytesDownloaded, s.Transfer.CompressionRatio,
		device, network, s.Retry.AttemptCount, s.Retry.MaxAttempts, s.Retry.BackoffMultiplier,
		s.Retry.NextRetryAt, s.Retry.LastRetryAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		r.log.Error("failed to create sync session", "sync_id", s.ID, "error", err)
		return fmt.Errorf("create sync session: %w", err)
	}

	return nil
}

// Get возвращает сессию пользователя вместе с ошибками и конфликтами
func (r *SyncRepository) Get(ctx context.Context, userID int, id string) (*sync.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sync_sessions WHERE id = $1 AND user_id = $2`

	s, err := scanSession(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sync.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get sync session: %w", err)
	}

	if s.Errors, err = r.sessionErrors(ctx, id); err != nil {
		return nil, err
	}
	if s.Conflicts, err = r.sessionConflicts(ctx, id); err != nil {
		return nil, err
	}

	return s, nil
}

// FindLatestByClientSession последняя попытка с тем же клиентским идентификатором сессии
func (r *SyncRepository) FindLatestByClientSession(ctx context.Context, userID int, deviceID, clientSessionID string) (*sync.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sync_sessions
		WHERE user_id = $1 AND device_id = $2 AND client_session_id = $3
		ORDER BY started_at DESC, id DESC
		LIMIT 1`

	s, err := scanSession(r.pool.QueryRow(ctx, query, userID, deviceID, clientSessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sync.ErrSessionNotFound
		}
		return nil, fmt.Errorf("find sync session: %w", err)
	}
	return s, nil
}

// List страница сессий пользователя, новые первыми
func (r *SyncRepository) List(ctx context.Context, userID int, filter sync.SessionFilter) ([]*sync.Session, int, error) {
	where := ` WHERE user_id = $1`
	args := []any{userID}
	argIndex := 2

	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, filter.Status)
		argIndex++
	}
	if filter.SyncType != "" {
		where += fmt.Sprintf(" AND sync_type = $%d", argIndex)
		args = append(args, filter.SyncType)
		argIndex++
	}
	if filter.From != nil {
		where += fmt.Sprintf(" AND started_at >= $%d", argIndex)
		args = append(args, *filter.From)
		argIndex++
	}
	if filter.To != nil {
		where += fmt.Sprintf(" AND started_at <= $%d", argIndex)
		args = append(args, *filter.To)
		argIndex++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sync_sessions`+where, args...).Scan(&total); err != nil {
		r.log.Error("failed to count sync sessions", "user_id", userID, "error", err)
		return nil, 0, fmt.Errorf("count sync sessions: %w", err)
	}

	query := `SELECT ` + sessionColumns + ` FROM sync_sessions` + where +
		fmt.Sprintf(" ORDER BY started_at DESC, id DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to list sync sessions", "user_id", userID, "error", err)
		return nil, 0, fmt.Errorf("list sync sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*sync.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan sync session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, total, rows.Err()
}

// LatestCompleted последняя успешно завершенная сессия
func (r *SyncRepository) LatestCompleted(ctx context.Context, userID int) (*sync.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sync_sessions
		WHERE user_id = $1 AND status = $2
		ORDER BY completed_at DESC, id DESC
		LIMIT 1`

	s, err := scanSession(r.pool.QueryRow(ctx, query, userID, sync.StatusCompleted))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sync.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get latest completed session: %w", err)
	}
	return s, nil
}

func (r *SyncRepository) MarkInProgress(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sync_sessions SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
		id, sync.StatusInProgress, time.Now().UTC(), sync.StatusInitiated)
	if err != nil {
		return fmt.Errorf("mark sync session in progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark sync session %s in progress: %w", id, sync.ErrSessionNotFound)
	}
	return nil
}

// UpdateProgress прибавляет delta к счетчикам одним оператором
func (r *SyncRepository) UpdateProgress(ctx context.Context, id string, d sync.Progress) error {
	const query = `
		UPDATE sync_sessions SET
			total_items = total_items + $2,
			processed_items = processed_items + $3,
			successful_items = successful_items + $4,
			failed_items = failed_items + $5,
			skipped_items = skipped_items + $6,
			updated_at = $7
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, d.Total, d.Processed, d.Successful, d.Failed, d.Skipped, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update sync progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sync.ErrSessionNotFound
	}
	return nil
}

func (r *SyncRepository) AppendError(ctx context.Context, id string, e sync.SessionError) error {
	const query = `
		INSERT INTO sync_session_errors (session_id, code, message, severity, data_type, item_id, retryable, occurred_at)
		SELECT id, $2::text, $3::text, $4::text, $5::text, $6::text, $7::boolean, $8::timestamptz
		FROM sync_sessions WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, e.Code, e.Message, e.Severity, e.DataType, e.ItemID, e.Retryable, e.Timestamp)
	if err != nil {
		return fmt.Errorf("append sync error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sync.ErrSessionNotFound
	}
	return nil
}

// AppendConflict второй конфликт для той же записи в сессии не пишется, возвращается ErrDuplicateConflict
func (r *SyncRepository) AppendConflict(ctx context.Context, id string, c sync.Conflict) error {
	if c.Resolution == "" {
		c.Resolution = sync.ResolutionManualReview
	}

	const query = `
		INSERT INTO sync_conflicts (session_id, item_id, data_type, conflict_type, resolution,
			local_version, server_version, merged_version, created_at)
		SELECT id, $2::text, $3::text, $4::text, $5::text, $6::jsonb, $7::jsonb, $8::jsonb, $9::timestamptz
		FROM sync_sessions WHERE id = $1
		ON CONFLICT (session_id, item_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, id, c.ItemID, c.DataType, c.ConflictType, c.Resolution,
		jsonOrNil(c.LocalVersion), jsonOrNil(c.ServerVersion), jsonOrNil(c.MergedVersion), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("append sync conflict: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sync_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check sync session: %w", err)
	}
	if !exists {
		return sync.ErrSessionNotFound
	}
	return sync.ErrDuplicateConflict
}

// Finalize переводит незавершенную сессию в финальный статус
func (r *SyncRepository) Finalize(ctx context.Context, id string, f sync.Finalization) error {
	const query = `
		UPDATE sync_sessions SET
			status = $2,
			completed_at = $3,
			bytes_uploaded = $4,
			bytes_downloaded = $5,
			compression_ratio = $6,
			next_retry_at = $7,
			updated_at = $3
		WHERE id = $1 AND status IN ('initiated', 'in_progress')`

	tag, err := r.pool.Exec(ctx, query, id, f.Status, f.CompletedAt,
		f.Transfer.BytesUploaded, f.Transfer.BytesDownloaded, f.Transfer.CompressionRatio, f.NextRetryAt)
	if err != nil {
		r.log.Error("failed to finalize sync session", "sync_id", id, "error", err)
		return fmt.Errorf("finalize sync session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finalize sync session %s: %w", id, sync.ErrSessionNotFound)
	}
	return nil
}

// ListUnresolvedConflicts конфликты в manual_review по всем сессиям устройства
func (r *SyncRepository) ListUnresolvedConflicts(ctx context.Context, userID int, deviceID string, limit, offset int) ([]sync.ConflictView, int, error) {
	const from = `
		FROM sync_conflicts c
		JOIN sync_sessions s ON s.id = c.session_id
		WHERE s.user_id = $1 AND s.device_id = $2 AND c.resolution = 'manual_review'`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+from, userID, deviceID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conflicts: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.started_at, c.item_id, c.data_type, c.conflict_type, c.resolution,
			c.resolved_at, c.resolved_by, c.local_version, c.server_version, c.merged_version, c.created_at`+from+`
		ORDER BY s.started_at DESC, c.id
		LIMIT $3 OFFSET $4`, userID, deviceID, limit, offset)
	if err != nil {
		r.log.Error("failed to list conflicts", "user_id", userID, "device_id", deviceID, "error", err)
		return nil, 0, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	var views []sync.ConflictView
	for rows.Next() {
		var v sync.ConflictView
		if err := rows.Scan(&v.SyncID, &v.SyncTimestamp, &v.ItemID, &v.DataType, &v.ConflictType, &v.Resolution,
			&v.ResolvedAt, &v.ResolvedBy, &v.LocalVersion, &v.ServerVersion, &v.MergedVersion, &v.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan conflict: %w", err)
		}
		v.SyncTimestamp = v.SyncTimestamp.UTC()
		views = append(views, v)
	}

	return views, total, rows.Err()
}

// ResolveConflict фиксирует решение; разрешенный конфликт повторно не меняется
func (r *SyncRepository) ResolveConflict(ctx context.Context, userID int, sessionID, itemID string, res sync.ConflictResolution) error {
	const query = `
		UPDATE sync_conflicts c SET
			resolution = $4,
			merged_version = $5,
			resolved_by = $6,
			resolved_at = $7
		FROM sync_sessions s
		WHERE s.id = c.session_id AND s.user_id = $1 AND c.session_id = $2 AND c.item_id = $3
			AND c.resolution = 'manual_review'`

	tag, err := r.pool.Exec(ctx, query, userID, sessionID, itemID,
		res.Resolution, jsonOrNil(res.MergedVersion), res.ResolvedBy, res.ResolvedAt)
	if err != nil {
		return fmt.Errorf("resolve conflict: %w", err)
	}
	if tag.RowsAffected() == 1 {
		if _, err := r.pool.Exec(ctx, `UPDATE sync_sessions SET updated_at = $2 WHERE id = $1`, sessionID, res.ResolvedAt); err != nil {
			r.log.Warn("failed to touch sync session", "session_id", sessionID, "error", err)
		}
		return nil
	}

	var sessionExists, conflictExists bool
	err = r.pool.QueryRow(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM sync_sessions WHERE id = $1 AND user_id = $2),
			EXISTS (SELECT 1 FROM sync_conflicts WHERE session_id = $1 AND item_id = $3)`,
		sessionID, userID, itemID).Scan(&sessionExists, &conflictExists)
	if err != nil {
		return fmt.Errorf("check conflict: %w", err)
	}

	switch {
	case !sessionExists:
		return sync.ErrSessionNotFound
	case !conflictExists:
		return sync.ErrConflictNotFound
	default:
		return sync.ErrConflictResolved
	}
}

func (r *SyncRepository) sessionErrors(ctx context.Context, id string) ([]sync.SessionError, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT code, message, severity, data_type, item_id, retryable, occurred_at
		FROM sync_session_errors WHERE session_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list session errors: %w", err)
	}
	defer rows.Close()

	var out []sync.SessionError
	for rows.Next() {
		var e sync.SessionError
		if err := rows.Scan(&e.Code, &e.Message, &e.Severity, &e.DataType, &e.ItemID, &e.Retryable, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan session error: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SyncRepository) sessionConflicts(ctx context.Context, id string) ([]sync.Conflict, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT item_id, data_type, conflict_type, resolution, resolved_at, resolved_by,
			local_version, server_version, merged_version, created_at
		FROM sync_conflicts WHERE session_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list session conflicts: %w", err)
	}
	defer rows.Close()

	var out []sync.Conflict
	for rows.Next() {
		var c sync.Conflict
		if err := rows.Scan(&c.ItemID, &c.DataType, &c.ConflictType, &c.Resolution, &c.ResolvedAt, &c.ResolvedBy,
			&c.LocalVersion, &c.ServerVersion, &c.MergedVersion, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session conflict: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (*sync.Session, error) {
	var s sync.Session
	var dataTypes, device, network []byte

	err := row.Scan(
		&s.ID, &s.UserID, &s.DeviceID, &s.ClientSessionID, &s.SyncType, &s.Operation, &dataTypes, &s.Status,
		&s.Progress.Total, &s.Progress.Processed, &s.Progress.Successful, &s.Progress.Failed, &s.Progress.Skipped,
		&s.StartedAt, &s.CompletedAt, &s.Transfer.BytesUploaded, &s.Transfer.BytesDownloaded, &s.Transfer.CompressionRatio,
		&device, &network, &s.Retry.AttemptCount, &s.Retry.MaxAttempts, &s.Retry.BackoffMultiplier,
		&s.Retry.NextRetryAt, &s.Retry.LastRetryAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeSessionJSON(&s, dataTypes, device, network); err != nil {
		return nil, err
	}

	s.StartedAt = s.StartedAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	s.CompletedAt = utcPtr(s.CompletedAt)
	s.Retry.NextRetryAt = utcPtr(s.Retry.NextRetryAt)
	s.Retry.LastRetryAt = utcPtr(s.Retry.LastRetryAt)
	return &s, nil
}

func encodeSessionJSON(s *sync.Session) (dataTypes, device, network []byte, err error) {
	if dataTypes, err = json.Marshal(s.DataTypes); err != nil {
		return nil, nil, nil, fmt.Errorf("encode data types: %w", err)
	}
	if device, err = json.Marshal(s.Device); err != nil {
		return nil, nil, nil, fmt.Errorf("encode device info: %w", err)
	}
	if network, err = json.Marshal(s.Network); err != nil {
		return nil, nil, nil, fmt.Errorf("encode network info: %w", err)
	}
	return dataTypes, device, network, nil
}

func decodeSessionJSON(s *sync.Session, dataTypes, device, network []byte) error {
	if err := json.Unmarshal(dataTypes, &s.DataTypes); err != nil {
		return fmt.Errorf("decode data types: %w", err)
	}
	if err := json.Unmarshal(device, &s.Device); err != nil {
		return fmt.Errorf("decode device info: %w", err)
	}
	if err := json.Unmarshal(network, &s.Network); err != nil {
		return fmt.Errorf("decode network info: %w", err)
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
