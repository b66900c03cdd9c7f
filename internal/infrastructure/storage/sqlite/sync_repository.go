package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"healthsync/internal/domain/sync"

	"golang.org/x/exp/slog"
)

// SyncRepository журнал сессий синхронизации на SQLite
type SyncRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewSyncRepository(db *sql.DB, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		db:  db,
		log: log.With("component", "sync_repository"),
	}
}

const sessionColumns = `id, user_id, device_id, client_session_id, sync_type, operation, data_types, status,
		total_items, processed_items, successful_items, failed_items, skipped_items,
		started_at, completed_at, bytes_uploaded, bytes_downloaded, compression_ratio,
		device_info, network_info, attempt_count, max_attempts, backoff_multiplier,
		next_retry_at, last_retry_at, created_at, updated_at`

func (r *SyncRepository) Create(ctx context.Context, s *sync.Session) error {
	dataTypes, device, network, err := encodeSessionJSON(s)
	if err != nil {
		return err
	}

	query := `INSERT INTO sync_sessions (` + sessionColumns + `)
		VALUES (?` + strings.Repeat(", ?", 26) + `)`

	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.DeviceID, s.ClientSessionID, string(s.SyncType), string(s.Operation), dataTypes, string(s.Status),
		s.Progress.Total, s.Progress.Processed, s.Progress.Successful, s.Progress.Failed, s.Progress.Skipped,
		toNanos(s.StartedAt), toNullNanos(s.CompletedAt), s.Transfer.BytesUploaded, s.Transfer.BytesDownloaded, s.Transfer.CompressionRatio,
		device, network, s.Retry.AttemptCount, s.Retry.MaxAttempts, s.Retry.BackoffMultiplier,
		toNullNanos(s.Retry.NextRetryAt), toNullNanos(s.Retry.LastRetryAt), toNanos(s.CreatedAt), toNanos(s.UpdatedAt),
	)
	if err != nil {
		r.log.Error("failed to create sync session", "sync_id", s.ID, "error", err)
		return fmt.Errorf("create sync session: %w", err)
	}

	return nil
}

func (r *SyncRepository) Get(ctx context.Context, userID int, id string) (*sync.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sync_sessions WHERE id = ? AND user_id = ?`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

func (r *SyncRepository) FindLatestByClientSession(ctx context.Context, userID int, deviceID, clientSessionID string) (*sync.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sync_sessions
		WHERE user_id = ? AND device_id = ? AND client_session_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT 1`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, userID, deviceID, clientSessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sync.ErrSessionNotFound
		}
		return nil, fmt.Errorf("find sync session: %w", err)
	}
	return s, nil
}

func (r *SyncRepository) List(ctx context.Context, userID int, filter sync.SessionFilter) ([]*sync.Session, int, error) {
	where := ` WHERE user_id = ?`
	args := []any{userID}

	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.SyncType != "" {
		where += " AND sync_type = ?"
		args = append(args, string(filter.SyncType))
	}
	if filter.From != nil {
		where += " AND started_at >= ?"
		args = append(args, toNanos(*filter.From))
	}
	if filter.To != nil {
		where += " AND started_at <= ?"
		args = append(args, toNanos(*filter.To))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_sessions`+where, args...).Scan(&total); err != nil {
		r.log.Error("failed to count sync sessions", "user_id", userID, "error", err)
		return nil, 0, fmt.Errorf("count sync sessions: %w", err)
	}

	query := `SELECT ` + sessionColumns + ` FROM sync_sessions` + where +
		` ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
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

func (r *SyncRepository) LatestCompleted(ctx context.Context, userID int) (*sync.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sync_sessions
		WHERE user_id = ? AND status = ?
		ORDER BY completed_at DESC, id DESC
		LIMIT 1`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, userID, string(sync.StatusCompleted)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sync.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get latest completed session: %w", err)
	}
	return s, nil
}

func (r *SyncRepository) MarkInProgress(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_sessions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(sync.StatusInProgress), toNanos(time.Now()), id, string(sync.StatusInitiated))
	if err != nil {
		return fmt.Errorf("mark sync session in progress: %w", err)
	}
	return requireRow(res, fmt.Errorf("mark sync session %s in progress: %w", id, sync.ErrSessionNotFound))
}

// UpdateProgress прибавляет delta к счетчикам одним оператором
func (r *SyncRepository) UpdateProgress(ctx context.Context, id string, d sync.Progress) error {
	const query = `
		UPDATE sync_sessions SET
			total_items = total_items + ?,
			processed_items = processed_items + ?,
			successful_items = successful_items + ?,
			failed_items = failed_items + ?,
			skipped_items = skipped_items + ?,
			updated_at = ?
		WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query,
		d.Total, d.Processed, d.Successful, d.Failed, d.Skipped, toNanos(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update sync progress: %w", err)
	}
	return requireRow(res, sync.ErrSessionNotFound)
}

func (r *SyncRepository) AppendError(ctx context.Context, id string, e sync.SessionError) error {
	const query = `
		INSERT INTO sync_session_errors (session_id, code, message, severity, data_type, item_id, retryable, occurred_at)
		SELECT id, ?, ?, ?, ?, ?, ?, ? FROM sync_sessions WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query,
		e.Code, e.Message, string(e.Severity), string(e.DataType), e.ItemID, e.Retryable, toNanos(e.Timestamp), id)
	if err != nil {
		return fmt.Errorf("append sync error: %w", err)
	}
	return requireRow(res, sync.ErrSessionNotFound)
}

// AppendConflict второй конфликт для той же записи в сессии не пишется, возвращается ErrDuplicateConflict
func (r *SyncRepository) AppendConflict(ctx context.Context, id string, c sync.Conflict) error {
	if c.Resolution == "" {
		c.Resolution = sync.ResolutionManualReview
	}

	const query = `
		INSERT INTO sync_conflicts (session_id, item_id, data_type, conflict_type, resolution,
			local_version, server_version, merged_version, created_at)
		SELECT id, ?, ?, ?, ?, ?, ?, ?, ? FROM sync_sessions WHERE id = ?
		ON CONFLICT (session_id, item_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		c.ItemID, string(c.DataType), string(c.ConflictType), string(c.Resolution),
		nullJSON(c.LocalVersion), nullJSON(c.ServerVersion), nullJSON(c.MergedVersion), toNanos(c.CreatedAt), id)
	if err != nil {
		return fmt.Errorf("append sync conflict: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 1 {
		return err
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sync_sessions WHERE id = ?)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check sync session: %w", err)
	}
	if !exists {
		return sync.ErrSessionNotFound
	}
	return sync.ErrDuplicateConflict
}

func (r *SyncRepository) Finalize(ctx context.Context, id string, f sync.Finalization) error {
	const query = `
		UPDATE sync_sessions SET
			status = ?,
			completed_at = ?,
			bytes_uploaded = ?,
			bytes_downloaded = ?,
			compression_ratio = ?,
			next_retry_at = ?,
			updated_at = ?
		WHERE id = ? AND status IN ('initiated', 'in_progress')`

	completedAt := toNanos(f.CompletedAt)
	res, err := r.db.ExecContext(ctx, query, string(f.Status), completedAt,
		f.Transfer.BytesUploaded, f.Transfer.BytesDownloaded, f.Transfer.CompressionRatio,
		toNullNanos(f.NextRetryAt), completedAt, id)
	if err != nil {
		r.log.Error("failed to finalize sync session", "sync_id", id, "error", err)
		return fmt.Errorf("finalize sync session: %w", err)
	}
	return requireRow(res, fmt.Errorf("finalize sync session %s: %w", id, sync.ErrSessionNotFound))
}

func (r *SyncRepository) ListUnresolvedConflicts(ctx context.Context, userID int, deviceID string, limit, offset int) ([]sync.ConflictView, int, error) {
	const from = `
		FROM sync_conflicts c
		JOIN sync_sessions s ON s.id = c.session_id
		WHERE s.user_id = ? AND s.device_id = ? AND c.resolution = 'manual_review'`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from, userID, deviceID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conflicts: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.started_at, c.item_id, c.data_type, c.conflict_type, c.resolution,
			c.resolved_at, c.resolved_by, c.local_version, c.server_version, c.merged_version, c.created_at`+from+`
		ORDER BY s.started_at DESC, c.id
		LIMIT ? OFFSET ?`, userID, deviceID, limit, offset)
	if err != nil {
		r.log.Error("failed to list conflicts", "user_id", userID, "device_id", deviceID, "error", err)
		return nil, 0, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	var views []sync.ConflictView
	for rows.Next() {
		var v sync.ConflictView
		var startedAt int64
		if err := scanConflict(rows, &v.Conflict, &v.SyncID, &startedAt); err != nil {
			return nil, 0, fmt.Errorf("scan conflict: %w", err)
		}
		v.SyncTimestamp = fromNanos(startedAt)
		views = append(views, v)
	}

	return views, total, rows.Err()
}

func (r *SyncRepository) ResolveConflict(ctx context.Context, userID int, sessionID, itemID string, res sync.ConflictResolution) error {
	const query = `
		UPDATE sync_conflicts SET
			resolution = ?,
			merged_version = ?,
			resolved_by = ?,
			resolved_at = ?
		WHERE session_id = ? AND item_id = ? AND resolution = 'manual_review'
			AND EXISTS (SELECT 1 FROM sync_sessions WHERE id = ? AND user_id = ?)`

	result, err := r.db.ExecContext(ctx, query,
		string(res.Resolution), nullJSON(res.MergedVersion), res.ResolvedBy, toNanos(res.ResolvedAt),
		sessionID, itemID, sessionID, userID)
	if err != nil {
		return fmt.Errorf("resolve conflict: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 1 {
		if _, err := r.db.ExecContext(ctx, `UPDATE sync_sessions SET updated_at = ? WHERE id = ?`, toNanos(res.ResolvedAt), sessionID); err != nil {
			r.log.Warn("failed to touch sync session", "session_id", sessionID, "error", err)
		}
		return nil
	}

	var sessionExists, conflictExists bool
	err = r.db.QueryRowContext(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM sync_sessions WHERE id = ? AND user_id = ?),
			EXISTS (SELECT 1 FROM sync_conflicts WHERE session_id = ? AND item_id = ?)`,
		sessionID, userID, sessionID, itemID).Scan(&sessionExists, &conflictExists)
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
	rows, err := r.db.QueryContext(ctx, `
		SELECT code, message, severity, data_type, item_id, retryable, occurred_at
		FROM sync_session_errors WHERE session_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list session errors: %w", err)
	}
	defer rows.Close()

	var out []sync.SessionError
	for rows.Next() {
		var (
			e                  sync.SessionError
			severity, dataType string
			occurredAt         int64
		)
		if err := rows.Scan(&e.Code, &e.Message, &severity, &dataType, &e.ItemID, &e.Retryable, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan session error: %w", err)
		}
		e.Severity = sync.Severity(severity)
		e.DataType = sync.DataType(dataType)
		e.Timestamp = fromNanos(occurredAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SyncRepository) sessionConflicts(ctx context.Context, id string) ([]sync.Conflict, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, created_at, item_id, data_type, conflict_type, resolution, resolved_at, resolved_by,
			local_version, server_version, merged_version, created_at
		FROM sync_conflicts WHERE session_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list session conflicts: %w", err)
	}
	defer rows.Close()

	var out []sync.Conflict
	for rows.Next() {
		var c sync.Conflict
		var sessionID string
		var ignored int64
		if err := scanConflict(rows, &c, &sessionID, &ignored); err != nil {
			return nil, fmt.Errorf("scan session conflict: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// scanConflict читает строку вида (session_id, started_at, поля конфликта...)
func scanConflict(row scanner, c *sync.Conflict, sessionID *string, startedAt *int64) error {
	var (
		dataType, conflictType, resolution string
		resolvedAt                         sql.NullInt64
		local, server, merged              sql.NullString
		createdAt                          int64
	)

	if err := row.Scan(sessionID, startedAt, &c.ItemID, &dataType, &conflictType, &resolution,
		&resolvedAt, &c.ResolvedBy, &local, &server, &merged, &createdAt); err != nil {
		return err
	}

	c.DataType = sync.DataType(dataType)
	c.ConflictType = sync.ConflictType(conflictType)
	c.Resolution = sync.Resolution(resolution)
	c.ResolvedAt = fromNullNanos(resolvedAt)
	c.LocalVersion = fromNullJSON(local)
	c.ServerVersion = fromNullJSON(server)
	c.MergedVersion = fromNullJSON(merged)
	c.CreatedAt = fromNanos(createdAt)
	return nil
}

func scanSession(row scanner) (*sync.Session, error) {
	var (
		s                                     sync.Session
		syncType, operation, status           string
		dataTypes, device, network            string
		startedAt, createdAt, updatedAt       int64
		completedAt, nextRetryAt, lastRetryAt sql.NullInt64
	)

	err := row.Scan(
		&s.ID, &s.UserID, &s.DeviceID, &s.ClientSessionID, &syncType, &operation, &dataTypes, &status,
		&s.Progress.Total, &s.Progress.Processed, &s.Progress.Successful, &s.Progress.Failed, &s.Progress.Skipped,
		&startedAt, &completedAt, &s.Transfer.BytesUploaded, &s.Transfer.BytesDownloaded, &s.Transfer.CompressionRatio,
		&device, &network, &s.Retry.AttemptCount, &s.Retry.MaxAttempts, &s.Retry.BackoffMultiplier,
		&nextRetryAt, &lastRetryAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeSessionJSON(&s, []byte(dataTypes), []byte(device), []byte(network)); err != nil {
		return nil, err
	}

	s.SyncType = sync.SyncType(syncType)
	s.Operation = sync.Operation(operation)
	s.Status = sync.Status(status)
	s.StartedAt = fromNanos(startedAt)
	s.CompletedAt = fromNullNanos(completedAt)
	s.Retry.NextRetryAt = fromNullNanos(nextRetryAt)
	s.Retry.LastRetryAt = fromNullNanos(lastRetryAt)
	s.CreatedAt = fromNanos(createdAt)
	s.UpdatedAt = fromNanos(updatedAt)
	return &s, nil
}

func encodeSessionJSON(s *sync.Session) (dataTypes, device, network string, err error) {
	b, err := json.Marshal(s.DataTypes)
	if err != nil {
		return "", "", "", fmt.Errorf("encode data types: %w", err)
	}
	dataTypes = string(b)
	if b, err = json.Marshal(s.Device); err != nil {
		return "", "", "", fmt.Errorf("encode device info: %w", err)
	}
	device = string(b)
	if b, err = json.Marshal(s.Network); err != nil {
		return "", "", "", fmt.Errorf("encode network info: %w", err)
	}
	network = string(b)
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

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
