package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"healthsync/internal/domain/record"

	"golang.org/x/exp/slog"
)

// RecordRepository хранилище записей на SQLite
type RecordRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewRecordRepository(db *sql.DB, log *slog.Logger) *RecordRepository {
	return &RecordRepository{
		db:  db,
		log: log.With("component", "record_repository"),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

const activityColumns = `id, user_id, device_id, session_id, client_id, type, occurred_at,
		duration, data, sync_status, synced_at, created_at, updated_at`

func (r *RecordRepository) FindActivity(ctx context.Context, key record.ActivityKey) (*record.Activity, error) {
	query := `SELECT ` + activityColumns + `
		FROM activities
		WHERE user_id = ? AND device_id = ? AND session_id = ? AND type = ? AND occurred_at = ?`

	a, err := scanActivity(r.db.QueryRowContext(ctx, query,
		key.UserID, key.DeviceID, key.SessionID, key.Type, toNanos(key.Timestamp)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, record.ErrNotFound
		}
		return nil, fmt.Errorf("find activity: %w", err)
	}
	return a, nil
}

func (r *RecordRepository) InsertActivity(ctx context.Context, a *record.Activity) (*record.Activity, bool, error) {
	const query = `
		INSERT INTO activities (id, user_id, device_id, session_id, client_id, type, occurred_at,
			duration, data, sync_status, synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, device_id, session_id, type, occurred_at) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.DeviceID, a.SessionID, a.ClientID, a.Type, toNanos(a.Timestamp),
		a.Duration, nullJSON(a.Data), string(a.SyncStatus), toNullNanos(a.SyncedAt),
		toNanos(a.CreatedAt), toNanos(a.UpdatedAt))
	if err != nil {
		r.log.Error("failed to insert activity", "user_id", a.UserID, "type", a.Type, "error", err)
		return nil, false, fmt.Errorf("insert activity: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return a, true, nil
	}

	existing, err := r.FindActivity(ctx, a.Key())
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *RecordRepository) ActivitiesSince(ctx context.Context, userID int, since time.Time, limit int) ([]record.Activity, error) {
	query := `SELECT ` + activityColumns + `
		FROM activities
		WHERE user_id = ? AND updated_at > ? AND sync_status = ?
		ORDER BY updated_at, id
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, userID, toNanos(since), string(record.SyncStatusSynced), limit)
	if err != nil {
		r.log.Error("failed to list activities", "user_id", userID, "since", since, "error", err)
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []record.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, *a)
	}

	return out, rows.Err()
}

const diagnosisColumns = `id, user_id, device_id, diagnosis_id, code, description, severity,
		data, last_modified, sync_status, synced_at, created_at, updated_at`

func (r *RecordRepository) FindDiagnosis(ctx context.Context, userID int, diagnosisID string) (*record.Diagnosis, error) {
	query := `SELECT ` + diagnosisColumns + `
		FROM diagnoses
		WHERE user_id = ? AND diagnosis_id = ?`

	d, err := scanDiagnosis(r.db.QueryRowContext(ctx, query, userID, diagnosisID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, record.ErrNotFound
		}
		return nil, fmt.Errorf("find diagnosis: %w", err)
	}
	return d, nil
}

func (r *RecordRepository) SaveDiagnosis(ctx context.Context, d *record.Diagnosis, expected *time.Time) error {
	var (
		query string
		args  []any
	)

	if expected == nil {
		query = `
			INSERT INTO diagnoses (id, user_id, device_id, diagnosis_id, code, description, severity,
				data, last_modified, sync_status, synced_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, diagnosis_id) DO NOTHING`
		args = []any{d.ID, d.UserID, d.DeviceID, d.DiagnosisID, d.Code, d.Description, d.Severity,
			nullJSON(d.Data), toNanos(d.LastModified), string(d.SyncStatus), toNullNanos(d.SyncedAt),
			toNanos(d.CreatedAt), toNanos(d.UpdatedAt)}
	} else {
		query = `
			UPDATE diagnoses
			SET device_id = ?, code = ?, description = ?, severity = ?, data = ?,
				last_modified = ?, sync_status = ?, synced_at = ?, updated_at = ?
			WHERE user_id = ? AND diagnosis_id = ? AND last_modified = ?`
		args = []any{d.DeviceID, d.Code, d.Description, d.Severity, nullJSON(d.Data),
			toNanos(d.LastModified), string(d.SyncStatus), toNullNanos(d.SyncedAt), toNanos(d.UpdatedAt),
			d.UserID, d.DiagnosisID, toNanos(*expected)}
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to save diagnosis", "user_id", d.UserID, "diagnosis_id", d.DiagnosisID, "error", err)
		return fmt.Errorf("save diagnosis: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save diagnosis: %w", err)
	}
	if n == 0 {
		return record.ErrStale
	}

	return nil
}

func (r *RecordRepository) DiagnosesSince(ctx context.Context, userID int, since time.Time, limit int) ([]record.Diagnosis, error) {
	query := `SELECT ` + diagnosisColumns + `
		FROM diagnoses
		WHERE user_id = ? AND updated_at > ? AND sync_status = ?
		ORDER BY updated_at, id
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, userID, toNanos(since), string(record.SyncStatusSynced), limit)
	if err != nil {
		r.log.Error("failed to list diagnoses", "user_id", userID, "since", since, "error", err)
		return nil, fmt.Errorf("list diagnoses: %w", err)
	}
	defer rows.Close()

	var out []record.Diagnosis
	for rows.Next() {
		d, err := scanDiagnosis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan diagnosis: %w", err)
		}
		out = append(out, *d)
	}

	return out, rows.Err()
}

const profileColumns = `user_id, first_name, last_name, display_name, date_of_birth, gender,
		phone, language, timezone, sync_status, synced_at, created_at, updated_at`

func (r *RecordRepository) PatchProfile(ctx context.Context, userID int, patch record.ProfilePatch, at time.Time) (*record.Profile, error) {
	query := `
		INSERT INTO profiles (user_id, first_name, last_name, display_name, date_of_birth, gender,
			phone, language, timezone, sync_status, synced_at, created_at, updated_at)
		VALUES (?1, COALESCE(?2, ''), COALESCE(?3, ''), COALESCE(?4, ''), COALESCE(?5, ''),
			COALESCE(?6, ''), COALESCE(?7, ''), COALESCE(?8, ''), COALESCE(?9, ''), ?10, ?11, ?11, ?11)
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = COALESCE(?2, first_name),
			last_name = COALESCE(?3, last_name),
			display_name = COALESCE(?4, display_name),
			date_of_birth = COALESCE(?5, date_of_birth),
			gender = COALESCE(?6, gender),
			phone = COALESCE(?7, phone),
			language = COALESCE(?8, language),
			timezone = COALESCE(?9, timezone),
			sync_status = ?10,
			synced_at = ?11,
			updated_at = ?11
		RETURNING ` + profileColumns

	row := r.db.QueryRowContext(ctx, query, userID,
		nullString(patch.FirstName), nullString(patch.LastName), nullString(patch.DisplayName),
		nullString(patch.DateOfBirth), nullString(patch.Gender), nullString(patch.Phone),
		nullString(patch.Language), nullString(patch.Timezone),
		string(record.SyncStatusSynced), toNanos(at))

	p, err := scanProfile(row)
	if err != nil {
		r.log.Error("failed to patch profile", "user_id", userID, "error", err)
		return nil, fmt.Errorf("patch profile: %w", err)
	}
	return p, nil
}

func (r *RecordRepository) ProfileSince(ctx context.Context, userID int, since time.Time) (*record.Profile, error) {
	query := `SELECT ` + profileColumns + `
		FROM profiles
		WHERE user_id = ? AND updated_at > ? AND sync_status = ?`

	p, err := scanProfile(r.db.QueryRowContext(ctx, query, userID, toNanos(since), string(record.SyncStatusSynced)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Вспомогательные методы
func scanActivity(row scanner) (*record.Activity, error) {
	var (
		a                                record.Activity
		data                             sql.NullString
		status                           string
		occurredAt, createdAt, updatedAt int64
		syncedAt                         sql.NullInt64
	)

	err := row.Scan(&a.ID, &a.UserID, &a.DeviceID, &a.SessionID, &a.ClientID, &a.Type, &occurredAt,
		&a.Duration, &data, &status, &syncedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.Data = fromNullJSON(data)
	a.SyncStatus = record.SyncStatus(status)
	a.Timestamp = fromNanos(occurredAt)
	a.SyncedAt = fromNullNanos(syncedAt)
	a.CreatedAt = fromNanos(createdAt)
	a.UpdatedAt = fromNanos(updatedAt)
	return &a, nil
}

func scanDiagnosis(row scanner) (*record.Diagnosis, error) {
	var (
		d                                  record.Diagnosis
		data                               sql.NullString
		status                             string
		lastModified, createdAt, updatedAt int64
		syncedAt                           sql.NullInt64
	)

	err := row.Scan(&d.ID, &d.UserID, &d.DeviceID, &d.DiagnosisID, &d.Code, &d.Description, &d.Severity,
		&data, &lastModified, &status, &syncedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	d.Data = fromNullJSON(data)
	d.SyncStatus = record.SyncStatus(status)
	d.LastModified = fromNanos(lastModified)
	d.SyncedAt = fromNullNanos(syncedAt)
	d.CreatedAt = fromNanos(createdAt)
	d.UpdatedAt = fromNanos(updatedAt)
	return &d, nil
}

func scanProfile(row scanner) (*record.Profile, error) {
	var (
		p                    record.Profile
		status               string
		createdAt, updatedAt int64
		syncedAt             sql.NullInt64
	)

	err := row.Scan(&p.UserID, &p.FirstName, &p.LastName, &p.DisplayName, &p.DateOfBirth, &p.Gender,
		&p.Phone, &p.Language, &p.Timezone, &status, &syncedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.SyncStatus = record.SyncStatus(status)
	p.SyncedAt = fromNullNanos(syncedAt)
	p.CreatedAt = fromNanos(createdAt)
	p.UpdatedAt = fromNanos(updatedAt)
	return &p, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
