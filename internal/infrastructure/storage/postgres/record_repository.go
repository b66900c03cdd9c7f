package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"healthsync/internal/domain/record"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

// RecordRepository хранилище записей на PostgreSQL.
// Каждая запись меняется одним оператором, транзакции не используются.
type RecordRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewRecordRepository(pool *pgxpool.Pool, log *slog.Logger) *RecordRepository {
	return &RecordRepository{
		pool: pool,
		log:  log.With("component", "record_repository"),
	}
}

const activityColumns = `id, user_id, device_id, session_id, client_id, type, occurred_at,
		duration, data, sync_status, synced_at, created_at, updated_at`

func (r *RecordRepository) FindActivity(ctx context.Context, key record.ActivityKey) (*record.Activity, error) {
	query := `SELECT ` + activityColumns + `
		FROM activities
		WHERE user_id = $1 AND device_id = $2 AND session_id = $3 AND type = $4 AND occurred_at = $5`

	row := r.pool.QueryRow(ctx, query, key.UserID, key.DeviceID, key.SessionID, key.Type, key.Timestamp)
	a, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, device_id, session_id, type, occurred_at) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		a.ID, a.UserID, a.DeviceID, a.SessionID, a.ClientID, a.Type, a.Timestamp,
		a.Duration, jsonOrNil(a.Data), a.SyncStatus, a.SyncedAt, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		r.log.Error("failed to insert activity", "user_id", a.UserID, "type", a.Type, "error", err)
		return nil, false, fmt.Errorf("insert activity: %w", err)
	}

	if tag.RowsAffected() == 1 {
		return a, true, nil
	}

	// запись уже вставлена параллельным вызовом
	existing, err := r.FindActivity(ctx, a.Key())
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *RecordRepository) ActivitiesSince(ctx context.Context, userID int, since time.Time, limit int) ([]record.Activity, error) {
	query := `SELECT ` + activityColumns + `
		FROM activities
		WHERE user_id = $1 AND updated_at > $2 AND sync_status = $3
		ORDER BY updated_at, id
		LIMIT $4`

	rows, err := r.pool.Query(ctx, query, userID, since, record.SyncStatusSynced, limit)
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
		WHERE user_id = $1 AND diagnosis_id = $2`

	d, err := scanDiagnosis(r.pool.QueryRow(ctx, query, userID, diagnosisID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (user_id, diagnosis_id) DO NOTHING`
		args = []any{d.ID, d.UserID, d.DeviceID, d.DiagnosisID, d.Code, d.Description, d.Severity,
			jsonOrNil(d.Data), d.LastModified, d.SyncStatus, d.SyncedAt, d.CreatedAt, d.UpdatedAt}
	} else {
		query = `
			UPDATE diagnoses
			SET device_id = $3, code = $4, description = $5, severity = $6, data = $7,
				last_modified = $8, sync_status = $9, synced_at = $10, updated_at = $11
			WHERE user_id = $1 AND diagnosis_id = $2 AND last_modified = $12`
		args = []any{d.UserID, d.DiagnosisID, d.DeviceID, d.Code, d.Description, d.Severity,
			jsonOrNil(d.Data), d.LastModified, d.SyncStatus, d.SyncedAt, d.UpdatedAt, *expected}
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to save diagnosis", "user_id", d.UserID, "diagnosis_id", d.DiagnosisID, "error", err)
		return fmt.Errorf("save diagnosis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return record.ErrStale
	}

	return nil
}

func (r *RecordRepository) DiagnosesSince(ctx context.Context, userID int, since time.Time, limit int) ([]record.Diagnosis, error) {
	query := `SELECT ` + diagnosisColumns + `
		FROM diagnoses
		WHERE user_id = $1 AND updated_at > $2 AND sync_status = $3
		ORDER BY updated_at, id
		LIMIT $4`

	rows, err := r.pool.Query(ctx, query, userID, since, record.SyncStatusSynced, limit)
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
		VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), COALESCE($4, ''), COALESCE($5, ''),
			COALESCE($6, ''), COALESCE($7, ''), COALESCE($8, ''), COALESCE($9, ''), $10, $11, $11, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = COALESCE($2, profiles.first_name),
			last_name = COALESCE($3, profiles.last_name),
			display_name = COALESCE($4, profiles.display_name),
			date_of_birth = COALESCE($5, profiles.date_of_birth),
			gender = COALESCE($6, profiles.gender),
			phone = COALESCE($7, profiles.phone),
			language = COALESCE($8, profiles.language),
			timezone = COALESCE($9, profiles.timezone),
			sync_status = $10,
			synced_at = $11,
			updated_at = $11
		RETURNING ` + profileColumns

	row := r.pool.QueryRow(ctx, query, userID,
		patch.FirstName, patch.LastName, patch.DisplayName, patch.DateOfBirth,
		patch.Gender, patch.Phone, patch.Language, patch.Timezone,
		record.SyncStatusSynced, at)

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
		WHERE user_id = $1 AND updated_at > $2 AND sync_status = $3`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, userID, since, record.SyncStatusSynced))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Вспомогательные методы
func scanActivity(row pgx.Row) (*record.Activity, error) {
	var a record.Activity
	var data []byte

	err := row.Scan(&a.ID, &a.UserID, &a.DeviceID, &a.SessionID, &a.ClientID, &a.Type, &a.Timestamp,
		&a.Duration, &data, &a.SyncStatus, &a.SyncedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Data = data
	normalizeTimes(&a.Timestamp, &a.CreatedAt, &a.UpdatedAt)
	a.SyncedAt = normalizePtr(a.SyncedAt)
	return &a, nil
}

func scanDiagnosis(row pgx.Row) (*record.Diagnosis, error) {
	var d record.Diagnosis
	var data []byte

	err := row.Scan(&d.ID, &d.UserID, &d.DeviceID, &d.DiagnosisID, &d.Code, &d.Description, &d.Severity,
		&data, &d.LastModified, &d.SyncStatus, &d.SyncedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	d.Data = data
	normalizeTimes(&d.LastModified, &d.CreatedAt, &d.UpdatedAt)
	d.SyncedAt = normalizePtr(d.SyncedAt)
	return &d, nil
}

func scanProfile(row pgx.Row) (*record.Profile, error) {
	var p record.Profile

	err := row.Scan(&p.UserID, &p.FirstName, &p.LastName, &p.DisplayName, &p.DateOfBirth, &p.Gender,
		&p.Phone, &p.Language, &p.Timezone, &p.SyncStatus, &p.SyncedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	normalizeTimes(&p.CreatedAt, &p.UpdatedAt)
	p.SyncedAt = normalizePtr(p.SyncedAt)
	return &p, nil
}

// jsonOrNil пустое тело хранится как NULL
func jsonOrNil(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func normalizeTimes(ts ...*time.Time) {
	for _, t := range ts {
		*t = record.NormalizeTime(*t)
	}
}

func normalizePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := record.NormalizeTime(*t)
	return &v
}
