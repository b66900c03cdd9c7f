package record

import (
	"encoding/json"
	"time"
)

// SyncStatus итог последней сверки записи с сервером
type SyncStatus string

const (
	SyncStatusPending  SyncStatus = "pending"
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusFailed   SyncStatus = "failed"
	SyncStatusConflict SyncStatus = "conflict"
)

// Activity событие активности, записанное устройством в офлайне.
// Естественный ключ: (UserID, DeviceID, SessionID, Type, Timestamp).
type Activity struct {
	ID         string          `json:"id"`
	UserID     int             `json:"user_id"`
	DeviceID   string          `json:"device_id"`
	SessionID  string          `json:"session_id"`
	ClientID   string          `json:"client_id,omitempty"`
	Type       string          `json:"type"`
	Timestamp  time.Time       `json:"timestamp"`
	Duration   int             `json:"duration,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	SyncStatus SyncStatus      `json:"sync_status"`
	SyncedAt   *time.Time      `json:"synced_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ActivityKey естественный ключ активности для идемпотентной вставки
type ActivityKey struct {
	UserID    int
	DeviceID  string
	SessionID string
	Type      string
	Timestamp time.Time
}

// Key возвращает естественный ключ активности
func (a *Activity) Key() ActivityKey {
	return ActivityKey{
		UserID:    a.UserID,
		DeviceID:  a.DeviceID,
		SessionID: a.SessionID,
		Type:      a.Type,
		Timestamp: a.Timestamp,
	}
}

// Diagnosis клинический диагноз. Ключ конфликта: (UserID, DiagnosisID).
// Содержимое хранится как есть в Data и движком не разбирается.
type Diagnosis struct {
	ID           string          `json:"id"`
	UserID       int             `json:"user_id"`
	DeviceID     string          `json:"device_id"`
	DiagnosisID  string          `json:"diagnosis_id"`
	Code         string          `json:"code,omitempty"`
	Description  string          `json:"description,omitempty"`
	Severity     string          `json:"severity,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	LastModified time.Time       `json:"last_modified"`
	SyncStatus   SyncStatus      `json:"sync_status"`
	SyncedAt     *time.Time      `json:"synced_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Profile профиль пользователя. Не версионируется, последний писатель выигрывает.
type Profile struct {
	UserID      int        `json:"user_id"`
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	DateOfBirth string     `json:"date_of_birth,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Language    string     `json:"language,omitempty"`
	Timezone    string     `json:"timezone,omitempty"`
	SyncStatus  SyncStatus `json:"sync_status"`
	SyncedAt    *time.Time `json:"synced_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ProfilePatch набор разрешенных полей профиля; nil означает "не менять"
type ProfilePatch struct {
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
	DateOfBirth *string `json:"dateOfBirth,omitempty"`
	Gender      *string `json:"gender,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Language    *string `json:"language,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// Empty сообщает, что патч не содержит ни одного разрешенного поля
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.DisplayName == nil &&
		p.DateOfBirth == nil && p.Gender == nil && p.Phone == nil &&
		p.Language == nil && p.Timezone == nil
}

// NormalizeTime приводит метку времени к UTC с точностью до микросекунд,
// чтобы сравнение на равенство одинаково работало во всех хранилищах.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
