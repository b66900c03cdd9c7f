package sync

import (
	"encoding/json"
	"time"
)

// DTO (Data Transfer Objects) для API синхронизации

// UploadRequest пакет записей, накопленных устройством
type UploadRequest struct {
	SyncType    SyncType                       `json:"syncType,omitempty" enum:"upload,download,bidirectional,conflict_resolution" default:"upload"`
	Operation   Operation                      `json:"operation,omitempty" enum:"full_sync,incremental_sync,delta_sync,manual_sync,auto_sync" default:"incremental_sync"`
	DataTypes   []DataType                     `json:"dataTypes" minItems:"1" enum:"activities,diagnoses,user_profile,preferences,clinical_records,media_files"`
	Data        map[DataType][]json.RawMessage `json:"data"`
	SessionID   string                         `json:"sessionId,omitempty" maxLength:"128"`
	DeviceInfo  DeviceInfo                     `json:"deviceInfo,omitempty" required:"false"`
	NetworkInfo NetworkInfo                    `json:"networkInfo,omitempty" required:"false"`
}

// UploadResponse итог загрузки с результатом по каждой записи
type UploadResponse struct {
	SyncID  string        `json:"syncId"`
	Status  Status        `json:"status"`
	Results UploadResults `json:"results"`
	Details UploadDetails `json:"details"`
}

type UploadResults struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Conflicts  int `json:"conflicts"`
}

type UploadDetails struct {
	Successful []SuccessfulItem `json:"successful"`
	Failed     []FailedItem     `json:"failed"`
	Conflicts  []ConflictedItem `json:"conflicts"`
}

type SuccessfulItem struct {
	ItemID   string   `json:"itemId"`
	DataType DataType `json:"dataType"`
	ServerID string   `json:"serverId"`
}

type FailedItem struct {
	ItemID   string   `json:"itemId"`
	DataType DataType `json:"dataType"`
	Error    string   `json:"error"`
}

type ConflictedItem struct {
	ItemID   string       `json:"itemId"`
	DataType DataType     `json:"dataType"`
	Reason   ConflictType `json:"reason"`
}

// DownloadRequest запрос изменений после водяного знака
type DownloadRequest struct {
	SyncType          SyncType    `json:"syncType,omitempty" enum:"upload,download,bidirectional,conflict_resolution" default:"download"`
	Operation         Operation   `json:"operation,omitempty" enum:"full_sync,incremental_sync,delta_sync,manual_sync,auto_sync" default:"incremental_sync"`
	DataTypes         []DataType  `json:"dataTypes" minItems:"1" enum:"activities,diagnoses,user_profile,preferences,clinical_records,media_files"`
	LastSyncTimestamp *time.Time  `json:"lastSyncTimestamp,omitempty" required:"false" format:"date-time"`
	SessionID         string      `json:"sessionId,omitempty" maxLength:"128"`
	DeviceInfo        DeviceInfo  `json:"deviceInfo,omitempty" required:"false"`
	NetworkInfo       NetworkInfo `json:"networkInfo,omitempty" required:"false"`
}

// DownloadResponse записи, измененные после водяного знака, по типам
type DownloadResponse struct {
	SyncID    string           `json:"syncId"`
	Status    Status           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Data      map[DataType]any `json:"data"`
	Summary   DownloadSummary  `json:"summary"`
}

type DownloadSummary struct {
	TotalItems int        `json:"totalItems"`
	DataTypes  []DataType `json:"dataTypes"`
	// HasMore выборка обрезана размером страницы, timestamp указывает, откуда продолжить
	HasMore bool `json:"hasMore"`
}

// StatusQuery фильтры списка сессий
type StatusQuery struct {
	Page     int
	Limit    int
	From     *time.Time
	To       *time.Time
	Status   Status
	SyncType SyncType
}

// StatusResponse страница сессий и сводка последней завершенной
type StatusResponse struct {
	Sessions   []*Session      `json:"sessions"`
	Pagination Pagination      `json:"pagination"`
	LastSync   *SessionSummary `json:"lastSync,omitempty"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type SessionSummary struct {
	SyncID      string     `json:"syncId"`
	SyncType    SyncType   `json:"syncType"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	DurationMs  int64      `json:"durationMs"`
	Progress    Progress   `json:"progress"`
	Percentage  int        `json:"percentage"`
}

// ConflictsQuery постраничный запрос неразрешенных конфликтов
type ConflictsQuery struct {
	Page  int
	Limit int
}

// ConflictsResponse неразрешенные конфликты устройства
type ConflictsResponse struct {
	Conflicts  []ConflictItem `json:"conflicts"`
	Pagination Pagination     `json:"pagination"`
}

type ConflictItem struct {
	SyncID        string          `json:"syncId"`
	SyncTimestamp time.Time       `json:"syncTimestamp"`
	ItemID        string          `json:"itemId"`
	DataType      DataType        `json:"dataType"`
	ConflictType  ConflictType    `json:"conflictType"`
	LocalVersion  json.RawMessage `json:"localVersion,omitempty"`
	ServerVersion json.RawMessage `json:"serverVersion,omitempty"`
}

// ResolveConflictRequest решение оператора по конфликту
type ResolveConflictRequest struct {
	SyncID         string          `json:"syncId" minLength:"1"`
	ConflictItemID string          `json:"conflictItemId" minLength:"1"`
	Resolution     Resolution      `json:"resolution" enum:"server_wins,client_wins,merge,skip"`
	MergedData     json.RawMessage `json:"mergedData,omitempty" required:"false"`
}

// ResolveConflictResponse подтверждение нового решения
type ResolveConflictResponse struct {
	SyncID     string     `json:"syncId"`
	ItemID     string     `json:"itemId"`
	Resolution Resolution `json:"resolution"`
	ResolvedAt time.Time  `json:"resolvedAt"`
}
