package sync

import (
	"encoding/json"
	"math"
	"time"
)

// SyncType направление синхронизации
type SyncType string

const (
	SyncTypeUpload             SyncType = "upload"
	SyncTypeDownload           SyncType = "download"
	SyncTypeBidirectional      SyncType = "bidirectional"
	SyncTypeConflictResolution SyncType = "conflict_resolution"
)

// Operation режим синхронизации, заявленный клиентом
type Operation string

const (
	OperationFull        Operation = "full_sync"
	OperationIncremental Operation = "incremental_sync"
	OperationDelta       Operation = "delta_sync"
	OperationManual      Operation = "manual_sync"
	OperationAuto        Operation = "auto_sync"
)

// DataType тип синхронизируемых данных
type DataType string

const (
	DataTypeActivities      DataType = "activities"
	DataTypeDiagnoses       DataType = "diagnoses"
	DataTypeUserProfile     DataType = "user_profile"
	DataTypePreferences     DataType = "preferences"
	DataTypeClinicalRecords DataType = "clinical_records"
	DataTypeMediaFiles      DataType = "media_files"
)

// Status состояние сессии синхронизации.
// initiated -> in_progress -> {completed, partial, failed, cancelled}
type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusPartial    Status = "partial"
)

// Terminal сообщает, что статус финальный
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusPartial:
		return true
	}
	return false
}

// Severity важность ошибки сессии
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ConflictType причина конфликта
type ConflictType string

const (
	ConflictVersionMismatch        ConflictType = "version_mismatch"
	ConflictConcurrentModification ConflictType = "concurrent_modification"
	ConflictDataCorruption         ConflictType = "data_corruption"
	ConflictSchemaMismatch         ConflictType = "schema_mismatch"
)

// Resolution решение по конфликту.
// manual_review начальное, остальные финальные.
type Resolution string

const (
	ResolutionServerWins   Resolution = "server_wins"
	ResolutionClientWins   Resolution = "client_wins"
	ResolutionMerge        Resolution = "merge"
	ResolutionManualReview Resolution = "manual_review"
	ResolutionSkip         Resolution = "skip"
)

// Коды ошибок сессии
const (
	CodeUnsupportedDataType = "UNSUPPORTED_DATA_TYPE"
	CodeInvalidPayload      = "INVALID_PAYLOAD"
	CodeStoreError          = "STORE_ERROR"
	CodeItemPanic           = "ITEM_PANIC"
	CodeLedgerError         = "LEDGER_ERROR"
	CodeTimeout             = "SYNC_TIMEOUT"
	CodeDownloadFetchFailed = "DOWNLOAD_FETCH_FAILED"
	CodeDuplicateConflict   = "DUPLICATE_CONFLICT"
)

// Progress счетчики сессии. Processed = Successful + Failed + Skipped.
type Progress struct {
	Total      int `json:"total_items"`
	Processed  int `json:"processed_items"`
	Successful int `json:"successful_items"`
	Failed     int `json:"failed_items"`
	Skipped    int `json:"skipped_items"`
}

// Percentage round(processed/total*100), 0 при пустой сессии
func (p Progress) Percentage() int {
	if p.Total <= 0 {
		return 0
	}
	return int(math.Round(float64(p.Processed) / float64(p.Total) * 100))
}

// TransferStats телеметрия передачи, на корректность не влияет
type TransferStats struct {
	BytesUploaded    int64   `json:"bytes_uploaded"`
	BytesDownloaded  int64   `json:"bytes_downloaded"`
	CompressionRatio float64 `json:"compression_ratio,omitempty"`
}

// DeviceInfo сведения об устройстве, присланные клиентом
type DeviceInfo struct {
	Platform   string `json:"platform,omitempty"`
	OSVersion  string `json:"osVersion,omitempty"`
	AppVersion string `json:"appVersion,omitempty"`
	Model      string `json:"model,omitempty"`
}

// NetworkInfo сведения о соединении, присланные клиентом
type NetworkInfo struct {
	ConnectionType   string  `json:"connectionType,omitempty"`
	LatencyMs        int     `json:"latencyMs,omitempty"`
	BandwidthKbps    int     `json:"bandwidthKbps,omitempty"`
	CompressionRatio float64 `json:"compressionRatio,omitempty"`
}

// SessionError запись в журнале ошибок сессии
type SessionError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	DataType  DataType  `json:"data_type,omitempty"`
	ItemID    string    `json:"item_id,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

// Conflict отложенное решение о записи клиента.
// LocalVersion, ServerVersion и MergedVersion хранятся без разбора.
type Conflict struct {
	ItemID        string          `json:"item_id"`
	DataType      DataType        `json:"data_type"`
	ConflictType  ConflictType    `json:"conflict_type"`
	Resolution    Resolution      `json:"resolution"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy    string          `json:"resolved_by,omitempty"`
	LocalVersion  json.RawMessage `json:"local_version,omitempty"`
	ServerVersion json.RawMessage `json:"server_version,omitempty"`
	MergedVersion json.RawMessage `json:"merged_version,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RetryInfo метаданные повторных попыток
type RetryInfo struct {
	AttemptCount      int        `json:"attempt_count"`
	MaxAttempts       int        `json:"max_attempts"`
	BackoffMultiplier float64    `json:"backoff_multiplier"`
	NextRetryAt       *time.Time `json:"next_retry_at,omitempty"`
	LastRetryAt       *time.Time `json:"last_retry_at,omitempty"`
}

// Session журнал одного вызова upload или download
type Session struct {
	ID              string         `json:"id"`
	UserID          int            `json:"user_id"`
	DeviceID        string         `json:"device_id"`
	ClientSessionID string         `json:"session_id"`
	SyncType        SyncType       `json:"sync_type"`
	Operation       Operation      `json:"operation"`
	DataTypes       []DataType     `json:"data_types"`
	Status          Status         `json:"status"`
	Progress        Progress       `json:"progress"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	Transfer        TransferStats  `json:"transfer"`
	Device          DeviceInfo     `json:"device_info"`
	Network         NetworkInfo    `json:"network_info"`
	Errors          []SessionError `json:"errors,omitempty"`
	Conflicts       []Conflict     `json:"conflicts,omitempty"`
	Retry           RetryInfo      `json:"retry"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Duration completedAt - startedAt, ноль пока сессия не завершена
func (s *Session) Duration() time.Duration {
	if s.CompletedAt == nil || s.StartedAt.IsZero() {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}

// Finalization итог сессии, записываемый одним обновлением
type Finalization struct {
	Status      Status
	CompletedAt time.Time
	Transfer    TransferStats
	NextRetryAt *time.Time
}

// ConflictResolution решение оператора по конфликту
type ConflictResolution struct {
	Resolution    Resolution
	MergedVersion json.RawMessage
	ResolvedBy    string
	ResolvedAt    time.Time
}

// ConflictView неразрешенный конфликт вместе с его сессией
type ConflictView struct {
	SyncID        string    `json:"syncId"`
	SyncTimestamp time.Time `json:"syncTimestamp"`
	Conflict
}

// SessionFilter фильтр списка сессий
type SessionFilter struct {
	Status   Status
	SyncType SyncType
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// ServiceConfig конфигурация сервиса синхронизации
type ServiceConfig struct {
	CallTimeout       time.Duration    `json:"call_timeout"`
	PageSizes         map[DataType]int `json:"page_sizes"`
	MaxAttempts       int              `json:"max_attempts"`
	BackoffMultiplier float64          `json:"backoff_multiplier"`
	RetryBaseDelay    time.Duration    `json:"retry_base_delay"`
	DefaultPageLimit  int              `json:"default_page_limit"`
	MaxPageLimit      int              `json:"max_page_limit"`
}

// DefaultServiceConfig значения по умолчанию
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		CallTimeout: 120 * time.Second,
		PageSizes: map[DataType]int{
			DataTypeActivities:  1000,
			DataTypeDiagnoses:   500,
			DataTypeUserProfile: 1,
		},
		MaxAttempts:       3,
		BackoffMultiplier: 2,
		RetryBaseDelay:    30 * time.Second,
		DefaultPageLimit:  20,
		MaxPageLimit:      100,
	}
}
