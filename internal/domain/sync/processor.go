package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"healthsync/internal/domain/record"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// maxSaveAttempts сколько раз перечитывать диагноз, если compare-and-swap проиграл гонку
const maxSaveAttempts = 3

// Item одна запись клиента вместе с контекстом вызова
type Item struct {
	UserID          int
	DeviceID        string
	ClientSessionID string
	DataType        DataType
	ItemID          string
	Payload         json.RawMessage
}

// OutcomeKind итог обработки записи, не являющийся ошибкой
type OutcomeKind int

const (
	OutcomeApplied OutcomeKind = iota
	OutcomeConflict
)

// Outcome результат обработки одной записи
type Outcome struct {
	Kind     OutcomeKind
	ServerID string
	Conflict *Conflict
}

// Processor стратегия сохранения записей одного типа данных.
// Ошибка относится только к этой записи.
type Processor interface {
	Process(ctx context.Context, item Item) (Outcome, error)
}

// UnsupportedDataTypeError для типа данных нет обработчика
type UnsupportedDataTypeError struct {
	DataType DataType
}

func (e *UnsupportedDataTypeError) Error() string {
	return "Unsupported data type: " + string(e.DataType)
}

func (e *UnsupportedDataTypeError) Is(target error) bool {
	return target == ErrUnsupportedDataType
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ActivityProcessor идемпотентная вставка: повтор с тем же
// (пользователь, устройство, сессия, тип, время) возвращает существующую запись.
type ActivityProcessor struct {
	store record.Store
	now   func() time.Time
}

func NewActivityProcessor(store record.Store, now func() time.Time) *ActivityProcessor {
	return &ActivityProcessor{store: store, now: now}
}

type activityPayload struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Duration  int             `json:"duration"`
	Data      json.RawMessage `json:"data"`
}

func (p *ActivityProcessor) Process(ctx context.Context, item Item) (Outcome, error) {
	var payload activityPayload
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", record.ErrInvalidPayload, err)
	}

	key := record.ActivityKey{
		UserID:    item.UserID,
		DeviceID:  item.DeviceID,
		SessionID: item.ClientSessionID,
		Type:      payload.Type,
		Timestamp: record.NormalizeTime(payload.Timestamp),
	}

	existing, err := p.store.FindActivity(ctx, key)
	if err == nil {
		return Outcome{Kind: OutcomeApplied, ServerID: existing.ID}, nil
	}
	if !errors.Is(err, record.ErrNotFound) {
		return Outcome{}, fmt.Errorf("find activity: %w", err)
	}

	now := p.now()
	activity := &record.Activity{
		ID:         newID(),
		UserID:     key.UserID,
		DeviceID:   key.DeviceID,
		SessionID:  key.SessionID,
		ClientID:   payload.ID,
		Type:       key.Type,
		Timestamp:  key.Timestamp,
		Duration:   payload.Duration,
		Data:       payload.Data,
		SyncStatus: record.SyncStatusSynced,
		SyncedAt:   &now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	saved, _, err := p.store.InsertActivity(ctx, activity)
	if err != nil {
		return Outcome{}, fmt.Errorf("insert activity: %w", err)
	}

	return Outcome{Kind: OutcomeApplied, ServerID: saved.ID}, nil
}

// DiagnosisProcessor применяет Resolve к хранимой версии диагноза
type DiagnosisProcessor struct {
	store record.Store
	now   func() time.Time
}

func NewDiagnosisProcessor(store record.Store, now func() time.Time) *DiagnosisProcessor {
	return &DiagnosisProcessor{store: store, now: now}
}

type diagnosisPayload struct {
	DiagnosisID  string    `json:"diagnosisId"`
	Code         string    `json:"code"`
	Description  string    `json:"description"`
	Severity     string    `json:"severity"`
	LastModified time.Time `json:"lastModified"`
}

func (p *DiagnosisProcessor) Process(ctx context.Context, item Item) (Outcome, error) {
	var payload diagnosisPayload
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", record.ErrInvalidPayload, err)
	}
	if payload.DiagnosisID == "" {
		return Outcome{}, fmt.Errorf("%w: diagnosisId is required", record.ErrInvalidPayload)
	}

	incoming := record.NormalizeTime(payload.LastModified)

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		stored, err := p.store.FindDiagnosis(ctx, item.UserID, payload.DiagnosisID)
		if err != nil && !errors.Is(err, record.ErrNotFound) {
			return Outcome{}, fmt.Errorf("find diagnosis: %w", err)
		}

		var storedAt *time.Time
		if stored != nil {
			storedAt = &stored.LastModified
		}

		switch Resolve(incoming, storedAt) {
		case DecisionKeepExisting:
			return Outcome{Kind: OutcomeApplied, ServerID: stored.ID}, nil
		case DecisionManualReview:
			return p.conflict(item, stored)
		}

		now := p.now()
		diagnosis := &record.Diagnosis{
			ID:           newID(),
			UserID:       item.UserID,
			DeviceID:     item.DeviceID,
			DiagnosisID:  payload.DiagnosisID,
			Code:         payload.Code,
			Description:  payload.Description,
			Severity:     payload.Severity,
			Data:         item.Payload,
			LastModified: incoming,
			SyncStatus:   record.SyncStatusSynced,
			SyncedAt:     &now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if stored != nil {
			diagnosis.ID = stored.ID
			diagnosis.CreatedAt = stored.CreatedAt
		}

		err = p.store.SaveDiagnosis(ctx, diagnosis, storedAt)
		if errors.Is(err, record.ErrStale) {
			continue
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("save diagnosis: %w", err)
		}

		return Outcome{Kind: OutcomeApplied, ServerID: diagnosis.ID}, nil
	}

	return Outcome{}, fmt.Errorf("save diagnosis %s: %w", payload.DiagnosisID, record.ErrStale)
}

func (p *DiagnosisProcessor) conflict(item Item, stored *record.Diagnosis) (Outcome, error) {
	server, err := json.Marshal(stored)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode server version: %w", err)
	}

	return Outcome{
		Kind:     OutcomeConflict,
		ServerID: stored.ID,
		Conflict: &Conflict{
			ItemID:        item.ItemID,
			DataType:      item.DataType,
			ConflictType:  ConflictConcurrentModification,
			Resolution:    ResolutionManualReview,
			LocalVersion:  item.Payload,
			ServerVersion: server,
			CreatedAt:     p.now(),
		},
	}, nil
}

// ProfileProcessor применяет только разрешенные поля; версий нет, последний писатель выигрывает
type ProfileProcessor struct {
	store record.Store
	now   func() time.Time
}

func NewProfileProcessor(store record.Store, now func() time.Time) *ProfileProcessor {
	return &ProfileProcessor{store: store, now: now}
}

func (p *ProfileProcessor) Process(ctx context.Context, item Item) (Outcome, error) {
	var patch record.ProfilePatch
	if err := json.Unmarshal(item.Payload, &patch); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", record.ErrInvalidPayload, err)
	}

	serverID := strconv.Itoa(item.UserID)
	if patch.Empty() {
		return Outcome{Kind: OutcomeApplied, ServerID: serverID}, nil
	}

	for _, field := range []**string{
		&patch.FirstName, &patch.LastName, &patch.DisplayName, &patch.DateOfBirth,
		&patch.Gender, &patch.Phone, &patch.Language, &patch.Timezone,
	} {
		if *field != nil {
			v := norm.NFC.String(strings.TrimSpace(**field))
			*field = &v
		}
	}

	if _, err := p.store.PatchProfile(ctx, item.UserID, patch, p.now()); err != nil {
		return Outcome{}, fmt.Errorf("patch profile: %w", err)
	}

	return Outcome{Kind: OutcomeApplied, ServerID: serverID}, nil
}
