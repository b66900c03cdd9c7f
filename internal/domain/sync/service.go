package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"healthsync/internal/domain/record"
	"healthsync/internal/domain/record/schema"
	"healthsync/internal/domain/session"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/exp/slog"
)

// Servicer интерфейс сервиса синхронизации
type Servicer interface {
	// Upload применяет пакет записей клиента и возвращает итог по каждой записи
	Upload(ctx context.Context, principal session.Principal, req UploadRequest) (*UploadResponse, error)

	// Download возвращает записи, измененные после водяного знака
	Download(ctx context.Context, principal session.Principal, req DownloadRequest) (*DownloadResponse, error)

	// GetStatus возвращает страницу сессий и сводку последней завершенной
	GetStatus(ctx context.Context, principal session.Principal, q StatusQuery) (*StatusResponse, error)

	// GetSession возвращает сессию с ошибками и конфликтами
	GetSession(ctx context.Context, principal session.Principal, syncID string) (*Session, error)

	// GetConflicts возвращает неразрешенные конфликты устройства
	GetConflicts(ctx context.Context, principal session.Principal, q ConflictsQuery) (*ConflictsResponse, error)

	// ResolveConflict фиксирует решение оператора в журнале сессии
	ResolveConflict(ctx context.Context, principal session.Principal, req ResolveConflictRequest) (*ResolveConflictResponse, error)
}

// PayloadValidator проверка записи клиента до обработки
type PayloadValidator interface {
	Validate(dataType string, payload []byte) error
}

// Service реализация сервиса синхронизации
type Service struct {
	ledger     Ledger
	store      record.Store
	processors map[DataType]Processor
	validator  PayloadValidator
	log        *slog.Logger
	config     *ServiceConfig
	tracer     trace.Tracer
	now        func() time.Time
}

// Option настройка сервиса
type Option func(*Service)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithTracer включает трассировку вызовов
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithProcessor регистрирует обработчик для типа данных
func WithProcessor(dataType DataType, p Processor) Option {
	return func(s *Service) {
		s.processors[dataType] = p
	}
}

// WithValidator подменяет проверку записей
func WithValidator(v PayloadValidator) Option {
	return func(s *Service) {
		s.validator = v
	}
}

// NewService создает новый сервис синхронизации
func NewService(ledger Ledger, store record.Store, log *slog.Logger, config *ServiceConfig, opts ...Option) *Service {
	if config == nil {
		config = DefaultServiceConfig()
	}

	s := &Service{
		ledger:     ledger,
		store:      store,
		processors: make(map[DataType]Processor),
		log:        log.With("component", "sync_service"),
		config:     config,
		tracer:     noop.NewTracerProvider().Tracer("healthsync/sync"),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	clock := func() time.Time { return s.now().UTC() }
	defaults := map[DataType]Processor{
		DataTypeActivities:  NewActivityProcessor(store, clock),
		DataTypeDiagnoses:   NewDiagnosisProcessor(store, clock),
		DataTypeUserProfile: NewProfileProcessor(store, clock),
	}
	for dt, p := range defaults {
		if _, ok := s.processors[dt]; !ok {
			s.processors[dt] = p
		}
	}

	if s.validator == nil {
		s.validator = schema.MustNew()
	}

	return s
}

// uploadRun локальный учет одного вызова upload
type uploadRun struct {
	progress  Progress
	details   UploadDetails
	bytes     int64
	retryable bool
}

// Upload обрабатывает пакет записей по одной. Ошибка записи не прерывает
// обработку остальных, ошибка журнала переводит сессию в failed.
func (s *Service) Upload(ctx context.Context, principal session.Principal, req UploadRequest) (*UploadResponse, error) {
	dataTypes, err := normalizeDataTypes(req.DataTypes)
	if err != nil {
		return nil, err
	}
	if req.SyncType == "" {
		req.SyncType = SyncTypeUpload
	}
	if req.Operation == "" {
		req.Operation = OperationIncremental
	}

	ctx, span := s.tracer.Start(ctx, "sync.upload", trace.WithAttributes(
		attribute.Int("user.id", principal.UserID),
		attribute.String("device.id", principal.DeviceID),
	))
	defer span.End()

	sess := s.newSession(principal, req.SyncType, req.Operation, dataTypes, req.SessionID, req.DeviceInfo, req.NetworkInfo)
	for _, dt := range dataTypes {
		sess.Progress.Total += len(req.Data[dt])
	}
	s.applyRetryHistory(ctx, sess)

	if err := s.ledger.Create(ctx, sess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create session")
		return nil, fmt.Errorf("create sync session: %w", err)
	}

	log := s.log.With("sync_id", sess.ID, "user_id", principal.UserID, "device_id", principal.DeviceID)
	log.Info("upload started", "items", sess.Progress.Total, "data_types", dataTypes)

	// журнал пишется и после отмены вызова, иначе сессия останется in_progress
	ledgerCtx := context.WithoutCancel(ctx)
	callCtx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()

	run := &uploadRun{
		details: UploadDetails{
			Successful: []SuccessfulItem{},
			Failed:     []FailedItem{},
			Conflicts:  []ConflictedItem{},
		},
	}

	status := s.runUpload(callCtx, ledgerCtx, sess, dataTypes, req.Data, run, log)

	fin := Finalization{
		Status:      status,
		CompletedAt: s.now().UTC(),
		Transfer: TransferStats{
			BytesUploaded:    run.bytes,
			CompressionRatio: req.NetworkInfo.CompressionRatio,
		},
	}
	fin.NextRetryAt = s.nextRetry(sess, fin, run.retryable)

	if err := s.ledger.Finalize(ledgerCtx, sess.ID, fin); err != nil {
		log.Error("failed to finalize session", "status", status, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalize session")
		return nil, fmt.Errorf("finalize sync session: %w", err)
	}

	span.SetAttributes(
		attribute.String("sync.id", sess.ID),
		attribute.String("sync.status", string(status)),
		attribute.Int("sync.successful", run.progress.Successful),
		attribute.Int("sync.failed", run.progress.Failed),
		attribute.Int("sync.conflicts", run.progress.Skipped),
	)
	log.Info("upload finished",
		"status", status,
		"successful", run.progress.Successful,
		"failed", run.progress.Failed,
		"conflicts", run.progress.Skipped,
		"duration", fin.CompletedAt.Sub(sess.StartedAt),
	)

	return &UploadResponse{
		SyncID: sess.ID,
		Status: status,
		Results: UploadResults{
			Successful: run.progress.Successful,
			Failed:     run.progress.Failed,
			Conflicts:  run.progress.Skipped,
		},
		Details: run.details,
	}, nil
}

func (s *Service) runUpload(ctx, ledgerCtx context.Context, sess *Session, dataTypes []DataType,
	data map[DataType][]json.RawMessage, run *uploadRun, log *slog.Logger) Status {
	if err := s.ledger.MarkInProgress(ledgerCtx, sess.ID); err != nil {
		return s.failSession(ledgerCtx, sess, run, "mark session in progress", err, log)
	}

	for _, dt := range dataTypes {
		for i, raw := range data[dt] {
			if err := ctx.Err(); err != nil {
				return s.interrupted(ledgerCtx, sess, run, err, log)
			}

			item := Item{
				UserID:          sess.UserID,
				DeviceID:        sess.DeviceID,
				ClientSessionID: sess.ClientSessionID,
				DataType:        dt,
				ItemID:          itemID(dt, i, raw),
				Payload:         raw,
			}
			run.bytes += int64(len(raw))

			outcome, err := s.processItem(ctx, item)
			if err != nil && ctx.Err() != nil {
				// запись не засчитывается: вызов прерван, а не запись ошибочна
				return s.interrupted(ledgerCtx, sess, run, ctx.Err(), log)
			}

			delta := Progress{Processed: 1}
			switch {
			case err != nil:
				delta.Failed = 1
				if err := s.recordItemFailure(ledgerCtx, sess, run, item, err, log); err != nil {
					run.progress.add(delta)
					return s.failSession(ledgerCtx, sess, run, "append item error", err, log)
				}
			case outcome.Kind == OutcomeConflict:
				err := s.ledger.AppendConflict(ledgerCtx, sess.ID, *outcome.Conflict)
				switch {
				case errors.Is(err, ErrDuplicateConflict):
					// вторая версия той же записи в пакете: конфликт уже ждет решения
					delta.Failed = 1
					if err := s.recordItemFailure(ledgerCtx, sess, run, item, err, log); err != nil {
						run.progress.add(delta)
						return s.failSession(ledgerCtx, sess, run, "append item error", err, log)
					}
				case err != nil:
					delta.Skipped = 1
					run.progress.add(delta)
					return s.failSession(ledgerCtx, sess, run, "append conflict", err, log)
				default:
					delta.Skipped = 1
					run.details.Conflicts = append(run.details.Conflicts, ConflictedItem{
						ItemID:   item.ItemID,
						DataType: dt,
						Reason:   outcome.Conflict.ConflictType,
					})
					log.Info("item deferred to manual review", "item_id", item.ItemID, "data_type", dt)
				}
			default:
				delta.Successful = 1
				run.details.Successful = append(run.details.Successful, SuccessfulItem{
					ItemID:   item.ItemID,
					DataType: dt,
					ServerID: outcome.ServerID,
				})
			}

			run.progress.add(delta)
			if err := s.ledger.UpdateProgress(ledgerCtx, sess.ID, delta); err != nil {
				return s.failSession(ledgerCtx, sess, run, "update progress", err, log)
			}
		}
	}

	if run.progress.Failed == 0 {
		return StatusCompleted
	}
	return StatusPartial
}

// recordItemFailure учитывает ошибку записи в ответе и журнале сессии
func (s *Service) recordItemFailure(ctx context.Context, sess *Session, run *uploadRun, item Item, cause error, log *slog.Logger) error {
	sessErr := itemError(item, cause, s.now().UTC())
	run.retryable = run.retryable || sessErr.Retryable
	run.details.Failed = append(run.details.Failed, FailedItem{
		ItemID:   item.ItemID,
		DataType: item.DataType,
		Error:    cause.Error(),
	})
	log.Warn("item failed", "item_id", item.ItemID, "data_type", item.DataType, "error", cause)
	return s.ledger.AppendError(ctx, sess.ID, sessErr)
}

// processItem граница изоляции записи: ошибки и паники остаются здесь
func (s *Service) processItem(ctx context.Context, item Item) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &itemPanic{value: r}
		}
	}()

	p, ok := s.processors[item.DataType]
	if !ok {
		return Outcome{}, &UnsupportedDataTypeError{DataType: item.DataType}
	}

	if err := s.validator.Validate(string(item.DataType), item.Payload); err != nil {
		return Outcome{}, err
	}

	return p.Process(ctx, item)
}

type itemPanic struct {
	value any
}

func (p *itemPanic) Error() string {
	return fmt.Sprintf("panic while processing item: %v", p.value)
}

// itemError классифицирует ошибку записи для журнала сессии
func itemError(item Item, err error, at time.Time) SessionError {
	e := SessionError{
		Code:      CodeStoreError,
		Message:   err.Error(),
		Severity:  SeverityMedium,
		DataType:  item.DataType,
		ItemID:    item.ItemID,
		Retryable: true,
		Timestamp: at,
	}

	var panicErr *itemPanic
	switch {
	case errors.Is(err, ErrUnsupportedDataType):
		e.Code = CodeUnsupportedDataType
		e.Retryable = false
	case errors.Is(err, record.ErrInvalidPayload):
		e.Code = CodeInvalidPayload
		e.Retryable = false
	case errors.Is(err, ErrDuplicateConflict):
		e.Code = CodeDuplicateConflict
	case errors.As(err, &panicErr):
		e.Code = CodeItemPanic
		e.Severity = SeverityHigh
		e.Retryable = false
	}

	return e
}

// failSession ошибка уровня сессии: запись в журнал с высокой важностью и статус failed
func (s *Service) failSession(ctx context.Context, sess *Session, run *uploadRun, op string, cause error, log *slog.Logger) Status {
	log.Error("sync session failed", "op", op, "error", cause)
	run.retryable = true

	sessErr := SessionError{
		Code:      CodeLedgerError,
		Message:   fmt.Sprintf("%s: %v", op, cause),
		Severity:  SeverityHigh,
		Retryable: true,
		Timestamp: s.now().UTC(),
	}
	if err := s.ledger.AppendError(ctx, sess.ID, sessErr); err != nil {
		log.Error("failed to record session error", "error", err)
	}

	return StatusFailed
}

// interrupted вызов отменен или истек таймаут
func (s *Service) interrupted(ctx context.Context, sess *Session, run *uploadRun, cause error, log *slog.Logger) Status {
	if !errors.Is(cause, context.DeadlineExceeded) {
		log.Warn("sync call cancelled", "processed", run.progress.Processed)
		return StatusCancelled
	}

	log.Error("sync call timed out", "timeout", s.config.CallTimeout, "processed", run.progress.Processed)
	run.retryable = true

	sessErr := SessionError{
		Code:      CodeTimeout,
		Message:   fmt.Sprintf("sync call exceeded %s", s.config.CallTimeout),
		Severity:  SeverityHigh,
		Retryable: true,
		Timestamp: s.now().UTC(),
	}
	if err := s.ledger.AppendError(ctx, sess.ID, sessErr); err != nil {
		log.Error("failed to record timeout", "error", err)
	}

	return StatusFailed
}

// Download собирает изменения по каждому типу. Ошибка одного типа
// записывается в журнал и не мешает остальным.
func (s *Service) Download(ctx context.Context, principal session.Principal, req DownloadRequest) (*DownloadResponse, error) {
	dataTypes, err := normalizeDataTypes(req.DataTypes)
	if err != nil {
		return nil, err
	}
	if req.SyncType == "" {
		req.SyncType = SyncTypeDownload
	}
	if req.Operation == "" {
		req.Operation = OperationIncremental
	}

	watermark := time.Unix(0, 0).UTC()
	if req.LastSyncTimestamp != nil {
		watermark = record.NormalizeTime(*req.LastSyncTimestamp)
	}

	ctx, span := s.tracer.Start(ctx, "sync.download", trace.WithAttributes(
		attribute.Int("user.id", principal.UserID),
		attribute.String("device.id", principal.DeviceID),
		attribute.String("sync.watermark", watermark.Format(time.RFC3339Nano)),
	))
	defer span.End()

	sess := s.newSession(principal, req.SyncType, req.Operation, dataTypes, req.SessionID, req.DeviceInfo, req.NetworkInfo)
	if err := s.ledger.Create(ctx, sess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create session")
		return nil, fmt.Errorf("create sync session: %w", err)
	}

	log := s.log.With("sync_id", sess.ID, "user_id", principal.UserID, "device_id", principal.DeviceID)

	ledgerCtx := context.WithoutCancel(ctx)
	callCtx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()

	run := &uploadRun{}
	data := make(map[DataType]any, len(dataTypes))
	fetched := make([]DataType, 0, len(dataTypes))
	status := StatusCompleted
	// next водяной знак продолжения, если какой-то тип уперся в размер страницы
	var next *time.Time

	if err := s.ledger.MarkInProgress(ledgerCtx, sess.ID); err != nil {
		status = s.failSession(ledgerCtx, sess, run, "mark session in progress", err, log)
	}

	for _, dt := range dataTypes {
		if status != StatusCompleted {
			break
		}
		if err := callCtx.Err(); err != nil {
			status = s.interrupted(ledgerCtx, sess, run, err, log)
			break
		}

		p, err := s.fetch(callCtx, principal.UserID, dt, watermark)
		if err != nil {
			if callCtx.Err() != nil {
				status = s.interrupted(ledgerCtx, sess, run, callCtx.Err(), log)
				break
			}

			log.Warn("download fetch failed", "data_type", dt, "error", err)
			sessErr := SessionError{
				Code:      CodeDownloadFetchFailed,
				Message:   err.Error(),
				Severity:  SeverityMedium,
				DataType:  dt,
				Retryable: true,
				Timestamp: s.now().UTC(),
			}
			if errors.Is(err, ErrUnsupportedDataType) {
				sessErr.Code = CodeUnsupportedDataType
				sessErr.Retryable = false
			}
			if err := s.ledger.AppendError(ledgerCtx, sess.ID, sessErr); err != nil {
				status = s.failSession(ledgerCtx, sess, run, "append fetch error", err, log)
			}
			continue
		}

		data[dt] = p.items
		fetched = append(fetched, dt)
		if p.more && (next == nil || p.last.Before(*next)) {
			last := p.last
			next = &last
		}
		n := p.n
		if n == 0 {
			continue
		}

		delta := Progress{Total: n, Processed: n, Successful: n}
		run.progress.add(delta)
		if err := s.ledger.UpdateProgress(ledgerCtx, sess.ID, delta); err != nil {
			status = s.failSession(ledgerCtx, sess, run, "update progress", err, log)
		}
	}

	if encoded, err := json.Marshal(data); err == nil {
		run.bytes = int64(len(encoded))
	}

	fin := Finalization{
		Status:      status,
		CompletedAt: s.now().UTC(),
		Transfer: TransferStats{
			BytesDownloaded:  run.bytes,
			CompressionRatio: req.NetworkInfo.CompressionRatio,
		},
	}
	fin.NextRetryAt = s.nextRetry(sess, fin, run.retryable)

	if err := s.ledger.Finalize(ledgerCtx, sess.ID, fin); err != nil {
		log.Error("failed to finalize session", "status", status, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalize session")
		return nil, fmt.Errorf("finalize sync session: %w", err)
	}

	span.SetAttributes(
		attribute.String("sync.id", sess.ID),
		attribute.String("sync.status", string(status)),
		attribute.Int("sync.items", run.progress.Successful),
	)
	log.Info("download finished", "status", status, "items", run.progress.Successful, "watermark", watermark)

	// клиент использует timestamp как следующий водяной знак; берется момент
	// до выборки, чтобы не потерять записи, измененные во время нее.
	// Если выборка обрезана, знак отодвигается к самой ранней границе страниц.
	timestamp := sess.StartedAt
	if next != nil {
		timestamp = *next
	}

	return &DownloadResponse{
		SyncID:    sess.ID,
		Status:    status,
		Timestamp: timestamp,
		Data:      data,
		Summary: DownloadSummary{
			TotalItems: run.progress.Successful,
			DataTypes:  fetched,
			HasMore:    next != nil,
		},
	}, nil
}

// page выборка одного типа; при more last это updatedAt последней отданной записи
type page struct {
	items any
	n     int
	more  bool
	last  time.Time
}

// fetch выбирает записи одного типа со строгим сравнением updatedAt > since
func (s *Service) fetch(ctx context.Context, userID int, dt DataType, since time.Time) (page, error) {
	limit := s.config.PageSizes[dt]

	switch dt {
	case DataTypeActivities:
		items, more, err := fetchPage(limit, func(a record.Activity) time.Time { return a.UpdatedAt },
			func(limit int) ([]record.Activity, error) {
				return s.store.ActivitiesSince(ctx, userID, since, limit)
			})
		if err != nil {
			return page{}, fmt.Errorf("fetch activities: %w", err)
		}
		if items == nil {
			items = []record.Activity{}
		}
		p := page{items: items, n: len(items), more: more}
		if more {
			p.last = items[len(items)-1].UpdatedAt
		}
		return p, nil
	case DataTypeDiagnoses:
		items, more, err := fetchPage(limit, func(d record.Diagnosis) time.Time { return d.UpdatedAt },
			func(limit int) ([]record.Diagnosis, error) {
				return s.store.DiagnosesSince(ctx, userID, since, limit)
			})
		if err != nil {
			return page{}, fmt.Errorf("fetch diagnoses: %w", err)
		}
		if items == nil {
			items = []record.Diagnosis{}
		}
		p := page{items: items, n: len(items), more: more}
		if more {
			p.last = items[len(items)-1].UpdatedAt
		}
		return p, nil
	case DataTypeUserProfile:
		profile, err := s.store.ProfileSince(ctx, userID, since)
		if err != nil {
			return page{}, fmt.Errorf("fetch profile: %w", err)
		}
		if profile == nil {
			return page{items: []record.Profile{}}, nil
		}
		return page{items: []record.Profile{*profile}, n: 1}, nil
	default:
		return page{}, &UnsupportedDataTypeError{DataType: dt}
	}
}

// fetchPage читает страницу, упорядоченную по updatedAt. Если страница полная,
// хвост с одинаковым updatedAt отрезается: следующий запрос с since = updatedAt
// последней оставшейся записи вернет его целиком. Страница, целиком состоящая из
// одного updatedAt, перечитывается с удвоенным лимитом.
func fetchPage[T any](limit int, updatedAt func(T) time.Time, query func(limit int) ([]T, error)) ([]T, bool, error) {
	for {
		items, err := query(limit)
		if err != nil {
			return nil, false, err
		}
		if limit <= 0 || len(items) < limit {
			return items, false, nil
		}

		tail := updatedAt(items[len(items)-1])
		cut := len(items)
		for cut > 0 && updatedAt(items[cut-1]).Equal(tail) {
			cut--
		}
		if cut > 0 {
			return items[:cut], true, nil
		}
		limit *= 2
	}
}

func (s *Service) newSession(principal session.Principal, syncType SyncType, op Operation, dataTypes []DataType,
	clientSessionID string, device DeviceInfo, network NetworkInfo) *Session {
	now := s.now().UTC()
	return &Session{
		ID:              newID(),
		UserID:          principal.UserID,
		DeviceID:        principal.DeviceID,
		ClientSessionID: clientSessionID,
		SyncType:        syncType,
		Operation:       op,
		DataTypes:       dataTypes,
		Status:          StatusInitiated,
		StartedAt:       now,
		Device:          device,
		Network:         network,
		Retry: RetryInfo{
			AttemptCount:      1,
			MaxAttempts:       max(s.config.MaxAttempts, 1),
			BackoffMultiplier: s.config.BackoffMultiplier,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// applyRetryHistory повторная загрузка с тем же клиентским идентификатором сессии
// считается следующей попыткой
func (s *Service) applyRetryHistory(ctx context.Context, sess *Session) {
	if sess.ClientSessionID == "" {
		return
	}

	prev, err := s.ledger.FindLatestByClientSession(ctx, sess.UserID, sess.DeviceID, sess.ClientSessionID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			s.log.Warn("failed to look up previous attempt", "session_id", sess.ClientSessionID, "error", err)
		}
		return
	}

	sess.Retry.AttemptCount = prev.Retry.AttemptCount + 1
	at := sess.StartedAt
	sess.Retry.LastRetryAt = &at
}

// nextRetry время следующей попытки: base * multiplier^(attempt-1)
func (s *Service) nextRetry(sess *Session, fin Finalization, retryable bool) *time.Time {
	if fin.Status != StatusFailed && fin.Status != StatusPartial {
		return nil
	}
	if !retryable || sess.Retry.AttemptCount >= sess.Retry.MaxAttempts {
		return nil
	}

	factor := math.Pow(sess.Retry.BackoffMultiplier, float64(sess.Retry.AttemptCount-1))
	next := fin.CompletedAt.Add(time.Duration(float64(s.config.RetryBaseDelay) * factor))
	return &next
}

func (p *Progress) add(d Progress) {
	p.Total += d.Total
	p.Processed += d.Processed
	p.Successful += d.Successful
	p.Failed += d.Failed
	p.Skipped += d.Skipped
}

func normalizeDataTypes(in []DataType) ([]DataType, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: dataTypes must not be empty", ErrInvalidRequest)
	}

	seen := make(map[DataType]struct{}, len(in))
	out := make([]DataType, 0, len(in))
	for _, dt := range in {
		switch dt {
		case DataTypeActivities, DataTypeDiagnoses, DataTypeUserProfile,
			DataTypePreferences, DataTypeClinicalRecords, DataTypeMediaFiles:
		default:
			return nil, fmt.Errorf("%w: unknown data type %q", ErrInvalidRequest, dt)
		}
		if _, ok := seen[dt]; ok {
			continue
		}
		seen[dt] = struct{}{}
		out = append(out, dt)
	}

	return out, nil
}

// itemID идентификатор записи на стороне клиента, либо позиция в пакете
func itemID(dt DataType, index int, payload json.RawMessage) string {
	var ids struct {
		ID          string `json:"id"`
		LocalID     string `json:"localId"`
		DiagnosisID string `json:"diagnosisId"`
	}
	if err := json.Unmarshal(payload, &ids); err == nil {
		for _, id := range []string{ids.ID, ids.LocalID, ids.DiagnosisID} {
			if id != "" {
				return id
			}
		}
	}
	return fmt.Sprintf("%s[%d]", dt, index)
}
