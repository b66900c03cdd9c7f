package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"healthsync/internal/app/server/api/http/middleware/auth"
	"healthsync/internal/domain/session"
	"healthsync/internal/domain/sync"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	service    sync.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service sync.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With("component", "sync_handler"),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.uploadOp(), h.upload)
	huma.Register(api, h.downloadOp(), h.download)
	huma.Register(api, h.statusOp(), h.status)
	huma.Register(api, h.sessionOp(), h.session)
	huma.Register(api, h.conflictsOp(), h.conflicts)
	huma.Register(api, h.resolveOp(), h.resolve)
}

func (h *Handler) upload(ctx context.Context, input *uploadInput) (*uploadOutput, error) {
	principal, err := principalFrom(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := h.service.Upload(ctx, principal, input.Body)
	if err != nil {
		return nil, h.toHTTPError("upload", err)
	}

	return &uploadOutput{Body: resp}, nil
}

func (h *Handler) download(ctx context.Context, input *downloadInput) (*downloadOutput, error) {
	principal, err := principalFrom(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := h.service.Download(ctx, principal, input.Body)
	if err != nil {
		return nil, h.toHTTPError("download", err)
	}

	return &downloadOutput{Body: resp}, nil
}

func (h *Handler) status(ctx context.Context, input *statusInput) (*statusOutput, error) {
	principal, err := principalFrom(ctx)
	if err != nil {
		return nil, err
	}

	q := sync.StatusQuery{
		Page:     input.Page,
		Limit:    input.Limit,
		Status:   sync.Status(input.Status),
		SyncType: sync.SyncType(input.SyncType),
	}
	if q.From, err = parseTime("from", input.From); err != nil {
		return nil, err
	}
	if q.To, err = parseTime("to", input.To); err != nil {
		return nil, err
	}

	resp, err := h.service.GetStatus(ctx, principal, q)
	if err != nil {
		return nil, h.toHTTPError("status", err)
	}

	return &statusOutput{Body: resp}, nil
}

func (h *Handler) session(ctx context.Context, input *sessionInput) (*sessionOutput, error) {
	principal, err := principalFrom(ctx)
	if err != nil {
		return nil, err
	}

	s, err := h.service.GetSession(ctx, principal, input.ID)
	if err != nil {
		return nil, h.toHTTPError("session", err)
	}

	return &sessionOutput{Body: s}, nil
}

func (h *Handler) conflicts(ctx context.Context, input *conflictsInput) (*conflictsOutput, error) {
	principal, err := principalFrom(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := h.service.GetConflicts(ctx, principal, sync.ConflictsQuery{Page: input.Page, Limit: input.Limit})
	if err != nil {
		return nil, h.toHTTPError("conflicts", err)
	}

	return &conflictsOutput{Body: resp}, nil
}

func (h *Handler) resolve(ctx context.Context, input *resolveInput) (*resolveOutput, error) {
	principal, err := principalFrom(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := h.service.ResolveConflict(ctx, principal, input.Body)
	if err != nil {
		return nil, h.toHTTPError("resolve conflict", err)
	}

	return &resolveOutput{Body: resp}, nil
}

func principalFrom(ctx context.Context) (session.Principal, error) {
	p, ok := auth.GetPrincipal(ctx)
	if !ok {
		return session.Principal{}, huma.Error401Unauthorized("Unauthorized")
	}
	return p, nil
}

// toHTTPError переводит ошибки домена в ответы API; остальное 500 без подробностей
func (h *Handler) toHTTPError(op string, err error) error {
	switch {
	case errors.Is(err, sync.ErrInvalidRequest), errors.Is(err, sync.ErrInvalidResolution):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, sync.ErrSessionNotFound):
		return huma.Error404NotFound("sync session not found")
	case errors.Is(err, sync.ErrConflictNotFound):
		return huma.Error404NotFound("conflict not found")
	case errors.Is(err, sync.ErrConflictResolved):
		return huma.Error409Conflict("conflict already resolved")
	}

	h.log.Error("request failed", "op", op, "error", err)
	return huma.Error500InternalServerError(fmt.Sprintf("%s failed", op))
}

func parseTime(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("%s must be an RFC 3339 timestamp", name))
	}
	return &t, nil
}
