package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"healthsync/internal/domain/session"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// DeviceHeader необязательный заголовок; если прислан, должен совпадать с устройством токена
const DeviceHeader = "X-Device-ID"

type Auth struct {
	session session.Servicer
	log     *slog.Logger
}

func New(session session.Servicer, log *slog.Logger) *Auth {
	return &Auth{
		session: session,
		log:     log.With("component", "auth_middleware"),
	}
}

type contextKey string

const principalKey contextKey = "principal"

// Middleware проверяет Bearer-токен и кладет Principal в контекст запроса
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		header := ctx.Header("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			a.log.Warn("missing bearer token", "path", ctx.URL().Path)
			a.unauthorized(ctx)
			return
		}

		principal, err := a.session.Validate(ctx.Context(), token)
		if err != nil {
			a.log.Warn("token rejected", "path", ctx.URL().Path, "error", err)
			a.unauthorized(ctx)
			return
		}

		if device := ctx.Header(DeviceHeader); device != "" && device != principal.DeviceID {
			a.log.Warn("device mismatch", "user_id", principal.UserID, "token_device", principal.DeviceID, "header_device", device)
			a.unauthorized(ctx)
			return
		}

		next(huma.WithContext(ctx, WithPrincipal(ctx.Context(), principal)))
	}
}

func (a *Auth) unauthorized(ctx huma.Context) {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(http.StatusUnauthorized)

	err := json.NewEncoder(ctx.BodyWriter()).Encode(map[string]string{
		"error": "Unauthorized",
	})
	if err != nil {
		a.log.Error("failed to write response", "error", err)
	}
}

func WithPrincipal(ctx context.Context, p session.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func GetPrincipal(ctx context.Context) (session.Principal, bool) {
	p, ok := ctx.Value(principalKey).(session.Principal)
	return p, ok
}
