package logger

import (
	"net/http"
	"time"

	"healthsync/internal/app/server/api/http/middleware/auth"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Logger middleware для логирования входящих HTTP запросов
type Logger struct {
	log *slog.Logger
	now func() time.Time
}

func New(log *slog.Logger) *Logger {
	return &Logger{
		log: log.With(slog.String("component", "http_logger")),
		now: time.Now,
	}
}

// Middleware пишет строку на запрос; уровень зависит от статуса ответа
func (l *Logger) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := l.now()

		method := ctx.Method()
		path := ctx.URL().Path
		remoteAddr := ctx.RemoteAddr()

		next(ctx)

		status := ctx.Status()
		if status == 0 {
			status = http.StatusOK
		}

		attrs := []any{
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("duration", l.now().Sub(start)),
			slog.String("remote_addr", remoteAddr),
		}
		if p, ok := auth.GetPrincipal(ctx.Context()); ok {
			attrs = append(attrs, slog.Int("user_id", p.UserID), slog.String("device_id", p.DeviceID))
		}

		switch {
		case status >= http.StatusInternalServerError:
			l.log.Error("HTTP request", attrs...)
		case status >= http.StatusBadRequest:
			l.log.Warn("HTTP request", attrs...)
		default:
			l.log.Info("HTTP request", attrs...)
		}
	}
}
