// HTTP API сервера синхронизации.
//
//	GET  /api/v1/health                # Состояние сервиса (публичный)
//	POST /api/sync/upload              # Загрузка записей устройства (auth)
//	POST /api/sync/download            # Изменения после водяного знака (auth)
//	GET  /api/sync/status              # История сессий (auth)
//	GET  /api/sync/sessions/{id}       # Сессия с ошибками и конфликтами (auth)
//	GET  /api/sync/conflicts           # Неразрешенные конфликты устройства (auth)
//	POST /api/sync/conflicts/resolve   # Решение по конфликту (auth)
package api

import (
	healthAPI "healthsync/internal/app/server/api/http/health"
	"healthsync/internal/app/server/api/http/middleware"
	"healthsync/internal/app/server/api/http/middleware/auth"
	"healthsync/internal/app/server/api/http/middleware/logger"
	syncAPI "healthsync/internal/app/server/api/http/sync"
	"healthsync/internal/app/server/config"
	"healthsync/internal/domain/session"
	"healthsync/internal/domain/sync"
	"healthsync/internal/infrastructure/storage"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/slog"
)

type Handlers struct {
	Health *healthAPI.Handler
	Sync   *syncAPI.Handler
}

// New создает *chi.Mux со всеми операциями, зарегистрированными через huma.Register
func New(backend storage.Backend, cfg *config.Config, tracer trace.Tracer, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	humaCfg := huma.DefaultConfig("HealthSync API", "1.0.0")
	humaCfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, humaCfg)

	h := handlers(backend, cfg, tracer, log)
	h.Health.SetupRoutes(API)
	h.Sync.SetupRoutes(API)

	return mux
}

func handlers(backend storage.Backend, cfg *config.Config, tracer trace.Tracer, log *slog.Logger) *Handlers {
	sessionService := session.NewService(backend.Sessions(), log, cfg.Auth.TokenTTL)
	authMW := auth.New(sessionService, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(backend, log, middlewares.GetAllAndClear())

	syncService := sync.NewService(backend.Ledger(), backend.Records(), log, cfg.SyncService(),
		sync.WithTracer(tracer),
	)
	middlewares.Add(authMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	syncHandler := syncAPI.NewHandler(syncService, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health: healthHandler,
		Sync:   syncHandler,
	}
}
