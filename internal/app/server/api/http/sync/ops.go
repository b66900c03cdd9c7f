package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

var security = []map[string][]string{{"bearer": {}}}

func (h *Handler) uploadOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-upload",
		Method:      http.MethodPost,
		Path:        "/api/sync/upload",
		Summary:     "Загрузить записи устройства",
		Description: "Применяет пакет записей по одной и возвращает итог по каждой",
		Tags:        []string{"sync"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) downloadOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-download",
		Method:      http.MethodPost,
		Path:        "/api/sync/download",
		Summary:     "Получить изменения",
		Description: "Возвращает записи, измененные строго после lastSyncTimestamp",
		Tags:        []string{"sync"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) statusOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-status",
		Method:      http.MethodGet,
		Path:        "/api/sync/status",
		Summary:     "История синхронизаций",
		Description: "Страница сессий пользователя и сводка последней завершенной",
		Tags:        []string{"sync"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) sessionOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-session",
		Method:      http.MethodGet,
		Path:        "/api/sync/sessions/{id}",
		Summary:     "Сессия синхронизации",
		Description: "Сессия вместе с журналом ошибок и конфликтов",
		Tags:        []string{"sync"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) conflictsOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-conflicts",
		Method:      http.MethodGet,
		Path:        "/api/sync/conflicts",
		Summary:     "Неразрешенные конфликты",
		Description: "Конфликты устройства, ожидающие ручного разбора",
		Tags:        []string{"sync"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) resolveOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-resolve-conflict",
		Method:      http.MethodPost,
		Path:        "/api/sync/conflicts/resolve",
		Summary:     "Разрешить конфликт",
		Description: "Фиксирует решение по конфликту; хранимые записи не меняются",
		Tags:        []string{"sync"},
		Security:    security,
		Middlewares: h.middleware,
	}
}
