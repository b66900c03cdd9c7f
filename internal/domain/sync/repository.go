package sync

import (
	"context"
)

// Ledger хранилище сессий синхронизации. Сессии никогда не удаляются.
// Счетчики прогресса меняются только приращением, поэтому параллельные
// обновления одной сессии безопасны.
type Ledger interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, userID int, id string) (*Session, error)
	FindLatestByClientSession(ctx context.Context, userID int, deviceID, clientSessionID string) (*Session, error)
	List(ctx context.Context, userID int, filter SessionFilter) ([]*Session, int, error)
	LatestCompleted(ctx context.Context, userID int) (*Session, error)

	// Жизненный цикл
	MarkInProgress(ctx context.Context, id string) error
	UpdateProgress(ctx context.Context, id string, delta Progress) error
	AppendError(ctx context.Context, id string, e SessionError) error
	// AppendConflict возвращает ErrDuplicateConflict, если конфликт по записи в сессии уже есть
	AppendConflict(ctx context.Context, id string, c Conflict) error
	Finalize(ctx context.Context, id string, f Finalization) error

	// Разбор конфликтов
	ListUnresolvedConflicts(ctx context.Context, userID int, deviceID string, limit, offset int) ([]ConflictView, int, error)
	ResolveConflict(ctx context.Context, userID int, sessionID, itemID string, r ConflictResolution) error
}
