package record

import (
	"context"
	"time"
)

// Store постоянное хранилище синхронизируемых записей.
// Каждая запись пишется атомарно, транзакции на несколько записей не требуются.
type Store interface {
	// Активности
	FindActivity(ctx context.Context, key ActivityKey) (*Activity, error)
	// InsertActivity вставляет запись, если её ещё нет по естественному ключу.
	// Возвращает сохраненную запись и признак того, что она была создана этим вызовом.
	InsertActivity(ctx context.Context, activity *Activity) (*Activity, bool, error)
	ActivitiesSince(ctx context.Context, userID int, since time.Time, limit int) ([]Activity, error)

	// Диагнозы
	FindDiagnosis(ctx context.Context, userID int, diagnosisID string) (*Diagnosis, error)
	// SaveDiagnosis работает как compare-and-swap: при expected == nil запись создается,
	// иначе перезаписывается только если хранимый LastModified равен *expected.
	// Нарушение условия возвращает ErrStale.
	SaveDiagnosis(ctx context.Context, diagnosis *Diagnosis, expected *time.Time) error
	DiagnosesSince(ctx context.Context, userID int, since time.Time, limit int) ([]Diagnosis, error)

	// Профиль
	PatchProfile(ctx context.Context, userID int, patch ProfilePatch, at time.Time) (*Profile, error)
	// ProfileSince возвращает nil без ошибки, если профиль не менялся после since.
	ProfileSince(ctx context.Context, userID int, since time.Time) (*Profile, error)
}
