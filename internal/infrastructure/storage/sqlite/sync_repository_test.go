package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"healthsync/internal/domain/sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func newSession(id string, userID int, deviceID string, startedAt time.Time) *sync.Session {
	return &sync.Session{
		ID:              id,
		UserID:          userID,
		DeviceID:        deviceID,
		ClientSessionID: "client-" + id,
		SyncType:        sync.SyncTypeUpload,
		Operation:       sync.OperationIncremental,
		DataTypes:       []sync.DataType{sync.DataTypeActivities, sync.DataTypeDiagnoses},
		Status:          sync.StatusInitiated,
		Progress:        sync.Progress{Total: 5},
		StartedAt:       startedAt,
		Device:          sync.DeviceInfo{Platform: "ios", AppVersion: "2.4.0"},
		Network:         sync.NetworkInfo{ConnectionType: "wifi", LatencyMs: 40},
		Retry:           sync.RetryInfo{AttemptCount: 1, MaxAttempts: 3, BackoffMultiplier: 2},
		CreatedAt:       startedAt,
		UpdatedAt:       startedAt,
	}
}

func TestSyncRepository_Lifecycle(t *testing.T) {
	st := newTestStorage(t)
	repo := NewSyncRepository(st.DB(), discardLogger())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newSession("s-1", 1, "device-1", base)))
	require.NoError(t, repo.MarkInProgress(ctx, "s-1"))
	assert.ErrorIs(t, repo.MarkInProgress(ctx, "s-1"), sync.ErrSessionNotFound)

	require.NoError(t, repo.UpdateProgress(ctx, "s-1", sync.Progress{Processed: 1, Successful: 1}))
	require.NoError(t, repo.UpdateProgress(ctx, "s-1", sync.Progress{Processed: 1, Failed: 1}))
	require.NoError(t, repo.UpdateProgress(ctx, "s-1", sync.Progress{Processed: 1, Skipped: 1}))

	require.NoError(t, repo.AppendError(ctx, "s-1", sync.SessionError{
		Code:      sync.CodeUnsupportedDataType,
		Message:   "Unsupported data type: media_files",
		Severity:  sync.SeverityMedium,
		DataType:  sync.DataTypeMediaFiles,
		ItemID:    "m-1",
		Timestamp: base.Add(time.Second),
	}))
	conflict := sync.Conflict{
		ItemID:        "dx-1",
		DataType:      sync.DataTypeDiagnoses,
		ConflictType:  sync.ConflictConcurrentModification,
		LocalVersion:  json.RawMessage(`{"code":"J45.1"}`),
		ServerVersion: json.RawMessage(`{"code":"J45"}`),
		CreatedAt:     base.Add(2 * time.Second),
	}
	require.NoError(t, repo.AppendConflict(ctx, "s-1", conflict))
	// второй конфликт для той же записи отклоняется явно
	assert.ErrorIs(t, repo.AppendConflict(ctx, "s-1", conflict), sync.ErrDuplicateConflict)

	next := base.Add(time.Minute)
	require.NoError(t, repo.Finalize(ctx, "s-1", sync.Finalization{
		Status:      sync.StatusPartial,
		CompletedAt: base.Add(3 * time.Second),
		Transfer:    sync.TransferStats{BytesUploaded: 2048, CompressionRatio: 0.5},
		NextRetryAt: &next,
	}))
	assert.ErrorIs(t, repo.Finalize(ctx, "s-1", sync.Finalization{Status: sync.StatusCompleted, CompletedAt: base}), sync.ErrSessionNotFound)

	s, err := repo.Get(ctx, 1, "s-1")
	require.NoError(t, err)

	assert.Equal(t, sync.StatusPartial, s.Status)
	assert.Equal(t, sync.Progress{Total: 5, Processed: 3, Successful: 1, Failed: 1, Skipped: 1}, s.Progress)
	assert.Equal(t, []sync.DataType{sync.DataTypeActivities, sync.DataTypeDiagnoses}, s.DataTypes)
	assert.Equal(t, "ios", s.Device.Platform)
	assert.Equal(t, 40, s.Network.LatencyMs)
	assert.Equal(t, int64(2048), s.Transfer.BytesUploaded)
	assert.Equal(t, 3*time.Second, s.Duration())
	require.NotNil(t, s.Retry.NextRetryAt)
	assert.Equal(t, next, *s.Retry.NextRetryAt)

	require.Len(t, s.Errors, 1)
	assert.Equal(t, "m-1", s.Errors[0].ItemID)
	assert.Equal(t, sync.SeverityMedium, s.Errors[0].Severity)

	require.Len(t, s.Conflicts, 1)
	assert.Equal(t, sync.ResolutionManualReview, s.Conflicts[0].Resolution)
	assert.JSONEq(t, `{"code":"J45"}`, string(s.Conflicts[0].ServerVersion))

	_, err = repo.Get(ctx, 2, "s-1")
	assert.ErrorIs(t, err, sync.ErrSessionNotFound)
}

func TestSyncRepository_AppendToMissingSession(t *testing.T) {
	st := newTestStorage(t)
	repo := NewSyncRepository(st.DB(), discardLogger())
	ctx := context.Background()

	assert.ErrorIs(t, repo.UpdateProgress(ctx, "missing", sync.Progress{Processed: 1}), sync.ErrSessionNotFound)
	assert.ErrorIs(t, repo.AppendError(ctx, "missing", sync.SessionError{Code: "X", Timestamp: base}), sync.ErrSessionNotFound)
	assert.ErrorIs(t, repo.AppendConflict(ctx, "missing", sync.Conflict{ItemID: "dx-1", CreatedAt: base}), sync.ErrSessionNotFound)
}

func TestSyncRepository_ListAndLatest(t *testing.T) {
	st := newTestStorage(t)
	repo := NewSyncRepository(st.DB(), discardLogger())
	ctx := context.Background()

	for i, status := range []sync.Status{sync.StatusCompleted, sync.StatusPartial, sync.StatusCompleted} {
		id := []string{"s-1", "s-2", "s-3"}[i]
		started := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Create(ctx, newSession(id, 1, "device-1", started)))
		require.NoError(t, repo.Finalize(ctx, id, sync.Finalization{Status: status, CompletedAt: started.Add(time.Minute)}))
	}
	require.NoError(t, repo.Create(ctx, newSession("other", 2, "device-9", base)))

	all, total, err := repo.List(ctx, 1, sync.SessionFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 2)
	assert.Equal(t, "s-3", all[0].ID)
	assert.Equal(t, "s-2", all[1].ID)

	page2, _, err := repo.List(ctx, 1, sync.SessionFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "s-1", page2[0].ID)

	from := base.Add(30 * time.Minute)
	completed, total, err := repo.List(ctx, 1, sync.SessionFilter{Status: sync.StatusCompleted, From: &from, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "s-3", completed[0].ID)

	latest, err := repo.LatestCompleted(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "s-3", latest.ID)

	_, err = repo.LatestCompleted(ctx, 2)
	assert.ErrorIs(t, err, sync.ErrSessionNotFound)

	prev, err := repo.FindLatestByClientSession(ctx, 1, "device-1", "client-s-2")
	require.NoError(t, err)
	assert.Equal(t, "s-2", prev.ID)
}

func TestSyncRepository_ConflictReview(t *testing.T) {
	st := newTestStorage(t)
	repo := NewSyncRepository(st.DB(), discardLogger())
	ctx := context.Background()

	for i, id := range []string{"s-1", "s-2"} {
		require.NoError(t, repo.Create(ctx, newSession(id, 1, "device-1", base.Add(time.Duration(i)*time.Hour))))
		require.NoError(t, repo.AppendConflict(ctx, id, sync.Conflict{
			ItemID:       "dx-1",
			DataType:     sync.DataTypeDiagnoses,
			ConflictType: sync.ConflictConcurrentModification,
			CreatedAt:    base,
		}))
	}
	require.NoError(t, repo.Create(ctx, newSession("s-other", 1, "device-2", base)))
	require.NoError(t, repo.AppendConflict(ctx, "s-other", sync.Conflict{ItemID: "dx-1", DataType: sync.DataTypeDiagnoses, CreatedAt: base}))

	views, total, err := repo.ListUnresolvedConflicts(ctx, 1, "device-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, views, 2)
	assert.Equal(t, "s-2", views[0].SyncID)
	assert.Equal(t, base.Add(time.Hour), views[0].SyncTimestamp)

	resolvedAt := base.Add(2 * time.Hour)
	require.NoError(t, repo.ResolveConflict(ctx, 1, "s-1", "dx-1", sync.ConflictResolution{
		Resolution:    sync.ResolutionMerge,
		MergedVersion: json.RawMessage(`{"code":"J45.9"}`),
		ResolvedBy:    "1",
		ResolvedAt:    resolvedAt,
	}))

	views, total, err = repo.ListUnresolvedConflicts(ctx, 1, "device-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, views, 1)
	assert.Equal(t, "s-2", views[0].SyncID)

	s, err := repo.Get(ctx, 1, "s-1")
	require.NoError(t, err)
	require.Len(t, s.Conflicts, 1)
	assert.Equal(t, sync.ResolutionMerge, s.Conflicts[0].Resolution)
	assert.Equal(t, "1", s.Conflicts[0].ResolvedBy)
	require.NotNil(t, s.Conflicts[0].ResolvedAt)
	assert.Equal(t, resolvedAt, *s.Conflicts[0].ResolvedAt)
	assert.JSONEq(t, `{"code":"J45.9"}`, string(s.Conflicts[0].MergedVersion))
	assert.Equal(t, resolvedAt, s.UpdatedAt)

	skip := sync.ConflictResolution{Resolution: sync.ResolutionSkip, ResolvedAt: resolvedAt}
	assert.ErrorIs(t, repo.ResolveConflict(ctx, 1, "s-1", "dx-1", skip), sync.ErrConflictResolved)
	assert.ErrorIs(t, repo.ResolveConflict(ctx, 1, "s-1", "dx-404", skip), sync.ErrConflictNotFound)
	assert.ErrorIs(t, repo.ResolveConflict(ctx, 2, "s-2", "dx-1", skip), sync.ErrSessionNotFound)
}
