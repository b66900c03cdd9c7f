package sync

import (
	"context"
	"time"

	"healthsync/internal/domain/record"

	"github.com/stretchr/testify/mock"
)

// MockLedger is a mock implementation of the Ledger interface for testing
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Create(ctx context.Context, session *Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockLedger) Get(ctx context.Context, userID int, id string) (*Session, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockLedger) FindLatestByClientSession(ctx context.Context, userID int, deviceID, clientSessionID string) (*Session, error) {
	args := m.Called(ctx, userID, deviceID, clientSessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockLedger) List(ctx context.Context, userID int, filter SessionFilter) ([]*Session, int, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*Session), args.Int(1), args.Error(2)
}

func (m *MockLedger) LatestCompleted(ctx context.Context, userID int) (*Session, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockLedger) MarkInProgress(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockLedger) UpdateProgress(ctx context.Context, id string, delta Progress) error {
	args := m.Called(ctx, id, delta)
	return args.Error(0)
}

func (m *MockLedger) AppendError(ctx context.Context, id string, e SessionError) error {
	args := m.Called(ctx, id, e)
	return args.Error(0)
}

func (m *MockLedger) AppendConflict(ctx context.Context, id string, c Conflict) error {
	args := m.Called(ctx, id, c)
	return args.Error(0)
}

func (m *MockLedger) Finalize(ctx context.Context, id string, f Finalization) error {
	args := m.Called(ctx, id, f)
	return args.Error(0)
}

func (m *MockLedger) ListUnresolvedConflicts(ctx context.Context, userID int, deviceID string, limit, offset int) ([]ConflictView, int, error) {
	args := m.Called(ctx, userID, deviceID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]ConflictView), args.Int(1), args.Error(2)
}

func (m *MockLedger) ResolveConflict(ctx context.Context, userID int, sessionID, itemID string, r ConflictResolution) error {
	args := m.Called(ctx, userID, sessionID, itemID, r)
	return args.Error(0)
}

// MockStore is a mock implementation of the record.Store interface for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) FindActivity(ctx context.Context, key record.ActivityKey) (*record.Activity, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*record.Activity), args.Error(1)
}

func (m *MockStore) InsertActivity(ctx context.Context, a *record.Activity) (*record.Activity, bool, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*record.Activity), args.Bool(1), args.Error(2)
}

func (m *MockStore) ActivitiesSince(ctx context.Context, userID int, since time.Time, limit int) ([]record.Activity, error) {
	args := m.Called(ctx, userID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]record.Activity), args.Error(1)
}

func (m *MockStore) FindDiagnosis(ctx context.Context, userID int, diagnosisID string) (*record.Diagnosis, error) {
	args := m.Called(ctx, userID, diagnosisID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*record.Diagnosis), args.Error(1)
}

func (m *MockStore) SaveDiagnosis(ctx context.Context, d *record.Diagnosis, expected *time.Time) error {
	args := m.Called(ctx, d, expected)
	return args.Error(0)
}

func (m *MockStore) DiagnosesSince(ctx context.Context, userID int, since time.Time, limit int) ([]record.Diagnosis, error) {
	args := m.Called(ctx, userID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]record.Diagnosis), args.Error(1)
}

func (m *MockStore) PatchProfile(ctx context.Context, userID int, patch record.ProfilePatch, at time.Time) (*record.Profile, error) {
	args := m.Called(ctx, userID, patch, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*record.Profile), args.Error(1)
}

func (m *MockStore) ProfileSince(ctx context.Context, userID int, since time.Time) (*record.Profile, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*record.Profile), args.Error(1)
}
