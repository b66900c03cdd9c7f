package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"healthsync/internal/app/server/api/http/middleware/auth"
	"healthsync/internal/domain/session"
	"healthsync/internal/domain/sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Upload(ctx context.Context, p session.Principal, req sync.UploadRequest) (*sync.UploadResponse, error) {
	args := m.Called(ctx, p, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.UploadResponse), args.Error(1)
}

func (m *MockService) Download(ctx context.Context, p session.Principal, req sync.DownloadRequest) (*sync.DownloadResponse, error) {
	args := m.Called(ctx, p, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.DownloadResponse), args.Error(1)
}

func (m *MockService) GetStatus(ctx context.Context, p session.Principal, q sync.StatusQuery) (*sync.StatusResponse, error) {
	args := m.Called(ctx, p, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.StatusResponse), args.Error(1)
}

func (m *MockService) GetSession(ctx context.Context, p session.Principal, syncID string) (*sync.Session, error) {
	args := m.Called(ctx, p, syncID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.Session), args.Error(1)
}

func (m *MockService) GetConflicts(ctx context.Context, p session.Principal, q sync.ConflictsQuery) (*sync.ConflictsResponse, error) {
	args := m.Called(ctx, p, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.ConflictsResponse), args.Error(1)
}

func (m *MockService) ResolveConflict(ctx context.Context, p session.Principal, req sync.ResolveConflictRequest) (*sync.ResolveConflictResponse, error) {
	args := m.Called(ctx, p, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.ResolveConflictResponse), args.Error(1)
}

var principal = session.Principal{UserID: 5, DeviceID: "phone-1"}

func newHandler(svc sync.Servicer) *Handler {
	return NewHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	require.True(t, errors.As(err, &se), "expected huma status error, got %v", err)
	return se.GetStatus()
}

func TestHandler_Upload(t *testing.T) {
	authCtx := auth.WithPrincipal(context.Background(), principal)
	req := sync.UploadRequest{DataTypes: []sync.DataType{sync.DataTypeActivities}}

	t.Run("Success", func(t *testing.T) {
		svc := new(MockService)
		svc.On("Upload", mock.Anything, principal, req).
			Return(&sync.UploadResponse{SyncID: "s-1", Status: sync.StatusCompleted}, nil)

		out, err := newHandler(svc).upload(authCtx, &uploadInput{Body: req})

		require.NoError(t, err)
		assert.Equal(t, "s-1", out.Body.SyncID)
		svc.AssertExpectations(t)
	})

	t.Run("Unauthorized", func(t *testing.T) {
		svc := new(MockService)

		_, err := newHandler(svc).upload(context.Background(), &uploadInput{Body: req})

		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
		svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InvalidRequest", func(t *testing.T) {
		svc := new(MockService)
		svc.On("Upload", mock.Anything, principal, req).
			Return(nil, fmt.Errorf("%w: dataTypes must not be empty", sync.ErrInvalidRequest))

		_, err := newHandler(svc).upload(authCtx, &uploadInput{Body: req})

		assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
	})

	t.Run("LedgerDown", func(t *testing.T) {
		svc := new(MockService)
		svc.On("Upload", mock.Anything, principal, req).Return(nil, errors.New("connection refused"))

		_, err := newHandler(svc).upload(authCtx, &uploadInput{Body: req})

		assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
		assert.NotContains(t, err.Error(), "connection refused")
	})
}

func TestHandler_Download(t *testing.T) {
	authCtx := auth.WithPrincipal(context.Background(), principal)
	since := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	req := sync.DownloadRequest{DataTypes: []sync.DataType{sync.DataTypeDiagnoses}, LastSyncTimestamp: &since}

	svc := new(MockService)
	svc.On("Download", mock.Anything, principal, req).
		Return(&sync.DownloadResponse{SyncID: "s-2", Status: sync.StatusCompleted, Timestamp: since.Add(time.Hour)}, nil)

	out, err := newHandler(svc).download(authCtx, &downloadInput{Body: req})

	require.NoError(t, err)
	assert.Equal(t, since.Add(time.Hour), out.Body.Timestamp)
	svc.AssertExpectations(t)
}

func TestHandler_Status(t *testing.T) {
	authCtx := auth.WithPrincipal(context.Background(), principal)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		input      statusInput
		setupMock  func(*MockService)
		wantStatus int
	}{
		{
			name:  "with filters",
			input: statusInput{Page: 2, Limit: 10, From: "2024-01-01T00:00:00Z", Status: "completed"},
			setupMock: func(m *MockService) {
				m.On("GetStatus", mock.Anything, principal, sync.StatusQuery{
					Page: 2, Limit: 10, From: &from, Status: sync.StatusCompleted,
				}).Return(&sync.StatusResponse{Pagination: sync.Pagination{Page: 2, Limit: 10}}, nil)
			},
		},
		{
			name:       "bad timestamp",
			input:      statusInput{Page: 1, Limit: 20, To: "yesterday"},
			setupMock:  func(m *MockService) {},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			out, err := newHandler(svc).status(authCtx, &tt.input)

			if tt.wantStatus != 0 {
				assert.Equal(t, tt.wantStatus, statusOf(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2, out.Body.Pagination.Page)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_Session(t *testing.T) {
	authCtx := auth.WithPrincipal(context.Background(), principal)

	svc := new(MockService)
	svc.On("GetSession", mock.Anything, principal, "missing").Return(nil, sync.ErrSessionNotFound)
	svc.On("GetSession", mock.Anything, principal, "s-1").Return(&sync.Session{ID: "s-1"}, nil)
	h := newHandler(svc)

	out, err := h.session(authCtx, &sessionInput{ID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, "s-1", out.Body.ID)

	_, err = h.session(authCtx, &sessionInput{ID: "missing"})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestHandler_Conflicts(t *testing.T) {
	authCtx := auth.WithPrincipal(context.Background(), principal)

	svc := new(MockService)
	svc.On("GetConflicts", mock.Anything, principal, sync.ConflictsQuery{Page: 1, Limit: 20}).
		Return(&sync.ConflictsResponse{Conflicts: []sync.ConflictItem{{ItemID: "dx-1"}}}, nil)

	out, err := newHandler(svc).conflicts(authCtx, &conflictsInput{Page: 1, Limit: 20})

	require.NoError(t, err)
	require.Len(t, out.Body.Conflicts, 1)
	assert.Equal(t, "dx-1", out.Body.Conflicts[0].ItemID)
}

func TestHandler_Resolve(t *testing.T) {
	authCtx := auth.WithPrincipal(context.Background(), principal)
	req := sync.ResolveConflictRequest{SyncID: "s-1", ConflictItemID: "dx-1", Resolution: sync.ResolutionServerWins}

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "resolved"},
		{name: "unknown session", err: sync.ErrSessionNotFound, wantStatus: http.StatusNotFound},
		{name: "unknown item", err: fmt.Errorf("resolve conflict: %w", sync.ErrConflictNotFound), wantStatus: http.StatusNotFound},
		{name: "already resolved", err: sync.ErrConflictResolved, wantStatus: http.StatusConflict},
		{name: "bad resolution", err: sync.ErrInvalidResolution, wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.err != nil {
				svc.On("ResolveConflict", mock.Anything, principal, req).Return(nil, tt.err)
			} else {
				svc.On("ResolveConflict", mock.Anything, principal, req).
					Return(&sync.ResolveConflictResponse{SyncID: "s-1", ItemID: "dx-1", Resolution: req.Resolution}, nil)
			}

			out, err := newHandler(svc).resolve(authCtx, &resolveInput{Body: req})

			if tt.wantStatus != 0 {
				assert.Equal(t, tt.wantStatus, statusOf(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, sync.ResolutionServerWins, out.Body.Resolution)
		})
	}
}
