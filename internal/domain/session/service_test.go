package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/slog"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, userID int, deviceID, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, deviceID, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockRepository) Validate(ctx context.Context, tokenHash string, now time.Time) (Principal, error) {
	args := m.Called(ctx, tokenHash, now)
	return args.Get(0).(Principal), args.Error(1)
}

func TestService_Create(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default(), time.Hour)

	fixed := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return fixed }

	mockRepo.On("Create", mock.Anything, 123, "device-1", mock.MatchedBy(func(hash string) bool {
		return len(hash) == 64
	}), fixed.Add(time.Hour)).Return(nil)

	token, err := service.Create(context.Background(), 123, "device-1")
	assert.NoError(t, err)
	// base64 от 32 байт с паддингом
	assert.Len(t, token, 44)

	mockRepo.AssertExpectations(t)
}

func TestService_Create_RequiresDevice(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default(), 0)

	_, err := service.Create(context.Background(), 123, "  ")
	assert.Error(t, err)
	mockRepo.AssertNotCalled(t, "Create")
}

func TestService_Create_RepositoryError(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default(), 0)

	mockRepo.On("Create", mock.Anything, 123, "device-1", mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Return(errors.New("database error"))

	_, err := service.Create(context.Background(), 123, "device-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database error")

	mockRepo.AssertExpectations(t)
}

func TestService_Validate(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		principal Principal
		repoErr   error
		wantErr   error
	}{
		{
			name:      "valid token",
			token:     "test_token_123",
			principal: Principal{UserID: 123, DeviceID: "device-1"},
		},
		{
			name:    "unknown token",
			token:   "invalid_token",
			repoErr: ErrInvalidToken,
			wantErr: ErrInvalidToken,
		},
		{
			name:    "empty token",
			token:   "",
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			service := NewService(mockRepo, slog.Default(), 0)

			if tt.token != "" {
				mockRepo.On("Validate", mock.Anything, hashToken(tt.token), mock.AnythingOfType("time.Time")).
					Return(tt.principal, tt.repoErr)
			}

			got, err := service.Validate(context.Background(), tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.principal, got)

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestService_CreateAndValidate(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default(), 0)

	var stored string
	mockRepo.On("Create", mock.Anything, 7, "tablet", mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) { stored = args.String(3) }).
		Return(nil)

	token, err := service.Create(context.Background(), 7, "tablet")
	assert.NoError(t, err)

	mockRepo.On("Validate", mock.Anything, mock.MatchedBy(func(hash string) bool { return hash == stored }), mock.AnythingOfType("time.Time")).
		Return(Principal{UserID: 7, DeviceID: "tablet"}, nil)

	p, err := service.Validate(context.Background(), token)
	assert.NoError(t, err)
	assert.Equal(t, Principal{UserID: 7, DeviceID: "tablet"}, p)

	mockRepo.AssertExpectations(t)
}
