package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slog"
)

const DefaultTokenTTL = 24 * time.Hour

type Servicer interface {
	Create(ctx context.Context, userID int, deviceID string) (string, error)
	Validate(ctx context.Context, token string) (Principal, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
	ttl  time.Duration
	now  func() time.Time
}

func NewService(repo Repository, log *slog.Logger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		repo: repo,
		log:  log,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Create выпускает токен, привязанный к пользователю и устройству
func (s *Service) Create(ctx context.Context, userID int, deviceID string) (string, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return "", fmt.Errorf("device id is required")
	}

	// Генерация токена
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	token := base64.URLEncoding.EncodeToString(tokenBytes)

	expiresAt := s.now().UTC().Add(s.ttl)
	if err := s.repo.Create(ctx, userID, deviceID, hashToken(token), expiresAt); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	s.log.Info("session issued", "user_id", userID, "device_id", deviceID, "expires_at", expiresAt)
	return token, nil
}

func (s *Service) Validate(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrInvalidToken
	}
	return s.repo.Validate(ctx, hashToken(token), s.now().UTC())
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
