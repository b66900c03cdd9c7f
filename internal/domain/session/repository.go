package session

import (
	"context"
	"time"
)

// Repository хранилище выданных токенов. Хранится только sha256 от токена.
type Repository interface {
	Create(ctx context.Context, userID int, deviceID, tokenHash string, expiresAt time.Time) error
	// Validate возвращает владельца действующего токена или ErrInvalidToken
	Validate(ctx context.Context, tokenHash string, now time.Time) (Principal, error)
}
