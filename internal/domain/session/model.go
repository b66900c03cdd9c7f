package session

import "errors"

// ErrInvalidToken токен не найден, просрочен или выдан другому устройству
var ErrInvalidToken = errors.New("invalid session")

// Principal аутентифицированный пользователь и проверенное устройство
type Principal struct {
	UserID   int
	DeviceID string
}
