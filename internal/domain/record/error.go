package record

import (
	"errors"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrStale          = errors.New("record changed concurrently")
	ErrInvalidPayload = errors.New("invalid record payload")
)
