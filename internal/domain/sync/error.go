package sync

import "errors"

var (
	ErrSessionNotFound     = errors.New("sync session not found")
	ErrConflictNotFound    = errors.New("conflict not found")
	ErrConflictResolved    = errors.New("conflict already resolved")
	ErrInvalidResolution   = errors.New("invalid conflict resolution")
	ErrInvalidRequest      = errors.New("invalid sync request")
	ErrUnsupportedDataType = errors.New("unsupported data type")
	ErrDuplicateConflict   = errors.New("conflict for this item already recorded in session")
)
