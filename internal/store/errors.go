package store

import "errors"

var (
	ErrNotFound        = errors.New("store: resource not found")
	ErrDuplicate       = errors.New("store: duplicate resource")
	ErrVersionConflict = errors.New("store: stored version does not match expected version")
)
