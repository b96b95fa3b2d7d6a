package repository

import "github.com/pkg/errors"

// Sentinel errors handlers and services map to client-facing failures.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)
