package repository

import "errors"

var (
	// ErrNotFound indicates the prediction record does not exist
	ErrNotFound = errors.New("prediction record not found")

	// ErrDuplicateEntry indicates a record with the same id already exists
	ErrDuplicateEntry = errors.New("prediction record already exists")

	// ErrInvalidRecord indicates a record is missing required fields
	ErrInvalidRecord = errors.New("invalid prediction record")

	// ErrRepositoryUnavailable indicates the repository is unavailable
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
