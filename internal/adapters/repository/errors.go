package repository

import "errors"

// Sentinel kinds for result store errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidLimit = errors.New("invalid result limit")
	ErrDuplicateJob = errors.New("job already exists")
)
