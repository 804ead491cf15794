package service

import "errors"

// Sentinel kinds for submission and lookup errors surfaced to the API.
var (
	ErrInvalidSelection = errors.New("invalid selection")
	ErrAreaTooLarge     = errors.New("selection exceeds the maximum area")
	ErrQueueFull        = errors.New("analysis queue is full")
	ErrJobNotFound      = errors.New("job not found")
	ErrJobNotReady      = errors.New("job has no results yet")
)
