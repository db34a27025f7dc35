package store

import "errors"

var (
	ErrNotFound    = errors.New("plan not found")
	ErrInvalidPlan = errors.New("invalid plan payload")
)
