package main

import "errors"

// Error kinds surfaced by the session core. Callers wrap these with
// fmt.Errorf("...: %w") and match them with errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrDuplicateID   = errors.New("duplicate id")
	ErrPoolExhausted = errors.New("weapon pool exhausted")
	ErrUnauthorized  = errors.New("unauthorized")
)
