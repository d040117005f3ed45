package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrNotConfigured         = errors.New("provider credential not configured")
	ErrProviderNotRegistered = errors.New("provider not registered")
	ErrJobNotRetryable       = errors.New("job is not in a retryable state")
	ErrJobTerminal           = errors.New("job is already in a terminal state")
	ErrRetryBudgetExhausted  = errors.New("retry budget exhausted")
	ErrSwapNotAllowed        = errors.New("provider swap not allowed for a completed step")
	ErrVersionConflict       = errors.New("job row changed concurrently")
	ErrQuotaExceeded         = errors.New("concurrent generation quota exceeded")
)
