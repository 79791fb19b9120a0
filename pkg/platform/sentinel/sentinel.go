package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, backends and loaders return
// these (optionally wrapped) so services can translate them into domain errors.
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound       = errors.New("not found")
	ErrUnavailable    = errors.New("unavailable")
	ErrNotConfigured  = errors.New("not configured")
	ErrInvalidPayload = errors.New("invalid payload")
)
