package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: uniqueness or state constraint violated on write
// - ErrExpired: contributor grant past its expiry
// - ErrAlreadySubmitted: contributor grant already consumed
// - ErrVersionConflict: concurrent publish lost the next-version race
// - ErrMediaInUse: media storage reference still referenced by a version
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrExpired          = errors.New("expired")
	ErrAlreadySubmitted = errors.New("already submitted")
	ErrVersionConflict  = errors.New("version conflict")
	ErrMediaInUse       = errors.New("media in use")
	ErrUnavailable      = errors.New("unavailable")
)
