package domain

import "errors"

// Sentinel errors forming the gateway's error taxonomy. Each carries a fixed
// recovery policy documented alongside the operation that returns it; they
// are matched with errors.Is, never by string comparison.
var (
	// Handler registry / compilation pipeline (§4.1, §4.2).
	ErrArtifactMissing = errors.New("artifact missing")
	ErrSymbolMissing   = errors.New("entry symbol missing")
	ErrLoadFailed      = errors.New("module load failed")
	ErrCompileFailed   = errors.New("compilation failed")
	ErrDraining        = errors.New("handler draining")
	ErrHandlerPanicked = errors.New("handler panicked")

	// Request router (§4.4).
	ErrNoMatch      = errors.New("no matching endpoint")
	ErrNotCompiled  = errors.New("endpoint not compiled")
	ErrTimeout      = errors.New("handler timed out")
	ErrBodyTooLarge = errors.New("request body exceeds configured limit")

	// Service actor runtime (§4.3).
	ErrServiceNotConfigured = errors.New("service not configured")
	ErrServiceUnavailable   = errors.New("service unavailable")
	ErrConnectionFailed     = errors.New("connection failed")
	ErrQueryFailed          = errors.New("query failed")
	ErrInvalidType          = errors.New("invalid value type")
	ErrInvalidConfig        = errors.New("invalid service configuration")

	// Metadata store / admin (§4.5, §7).
	ErrMetadata = errors.New("metadata store error")
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflicting resource")
)
