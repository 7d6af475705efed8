package world

import "errors"

var (
	// ErrNotLoaded is returned by reads for chunks that are absent, still
	// generating, or being unloaded.
	ErrNotLoaded = errors.New("chunk not loaded")
	// ErrGenerationFailure wraps any failed generation attempt.
	ErrGenerationFailure = errors.New("chunk generation failed")
	// ErrPermanentFailure marks a chunk that exhausted its retries and now
	// serves the fallback surface.
	ErrPermanentFailure = errors.New("chunk generation failed permanently")
)
