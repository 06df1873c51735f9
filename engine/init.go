package engine

import (
	"sync"

	"github.com/go-errors/errors"
)

var (
	// ErrNotInitialized is returned by proof operations attempted before
	// Initialize. The engine must be initialized exactly once per process,
	// before any credential or presentation work.
	ErrNotInitialized = errors.New("cryptographic engine not initialized")

	// ErrAlreadyInitialized is returned when a second, different engine is
	// installed. Re-initializing with the same engine is a no-op.
	ErrAlreadyInitialized = errors.New("cryptographic engine already initialized")

	// ErrProofInvalid is the sentinel wrapped by engines when a proof fails
	// verification, as opposed to malformed input.
	ErrProofInvalid = errors.New("proof does not verify")
)

var (
	mu      sync.RWMutex
	current Engine
)

// Initialize installs the process-wide engine. Idempotent for the same
// engine value; installing a different engine afterwards is an error, since
// credentials and proofs produced by different engines are not
// interchangeable within one process.
func Initialize(e Engine) error {
	if e == nil {
		return errors.New("nil engine")
	}
	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		if current == e {
			return nil
		}
		return ErrAlreadyInitialized
	}
	current = e
	return nil
}

// Current returns the installed engine or ErrNotInitialized.
func Current() (Engine, error) {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return nil, ErrNotInitialized
	}
	return current, nil
}

// reset is used by tests that exercise the initialization gate itself.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	current = nil
}
