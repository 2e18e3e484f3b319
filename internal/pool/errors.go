package pool

import "errors"

// Sentinel errors for pool lifecycle and dispatch failures. Callers
// classify with errors.Is.
var (
	// ErrEncoderNotReady means Start was called before an encoder
	// exists.
	ErrEncoderNotReady = errors.New("encoder not ready")

	// ErrNoDevices means Start was called with an empty device list.
	ErrNoDevices = errors.New("no target devices")

	// ErrPoolClosed means the pool was already stopped.
	ErrPoolClosed = errors.New("pool closed")

	// ErrWorkerFailed means a worker reported an error (or recovered a
	// panic) while encoding a chunk, aborting the dispatch.
	ErrWorkerFailed = errors.New("worker failed")
)
