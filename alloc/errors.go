package alloc

import "errors"

var (
	// ErrNoMemory indicates the byte and page cursors would cross.
	ErrNoMemory = errors.New("alloc: no memory")

	// ErrMemoryOverlap indicates an added region intersects the managed span.
	ErrMemoryOverlap = errors.New("alloc: memory overlap")

	// ErrInvalidParam indicates a malformed request (non-contiguous extension,
	// bad page size or alignment).
	ErrInvalidParam = errors.New("alloc: invalid parameter")

	// ErrInvalidAddress is returned in strict mode for deallocations outside
	// the managed span or with nothing live.
	ErrInvalidAddress = errors.New("alloc: invalid address")

	// ErrNotOwned is returned in strict mode for page runs that cannot be
	// reclaimed because they are not the most recently carved run.
	ErrNotOwned = errors.New("alloc: page run not reclaimable")

	// ErrCorrupt indicates an internal invariant no longer holds.
	ErrCorrupt = errors.New("alloc: allocator state corrupt")
)
