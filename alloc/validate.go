package alloc

import "fmt"

// CheckInvariants verifies the cursor invariants of the allocator and
// returns an error wrapping ErrCorrupt describing the first violation.
func (ea *EarlyAllocator) CheckInvariants() error {
	if !(ea.start <= ea.bPos && ea.bPos <= ea.pPos && ea.pPos <= ea.end) {
		return fmt.Errorf("%w: cursor order start=%#x bPos=%#x pPos=%#x end=%#x",
			ErrCorrupt, ea.start, ea.bPos, ea.pPos, ea.end)
	}
	if ea.pageSize != 0 && (ea.end-ea.pPos)%ea.pageSize != 0 {
		return fmt.Errorf("%w: page region %#x-%#x is not a whole number of %d-byte pages",
			ErrCorrupt, ea.pPos, ea.end, ea.pageSize)
	}
	// Zero-sized allocations leave bPos at start while live, so only the
	// drained direction is checked.
	if ea.liveBytes == 0 && ea.bPos != ea.start {
		return fmt.Errorf("%w: live=%d but bPos=%#x start=%#x",
			ErrCorrupt, ea.liveBytes, ea.bPos, ea.start)
	}
	return nil
}
