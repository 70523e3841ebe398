// Package arena provides real memory behind an allocator address window.
//
// A Region maps size bytes of anonymous memory and presents them as the
// address range [base, base+size), so addresses handed out by an
// alloc.EarlyAllocator can be turned into byte slices and written to.
package arena

import (
	"errors"
	"fmt"
)

// ErrOutOfRange indicates a view that does not fit inside the region.
var ErrOutOfRange = errors.New("arena: range outside region")

// Region is a window of mapped memory addressed from base.
type Region struct {
	base  uintptr
	data  []byte
	unmap func() error
}

// Map returns a zeroed region covering [base, base+size).
func Map(base, size uintptr) (*Region, error) {
	if base+size < base {
		return nil, fmt.Errorf("arena: window %#x+%#x overflows", base, size)
	}
	if size > uintptr(^uint(0)>>1) {
		return nil, fmt.Errorf("arena: window too large to map (%d bytes)", size)
	}

	data, unmap, err := mapAnon(int(size))
	if err != nil {
		return nil, fmt.Errorf("arena: map %d bytes: %w", size, err)
	}
	return &Region{base: base, data: data, unmap: unmap}, nil
}

// Base returns the first address of the window.
func (r *Region) Base() uintptr { return r.base }

// End returns the address one past the window.
func (r *Region) End() uintptr { return r.base + uintptr(len(r.data)) }

// Len returns the window size in bytes.
func (r *Region) Len() int { return len(r.data) }

// Slice returns the n bytes at addr.
func (r *Region) Slice(addr, n uintptr) ([]byte, error) {
	if addr < r.base || addr > r.End() || n > r.End()-addr {
		return nil, fmt.Errorf("%w: %#x+%d not in [%#x, %#x)", ErrOutOfRange, addr, n, r.base, r.End())
	}
	off := addr - r.base
	return r.data[off : off+n : off+n], nil
}

// Fill sets the n bytes at addr to b.
func (r *Region) Fill(addr, n uintptr, b byte) error {
	buf, err := r.Slice(addr, n)
	if err != nil {
		return err
	}
	for i := range buf {
		buf[i] = b
	}
	return nil
}

// Verify reports the first address in [addr, addr+n) not holding b.
// ok is true if every byte matches.
func (r *Region) Verify(addr, n uintptr, b byte) (bad uintptr, ok bool, err error) {
	buf, err := r.Slice(addr, n)
	if err != nil {
		return 0, false, err
	}
	for i, got := range buf {
		if got != b {
			return addr + uintptr(i), false, nil
		}
	}
	return 0, true, nil
}

// Close releases the mapping. Close is safe to call more than once.
func (r *Region) Close() error {
	if r.unmap == nil {
		return nil
	}
	err := r.unmap()
	r.unmap = nil
	r.data = nil
	return err
}
