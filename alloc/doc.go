// Package alloc provides the early boot memory allocator used before a full
// heap allocator and physical page allocator are available.
//
// # Overview
//
// EarlyAllocator manages one contiguous span and serves two kinds of
// requests from it: variably sized byte allocations growing forward from the
// low end, and page allocations growing backward from the high end.
//
//	[ bytes-used | available | pages-used ]
//	|            | -->    <-- |           |
//	start       bPos        pPos        end
//
// Allocation on either side fails with ErrNoMemory once the two cursors meet.
// The whole state is five integers; there is no free list.
//
// # Reclamation
//
// Bytes: freeing the most recent allocation rolls the byte cursor back. Any
// other free is bookkeeping only, and the whole byte region is reclaimed the
// moment the live allocation count drops to zero.
//
// Pages: a run is returned only when it is the most recently carved one
// (its address equals the page cursor). Anything else stays used until the
// allocator is retired.
//
// # Capabilities
//
// The allocator implements three interfaces consumed by the boot code:
//
//   - BaseAllocator: Init, AddMemory
//   - ByteAllocator: Alloc, Dealloc and byte accounting
//   - PageAllocator: PageSize, AllocPages, DeallocPages and page accounting
//
// # Usage Example
//
//	ea, err := alloc.NewEarly(4096)
//	if err != nil {
//	    return err
//	}
//	ea.Init(0x100000, 1<<20)
//
//	addr, err := ea.Alloc(alloc.Layout{Size: 128, Align: 8})
//	if err != nil {
//	    return err
//	}
//	defer ea.Dealloc(addr, alloc.Layout{Size: 128, Align: 8})
//
//	pages, err := ea.AllocPages(4, 4096)
//
// # Thread Safety
//
// EarlyAllocator is not thread-safe. Callers confine it to one goroutine or
// wrap it with NewLocked.
package alloc
