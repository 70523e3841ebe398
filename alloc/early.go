package alloc

// EarlyAllocator is a double-ended bump allocator over one memory span.
//
// Bytes are allocated forward from the low end and pages backward from the
// high end:
//   - Byte allocations bump bPos. liveBytes counts outstanding allocations;
//     when it drops to zero the whole byte region is reclaimed.
//   - Page allocations bump pPos down by whole pages. A page run is only
//     reclaimed when it is the most recently carved one.
//
// The zero value has no page size; use NewEarly.
type EarlyAllocator struct {
	start uintptr
	end   uintptr

	// bPos is the next free byte; [start, bPos) is the used byte region.
	bPos uintptr

	// pPos is the lowest carved page; [pPos, end) is the used page region.
	pPos uintptr

	// liveBytes is the number of outstanding byte allocations, not bytes.
	liveBytes uint

	pageSize uintptr
	opts     options
}

// NewEarly creates an allocator with the given page size and no memory.
// Call Init before allocating.
//
// pageSize must be a power of two.
func NewEarly(pageSize uintptr, opts ...Option) (*EarlyAllocator, error) {
	if !isPow2(pageSize) {
		return nil, ErrInvalidParam
	}

	ea := &EarlyAllocator{pageSize: pageSize}
	for _, opt := range opts {
		opt(&ea.opts)
	}
	return ea, nil
}

// Init resets the allocator to manage [start, start+size).
// Any previous state is discarded.
func (ea *EarlyAllocator) Init(start, size uintptr) {
	ea.start = start
	ea.end = start + size
	ea.bPos = start
	ea.pPos = ea.end
	ea.liveBytes = 0

	ea.trace(EventInit, start, size, nil, false)
}

// AddMemory prepends [start, start+size) to the managed span.
//
// The region must end exactly where the current span begins. If no byte
// allocation is live the byte cursor moves down with the span start, so the
// new memory is usable at once; otherwise it becomes usable after the next
// full drain.
func (ea *EarlyAllocator) AddMemory(start, size uintptr) error {
	regionEnd, ok := addOK(start, size)
	if !ok {
		ea.trace(EventAddMemory, start, size, ErrInvalidParam, false)
		return ErrInvalidParam
	}
	if regionEnd > ea.start && start < ea.end {
		ea.trace(EventAddMemory, start, size, ErrMemoryOverlap, false)
		return ErrMemoryOverlap
	}
	if regionEnd != ea.start {
		ea.trace(EventAddMemory, start, size, ErrInvalidParam, false)
		return ErrInvalidParam
	}

	ea.start = start
	if ea.liveBytes == 0 {
		ea.bPos = start
	}

	ea.trace(EventAddMemory, start, size, nil, false)
	return nil
}

// Alloc implements ByteAllocator.
func (ea *EarlyAllocator) Alloc(layout Layout) (uintptr, error) {
	return ea.AllocBytes(layout)
}

// Dealloc implements ByteAllocator.
func (ea *EarlyAllocator) Dealloc(addr uintptr, layout Layout) error {
	return ea.DeallocBytes(addr, layout)
}

// AllocBytes bumps the byte cursor by layout.Size and returns the old
// (aligned) cursor. It fails with ErrNoMemory if the allocation would reach
// into the page region.
func (ea *EarlyAllocator) AllocBytes(layout Layout) (uintptr, error) {
	addr := ea.bPos

	if ea.opts.align == AlignEnforce {
		align := layout.Align
		if align == 0 {
			align = 1
		}
		if !isPow2(align) {
			ea.trace(EventAllocBytes, addr, layout.Size, ErrInvalidParam, false)
			return 0, ErrInvalidParam
		}
		var ok bool
		if addr, ok = alignUp(addr, align); !ok {
			ea.trace(EventAllocBytes, ea.bPos, layout.Size, ErrNoMemory, false)
			return 0, ErrNoMemory
		}
	}

	allocEnd, ok := addOK(addr, layout.Size)
	if !ok || allocEnd > ea.pPos {
		ea.trace(EventAllocBytes, addr, layout.Size, ErrNoMemory, false)
		return 0, ErrNoMemory
	}

	ea.bPos = allocEnd
	ea.liveBytes++

	ea.trace(EventAllocBytes, addr, layout.Size, nil, false)
	return addr, nil
}

// DeallocBytes releases a byte allocation.
//
// Freeing the most recent allocation rolls the cursor back to addr. Any
// other free only decrements the live count; once it reaches zero the whole
// byte region is reclaimed. Requests with nothing live or with addr outside
// the span are ignored (ErrInvalidAddress in strict mode).
func (ea *EarlyAllocator) DeallocBytes(addr uintptr, layout Layout) error {
	if ea.liveBytes == 0 || addr < ea.start || addr >= ea.end {
		return ea.reject(EventDeallocBytes, addr, layout.Size, ErrInvalidAddress)
	}

	reclaimed := false
	if allocEnd, ok := addOK(addr, layout.Size); ok && allocEnd == ea.bPos {
		ea.bPos = addr
		reclaimed = true
	}

	ea.liveBytes--
	if ea.liveBytes == 0 {
		ea.bPos = ea.start
		reclaimed = true
	}

	ea.trace(EventDeallocBytes, addr, layout.Size, nil, reclaimed)
	return nil
}

// AllocPages carves numPages pages from the top of the available region and
// returns the address of the run. It fails with ErrNoMemory if the run would
// reach into the byte region.
//
// With AlignEnforce and alignPow2 larger than the page size the run is
// lowered by whole pages until it is aligned; the skipped pages are counted
// as used.
func (ea *EarlyAllocator) AllocPages(numPages, alignPow2 uintptr) (uintptr, error) {
	if ea.pageSize == 0 {
		ea.trace(EventAllocPages, ea.pPos, numPages, ErrInvalidParam, false)
		return 0, ErrInvalidParam
	}

	runSize, ok := mulOK(numPages, ea.pageSize)
	if !ok || runSize > ea.pPos {
		ea.trace(EventAllocPages, ea.pPos, numPages, ErrNoMemory, false)
		return 0, ErrNoMemory
	}
	candidate := ea.pPos - runSize

	if ea.opts.align == AlignEnforce && alignPow2 > 1 {
		if !isPow2(alignPow2) {
			ea.trace(EventAllocPages, candidate, numPages, ErrInvalidParam, false)
			return 0, ErrInvalidParam
		}
		// Runs can only move in whole pages, so the page grid itself
		// must already satisfy the finer of the two alignments.
		if candidate%min(alignPow2, ea.pageSize) != 0 {
			ea.trace(EventAllocPages, candidate, numPages, ErrInvalidParam, false)
			return 0, ErrInvalidParam
		}
		if alignPow2 > ea.pageSize {
			candidate = alignDown(candidate, alignPow2)
		}
	}

	if candidate < ea.bPos {
		ea.trace(EventAllocPages, candidate, numPages, ErrNoMemory, false)
		return 0, ErrNoMemory
	}

	ea.pPos = candidate

	ea.trace(EventAllocPages, candidate, numPages, nil, false)
	return candidate, nil
}

// DeallocPages returns a page run to the available region, but only when
// addr is the current page cursor and the run stays within the span. Any
// other run is leaked until the allocator is retired (ErrNotOwned in strict
// mode); addresses outside the span are ignored (ErrInvalidAddress in strict
// mode).
func (ea *EarlyAllocator) DeallocPages(addr, numPages uintptr) error {
	if addr < ea.start || addr >= ea.end {
		return ea.reject(EventDeallocPages, addr, numPages, ErrInvalidAddress)
	}

	runSize, ok := mulOK(numPages, ea.pageSize)
	if !ok || addr != ea.pPos {
		return ea.reject(EventDeallocPages, addr, numPages, ErrNotOwned)
	}
	runEnd, ok := addOK(addr, runSize)
	if !ok || runEnd > ea.end {
		return ea.reject(EventDeallocPages, addr, numPages, ErrNotOwned)
	}

	ea.pPos = runEnd

	ea.trace(EventDeallocPages, addr, numPages, nil, true)
	return nil
}

// PageSize implements PageAllocator.
func (ea *EarlyAllocator) PageSize() uintptr {
	return ea.pageSize
}

// TotalBytes is the byte region capacity. It shrinks as pages are carved.
func (ea *EarlyAllocator) TotalBytes() uintptr {
	return ea.pPos - ea.start
}

// UsedBytes is the size of the byte region, including holes left by
// out-of-order frees.
func (ea *EarlyAllocator) UsedBytes() uintptr {
	return ea.bPos - ea.start
}

// AvailableBytes is the gap between the two cursors.
func (ea *EarlyAllocator) AvailableBytes() uintptr {
	return ea.pPos - ea.bPos
}

// TotalPages is the number of pages obtainable from the byte frontier up.
func (ea *EarlyAllocator) TotalPages() uintptr {
	return ea.pages(ea.end - ea.bPos)
}

// UsedPages is the number of carved pages, including leaked runs.
func (ea *EarlyAllocator) UsedPages() uintptr {
	return ea.pages(ea.end - ea.pPos)
}

// AvailablePages is the number of whole pages between the two cursors.
func (ea *EarlyAllocator) AvailablePages() uintptr {
	return ea.pages(ea.pPos - ea.bPos)
}

// Live returns the number of outstanding byte allocations.
func (ea *EarlyAllocator) Live() uint {
	return ea.liveBytes
}

// Span returns the managed span [start, end).
func (ea *EarlyAllocator) Span() (start, end uintptr) {
	return ea.start, ea.end
}

// Cursors returns the byte and page cursors.
func (ea *EarlyAllocator) Cursors() (bPos, pPos uintptr) {
	return ea.bPos, ea.pPos
}

// Stats returns a snapshot of the allocator state.
func (ea *EarlyAllocator) Stats() Stats {
	return Stats{
		Start:          ea.start,
		End:            ea.end,
		BytePos:        ea.bPos,
		PagePos:        ea.pPos,
		Live:           ea.liveBytes,
		PageSize:       ea.pageSize,
		TotalBytes:     ea.TotalBytes(),
		UsedBytes:      ea.UsedBytes(),
		AvailableBytes: ea.AvailableBytes(),
		TotalPages:     ea.TotalPages(),
		UsedPages:      ea.UsedPages(),
		AvailablePages: ea.AvailablePages(),
	}
}

func (ea *EarlyAllocator) pages(n uintptr) uintptr {
	if ea.pageSize == 0 {
		return 0
	}
	return n / ea.pageSize
}

// reject handles an ignored deallocation: nil normally, err in strict mode.
func (ea *EarlyAllocator) reject(kind EventKind, addr, size uintptr, err error) error {
	if !ea.opts.strict {
		err = nil
	}
	ea.trace(kind, addr, size, err, false)
	return err
}

func (ea *EarlyAllocator) trace(kind EventKind, addr, size uintptr, err error, reclaimed bool) {
	if ea.opts.tracer == nil {
		return
	}
	ea.opts.tracer.Trace(Event{
		Kind:      kind,
		Addr:      addr,
		Size:      size,
		Err:       err,
		Reclaimed: reclaimed,
		BytePos:   ea.bPos,
		PagePos:   ea.pPos,
		Live:      ea.liveBytes,
	})
}

// Compile-time interface checks
var (
	_ ByteAllocator = (*EarlyAllocator)(nil)
	_ PageAllocator = (*EarlyAllocator)(nil)
)
