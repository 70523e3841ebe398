package alloc

// Layout describes a byte allocation request.
type Layout struct {
	Size  uintptr
	Align uintptr // power of two; 0 means 1
}

// AlignPolicy controls whether requested alignments move the cursors.
type AlignPolicy uint8

const (
	// AlignEnforce rounds cursors to the requested alignment.
	AlignEnforce AlignPolicy = iota
	// AlignIgnore accepts the alignment argument but never rounds.
	AlignIgnore
)

func (p AlignPolicy) String() string {
	switch p {
	case AlignEnforce:
		return "enforce"
	case AlignIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

// BaseAllocator is the lifecycle capability shared by every boot allocator.
type BaseAllocator interface {
	// Init hands the allocator the span [start, start+size).
	Init(start, size uintptr)

	// AddMemory prepends [start, start+size) to the managed span.
	// The region must end exactly at the current span start.
	AddMemory(start, size uintptr) error
}

// ByteAllocator serves variably sized allocations.
type ByteAllocator interface {
	BaseAllocator

	// Alloc returns the address of a new allocation described by layout.
	Alloc(layout Layout) (uintptr, error)

	// Dealloc releases an allocation previously returned by Alloc.
	// Malformed requests are ignored unless the allocator is strict.
	Dealloc(addr uintptr, layout Layout) error

	TotalBytes() uintptr
	UsedBytes() uintptr
	AvailableBytes() uintptr
}

// PageAllocator serves page-granularity allocations.
type PageAllocator interface {
	BaseAllocator

	// PageSize is fixed for the lifetime of the allocator.
	PageSize() uintptr

	// AllocPages returns the address of numPages contiguous pages.
	AllocPages(numPages, alignPow2 uintptr) (uintptr, error)

	// DeallocPages releases a page run previously returned by AllocPages.
	DeallocPages(addr, numPages uintptr) error

	TotalPages() uintptr
	UsedPages() uintptr
	AvailablePages() uintptr
}

// Stats is a point-in-time snapshot of allocator state and accounting.
type Stats struct {
	Start    uintptr `json:"start"`
	End      uintptr `json:"end"`
	BytePos  uintptr `json:"b_pos"`
	PagePos  uintptr `json:"p_pos"`
	Live     uint    `json:"b_count"`
	PageSize uintptr `json:"page_size"`

	TotalBytes     uintptr `json:"total_bytes"`
	UsedBytes      uintptr `json:"used_bytes"`
	AvailableBytes uintptr `json:"available_bytes"`

	TotalPages     uintptr `json:"total_pages"`
	UsedPages      uintptr `json:"used_pages"`
	AvailablePages uintptr `json:"available_pages"`
}
