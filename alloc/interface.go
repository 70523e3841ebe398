package alloc

// EventKind identifies the operation that produced an Event.
type EventKind uint8

const (
	// EventInit is emitted by Init.
	EventInit EventKind = iota + 1
	// EventAddMemory is emitted by AddMemory.
	EventAddMemory
	// EventAllocBytes is emitted by AllocBytes and Alloc.
	EventAllocBytes
	// EventDeallocBytes is emitted by DeallocBytes and Dealloc.
	EventDeallocBytes
	// EventAllocPages is emitted by AllocPages.
	EventAllocPages
	// EventDeallocPages is emitted by DeallocPages.
	EventDeallocPages
)

// String returns the snake_case name used in logs.
func (k EventKind) String() string {
	switch k {
	case EventInit:
		return "init"
	case EventAddMemory:
		return "add_memory"
	case EventAllocBytes:
		return "alloc_bytes"
	case EventDeallocBytes:
		return "dealloc_bytes"
	case EventAllocPages:
		return "alloc_pages"
	case EventDeallocPages:
		return "dealloc_pages"
	default:
		return "unknown"
	}
}

// Event describes one state-changing call and the cursors it left behind.
type Event struct {
	Kind EventKind

	Addr uintptr // address passed in or returned
	Size uintptr // bytes for byte ops and AddMemory/Init, pages for page ops
	Err  error   // non-nil for failed or strict-rejected calls

	// Reclaimed reports that the call moved a cursor back
	// (rollback, amnesty or page run return).
	Reclaimed bool

	BytePos uintptr
	PagePos uintptr
	Live    uint
}

// Tracer is notified after every state-changing call.
//
// Implementations must not call back into the allocator.
type Tracer interface {
	Trace(ev Event)
}

// TracerFunc adapts a function to the Tracer interface.
type TracerFunc func(ev Event)

// Trace calls f(ev).
func (f TracerFunc) Trace(ev Event) { f(ev) }
