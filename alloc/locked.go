package alloc

import "sync"

// Locked serializes every call to an EarlyAllocator with a mutex.
//
// The early allocator itself never locks; Locked is for integrations where
// more than one goroutine reaches the allocator during the handoff window.
type Locked struct {
	mu sync.Mutex
	ea *EarlyAllocator
}

// NewLocked wraps ea. ea must not be used directly afterwards.
func NewLocked(ea *EarlyAllocator) *Locked {
	return &Locked{ea: ea}
}

// Init implements BaseAllocator.
func (l *Locked) Init(start, size uintptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ea.Init(start, size)
}

// AddMemory implements BaseAllocator.
func (l *Locked) AddMemory(start, size uintptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ea.AddMemory(start, size)
}

// Alloc implements ByteAllocator.
func (l *Locked) Alloc(layout Layout) (uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ea.AllocBytes(layout)
}

// Dealloc implements ByteAllocator.
func (l *Locked) Dealloc(addr uintptr, layout Layout) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ea.DeallocBytes(addr, layout)
}

// PageSize implements PageAllocator.
func (l *Locked) PageSize() uintptr {
	return l.ea.PageSize()
}

// AllocPages implements PageAllocator.
func (l *Locked) AllocPages(numPages, alignPow2 uintptr) (uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ea.AllocPages(numPages, alignPow2)
}

// DeallocPages implements PageAllocator.
func (l *Locked) DeallocPages(addr, numPages uintptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ea.DeallocPages(addr, numPages)
}

// TotalBytes implements ByteAllocator.
func (l *Locked) TotalBytes() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ea.TotalBytes()
}

// UsedBytes implements ByteAllocator.
func (l *Locked) UsedBytes() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ea.UsedBytes()
}

// AvailableBytes implements ByteAllocator.
func (l *Locked) AvailableBytes() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ea.AvailableBytes()
}

// TotalPages implements PageAllocator.
func (l *Locked) TotalPages() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ea.TotalPages()
}

// UsedPages implements PageAllocator.
func (l *Locked) UsedPages() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ea.UsedPages()
}

// AvailablePages implements PageAllocator.
func (l *Locked) AvailablePages() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ea.AvailablePages()
}

// Stats returns a consistent snapshot of the wrapped allocator.
func (l *Locked) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ea.Stats()
}

// CheckInvariants runs EarlyAllocator.CheckInvariants under the lock.
func (l *Locked) CheckInvariants() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ea.CheckInvariants()
}

var (
	_ ByteAllocator = (*Locked)(nil)
	_ PageAllocator = (*Locked)(nil)
)
