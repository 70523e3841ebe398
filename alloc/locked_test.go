package alloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// TestLocked_ConcurrentAllocFree hammers one allocator from several
// goroutines and checks that no two byte allocations were handed the same
// address while live.
func TestLocked_ConcurrentAllocFree(t *testing.T) {
	ea := newTestEarly(t, 0, 1<<20, 4096)
	l := NewLocked(ea)

	var (
		mu    sync.Mutex
		owned = make(map[uintptr]int)
	)

	var g errgroup.Group
	for w := range 8 {
		g.Go(func() error {
			for range 500 {
				layout := Layout{Size: 32, Align: 8}
				addr, err := l.Alloc(layout)
				if err != nil {
					return err
				}

				mu.Lock()
				prev, clash := owned[addr]
				owned[addr] = w
				mu.Unlock()
				if clash {
					t.Errorf("address %#x handed to worker %d while owned by %d", addr, w, prev)
				}

				mu.Lock()
				delete(owned, addr)
				mu.Unlock()

				if err := l.Dealloc(addr, layout); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.NoError(t, l.CheckInvariants())
	st := l.Stats()
	assert.Zero(t, st.Live)
	assert.Zero(t, st.UsedBytes)
}

// TestLocked_Capabilities tests that Locked forwards every capability.
func TestLocked_Capabilities(t *testing.T) {
	ea, err := NewEarly(1024)
	require.NoError(t, err)

	var pa PageAllocator = NewLocked(ea)
	pa.Init(0x2000, 4096)
	require.NoError(t, pa.AddMemory(0x1000, 0x1000))

	p, err := pa.AllocPages(2, 1024)
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x2800), p)
	assert.Equal(t, uintptr(2), pa.UsedPages())
	assert.Equal(t, uintptr(6), pa.AvailablePages())
	assert.Equal(t, uintptr(8), pa.TotalPages())
	require.NoError(t, pa.DeallocPages(p, 2))
	assert.Equal(t, uintptr(1024), pa.PageSize())

	ba := pa.(ByteAllocator)
	addr, err := ba.Alloc(Layout{Size: 100, Align: 4})
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x1000), addr)
	assert.Equal(t, uintptr(100), ba.UsedBytes())
	assert.Equal(t, uintptr(0x2000), ba.TotalBytes())
	assert.Equal(t, uintptr(0x2000-100), ba.AvailableBytes())
	require.NoError(t, ba.Dealloc(addr, Layout{Size: 100, Align: 4}))
}
