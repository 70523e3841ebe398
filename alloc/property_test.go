package alloc

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

type liveRange struct {
	addr, size uintptr
	pages      bool
}

func (r liveRange) end() uintptr { return r.addr + r.size }

func overlaps(a, b liveRange) bool {
	if a.size == 0 || b.size == 0 {
		return false
	}
	return a.addr < b.end() && b.addr < a.end()
}

// requireAccounting checks cursor order and both accounting identities.
func requireAccounting(t *testing.T, ea *EarlyAllocator, step int) {
	t.Helper()

	require.NoError(t, ea.CheckInvariants(), "step %d", step)
	require.Equal(t, ea.TotalBytes(), ea.UsedBytes()+ea.AvailableBytes(),
		"step %d: byte accounting", step)
	require.Equal(t, ea.TotalPages(), ea.UsedPages()+ea.AvailablePages(),
		"step %d: page accounting", step)
}

// Test_Property_RandomOps performs random allocations and frees and checks
// the invariants and that no two live allocations overlap.
func Test_Property_RandomOps(t *testing.T) {
	for _, policy := range []AlignPolicy{AlignEnforce, AlignIgnore} {
		t.Run(policy.String(), func(t *testing.T) {
			const pageSize = 256
			ea := newTestEarly(t, 0x10000, 64*pageSize, pageSize, WithAlignPolicy(policy))

			rng := rand.New(rand.NewSource(42)) // Fixed seed for reproducibility
			var live []liveRange

			checkFresh := func(step int, r liveRange) {
				for _, other := range live {
					require.False(t, overlaps(r, other),
						"step %d: %+v overlaps live %+v", step, r, other)
				}
				start, end := ea.Span()
				require.GreaterOrEqual(t, r.addr, start, "step %d", step)
				require.LessOrEqual(t, r.end(), end, "step %d", step)
			}

			for i := range 2000 {
				switch op := rng.Intn(5); op {
				case 0, 1: // Allocate bytes
					layout := Layout{Size: uintptr(rng.Intn(300)), Align: uintptr(1) << rng.Intn(5)}
					addr, err := ea.Alloc(layout)
					if err != nil {
						require.ErrorIs(t, err, ErrNoMemory, "step %d", i)
						continue
					}
					r := liveRange{addr: addr, size: layout.Size}
					checkFresh(i, r)
					if policy == AlignEnforce {
						require.Zero(t, addr%layout.Align, "step %d: misaligned", i)
					}
					live = append(live, r)

				case 2: // Allocate pages
					n := uintptr(1 + rng.Intn(3))
					addr, err := ea.AllocPages(n, pageSize)
					if err != nil {
						require.ErrorIs(t, err, ErrNoMemory, "step %d", i)
						continue
					}
					r := liveRange{addr: addr, size: n * pageSize, pages: true}
					checkFresh(i, r)
					live = append(live, r)

				case 3, 4: // Free something
					if len(live) == 0 {
						continue
					}
					idx := rng.Intn(len(live))
					r := live[idx]
					var err error
					if r.pages {
						_, pPos := ea.Cursors()
						err = ea.DeallocPages(r.addr, r.size/pageSize)
						if r.addr != pPos {
							// Leaked runs stay occupied
							requireAccounting(t, ea, i)
							continue
						}
					} else {
						err = ea.Dealloc(r.addr, Layout{Size: r.size})
					}
					require.NoError(t, err, "step %d", i)
					live = append(live[:idx], live[idx+1:]...)
				}

				requireAccounting(t, ea, i)
			}
		})
	}
}

// Test_Property_ByteReclamation frees N allocations in random order and
// checks that the byte region is fully reclaimed after the last one.
func Test_Property_ByteReclamation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := range 50 {
		ea := newTestEarly(t, 0x4000, 0x10000, 0x1000)
		start, _ := ea.Span()

		n := 1 + rng.Intn(40)
		allocs := make([]liveRange, 0, n)
		for range n {
			layout := Layout{Size: uintptr(1 + rng.Intn(200)), Align: 8}
			addr, err := ea.Alloc(layout)
			require.NoError(t, err, "round %d", round)
			allocs = append(allocs, liveRange{addr: addr, size: layout.Size})
		}

		for k, idx := range rng.Perm(n) {
			r := allocs[idx]
			require.NoError(t, ea.Dealloc(r.addr, Layout{Size: r.size, Align: 8}))
			require.Equal(t, uint(n-k-1), ea.Live(), "round %d", round)
			requireAccounting(t, ea, k)
		}

		bPos, _ := ea.Cursors()
		require.Equal(t, start, bPos, "round %d: byte region not reclaimed", round)
		require.Zero(t, ea.Live())
	}
}

// Test_Property_PageStackReclamation allocates page runs and frees them in
// reverse order, which must restore the page cursor exactly.
func Test_Property_PageStackReclamation(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	ea := newTestEarly(t, 0, 1<<20, 4096)

	type run struct{ addr, n, before uintptr }
	var stack []run
	for {
		_, before := ea.Cursors()
		n := uintptr(1 + rng.Intn(8))
		addr, err := ea.AllocPages(n, 4096)
		if err != nil {
			require.ErrorIs(t, err, ErrNoMemory)
			break
		}
		stack = append(stack, run{addr, n, before})
	}
	require.NotEmpty(t, stack)

	for i := len(stack) - 1; i >= 0; i-- {
		r := stack[i]
		require.NoError(t, ea.DeallocPages(r.addr, r.n))
		_, pPos := ea.Cursors()
		require.Equal(t, r.before, pPos)
	}
	require.Zero(t, ea.UsedPages())
}
