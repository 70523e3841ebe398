package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/joshuapare/earlyalloc/alloc"
	"github.com/joshuapare/earlyalloc/internal/arena"
)

// defaultMaxArena caps the memory mapped behind a scenario window.
const defaultMaxArena = 256 << 20

// Failure is one step that did not behave as scripted.
type Failure struct {
	Step    int    `json:"step"`
	Op      Op     `json:"op"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

func (f Failure) String() string {
	if f.ID != "" {
		return fmt.Sprintf("step %d (%s %s): %s", f.Step, f.Op, f.ID, f.Message)
	}
	return fmt.Sprintf("step %d (%s): %s", f.Step, f.Op, f.Message)
}

// Result summarizes a scenario run.
type Result struct {
	Name     string      `json:"name"`
	Steps    int         `json:"steps"`
	Backed   bool        `json:"backed"`
	Failures []Failure   `json:"failures"`
	Stats    alloc.Stats `json:"stats"`
}

// OK reports whether every step behaved as scripted.
func (r *Result) OK() bool { return len(r.Failures) == 0 }

type runConfig struct {
	arena    bool
	maxArena uint64
	log      zerolog.Logger
	tracer   alloc.Tracer
}

// RunOption configures Run.
type RunOption func(*runConfig)

// WithArena backs the scenario window with mapped memory (default true).
func WithArena(enabled bool) RunOption {
	return func(c *runConfig) { c.arena = enabled }
}

// WithMaxArena limits the mapped window; larger windows run unbacked.
func WithMaxArena(n uint64) RunOption {
	return func(c *runConfig) { c.maxArena = n }
}

// WithLogger sets the logger used for per-step records.
func WithLogger(l zerolog.Logger) RunOption {
	return func(c *runConfig) { c.log = l }
}

// WithTracer forwards allocator events to t.
func WithTracer(t alloc.Tracer) RunOption {
	return func(c *runConfig) { c.tracer = t }
}

// handle is a live, named allocation.
type handle struct {
	addr  uintptr
	size  uintptr // bytes, for both kinds
	align uintptr
	pages uintptr // page count for page runs
	run   bool    // page run rather than byte allocation
	tag   byte
}

type runner struct {
	ea     *alloc.EarlyAllocator
	region *arena.Region
	log    zerolog.Logger

	live    map[string]*handle
	lastTag byte
	res     *Result
}

// Run replays sc against a fresh allocator. It returns an error only when
// the scenario cannot be set up or ctx is cancelled; misbehaving steps are
// reported in Result.Failures.
func Run(ctx context.Context, sc *Scenario, opts ...RunOption) (*Result, error) {
	cfg := runConfig{arena: true, maxArena: defaultMaxArena, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	policy, _ := sc.AlignPolicy()
	aopts := []alloc.Option{alloc.WithAlignPolicy(policy), alloc.WithStrict(sc.Strict)}
	if cfg.tracer != nil {
		aopts = append(aopts, alloc.WithTracer(cfg.tracer))
	}
	ea, err := alloc.NewEarly(uintptr(sc.PageSize), aopts...)
	if err != nil {
		return nil, fmt.Errorf("page_size %d: %w", sc.PageSize, err)
	}

	ea.Init(uintptr(sc.Span.Start), uintptr(sc.Span.Size))
	for i, e := range sc.Extend {
		if err := ea.AddMemory(uintptr(e.Start), uintptr(e.Size)); err != nil {
			return nil, fmt.Errorf("extend[%d] %#x+%#x: %w", i, e.Start, e.Size, err)
		}
	}

	r := &runner{
		ea:   ea,
		log:  cfg.log.With().Str("scenario", sc.Name).Logger(),
		live: make(map[string]*handle),
		res:  &Result{Name: sc.Name, Failures: []Failure{}},
	}

	if cfg.arena {
		low, high := sc.Window()
		if high-low <= cfg.maxArena {
			region, err := arena.Map(uintptr(low), uintptr(high-low))
			if err != nil {
				return nil, err
			}
			defer region.Close()
			r.region = region
			r.res.Backed = true
		} else {
			r.log.Warn().
				Uint64("window", high-low).
				Uint64("max", cfg.maxArena).
				Msg("scenario window too large, running without backing memory")
		}
	}

	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			r.res.Stats = ea.Stats()
			return r.res, err
		}

		r.step(i, st)
		r.res.Steps++

		if err := ea.CheckInvariants(); err != nil {
			r.fail(i, st, err.Error())
		}

		bPos, pPos := ea.Cursors()
		r.log.Debug().
			Int("step", i).
			Str("op", string(st.Op)).
			Str("id", st.ID).
			Uint64("b_pos", uint64(bPos)).
			Uint64("p_pos", uint64(pPos)).
			Uint("b_count", ea.Live()).
			Msg("step done")
	}

	r.res.Stats = ea.Stats()
	return r.res, nil
}

func (r *runner) step(i int, st Step) {
	switch st.Op {
	case OpAlloc:
		r.alloc(i, st)
	case OpPages:
		r.allocPages(i, st)
	case OpFree:
		r.free(i, st)
	case OpFreePages:
		r.freePages(i, st)
	case OpExtend:
		err := r.ea.AddMemory(uintptr(st.Start), uintptr(st.Size))
		r.checkErr(i, st, err)
	case OpExpect:
		r.expect(i, st)
	}
}

func (r *runner) alloc(i int, st Step) {
	if !r.claimID(i, st) {
		return
	}
	layout := alloc.Layout{Size: uintptr(st.Size), Align: uintptr(st.Align)}
	addr, err := r.ea.Alloc(layout)
	if !r.checkErr(i, st, err) {
		return
	}
	r.track(i, st, &handle{addr: addr, size: layout.Size, align: layout.Align})
}

func (r *runner) allocPages(i int, st Step) {
	if !r.claimID(i, st) {
		return
	}
	addr, err := r.ea.AllocPages(uintptr(st.Count), uintptr(st.Align))
	if !r.checkErr(i, st, err) {
		return
	}
	r.track(i, st, &handle{
		addr:  addr,
		size:  uintptr(st.Count) * r.ea.PageSize(),
		pages: uintptr(st.Count),
		run:   true,
	})
}

func (r *runner) free(i int, st Step) {
	if st.ID == "" {
		err := r.ea.Dealloc(uintptr(*st.Addr), alloc.Layout{Size: uintptr(st.Size), Align: uintptr(st.Align)})
		r.checkErr(i, st, err)
		return
	}

	h := r.lookup(i, st, false)
	if h == nil {
		return
	}
	r.verify(i, st, h)
	err := r.ea.Dealloc(h.addr, alloc.Layout{Size: h.size, Align: h.align})
	r.checkErr(i, st, err)
	delete(r.live, st.ID)
}

func (r *runner) freePages(i int, st Step) {
	if st.ID == "" {
		err := r.ea.DeallocPages(uintptr(*st.Addr), uintptr(st.Count))
		r.checkErr(i, st, err)
		return
	}

	h := r.lookup(i, st, true)
	if h == nil {
		return
	}
	r.verify(i, st, h)
	err := r.ea.DeallocPages(h.addr, h.pages)
	r.checkErr(i, st, err)
	delete(r.live, st.ID)
}

func (r *runner) expect(i int, st Step) {
	s := r.ea.Stats()
	var diffs []string
	check := func(name string, want *uint64, got uint64) {
		if want != nil && *want != got {
			diffs = append(diffs, fmt.Sprintf("%s=%d, want %d", name, got, *want))
		}
	}
	check("b_pos", st.BytePos, uint64(s.BytePos))
	check("p_pos", st.PagePos, uint64(s.PagePos))
	check("b_count", st.Live, uint64(s.Live))
	check("total_bytes", st.TotalBytes, uint64(s.TotalBytes))
	check("used_bytes", st.UsedBytes, uint64(s.UsedBytes))
	check("available_bytes", st.AvailableBytes, uint64(s.AvailableBytes))
	check("total_pages", st.TotalPages, uint64(s.TotalPages))
	check("used_pages", st.UsedPages, uint64(s.UsedPages))
	check("available_pages", st.AvailablePages, uint64(s.AvailablePages))

	if len(diffs) > 0 {
		r.fail(i, st, strings.Join(diffs, "; "))
	}
}

// claimID rejects ids that are already live.
func (r *runner) claimID(i int, st Step) bool {
	if st.ID == "" {
		return true
	}
	if _, ok := r.live[st.ID]; ok {
		r.fail(i, st, "id is already live")
		return false
	}
	return true
}

func (r *runner) lookup(i int, st Step, pages bool) *handle {
	h, ok := r.live[st.ID]
	if !ok {
		r.fail(i, st, "unknown id")
		return nil
	}
	if h.run != pages {
		r.fail(i, st, "id names the wrong kind of allocation")
		return nil
	}
	return h
}

// track stamps a fresh allocation and remembers it under its id.
func (r *runner) track(i int, st Step, h *handle) {
	r.lastTag = r.lastTag%0xff + 1
	h.tag = r.lastTag

	if r.region != nil && h.size > 0 {
		if err := r.region.Fill(h.addr, h.size, h.tag); err != nil {
			r.fail(i, st, err.Error())
		}
	}
	if st.ID != "" {
		r.live[st.ID] = h
	}
}

// verify checks that a live allocation still holds its stamp.
func (r *runner) verify(i int, st Step, h *handle) {
	if r.region == nil || h.size == 0 {
		return
	}
	bad, ok, err := r.region.Verify(h.addr, h.size, h.tag)
	if err != nil {
		r.fail(i, st, err.Error())
		return
	}
	if !ok {
		r.fail(i, st, fmt.Sprintf("allocation overwritten at %#x", bad))
	}
}

// checkErr compares err with the step's expected error and reports whether
// the operation succeeded.
func (r *runner) checkErr(i int, st Step, err error) bool {
	want := errorNames[st.Error]
	switch {
	case want == nil && err != nil:
		r.fail(i, st, fmt.Sprintf("unexpected error: %v", err))
	case want != nil && err == nil:
		r.fail(i, st, fmt.Sprintf("expected %s, got success", st.Error))
	case want != nil && !errors.Is(err, want):
		r.fail(i, st, fmt.Sprintf("expected %s, got %v", st.Error, err))
	}
	return err == nil
}

func (r *runner) fail(i int, st Step, msg string) {
	f := Failure{Step: i, Op: st.Op, ID: st.ID, Message: msg}
	r.res.Failures = append(r.res.Failures, f)
	r.log.Warn().
		Int("step", i).
		Str("op", string(st.Op)).
		Str("id", st.ID).
		Msg(msg)
}
