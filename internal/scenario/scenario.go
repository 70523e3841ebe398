// Package scenario replays scripted boot-time allocation sequences against
// an early allocator.
//
// A scenario describes the span handed to the allocator, optional lower
// spans prepended before the first step, and a list of steps:
//
//	name: boot
//	page_size: 4096
//	span: {start: 0x100000, size: 0x10000}
//	steps:
//	  - {op: alloc, id: a, size: 100, align: 8}
//	  - {op: pages, id: p, count: 2}
//	  - {op: free, id: a}
//	  - {op: expect, used_bytes: 0, used_pages: 2}
//	  - {op: alloc, size: 0x100000, error: no_memory}
//
// Allocations are named by id so later steps can free them. When the runner
// is backed by an arena every live allocation is stamped with its own byte
// pattern, and the pattern is verified when it is freed.
package scenario

import (
	"errors"
	"fmt"

	"github.com/joshuapare/earlyalloc/alloc"
)

// Op names a scenario step.
type Op string

const (
	OpAlloc     Op = "alloc"
	OpFree      Op = "free"
	OpPages     Op = "pages"
	OpFreePages Op = "free_pages"
	OpExtend    Op = "extend"
	OpExpect    Op = "expect"
)

// ErrInvalid indicates a malformed scenario.
var ErrInvalid = errors.New("scenario: invalid")

// errorNames maps the names usable in a step's error field.
var errorNames = map[string]error{
	"no_memory":       alloc.ErrNoMemory,
	"memory_overlap":  alloc.ErrMemoryOverlap,
	"invalid_param":   alloc.ErrInvalidParam,
	"invalid_address": alloc.ErrInvalidAddress,
	"not_owned":       alloc.ErrNotOwned,
}

// Span is an address range in a scenario file.
type Span struct {
	Start uint64 `yaml:"start"`
	Size  uint64 `yaml:"size"`
}

// Scenario is a parsed scenario file.
type Scenario struct {
	Name     string `yaml:"name"`
	PageSize uint64 `yaml:"page_size"`
	Align    string `yaml:"align"`
	Strict   bool   `yaml:"strict"`
	Span     Span   `yaml:"span"`
	Extend   []Span `yaml:"extend"`
	Steps    []Step `yaml:"steps"`
}

// Step is one scripted operation. Which fields apply depends on Op.
type Step struct {
	Op Op     `yaml:"op"`
	ID string `yaml:"id"`

	// alloc
	Size  uint64 `yaml:"size"`
	Align uint64 `yaml:"align"`

	// pages
	Count uint64 `yaml:"count"`

	// extend
	Start uint64 `yaml:"start"`

	// free / free_pages without an id: a raw, possibly foreign, address
	Addr *uint64 `yaml:"addr"`

	// Error, if set, is the error the step must fail with.
	Error string `yaml:"error"`

	// expect
	BytePos        *uint64 `yaml:"b_pos"`
	PagePos        *uint64 `yaml:"p_pos"`
	Live           *uint64 `yaml:"b_count"`
	TotalBytes     *uint64 `yaml:"total_bytes"`
	UsedBytes      *uint64 `yaml:"used_bytes"`
	AvailableBytes *uint64 `yaml:"available_bytes"`
	TotalPages     *uint64 `yaml:"total_pages"`
	UsedPages      *uint64 `yaml:"used_pages"`
	AvailablePages *uint64 `yaml:"available_pages"`
}

// AlignPolicy returns the allocator policy named by s.Align.
func (s *Scenario) AlignPolicy() (alloc.AlignPolicy, error) {
	switch s.Align {
	case "", "enforce":
		return alloc.AlignEnforce, nil
	case "ignore":
		return alloc.AlignIgnore, nil
	default:
		return 0, fmt.Errorf("%w: align %q (want enforce or ignore)", ErrInvalid, s.Align)
	}
}

// Window returns the lowest and one-past-highest address the scenario can
// reach, covering the span and every extension.
func (s *Scenario) Window() (low, high uint64) {
	low = s.Span.Start
	high = s.Span.Start + s.Span.Size
	for _, e := range s.Extend {
		low = min(low, e.Start)
	}
	for _, st := range s.Steps {
		if st.Op == OpExtend {
			low = min(low, st.Start)
		}
	}
	return low, high
}

// Validate checks the scenario for structural errors. It does not run it.
func (s *Scenario) Validate() error {
	if s.PageSize == 0 || s.PageSize&(s.PageSize-1) != 0 {
		return fmt.Errorf("%w: page_size %d is not a power of two", ErrInvalid, s.PageSize)
	}
	if _, err := s.AlignPolicy(); err != nil {
		return err
	}
	if s.Span.Start+s.Span.Size < s.Span.Start {
		return fmt.Errorf("%w: span overflows", ErrInvalid)
	}

	for i, st := range s.Steps {
		if st.Error != "" {
			if _, ok := errorNames[st.Error]; !ok {
				return fmt.Errorf("%w: step %d: unknown error %q", ErrInvalid, i, st.Error)
			}
		}

		switch st.Op {
		case OpAlloc, OpPages:
		case OpFree, OpFreePages:
			if st.ID == "" && st.Addr == nil {
				return fmt.Errorf("%w: step %d: %s needs id or addr", ErrInvalid, i, st.Op)
			}
		case OpExtend:
			if st.Size == 0 {
				return fmt.Errorf("%w: step %d: extend needs size", ErrInvalid, i)
			}
		case OpExpect:
			if st.Error != "" {
				return fmt.Errorf("%w: step %d: expect cannot carry an error", ErrInvalid, i)
			}
		default:
			return fmt.Errorf("%w: step %d: unknown op %q", ErrInvalid, i, st.Op)
		}
	}
	return nil
}
