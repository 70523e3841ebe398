// Package report renders allocator statistics and scenario results for
// people (grouped numbers) and for tools (indented JSON).
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/earlyalloc/alloc"
	"github.com/joshuapare/earlyalloc/internal/scenario"
)

// Printer writes human-readable reports to an io.Writer.
type Printer struct {
	w io.Writer
	p *message.Printer
}

// New returns a Printer writing to w with English digit grouping.
func New(w io.Writer) *Printer {
	return &Printer{w: w, p: message.NewPrinter(language.English)}
}

func (p *Printer) printf(format string, args ...any) {
	p.p.Fprintf(p.w, format, args...)
}

// Stats prints a snapshot of allocator state.
func (p *Printer) Stats(s alloc.Stats) {
	p.printf("Span:      %#x - %#x (%s)\n", uint64(s.Start), uint64(s.End), Size(uint64(s.End-s.Start)))
	p.printf("Page size: %d bytes\n", uint64(s.PageSize))
	p.printf("Cursors:   b_pos=%#x p_pos=%#x b_count=%d\n", uint64(s.BytePos), uint64(s.PagePos), s.Live)
	p.printf("\n")
	p.printf("Bytes:     total %d  used %d  available %d\n",
		uint64(s.TotalBytes), uint64(s.UsedBytes), uint64(s.AvailableBytes))
	p.printf("Pages:     total %d  used %d  available %d\n",
		uint64(s.TotalPages), uint64(s.UsedPages), uint64(s.AvailablePages))
}

// Result prints a scenario outcome followed by the final allocator state.
func (p *Printer) Result(r *scenario.Result) {
	backing := "unbacked"
	if r.Backed {
		backing = "backed"
	}
	status := "PASS"
	if !r.OK() {
		status = "FAIL"
	}
	p.printf("%s %s: %d steps, %d failures (%s)\n", status, r.Name, r.Steps, len(r.Failures), backing)
	for _, f := range r.Failures {
		p.printf("  %s\n", f.String())
	}
	p.printf("\n")
	p.Stats(r.Stats)
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// Size formats a byte count with a binary unit.
func Size(n uint64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d bytes", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	case n < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(n)/(1024*1024*1024))
	}
}
