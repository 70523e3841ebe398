package alloc

type options struct {
	align  AlignPolicy
	strict bool
	tracer Tracer
}

// Option configures an EarlyAllocator at construction time.
type Option func(*options)

// WithAlignPolicy selects whether requested alignments move the cursors.
// The default is AlignEnforce.
func WithAlignPolicy(p AlignPolicy) Option {
	return func(o *options) { o.align = p }
}

// WithStrict makes deallocations of foreign or non-reclaimable memory
// return ErrInvalidAddress or ErrNotOwned instead of being ignored.
// State changes are the same in both modes.
func WithStrict(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithTracer installs t to observe every state-changing call.
func WithTracer(t Tracer) Option {
	return func(o *options) { o.tracer = t }
}
