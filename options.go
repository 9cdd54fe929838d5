package seenindex

// Option configures a Filter at construction time.
type Option func(*filterOptions)

type filterOptions struct {
	rounds   uint32 // number of hash rounds per element.
	maxBytes int    // ceiling on the backing array, in bytes.
}

func defaultFilterOptions() filterOptions {
	return filterOptions{
		rounds:   DefaultRounds,
		maxBytes: MaxFilterBytes,
	}
}

// WithRounds sets the number of hash rounds k. Filters that are combined or
// read back from disk must use the same k they were built with.
func WithRounds(k uint32) Option {
	return func(o *filterOptions) {
		o.rounds = k
	}
}

// WithMaxBytes caps the memory a filter or a decompression buffer may claim.
// Requests above the cap fail with ErrAllocation.
func WithMaxBytes(n int) Option {
	return func(o *filterOptions) {
		o.maxBytes = n
	}
}

func applyOptions(opts []Option) (filterOptions, error) {
	o := defaultFilterOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.rounds == 0 {
		return o, ErrInvalidRounds
	}
	return o, nil
}
