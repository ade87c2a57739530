package cripta

type options struct {
	trace         TraceFunc
	parallelism   int
	strictPadding bool
}

// Option configures NewDESCipher and NewPaddedCipher.
type Option func(*options)

// WithTrace installs a hook that receives every intermediate bit sequence.
func WithTrace(trace TraceFunc) Option {
	return func(o *options) {
		o.trace = trace
	}
}

// WithParallelism lets PaddedCipher process up to n blocks at once.
// Values below 2 keep the sequential path.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithStrictPadding makes Decrypt fail with ErrInvalidPadding instead of
// returning a buffer whose padding could not be verified.
func WithStrictPadding() Option {
	return func(o *options) {
		o.strictPadding = true
	}
}

func collectOptions(opts []Option) options {
	o := options{parallelism: 1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
