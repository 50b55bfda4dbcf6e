package prefixtree

type options struct {
	fuzzy     bool
	stemming  bool
	threshold float64
}

func defaultOptions() options {
	return options{fuzzy: true, stemming: true}
}

// Option configures a Tree
type Option func(*options)

// WithFuzzy toggles the subsequence fallback pass
func WithFuzzy(enabled bool) Option {
	return func(o *options) { o.fuzzy = enabled }
}

// WithStemming toggles the stemmed word fallback pass
func WithStemming(enabled bool) Option {
	return func(o *options) { o.stemming = enabled }
}

// WithThreshold drops fuzzy matches whose similarity score is below t (0-1)
func WithThreshold(t float64) Option {
	return func(o *options) {
		if t >= 0 && t <= 1 {
			o.threshold = t
		}
	}
}
