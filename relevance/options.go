package relevance

type Option func(v *Validator)

// WithThresholds overrides the token corroboration thresholds
func WithThresholds(t Thresholds) Option {
	return func(v *Validator) {
		v.thresholds = t
	}
}

// WithStopwords replaces the default stopword list
func WithStopwords(words []string) Option {
	return func(v *Validator) {
		v.stopwords = toSet(words)
	}
}
