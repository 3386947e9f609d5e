package dedupe

const defaultMaxSize = 50_000

type settings struct {
	maxSize int
}

// Option configures a Set.
type Option func(*settings)

// WithMaxSize bounds the number of keys kept. Zero or less means unbounded.
func WithMaxSize(n int) Option {
	return func(s *settings) {
		s.maxSize = n
	}
}
