package decoder

import "go.uber.org/zap"

type config struct {
	logger         *zap.Logger
	maxSectionSize int
}

// Option configures a single call to DecodeModule or Frame.
type Option func(*config)

// WithLogger sends debug events about framing and decoding to l.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxSectionSize rejects any section whose declared length exceeds n
// bytes. Zero means no limit.
func WithMaxSectionSize(n int) Option {
	return func(c *config) {
		c.maxSectionSize = n
	}
}

func newConfig(opts []Option) config {
	c := config{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
