package openai

import (
	"context"

	"github.com/poiesic/ragline/ai"
	"golang.org/x/time/rate"
)

// limiter throttles calls to one inference service.
// A nil limiter never blocks.
type limiter struct {
	bucket *rate.Limiter
}

func newLimiter(config *ai.Config) *limiter {
	if config.RequestsPerSecond <= 0 {
		return &limiter{}
	}
	return &limiter{bucket: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)}
}

// Wait blocks until a request may be sent or ctx is done.
func (l *limiter) Wait(ctx context.Context) error {
	if l == nil || l.bucket == nil {
		return nil
	}
	return l.bucket.Wait(ctx)
}
