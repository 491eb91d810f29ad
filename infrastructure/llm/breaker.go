package llm

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Breaker stops calling a failing provider for a while so AI jobs fail fast
// instead of piling up on timeouts.
type Breaker struct {
	inner Completer
	cb    *gobreaker.CircuitBreaker
}

func NewBreaker(name string, inner Completer) *Breaker {
	return &Breaker{
		inner: inner,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 3,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 5 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logrus.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("[LLM] Circuit breaker state changed")
			},
		}),
	}
}

func (b *Breaker) Complete(ctx context.Context, userPrompt, systemPrompt string, opts Options) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Complete(ctx, userPrompt, systemPrompt, opts)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state for the health endpoint.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
