package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedClient caps the request rate to a provider. Waiting honors
// the caller's context, so a turn timeout still aborts a queued call.
type RateLimitedClient struct {
	Client
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps c. A non-positive rps disables limiting.
func NewRateLimitedClient(c Client, rps float64, burst int) Client {
	if rps <= 0 {
		return c
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedClient{Client: c, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimitedClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Client.Complete(ctx, req)
}
