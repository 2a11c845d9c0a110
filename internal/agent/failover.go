package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/soyeahso/sawt/internal/llm"
	"github.com/soyeahso/sawt/internal/logging"
	"github.com/soyeahso/sawt/internal/metrics"
)

// FailoverClient wraps an LLM registry to try fallback providers when a
// provider rejects a request. A request that may have reached the model is
// never sent again.
type FailoverClient struct {
	registry  *llm.Registry
	primary   string
	fallbacks []string
	log       *logging.Logger
}

// NewFailoverClient creates a client that tries the primary model first,
// then falls back through the list on rejections (401, 403, 429).
func NewFailoverClient(registry *llm.Registry, primary string, fallbacks []string, log *logging.Logger) *FailoverClient {
	return &FailoverClient{
		registry:  registry,
		primary:   primary,
		fallbacks: fallbacks,
		log:       log.Sub("failover"),
	}
}

// Name returns the primary model reference.
func (f *FailoverClient) Name() string { return "failover:" + f.primary }

// Complete tries the primary provider, falling back on rejections.
func (f *FailoverClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	refs := append([]string{f.primary}, f.fallbacks...)
	m := metrics.Get()

	var lastErr error
	for _, ref := range refs {
		client, model, err := f.registry.Resolve(ref)
		if err != nil {
			f.log.Debug().Str("model", ref).Err(err).Msg("no provider for model, skipping")
			lastErr = err
			continue
		}

		req.Model = model
		resp, err := client.Complete(ctx, req)
		if err == nil {
			m.LLMRequestsTotal.WithLabelValues(client.Name(), "ok").Inc()
			return resp, nil
		}

		lastErr = err

		if isRetryable(err) {
			m.LLMRequestsTotal.WithLabelValues(client.Name(), "rejected").Inc()
			f.log.Warn().
				Str("model", ref).
				Err(err).
				Msg("provider rejected request, trying next provider")
			continue
		}

		m.LLMRequestsTotal.WithLabelValues(client.Name(), "error").Inc()
		return nil, err
	}

	return nil, lastErr
}

// isRetryable reports whether the provider refused the request outright, so
// trying another provider cannot duplicate work. A 5xx may arrive after the
// model ran and is not retryable, nor are timeouts.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var provErr *llm.ProviderError
	if errors.As(err, &provErr) && provErr.Code > 0 {
		switch provErr.Code {
		case 401, 403, 429:
			return true
		}
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "capacity")
}
