package observe

import (
	"context"
	"errors"
	"time"

	"github.com/martinemde/toolrelay/agentloop"
	"github.com/martinemde/toolrelay/unifiedllm"
)

// Error kind attribute values.
const (
	KindConfiguration = "configuration"
	KindProvider      = "provider"
	KindAborted       = "aborted"
	KindOther         = "other"
)

// ErrorKind classifies err for the provider error counter.
func ErrorKind(err error) string {
	var (
		ce *unifiedllm.ConfigurationError
		pe *unifiedllm.ProviderError
		ae *unifiedllm.AbortError
	)
	switch {
	case errors.As(err, &ce):
		return KindConfiguration
	case errors.As(err, &ae), errors.Is(err, context.Canceled):
		return KindAborted
	case errors.As(err, &pe):
		return KindProvider
	}
	return KindOther
}

// ProviderMiddleware records a request count and latency for every provider
// round trip, and an error count by kind for failures.
func ProviderMiddleware(m *Metrics) unifiedllm.Middleware {
	return func(ctx context.Context, req unifiedllm.InvokeRequest, next unifiedllm.Handler) (*unifiedllm.Reply, error) {
		start := time.Now()
		reply, err := next(ctx, req)
		elapsed := time.Since(start)

		provider := string(req.Provider)
		switch {
		case err != nil:
			m.RecordProviderCall(ctx, provider, StatusError, elapsed)
			m.RecordProviderError(ctx, provider, ErrorKind(err))
		case reply == nil:
			m.RecordProviderCall(ctx, provider, StatusNoReply, elapsed)
		default:
			m.RecordProviderCall(ctx, provider, StatusOK, elapsed)
		}
		return reply, err
	}
}

// ToolObserver returns a registry observer that records tool metrics.
func ToolObserver(m *Metrics) agentloop.ToolObserver {
	return func(name string, elapsed time.Duration, failed bool) {
		status := StatusOK
		if failed {
			status = StatusError
		}
		m.RecordToolCall(context.Background(), name, status, elapsed)
	}
}
