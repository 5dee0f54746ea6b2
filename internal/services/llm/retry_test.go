package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"http 429", errors.New("googleapi: Error 429: Resource has been exhausted"), true},
		{"resource exhausted", errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED"), true},
		{"anthropic rate limit", errors.New("rate_limit_error: Number of request tokens has exceeded your limit"), true},
		{"quota", errors.New("Quota exceeded for quota metric"), true},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimitError(tt.err))
		})
	}
}

func TestExtractRetryDelay(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"nil", nil, 0},
		{"please retry", errors.New("Error 429. Please retry in 27s."), 27 * time.Second},
		{"retryDelay field", errors.New(`details: {retryDelay: 12s}`), 12 * time.Second},
		{"fractional seconds", errors.New("Please retry in 2.5s"), 2500 * time.Millisecond},
		{"no delay", errors.New("Error 429"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractRetryDelay(tt.err))
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := NewDefaultRetryConfig()

	// First attempt uses the initial backoff as-is.
	assert.Equal(t, 45*time.Second, cfg.CalculateBackoff(0, 0))

	// Exponential growth, capped.
	assert.Equal(t, 67500*time.Millisecond, cfg.CalculateBackoff(1, 0))
	assert.Equal(t, cfg.MaxBackoff, cfg.CalculateBackoff(2, 0))
	assert.Equal(t, cfg.MaxBackoff, cfg.CalculateBackoff(10, 0))

	// An API-suggested delay overrides the base, plus a safety margin.
	assert.Equal(t, 25*time.Second, cfg.CalculateBackoff(0, 20*time.Second))
}
