package scraper

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/venator/internal/common"
)

// Pacer spaces listing-page navigations. A shared rate limiter caps the
// aggregate request rate across workers; on top of that each page waits a
// jittered delay in [min, max] so the traffic pattern stays irregular.
type Pacer struct {
	limiter *rate.Limiter
	min     time.Duration
	max     time.Duration
}

// NewPacer derives the aggregate rate from the configured delay floor so
// burst traffic from parallel workers still honors the per-site budget.
func NewPacer(cfg common.ScraperConfig) *Pacer {
	minDelay := cfg.PageDelayMin
	if minDelay <= 0 {
		minDelay = 100 * time.Millisecond
	}
	maxDelay := cfg.PageDelayMax
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Pacer{
		limiter: rate.NewLimiter(rate.Every(minDelay), 1),
		min:     minDelay,
		max:     maxDelay,
	}
}

// Wait blocks until the next page fetch is allowed.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return common.E(common.KindCancelled, "pacer.wait", err)
	}

	delay := p.min
	if p.max > p.min {
		delay += time.Duration(rand.Int63n(int64(p.max - p.min)))
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return common.E(common.KindCancelled, "pacer.wait", ctx.Err())
	}
}
