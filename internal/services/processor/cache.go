package processor

import (
	"context"
	"encoding/json"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// CachedAnalyzer wraps an Analyzer with a fingerprint-keyed result cache in
// the profile's KV store so replaying a processing run costs nothing for
// records already analyzed.
type CachedAnalyzer struct {
	inner  interfaces.Analyzer
	kv     interfaces.KeyValueStore
	logger arbor.ILogger
}

func NewCachedAnalyzer(inner interfaces.Analyzer, kv interfaces.KeyValueStore, logger arbor.ILogger) *CachedAnalyzer {
	return &CachedAnalyzer{inner: inner, kv: kv, logger: logger}
}

func (c *CachedAnalyzer) Name() string { return c.inner.Name() }

func (c *CachedAnalyzer) cacheKey(fingerprint string) string {
	return "stage2:" + c.inner.Name() + ":" + fingerprint
}

func (c *CachedAnalyzer) Analyze(ctx context.Context, record *models.JobRecord, profile *models.Profile) (*interfaces.Analysis, error) {
	key := c.cacheKey(record.Fingerprint)

	if raw, found, err := c.kv.Get(ctx, key); err == nil && found {
		var cached interfaces.Analysis
		if json.Unmarshal([]byte(raw), &cached) == nil {
			c.logger.Debug().Str("fingerprint", record.Fingerprint).Msg("Stage2 cache hit")
			return &cached, nil
		}
		// Unreadable cache entries are dropped, not trusted.
		_ = c.kv.Delete(ctx, key)
	}

	analysis, err := c.inner.Analyze(ctx, record, profile)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(analysis); err == nil {
		if setErr := c.kv.Set(ctx, key, string(raw)); setErr != nil {
			c.logger.Warn().Err(setErr).Msg("Failed to cache stage2 analysis")
		}
	}
	return analysis, nil
}
