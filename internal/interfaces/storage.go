package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/venator/internal/models"
)

// JobFilter selects records from the store. Zero values mean "no
// constraint". Results are ordered by last_seen_at descending; ties break
// by fingerprint so the order is stable.
type JobFilter struct {
	Statuses []models.JobStatus
	MinScore float64 // final_score lower bound; zero means unbounded
	MaxScore float64 // final_score upper bound; zero means unbounded
	Site     string
	Keyword  string
	Since    time.Time // last_seen_at lower bound
	Limit    int
}

// JobStore is the per-profile durable record store. All operations are safe
// from multiple workers; upsert and status transitions are linearizable per
// fingerprint.
type JobStore interface {
	// Upsert inserts or merges a record keyed by fingerprint. Scoring
	// fields and search_keyword are never overwritten; scraped_at is
	// preserved from the first insert and last_seen_at refreshed on every
	// call.
	Upsert(ctx context.Context, record *models.JobRecord) (models.UpsertResult, error)

	// GetByFingerprint returns a record or KindNotFound.
	GetByFingerprint(ctx context.Context, fingerprint string) (*models.JobRecord, error)

	// AdvanceStatus performs a compare-and-swap on status. Fails with
	// KindNotFound when no record exists and KindInvalid when the current
	// status does not equal from or the transition is not a forward edge.
	AdvanceStatus(ctx context.Context, fingerprint string, from, to models.JobStatus) error

	// UpdateStage1 writes stage1 results atomically with the
	// scraped -> stage1_scored transition.
	UpdateStage1(ctx context.Context, fingerprint string, score float64, reasons []string, at time.Time) error

	// UpdateStage2 writes stage2 results and the blended final score
	// atomically with the stage1_scored -> processed transition.
	UpdateStage2(ctx context.Context, fingerprint string, score float64, rationale string, skills, requirements []string, finalScore float64, at time.Time) error

	// Query returns a snapshot read of matching records. It may miss
	// concurrently inserted records but never returns a partially written
	// one.
	Query(ctx context.Context, filter *JobFilter) ([]*models.JobRecord, error)

	// Stats returns aggregate counts by status and site.
	Stats(ctx context.Context) (*models.StoreStats, error)

	// ResetForRescrape returns a record to scraped, clearing scores while
	// preserving the fingerprint and discovery fields.
	ResetForRescrape(ctx context.Context, fingerprint string) error

	// Purge deletes all records. Routine runs never call this.
	Purge(ctx context.Context) (int, error)
}

// RunLogStore is the append-only per-profile run log.
type RunLogStore interface {
	Append(ctx context.Context, entry *models.RunLogEntry) error
	List(ctx context.Context, profile string, limit int) ([]*models.RunLogEntry, error)
}

// KeyValueStore holds small metadata: the schema version and the stage2
// analysis cache.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// StorageManager bundles the per-profile stores behind one lifecycle.
type StorageManager interface {
	Jobs() JobStore
	RunLog() RunLogStore
	KV() KeyValueStore
	Close() error
}
