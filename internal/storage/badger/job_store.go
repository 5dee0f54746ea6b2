package badger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// JobStore implements Badger-backed persistence for job records.
//
// A store-level mutex serializes read-modify-write cycles so upsert and the
// status compare-and-swap are linearizable per fingerprint within this
// process; Badger's directory lock excludes concurrent writer processes.
type JobStore struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewJobStore creates a new job store instance
func NewJobStore(db *BadgerDB, logger arbor.ILogger) interfaces.JobStore {
	return &JobStore{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts or merges a record keyed by fingerprint.
func (s *JobStore) Upsert(ctx context.Context, record *models.JobRecord) (models.UpsertResult, error) {
	const op = "store.upsert"

	if err := ctx.Err(); err != nil {
		return models.UpsertUnchanged, common.E(common.KindCancelled, op, err)
	}
	if record.SchemaVersion == 0 {
		record.SchemaVersion = models.CurrentSchemaVersion
	}
	if record.Status == "" {
		record.Status = models.StatusScraped
	}
	if err := record.Validate(); err != nil {
		return models.UpsertUnchanged, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	var existing models.JobRecord
	err := s.db.Store().Get(record.Fingerprint, &existing)
	if errors.Is(err, badgerhold.ErrNotFound) {
		if record.ScrapedAt.IsZero() {
			record.ScrapedAt = now
		}
		record.LastSeenAt = now
		if err := s.db.Store().Insert(record.Fingerprint, record); err != nil {
			return models.UpsertUnchanged, common.E(common.KindTransient, op, err)
		}
		return models.UpsertInserted, nil
	}
	if err != nil {
		return models.UpsertUnchanged, common.E(common.KindTransient, op, err)
	}

	migrateRecord(&existing)

	// Merge policy: incoming non-empty fills existing empty; scoring,
	// status, scraped_at, and search_keyword stay as first written.
	changed := existing.MergeDiscovery(record)
	existing.LastSeenAt = now

	if err := s.db.Store().Update(existing.Fingerprint, &existing); err != nil {
		return models.UpsertUnchanged, common.E(common.KindTransient, op, err)
	}
	if changed {
		return models.UpsertUpdated, nil
	}
	return models.UpsertUnchanged, nil
}

// GetByFingerprint returns a record or KindNotFound.
func (s *JobStore) GetByFingerprint(ctx context.Context, fingerprint string) (*models.JobRecord, error) {
	const op = "store.get"

	var record models.JobRecord
	if err := s.db.Store().Get(fingerprint, &record); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, common.Ef(common.KindNotFound, op, "no record with fingerprint %s", fingerprint)
		}
		return nil, common.E(common.KindTransient, op, err)
	}
	if migrateRecord(&record) {
		// Read-migration rewrites the record under the current schema.
		s.mu.Lock()
		if err := s.db.Store().Update(fingerprint, &record); err != nil {
			s.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Failed to persist migrated record")
		}
		s.mu.Unlock()
	}
	return &record, nil
}

// AdvanceStatus performs a compare-and-swap on the record's status.
func (s *JobStore) AdvanceStatus(ctx context.Context, fingerprint string, from, to models.JobStatus) error {
	const op = "store.advance_status"

	s.mu.Lock()
	defer s.mu.Unlock()

	var record models.JobRecord
	if err := s.db.Store().Get(fingerprint, &record); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return common.Ef(common.KindNotFound, op, "no record with fingerprint %s", fingerprint)
		}
		return common.E(common.KindTransient, op, err)
	}
	if record.Status != from {
		return common.Ef(common.KindInvalid, op, "status is %q, expected %q", record.Status, from)
	}
	if !from.CanAdvanceTo(to) {
		return common.Ef(common.KindInvalid, op, "illegal transition %q -> %q", from, to)
	}

	record.Status = to
	if err := s.db.Store().Update(fingerprint, &record); err != nil {
		return common.E(common.KindTransient, op, err)
	}
	return nil
}

// UpdateStage1 writes stage1 results atomically with the status advance.
func (s *JobStore) UpdateStage1(ctx context.Context, fingerprint string, score float64, reasons []string, at time.Time) error {
	const op = "store.update_stage1"

	if score < 0 || score > 1 {
		return common.Ef(common.KindInvalid, op, "stage1 score %f outside [0,1]", score)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var record models.JobRecord
	if err := s.db.Store().Get(fingerprint, &record); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return common.Ef(common.KindNotFound, op, "no record with fingerprint %s", fingerprint)
		}
		return common.E(common.KindTransient, op, err)
	}
	if record.Status != models.StatusScraped {
		return common.Ef(common.KindInvalid, op, "status is %q, expected %q", record.Status, models.StatusScraped)
	}

	record.Stage1Score = score
	record.Stage1Reasons = reasons
	record.Stage1At = at
	record.Status = models.StatusStage1Scored

	if err := s.db.Store().Update(fingerprint, &record); err != nil {
		return common.E(common.KindTransient, op, err)
	}
	return nil
}

// UpdateStage2 writes stage2 results and the final score atomically with
// the status advance.
func (s *JobStore) UpdateStage2(ctx context.Context, fingerprint string, score float64, rationale string, skills, requirements []string, finalScore float64, at time.Time) error {
	const op = "store.update_stage2"

	if score < 0 || score > 1 {
		return common.Ef(common.KindInvalid, op, "stage2 score %f outside [0,1]", score)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var record models.JobRecord
	if err := s.db.Store().Get(fingerprint, &record); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return common.Ef(common.KindNotFound, op, "no record with fingerprint %s", fingerprint)
		}
		return common.E(common.KindTransient, op, err)
	}
	if record.Status != models.StatusStage1Scored {
		return common.Ef(common.KindInvalid, op, "status is %q, expected %q", record.Status, models.StatusStage1Scored)
	}

	record.Stage2Score = &score
	record.Stage2Rationale = rationale
	if len(skills) > 0 && len(record.ExtractedSkills) == 0 {
		record.ExtractedSkills = skills
	}
	if len(requirements) > 0 && len(record.Requirements) == 0 {
		record.Requirements = requirements
	}
	record.Stage2At = at
	record.FinalScore = finalScore
	record.ProcessedAt = at
	record.Status = models.StatusProcessed

	if err := s.db.Store().Update(fingerprint, &record); err != nil {
		return common.E(common.KindTransient, op, err)
	}
	return nil
}

// Query returns matching records ordered by last_seen_at descending with a
// stable fingerprint tie-break.
func (s *JobStore) Query(ctx context.Context, filter *interfaces.JobFilter) ([]*models.JobRecord, error) {
	const op = "store.query"

	if filter == nil {
		filter = &interfaces.JobFilter{}
	}

	var records []models.JobRecord
	if err := s.db.Store().Find(&records, buildQuery(filter)); err != nil {
		return nil, common.E(common.KindTransient, op, err)
	}

	out := make([]*models.JobRecord, 0, len(records))
	for i := range records {
		r := &records[i]
		migrateRecord(r)
		if !matchesFilter(r, filter) {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastSeenAt.Equal(out[j].LastSeenAt) {
			return out[i].LastSeenAt.After(out[j].LastSeenAt)
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// buildQuery pushes the indexed constraints down to badgerhold; the rest is
// filtered in matchesFilter.
func buildQuery(filter *interfaces.JobFilter) *badgerhold.Query {
	if len(filter.Statuses) == 1 {
		return badgerhold.Where("Status").Eq(filter.Statuses[0]).Index("Status")
	}
	return nil
}

func matchesFilter(r *models.JobRecord, filter *interfaces.JobFilter) bool {
	if len(filter.Statuses) > 0 {
		found := false
		for _, st := range filter.Statuses {
			if r.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Site != "" && r.SourceSite != filter.Site {
		return false
	}
	if filter.Keyword != "" && r.SearchKeyword != filter.Keyword {
		return false
	}
	if !filter.Since.IsZero() && r.LastSeenAt.Before(filter.Since) {
		return false
	}
	if filter.MinScore > 0 && r.FinalScore < filter.MinScore {
		return false
	}
	if filter.MaxScore > 0 && r.FinalScore > filter.MaxScore {
		return false
	}
	return true
}

// Stats returns aggregate counts by status and site.
func (s *JobStore) Stats(ctx context.Context) (*models.StoreStats, error) {
	const op = "store.stats"

	var records []models.JobRecord
	if err := s.db.Store().Find(&records, nil); err != nil {
		return nil, common.E(common.KindTransient, op, err)
	}

	stats := &models.StoreStats{
		ByStatus: make(map[models.JobStatus]int),
		BySite:   make(map[string]int),
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	for i := range records {
		r := &records[i]
		stats.Total++
		stats.ByStatus[r.Status]++
		stats.BySite[r.SourceSite]++
		if r.LastSeenAt.After(cutoff) {
			stats.Last24h++
		}
	}
	return stats, nil
}

// ResetForRescrape returns a record to scraped, clearing scores while
// preserving discovery fields and the fingerprint.
func (s *JobStore) ResetForRescrape(ctx context.Context, fingerprint string) error {
	const op = "store.reset"

	s.mu.Lock()
	defer s.mu.Unlock()

	var record models.JobRecord
	if err := s.db.Store().Get(fingerprint, &record); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return common.Ef(common.KindNotFound, op, "no record with fingerprint %s", fingerprint)
		}
		return common.E(common.KindTransient, op, err)
	}

	record.Status = models.StatusScraped
	record.Stage1Score = 0
	record.Stage1Reasons = nil
	record.Stage1At = time.Time{}
	record.Stage2Score = nil
	record.Stage2Rationale = ""
	record.Stage2At = time.Time{}
	record.FinalScore = 0
	record.ProcessedAt = time.Time{}

	if err := s.db.Store().Update(fingerprint, &record); err != nil {
		return common.E(common.KindTransient, op, err)
	}
	return nil
}

// Purge deletes every record. Only the explicit purge command calls this.
func (s *JobStore) Purge(ctx context.Context) (int, error) {
	const op = "store.purge"

	s.mu.Lock()
	defer s.mu.Unlock()

	var records []models.JobRecord
	if err := s.db.Store().Find(&records, nil); err != nil {
		return 0, common.E(common.KindTransient, op, err)
	}
	for i := range records {
		if err := s.db.Store().Delete(records[i].Fingerprint, &models.JobRecord{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			return i, common.E(common.KindTransient, op, err)
		}
	}
	s.logger.Info().Int("deleted", len(records)).Msg("Purged job records")
	return len(records), nil
}
