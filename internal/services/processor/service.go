package processor

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// Options tune one processing run.
type Options struct {
	// Stage2Only skips stage1 and processes records already at
	// stage1_scored.
	Stage2Only bool
}

// Processor drives the two-stage pipeline for one profile: stage1 across
// the CPU worker pool, then stage2 for gate-passers at a lower concurrency
// that respects provider rate limits.
type Processor struct {
	cfg      common.ProcessorConfig
	jobs     interfaces.JobStore
	analyzer interfaces.Analyzer
	runlog   interfaces.RunLogStore
	logger   arbor.ILogger
}

// NewProcessor wires the pipeline. runlog may be nil in tests.
func NewProcessor(
	cfg common.ProcessorConfig,
	jobs interfaces.JobStore,
	analyzer interfaces.Analyzer,
	runlog interfaces.RunLogStore,
	logger arbor.ILogger,
) *Processor {
	return &Processor{
		cfg:      cfg,
		jobs:     jobs,
		analyzer: analyzer,
		runlog:   runlog,
		logger:   logger,
	}
}

// Run executes one processing pass and returns the summary. Cancellation is
// checked between records; in-flight analyses finish and the summary comes
// back partial with Cancelled set.
func (p *Processor) Run(ctx context.Context, profile *models.Profile, opts Options) (*models.ProcessSummary, error) {
	start := time.Now()
	summary := &models.ProcessSummary{
		RunID:   common.NewRunID(),
		Profile: profile.Name,
	}

	p.logger.Info().
		Str("run_id", summary.RunID).
		Str("profile", profile.Name).
		Str("analyzer", p.analyzer.Name()).
		Bool("stage2_only", opts.Stage2Only).
		Msg("Processing run starting")

	if !opts.Stage2Only {
		stage1Start := time.Now()
		p.runStage1(ctx, profile, summary)
		summary.Stage1Duration = time.Since(stage1Start)
	}

	stage2Start := time.Now()
	p.runStage2(ctx, profile, summary)
	summary.Stage2Duration = time.Since(stage2Start)

	summary.Cancelled = ctx.Err() != nil
	p.appendRunLog(profile.Name, summary, start)
	p.logger.Info().Str("run_id", summary.RunID).Msg(summary.String())
	return summary, nil
}

// runStage1 fans scraped records across the CPU workers. Each record gets a
// single CAS write; losing the CAS to a concurrent processor counts as
// skipped, not failed.
func (p *Processor) runStage1(ctx context.Context, profile *models.Profile, summary *models.ProcessSummary) {
	records, err := p.jobs.Query(ctx, &interfaces.JobFilter{
		Statuses: []models.JobStatus{models.StatusScraped},
		Limit:    p.cfg.MaxRecords,
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("Stage1 query failed")
		return
	}
	if len(records) == 0 {
		return
	}

	var mu sync.Mutex
	work := make(chan *models.JobRecord)
	var wg sync.WaitGroup

	for i := 0; i < p.cfg.CPUWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for record := range work {
				outcome := p.stage1One(ctx, record, profile)
				mu.Lock()
				switch outcome {
				case stage1Scored:
					summary.Stage1Scored++
				case stage1Lost:
					summary.Stage1Skipped++
				case stage1Invalid:
					summary.Invalid++
				}
				mu.Unlock()
			}
		}()
	}

	for _, record := range records {
		select {
		case work <- record:
		case <-ctx.Done():
			goto done
		}
	}
done:
	close(work)
	wg.Wait()
}

type stage1Outcome int

const (
	stage1Scored stage1Outcome = iota
	stage1Lost
	stage1Invalid
	stage1Aborted
)

// stage1One evaluates and writes back one record.
func (p *Processor) stage1One(ctx context.Context, record *models.JobRecord, profile *models.Profile) stage1Outcome {
	if ctx.Err() != nil {
		return stage1Aborted
	}

	if err := record.Validate(); err != nil {
		p.logger.Debug().Err(err).Str("fingerprint", record.Fingerprint).Msg("Record failed validation at stage1")
		return stage1Invalid
	}

	result := EvaluateStage1(record, profile)
	err := p.jobs.UpdateStage1(ctx, record.Fingerprint, result.Score, result.Reasons, time.Now().UTC())
	if err != nil {
		switch common.KindOf(err) {
		case common.KindInvalid, common.KindNotFound:
			// Concurrently advanced or reset; the other writer wins.
			return stage1Lost
		default:
			p.logger.Warn().Err(err).Str("fingerprint", record.Fingerprint).Msg("Stage1 write-back failed")
			return stage1Lost
		}
	}
	return stage1Scored
}

// runStage2 analyzes gate-passing records at stage2 concurrency. Failures
// leave the record at stage1_scored for a later retry.
func (p *Processor) runStage2(ctx context.Context, profile *models.Profile, summary *models.ProcessSummary) {
	records, err := p.jobs.Query(ctx, &interfaces.JobFilter{
		Statuses: []models.JobStatus{models.StatusStage1Scored},
		Limit:    p.cfg.MaxRecords,
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("Stage2 query failed")
		return
	}

	eligible := make([]*models.JobRecord, 0, len(records))
	for _, record := range records {
		if record.PassesGate(p.cfg.Stage1Threshold) {
			eligible = append(eligible, record)
		}
	}
	summary.GatePassed = len(eligible)
	if len(eligible) == 0 {
		return
	}

	var mu sync.Mutex
	work := make(chan *models.JobRecord)
	var wg sync.WaitGroup

	for i := 0; i < p.cfg.Stage2Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for record := range work {
				scored, processed := p.stage2One(ctx, record, profile)
				mu.Lock()
				if scored {
					summary.Stage2Scored++
				} else if ctx.Err() == nil {
					summary.Stage2Skipped++
				}
				if processed {
					summary.Processed++
				}
				mu.Unlock()
			}
		}()
	}

	for _, record := range eligible {
		select {
		case work <- record:
		case <-ctx.Done():
			goto done
		}
	}
done:
	close(work)
	wg.Wait()
}

// stage2One analyzes one record and writes the blended final score
// atomically with the stage1_scored -> processed transition.
func (p *Processor) stage2One(ctx context.Context, record *models.JobRecord, profile *models.Profile) (scored, processed bool) {
	if ctx.Err() != nil {
		return false, false
	}

	analysis, err := p.analyzer.Analyze(ctx, record, profile)
	if err != nil {
		kind := common.KindOf(err)
		if kind == common.KindCancelled {
			return false, false
		}
		p.logger.Warn().
			Err(err).
			Str("fingerprint", record.Fingerprint).
			Str("kind", kind.String()).
			Msg("Stage2 analysis skipped")
		return false, false
	}

	finalScore := p.blendScores(record.Stage1Score, analysis.SemanticScore)
	err = p.jobs.UpdateStage2(ctx, record.Fingerprint,
		analysis.SemanticScore, analysis.Rationale,
		analysis.ExtractedSkills, analysis.Requirements,
		finalScore, time.Now().UTC())
	if err != nil {
		if common.KindOf(err) == common.KindInvalid {
			// Lost the CAS to a concurrent processor.
			return true, false
		}
		p.logger.Warn().Err(err).Str("fingerprint", record.Fingerprint).Msg("Stage2 write-back failed")
		return true, false
	}
	return true, true
}

// blendScores computes the weighted final score, normalized so the weights
// need not sum to one.
func (p *Processor) blendScores(stage1, stage2 float64) float64 {
	total := p.cfg.Stage1Weight + p.cfg.Stage2Weight
	if total <= 0 {
		return stage2
	}
	return (p.cfg.Stage1Weight*stage1 + p.cfg.Stage2Weight*stage2) / total
}

// appendRunLog persists the run outcome, best effort.
func (p *Processor) appendRunLog(profile string, summary *models.ProcessSummary, start time.Time) {
	if p.runlog == nil {
		return
	}
	entry := &models.RunLogEntry{
		ID:        summary.RunID,
		Profile:   profile,
		Kind:      models.RunKindProcess,
		StartedAt: start,
		EndedAt:   time.Now().UTC(),
		Cancelled: summary.Cancelled,
		Counters: map[string]int{
			"stage1_scored":  summary.Stage1Scored,
			"stage1_skipped": summary.Stage1Skipped,
			"invalid":        summary.Invalid,
			"gate_passed":    summary.GatePassed,
			"stage2_scored":  summary.Stage2Scored,
			"stage2_skipped": summary.Stage2Skipped,
			"processed":      summary.Processed,
		},
	}
	if err := p.runlog.Append(context.Background(), entry); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to append run log entry")
	}
}
