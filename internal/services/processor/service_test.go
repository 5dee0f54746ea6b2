package processor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
	storagebadger "github.com/ternarybob/venator/internal/storage/badger"
)

// fakeStage2 is a scripted analyzer: fails with err until it runs out of
// failures, then returns the fixed analysis.
type fakeStage2 struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
	score    float64
}

func (a *fakeStage2) Name() string { return "fake" }

func (a *fakeStage2) Analyze(ctx context.Context, record *models.JobRecord, profile *models.Profile) (*interfaces.Analysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.failures > 0 {
		a.failures--
		return nil, a.err
	}
	return &interfaces.Analysis{
		SemanticScore:   a.score,
		Rationale:       "scripted analysis",
		ExtractedSkills: []string{"go"},
	}, nil
}

func (a *fakeStage2) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func processorConfig() common.ProcessorConfig {
	cfg := common.NewDefaultConfig().Processor
	cfg.CPUWorkers = 2
	cfg.Stage2Workers = 1
	return cfg
}

func openProcessorStore(t *testing.T) *storagebadger.Manager {
	t.Helper()
	manager, err := storagebadger.OpenProfileStore(arbor.NewLogger(), t.TempDir(), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func insertScraped(t *testing.T, m *storagebadger.Manager, record *models.JobRecord) {
	t.Helper()
	_, err := m.Jobs().Upsert(context.Background(), record)
	require.NoError(t, err)
}

func TestRunFullPipeline(t *testing.T) {
	m := openProcessorStore(t)
	ctx := context.Background()
	profile := stage1Profile()

	good := stage1Record("Python Developer", "Toronto, ON", "https://jobs.acme.com/1")
	poor := stage1Record("Forklift Operator", "Toronto, ON", "")
	insertScraped(t, m, good)
	insertScraped(t, m, poor)

	analyzer := &fakeStage2{score: 0.9}
	p := NewProcessor(processorConfig(), m.Jobs(), analyzer, m.RunLog(), arbor.NewLogger())

	summary, err := p.Run(ctx, profile, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Stage1Scored)
	assert.Equal(t, 1, summary.GatePassed)
	assert.Equal(t, 1, summary.Stage2Scored)
	assert.Equal(t, 1, summary.Processed)
	assert.Zero(t, summary.Stage2Skipped)
	assert.False(t, summary.Cancelled)

	got, err := m.Jobs().GetByFingerprint(ctx, good.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, got.Status)
	require.NotNil(t, got.Stage2Score)
	assert.Equal(t, 0.9, *got.Stage2Score)
	// Blended with the default 0.4/0.6 weights.
	want := (0.4*got.Stage1Score + 0.6*0.9) / 1.0
	assert.InDelta(t, want, got.FinalScore, 1e-9)

	// The gate-failer is scored but never advances past stage1.
	failer, err := m.Jobs().GetByFingerprint(ctx, poor.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, models.StatusStage1Scored, failer.Status)
	assert.Nil(t, failer.Stage2Score)

	// Only the gate-passer reached the analyzer.
	assert.Equal(t, 1, analyzer.callCount())
}

func TestRunStage2OutageLeavesRecordRetryable(t *testing.T) {
	m := openProcessorStore(t)
	ctx := context.Background()
	profile := stage1Profile()

	record := stage1Record("Python Developer", "Toronto, ON", "https://jobs.acme.com/1")
	insertScraped(t, m, record)

	analyzer := &fakeStage2{
		score:    0.8,
		failures: 1,
		err:      common.Ef(common.KindTransient, "analyzer.fake", "provider down"),
	}
	p := NewProcessor(processorConfig(), m.Jobs(), analyzer, nil, arbor.NewLogger())

	// First pass: stage1 lands, stage2 outage skips the record.
	summary, err := p.Run(ctx, profile, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stage1Scored)
	assert.Equal(t, 1, summary.GatePassed)
	assert.Zero(t, summary.Stage2Scored)
	assert.Equal(t, 1, summary.Stage2Skipped)

	got, err := m.Jobs().GetByFingerprint(ctx, record.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, models.StatusStage1Scored, got.Status)
	assert.Nil(t, got.Stage2Score)

	// Second pass with the provider back: the same record completes.
	summary, err = p.Run(ctx, profile, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stage2Scored)
	assert.Equal(t, 1, summary.Processed)

	got, err = m.Jobs().GetByFingerprint(ctx, record.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, got.Status)
}

func TestRunStage2Only(t *testing.T) {
	m := openProcessorStore(t)
	ctx := context.Background()
	profile := stage1Profile()

	scored := stage1Record("Python Developer", "Toronto, ON", "https://jobs.acme.com/1")
	fresh := stage1Record("Data Engineer", "Toronto, ON", "https://jobs.acme.com/2")
	insertScraped(t, m, scored)
	insertScraped(t, m, fresh)
	require.NoError(t, m.Jobs().UpdateStage1(ctx, scored.Fingerprint, 0.9, nil, scored.ScrapedAt))

	p := NewProcessor(processorConfig(), m.Jobs(), &fakeStage2{score: 0.7}, nil, arbor.NewLogger())

	summary, err := p.Run(ctx, profile, Options{Stage2Only: true})
	require.NoError(t, err)
	assert.Zero(t, summary.Stage1Scored)
	assert.Equal(t, 1, summary.Processed)

	// The scraped record was never touched.
	got, err := m.Jobs().GetByFingerprint(ctx, fresh.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScraped, got.Status)
}

func TestRunInvalidRecordCounted(t *testing.T) {
	m := openProcessorStore(t)
	ctx := context.Background()

	record := stage1Record("Python Developer", "Toronto, ON", "https://jobs.acme.com/1")
	insertScraped(t, m, record)

	// Stage1 validates the queried snapshot before scoring; a blanked title
	// surfaces as invalid without touching the store.
	got, err := m.Jobs().GetByFingerprint(ctx, record.Fingerprint)
	require.NoError(t, err)
	got.Title = ""

	p := NewProcessor(processorConfig(), m.Jobs(), &fakeStage2{score: 0.7}, nil, arbor.NewLogger())
	outcome := p.stage1One(ctx, got, stage1Profile())
	assert.Equal(t, stage1Invalid, outcome)
}

func TestRunCancelledContext(t *testing.T) {
	m := openProcessorStore(t)
	profile := stage1Profile()

	record := stage1Record("Python Developer", "Toronto, ON", "https://jobs.acme.com/1")
	insertScraped(t, m, record)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewProcessor(processorConfig(), m.Jobs(), &fakeStage2{score: 0.7}, nil, arbor.NewLogger())
	summary, err := p.Run(ctx, profile, Options{})
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	assert.Zero(t, summary.Stage1Scored)
	assert.Zero(t, summary.Processed)

	// The record is untouched and a later run picks it up.
	got, err := m.Jobs().GetByFingerprint(context.Background(), record.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScraped, got.Status)
}

func TestRunAppendsRunLog(t *testing.T) {
	m := openProcessorStore(t)
	ctx := context.Background()

	insertScraped(t, m, stage1Record("Python Developer", "Toronto, ON", "https://jobs.acme.com/1"))

	p := NewProcessor(processorConfig(), m.Jobs(), &fakeStage2{score: 0.9}, m.RunLog(), arbor.NewLogger())
	summary, err := p.Run(ctx, stage1Profile(), Options{})
	require.NoError(t, err)

	entries, err := m.RunLog().List(ctx, "test", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, summary.RunID, entries[0].ID)
	assert.Equal(t, models.RunKindProcess, entries[0].Kind)
	assert.Equal(t, summary.Processed, entries[0].Counters["processed"])
}

func TestBlendScores(t *testing.T) {
	p := NewProcessor(processorConfig(), nil, nil, nil, arbor.NewLogger())
	assert.InDelta(t, 0.4*0.5+0.6*0.9, p.blendScores(0.5, 0.9), 1e-9)

	// Weights need not sum to one.
	cfg := processorConfig()
	cfg.Stage1Weight = 1
	cfg.Stage2Weight = 3
	p = NewProcessor(cfg, nil, nil, nil, arbor.NewLogger())
	assert.InDelta(t, (1*0.4+3*0.8)/4, p.blendScores(0.4, 0.8), 1e-9)

	// Degenerate zero weights fall back to the stage2 score.
	cfg.Stage1Weight = 0
	cfg.Stage2Weight = 0
	p = NewProcessor(cfg, nil, nil, nil, arbor.NewLogger())
	assert.Equal(t, 0.75, p.blendScores(0.2, 0.75))
}
