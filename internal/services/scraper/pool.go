package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
)

// BrowserPool manages a bounded set of chromedp browser contexts and lends
// them to workers as leases. Oversubscription blocks acquirers; the pool
// never spawns contexts beyond its configured size.
type BrowserPool struct {
	cfg    common.PoolConfig
	logger arbor.ILogger

	slots chan *browserSlot
	all   []*browserSlot

	mu        sync.Mutex
	closed    bool
	prewarmed bool
}

// browserSlot is one pooled browser context and its cancel chain.
type browserSlot struct {
	id            int
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	primaryTarget target.ID
	broken        bool
}

// NewBrowserPool creates and starts the pool. Every context passes a
// startup navigation before it is handed out; a pool that cannot start a
// single context fails outright.
func NewBrowserPool(cfg common.PoolConfig, logger arbor.ILogger) (*BrowserPool, error) {
	if cfg.Size <= 0 {
		return nil, common.Ef(common.KindInvalid, "pool.new", "pool size must be positive, got %d", cfg.Size)
	}

	p := &BrowserPool{
		cfg:    cfg,
		logger: logger,
		slots:  make(chan *browserSlot, cfg.Size),
	}

	for i := 0; i < cfg.Size; i++ {
		slot, err := p.createSlot(i)
		if err != nil {
			p.logger.Warn().Err(err).Int("slot", i).Msg("Failed to create browser context")
			if len(p.all) == 0 && i == cfg.Size-1 {
				_ = p.Shutdown()
				return nil, common.E(common.KindTransient, "pool.new", err)
			}
			continue
		}
		p.all = append(p.all, slot)
		p.slots <- slot
	}

	if len(p.all) == 0 {
		_ = p.Shutdown()
		return nil, common.Ef(common.KindTransient, "pool.new", "no browser contexts could be started")
	}

	p.logger.Info().
		Int("pool_size", len(p.all)).
		Bool("headless", cfg.Headless).
		Msg("Browser pool initialized")

	if cfg.Prewarm {
		p.prewarm()
	}

	return p, nil
}

// allocatorOptions builds the stealth exec allocator flags. Enough to pass
// casual bot detection on public pages; CAPTCHA is out of scope.
func (p *BrowserPool) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserAgent(p.cfg.UserAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		// Popups carry the canonical employer URLs; never block them.
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("enable-features", "NetworkService,NetworkServiceInProcess"),
	}
	if p.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}
	return opts
}

// createSlot starts one browser context and verifies it responds.
func (p *BrowserPool) createSlot(id int) (*browserSlot, error) {
	start := time.Now()

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), p.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser context failed startup test: %w", err)
	}

	slot := &browserSlot{
		id:            id,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}
	if tgt := chromedp.FromContext(browserCtx).Target; tgt != nil {
		slot.primaryTarget = tgt.TargetID
	}

	p.logger.Debug().
		Int("slot", id).
		Dur("startup_time", time.Since(start)).
		Msg("Browser context created")
	return slot, nil
}

// prewarm navigates each context through two neutral sites to mature the
// browser fingerprint. Idempotent per pool.
func (p *BrowserPool) prewarm() {
	p.mu.Lock()
	if p.prewarmed {
		p.mu.Unlock()
		return
	}
	p.prewarmed = true
	p.mu.Unlock()

	for _, slot := range p.all {
		for _, url := range p.cfg.PrewarmURLs {
			warmCtx, cancel := context.WithTimeout(slot.browserCtx, p.cfg.PageTimeout)
			if err := chromedp.Run(warmCtx, chromedp.Navigate(url), chromedp.Sleep(time.Second)); err != nil {
				p.logger.Debug().Err(err).Int("slot", slot.id).Str("url", url).Msg("Prewarm navigation failed")
			}
			cancel()
		}
	}
	p.logger.Debug().Int("contexts", len(p.all)).Msg("Browser pool prewarmed")
}

// Acquire blocks until a context is free or the caller's deadline elapses.
func (p *BrowserPool) Acquire(ctx context.Context) (interfaces.BrowserLease, error) {
	const op = "pool.acquire"

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, common.Ef(common.KindInvalid, op, "pool is shut down")
	}
	p.mu.Unlock()

	waitCtx := ctx
	if p.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		defer cancel()
	}

	select {
	case slot := <-p.slots:
		return &browserLease{pool: p, slot: slot}, nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return nil, common.E(common.KindCancelled, op, ctx.Err())
		}
		return nil, common.Ef(common.KindTransient, op, "no browser context free within %s", p.cfg.AcquireTimeout)
	}
}

// OpenTabCount reports the number of open page targets across all pooled
// contexts. Tests assert this returns to baseline after every run.
func (p *BrowserPool) OpenTabCount() (int, error) {
	count := 0
	for _, slot := range p.all {
		if slot.broken {
			continue
		}
		infos, err := listPageTargets(slot.browserCtx)
		if err != nil {
			return 0, common.E(common.KindTransient, "pool.tab_count", err)
		}
		count += len(infos)
	}
	return count, nil
}

// release returns a slot to the pool. Broken slots are replaced; healthy
// slots have any stray pages reaped first so tabs never leak across leases.
func (p *BrowserPool) release(slot *browserSlot) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}

	if slot.broken {
		p.logger.Warn().Int("slot", slot.id).Msg("Replacing crashed browser context")
		slot.browserCancel()
		slot.allocCancel()
		replacement, err := p.createSlot(slot.id)
		if err != nil {
			p.logger.Error().Err(err).Int("slot", slot.id).Msg("Failed to replace browser context; pool shrinks by one")
			return
		}
		p.mu.Lock()
		for i, s := range p.all {
			if s == slot {
				p.all[i] = replacement
			}
		}
		p.mu.Unlock()
		p.slots <- replacement
		return
	}

	p.reapStrayPages(slot)
	p.slots <- slot
}

// reapStrayPages closes every page target except the slot's primary tab.
func (p *BrowserPool) reapStrayPages(slot *browserSlot) {
	infos, err := listPageTargets(slot.browserCtx)
	if err != nil {
		p.logger.Debug().Err(err).Int("slot", slot.id).Msg("Failed to enumerate targets on release")
		return
	}
	for _, info := range infos {
		if info.TargetID == slot.primaryTarget {
			continue
		}
		closeErr := chromedp.Run(slot.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			return target.CloseTarget(info.TargetID).Do(ctx)
		}))
		if closeErr != nil {
			p.logger.Debug().Err(closeErr).Str("target", string(info.TargetID)).Msg("Failed to close stray page")
			continue
		}
		p.logger.Debug().Int("slot", slot.id).Str("url", info.URL).Msg("Closed stray page on lease release")
	}
}

// listPageTargets enumerates open page targets on a browser context.
func listPageTargets(browserCtx context.Context) ([]*target.Info, error) {
	var infos []*target.Info
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		all, err := target.GetTargets().Do(ctx)
		if err != nil {
			return err
		}
		for _, info := range all {
			if info.Type == "page" {
				infos = append(infos, info)
			}
		}
		return nil
	}))
	return infos, err
}

// Shutdown cancels every context. Safe to call twice.
func (p *BrowserPool) Shutdown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	for _, slot := range p.all {
		slot.browserCancel()
		slot.allocCancel()
	}
	p.logger.Info().Int("contexts", len(p.all)).Msg("Browser pool shut down")
	return nil
}

// browserLease is the scoped acquisition handed to workers. Release is
// idempotent; callers defer it on every path.
type browserLease struct {
	pool *BrowserPool
	slot *browserSlot

	mu       sync.Mutex
	released bool
}

func (l *browserLease) Context() context.Context {
	return l.slot.browserCtx
}

func (l *browserLease) MarkBroken() {
	l.slot.broken = true
}

func (l *browserLease) Release() {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return
	}
	l.released = true
	l.mu.Unlock()

	l.pool.release(l.slot)
}
