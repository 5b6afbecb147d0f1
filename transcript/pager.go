package transcript

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"ticketchat/logger"
	"ticketchat/models"
)

const (
	// DefaultDebounce is the quiet period before a scheduled page request is issued
	DefaultDebounce = 500 * time.Millisecond
	// NearTop is the scroll offset below which the next older page is requested
	NearTop = 50
)

// Fetcher loads one page of a ticket's history
type Fetcher interface {
	FetchPage(ctx context.Context, ticketID string, page int) (models.Page, error)
}

// ErrorReporter surfaces request failures to the user
type ErrorReporter interface {
	Report(err error)
}

// Scroller moves the viewport to the scroll anchor.
// It is called from background goroutines.
type Scroller interface {
	ScrollToBottom()
}

// Pager backfills one ticket's history a page at a time.
// A Pager belongs to a single open ticket; a new ticket gets a new Pager.
type Pager struct {
	ctx      context.Context
	ticketID string
	fetcher  Fetcher
	store    *Store
	scroller Scroller
	reporter ErrorReporter
	log      logger.Logger
	debounce time.Duration
	onState  func()

	// guard serialises fetch-and-merge for this ticket
	guard *semaphore.Weighted

	mu      sync.Mutex
	page    int
	hasMore bool
	loading bool
	stopped bool
	timer   *time.Timer
	wg      sync.WaitGroup
}

// PagerConfig wires a Pager to its collaborators
type PagerConfig struct {
	Fetcher  Fetcher
	Store    *Store
	Scroller Scroller
	Reporter ErrorReporter
	Logger   logger.Logger
	Debounce time.Duration
	// OnState runs after loading or hasMore change
	OnState func()
}

// NewPager creates a pager for ticketID. ctx bounds every request it issues.
func NewPager(ctx context.Context, ticketID string, cfg PagerConfig) *Pager {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Pager{
		ctx:      ctx,
		ticketID: ticketID,
		fetcher:  cfg.Fetcher,
		store:    cfg.Store,
		scroller: cfg.Scroller,
		reporter: cfg.Reporter,
		log:      log.With(logger.F("ticket_id", ticketID)),
		debounce: cfg.Debounce,
		onState:  cfg.OnState,
		guard:    semaphore.NewWeighted(1),
		page:     1,
	}
}

// Request schedules a page fetch after the debounce period.
// increment asks for the next older page; otherwise page 1 is reloaded.
// A call made before the previous one fired replaces it. Calls after Stop do nothing.
func (p *Pager) Request(increment bool) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	if p.timer != nil && p.timer.Stop() {
		p.wg.Done()
	}
	p.loading = true
	p.wg.Add(1)
	p.timer = time.AfterFunc(p.debounce, func() {
		defer p.wg.Done()
		p.fetch(increment)
	})
	p.mu.Unlock()
	p.stateChanged()
}

func (p *Pager) fetch(increment bool) {
	if err := p.guard.Acquire(p.ctx, 1); err != nil {
		// ticket closed while waiting for the previous request
		return
	}
	defer p.guard.Release(1)

	p.mu.Lock()
	target := 1
	if increment {
		target = p.page + 1
	}
	p.mu.Unlock()

	page, err := p.fetcher.FetchPage(p.ctx, p.ticketID, target)
	if err != nil {
		if p.ctx.Err() != nil {
			return
		}
		p.log.Warn(p.ctx, "history page request failed", logger.F("page", target), logger.F("error", err))
		p.mu.Lock()
		p.loading = false
		p.mu.Unlock()
		p.stateChanged()
		if p.reporter != nil {
			p.reporter.Report(err)
		}
		return
	}
	// the same ticket may have been reopened by a newer session
	if p.ctx.Err() != nil {
		return
	}

	if err := p.store.LoadPage(p.ticketID, page.Messages); err != nil {
		if errors.Is(err, ErrStale) {
			p.log.Debug(p.ctx, "discarding page for closed ticket", logger.F("page", target))
		}
		return
	}

	p.mu.Lock()
	p.page = target
	p.hasMore = page.HasMore
	p.loading = false
	p.mu.Unlock()
	p.stateChanged()

	if target == 1 && len(page.Messages) > 1 && p.scroller != nil {
		p.scroller.ScrollToBottom()
	}
}

// HandleScroll reacts to the viewport's scroll offset and returns the offset the viewport
// should use; an offset of 0 is nudged to 1 so the loading indicator stays visible.
func (p *Pager) HandleScroll(top int) int {
	p.mu.Lock()
	hasMore, loading := p.hasMore, p.loading
	p.mu.Unlock()

	if !hasMore {
		return top
	}
	adjusted := top
	if top == 0 {
		adjusted = 1
	}
	if loading {
		return adjusted
	}
	if top < NearTop {
		p.Request(true)
	}
	return adjusted
}

// Stop cancels a pending debounce timer and waits for an issued request to settle
func (p *Pager) Stop() {
	p.mu.Lock()
	p.stopped = true
	if p.timer != nil && p.timer.Stop() {
		p.wg.Done()
	}
	p.timer = nil
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pager) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

func (p *Pager) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

func (p *Pager) stateChanged() {
	if p.onState != nil {
		p.onState()
	}
}
