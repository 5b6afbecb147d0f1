package transcript

import (
	"context"
	"errors"
	"sync"
	"time"

	"ticketchat/logger"
	"ticketchat/models"
)

// ErrNotFound is returned when an action names a message that is not in the transcript
var ErrNotFound = errors.New("transcript: message not found")

// Actions receives the message the user picked from the transcript
type Actions interface {
	SetSelectedMessage(m models.Message)
	SetReplyingMessage(m models.Message)
}

// Config wires a View to its collaborators
type Config struct {
	Fetcher  Fetcher
	Feed     Feed
	Scroller Scroller
	Reporter ErrorReporter
	Actions  Actions
	Logger   logger.Logger
	// Debounce defaults to DefaultDebounce when zero
	Debounce time.Duration
	Render   Options
}

// session is everything scoped to one open ticket
type session struct {
	tenantID string
	ticket   models.Ticket
	ctx      context.Context
	cancel   context.CancelFunc
	pager    *Pager
	listener *Listener
}

// View is the transcript of the currently open ticket
type View struct {
	cfg   Config
	log   logger.Logger
	store *Store

	changes chan struct{}

	mu   sync.Mutex
	sess *session
	// gen counts Open and Close calls; an Open publishes its session only if still current
	gen uint64
}

// NewView creates a view with no ticket open
func NewView(cfg Config) *View {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	v := &View{
		cfg:     cfg,
		log:     cfg.Logger,
		store:   NewStore(),
		changes: make(chan struct{}, 1),
	}
	v.store.OnChange(v.changed)
	return v
}

// Open switches the view to ticket. The previous ticket's requests and subscriptions
// are released and the list is cleared before anything for the new ticket runs.
// Subscribing happens outside the view's lock, so Frame and HandleScroll stay
// responsive while the feed connects. An Open superseded by a later Open or Close
// releases its subscriptions and returns nil.
func (v *View) Open(ctx context.Context, tenantID string, ticket models.Ticket) error {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	prev := v.detachLocked()
	v.store.Reset(ticket.ID)
	s := v.newSession(ctx, tenantID, ticket)
	v.mu.Unlock()

	// the old pager can only hit ErrStale now; wait for it outside the lock
	prev.wait()

	if err := s.listener.Start(s.ctx, tenantID, ticket); err != nil {
		s.cancel()
		return err
	}

	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		s.cancel()
		s.listener.Stop()
		return nil
	}
	v.sess = s
	s.pager.Request(false)
	v.mu.Unlock()

	v.log.Info(s.ctx, "ticket opened", logger.F("ticket_id", ticket.ID))
	return nil
}

func (v *View) newSession(ctx context.Context, tenantID string, ticket models.Ticket) *session {
	sctx, cancel := context.WithCancel(ctx)
	sctx = context.WithValue(sctx, logger.TenantKey, tenantID)
	s := &session{
		tenantID: tenantID,
		ticket:   ticket,
		ctx:      sctx,
		cancel:   cancel,
		pager: NewPager(sctx, ticket.ID, PagerConfig{
			Fetcher:  v.cfg.Fetcher,
			Store:    v.store,
			Scroller: v.cfg.Scroller,
			Reporter: v.cfg.Reporter,
			Logger:   v.log,
			Debounce: v.cfg.Debounce,
			OnState:  v.changed,
		}),
		listener: NewListener(v.cfg.Feed, v.store, v.cfg.Scroller, v.log),
	}
	s.listener.OnPresence(v.changed)
	return s
}

// Close releases the open ticket, if any
func (v *View) Close() {
	v.mu.Lock()
	v.gen++
	prev := v.detachLocked()
	v.mu.Unlock()
	prev.wait()
}

// detachLocked cancels the open session and releases its subscriptions
func (v *View) detachLocked() *session {
	s := v.sess
	if s == nil {
		return nil
	}
	v.sess = nil
	s.cancel()
	s.listener.Stop()
	return s
}

func (s *session) wait() {
	if s != nil {
		s.pager.Stop()
	}
}

// HandleScroll forwards a viewport scroll offset to the pager and returns the offset to apply
func (v *View) HandleScroll(top int) int {
	s := v.current()
	if s == nil {
		return top
	}
	return s.pager.HandleScroll(top)
}

// Frame renders the current state
func (v *View) Frame() Frame {
	presence := models.PresenceAvailable
	loading := false
	opts := v.cfg.Render
	if s := v.current(); s != nil {
		presence = s.listener.Presence()
		loading = s.pager.Loading()
		opts.IsGroup = opts.IsGroup || s.ticket.IsGroup
	}
	f := Render(v.store.Messages(), presence, opts)
	f.Loading = loading
	return f
}

// Messages returns the current list
func (v *View) Messages() []models.Message {
	return v.store.Messages()
}

// Select hands the message with id to the options menu
func (v *View) Select(id string) error {
	m, ok := v.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	if v.cfg.Actions != nil {
		v.cfg.Actions.SetSelectedMessage(m)
	}
	return nil
}

// Reply marks the message with id as the reply target
func (v *View) Reply(id string) error {
	m, ok := v.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	if v.cfg.Actions != nil {
		v.cfg.Actions.SetReplyingMessage(m)
	}
	return nil
}

func (v *View) current() *session {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sess
}

// Changes signals after store, presence or loading changes. Signals coalesce,
// so a reader should render the latest Frame on each receive.
func (v *View) Changes() <-chan struct{} {
	return v.changes
}

func (v *View) changed() {
	select {
	case v.changes <- struct{}{}:
	default:
	}
}
