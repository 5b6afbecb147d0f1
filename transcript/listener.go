package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"ticketchat/logger"
	"ticketchat/models"
)

// Subscription is a live registration on a feed channel
type Subscription interface {
	Unsubscribe() error
}

// Feed delivers raw payloads published on named channels.
// Handlers for one channel are called sequentially in arrival order.
type Feed interface {
	Subscribe(ctx context.Context, channel string, handler func(payload []byte)) (Subscription, error)
}

// Listener routes live events for one open ticket into the store
type Listener struct {
	feed     Feed
	store    *Store
	scroller Scroller
	log      logger.Logger

	mu       sync.Mutex
	subs     []Subscription
	ticket   models.Ticket
	presence models.Presence
	onChange func()
}

// NewListener creates a listener writing into store
func NewListener(feed Feed, store *Store, scroller Scroller, log logger.Logger) *Listener {
	if log == nil {
		log = logger.Nop()
	}
	return &Listener{
		feed:     feed,
		store:    store,
		scroller: scroller,
		log:      log,
		presence: models.PresenceAvailable,
	}
}

// OnPresence registers fn to run after the contact presence changes
func (l *Listener) OnPresence(fn func()) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// Start subscribes to the tenant's message and contact channels for ticket.
// Any previous subscriptions are released first.
func (l *Listener) Start(ctx context.Context, tenantID string, ticket models.Ticket) error {
	l.Stop()

	l.mu.Lock()
	l.ticket = ticket
	l.presence = models.PresenceAvailable
	l.mu.Unlock()

	msgSub, err := l.feed.Subscribe(ctx, models.MessageChannel(tenantID), l.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe to message channel: %w", err)
	}
	contactSub, err := l.feed.Subscribe(ctx, models.ContactChannel(tenantID), l.handleContact)
	if err != nil {
		_ = msgSub.Unsubscribe()
		return fmt.Errorf("subscribe to contact channel: %w", err)
	}

	l.mu.Lock()
	l.subs = []Subscription{msgSub, contactSub}
	l.mu.Unlock()
	return nil
}

// Stop releases every subscription. It is safe to call more than once.
func (l *Listener) Stop() {
	l.mu.Lock()
	subs := l.subs
	l.subs = nil
	l.mu.Unlock()

	for _, s := range subs {
		if err := s.Unsubscribe(); err != nil {
			l.log.Warn(context.Background(), "unsubscribe failed", logger.F("error", err))
		}
	}
}

// Presence returns the last known presence of the ticket's contact
func (l *Listener) Presence() models.Presence {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.presence
}

func (l *Listener) handleMessage(payload []byte) {
	var ev models.MessageEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		l.log.Debug(context.Background(), "dropping malformed message event", logger.F("error", err))
		return
	}
	if ev.Message == nil {
		return
	}

	// the store re-checks the ticket atomically with the write
	switch ev.Action {
	case models.ActionCreate:
		if _, err := l.store.Add(*ev.Message); err != nil {
			l.dropped(err, ev.Message)
			return
		}
		if l.scroller != nil {
			l.scroller.ScrollToBottom()
		}
	case models.ActionUpdate:
		if _, err := l.store.Update(*ev.Message); err != nil {
			l.dropped(err, ev.Message)
		}
	}
}

func (l *Listener) handleContact(payload []byte) {
	var ev models.ContactEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		l.log.Debug(context.Background(), "dropping malformed contact event", logger.F("error", err))
		return
	}
	if ev.Action != models.ActionUpdate || ev.Contact == nil {
		return
	}

	l.mu.Lock()
	if ev.Contact.ID != l.ticket.Contact.ID {
		l.mu.Unlock()
		return
	}
	l.presence = ev.Contact.Presence.Normalize()
	fn := l.onChange
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (l *Listener) dropped(err error, m *models.Message) {
	if errors.Is(err, ErrStale) {
		return
	}
	l.log.Warn(context.Background(), "live event not applied", logger.F("message_id", m.ID), logger.F("error", err))
}
