package transcript

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketchat/models"
)

func startListener(t *testing.T, ticket models.Ticket) (*Listener, *fakeFeed, *Store, *fakeScroller) {
	t.Helper()
	feed := newFakeFeed()
	store := NewStore()
	store.Reset(ticket.ID)
	sc := &fakeScroller{}
	l := NewListener(feed, store, sc, nil)
	require.NoError(t, l.Start(context.Background(), "7", ticket))
	return l, feed, store, sc
}

func TestListenerSubscribesToTenantChannels(t *testing.T) {
	l, feed, _, _ := startListener(t, models.Ticket{ID: "t1"})

	assert.Equal(t, 1, feed.subscribers("company-7-appMessage"))
	assert.Equal(t, 1, feed.subscribers("company-7-contact"))

	l.Stop()
	l.Stop()
	assert.Zero(t, feed.subscribers("company-7-appMessage"))
	assert.Zero(t, feed.subscribers("company-7-contact"))
}

func TestListenerCreateAppendsAndScrolls(t *testing.T) {
	l, feed, store, sc := startListener(t, models.Ticket{ID: "t1"})
	defer l.Stop()

	m := msg("a", "t1", "hi")
	feed.publish("company-7-appMessage", models.MessageEvent{Action: models.ActionCreate, Message: &m})

	assert.Equal(t, []string{"a"}, ids(store.Messages()))
	assert.Equal(t, 1, sc.scrolls())
}

func TestListenerIgnoresOtherTickets(t *testing.T) {
	l, feed, store, sc := startListener(t, models.Ticket{ID: "t1"})
	defer l.Stop()

	m := msg("a", "t9", "elsewhere")
	feed.publish("company-7-appMessage", models.MessageEvent{Action: models.ActionCreate, Message: &m})
	feed.publish("company-7-appMessage", models.MessageEvent{Action: models.ActionUpdate, Message: &m})

	assert.Zero(t, store.Len())
	assert.Zero(t, sc.scrolls())
}

func TestListenerUpdateReplacesKnownMessage(t *testing.T) {
	l, feed, store, _ := startListener(t, models.Ticket{ID: "t1"})
	defer l.Stop()

	require.NoError(t, store.LoadPage("t1", []models.Message{msg("a", "t1", "hi")}))

	upd := msg("a", "t1", "hi")
	upd.FromMe = true
	upd.Ack = models.AckDelivered
	feed.publish("company-7-appMessage", models.MessageEvent{Action: models.ActionUpdate, Message: &upd})

	missing := msg("zz", "t1", "never seen")
	feed.publish("company-7-appMessage", models.MessageEvent{Action: models.ActionUpdate, Message: &missing})

	got := store.Messages()
	require.Len(t, got, 1)
	assert.Equal(t, models.AckDelivered, got[0].Ack)
}

func TestListenerDropsMalformedPayloads(t *testing.T) {
	l, feed, store, _ := startListener(t, models.Ticket{ID: "t1"})
	defer l.Stop()

	feed.publish("company-7-appMessage", "not an event")
	feed.publish("company-7-appMessage", models.MessageEvent{Action: models.ActionCreate})

	assert.Zero(t, store.Len())
}

func TestListenerTracksContactPresence(t *testing.T) {
	l, feed, _, _ := startListener(t, models.Ticket{ID: "t1", Contact: models.Contact{ID: "c1"}})
	defer l.Stop()

	changes := 0
	l.OnPresence(func() { changes++ })

	feed.publish("company-7-contact", models.ContactEvent{
		Action:  models.ActionUpdate,
		Contact: &models.Contact{ID: "c1", Presence: models.PresenceComposing},
	})
	assert.Equal(t, models.PresenceComposing, l.Presence())

	feed.publish("company-7-contact", models.ContactEvent{
		Action:  models.ActionUpdate,
		Contact: &models.Contact{ID: "c2", Presence: models.PresenceRecording},
	})
	assert.Equal(t, models.PresenceComposing, l.Presence(), "other contacts are ignored")

	feed.publish("company-7-contact", models.ContactEvent{
		Action:  models.ActionUpdate,
		Contact: &models.Contact{ID: "c1"},
	})
	assert.Equal(t, models.PresenceAvailable, l.Presence())
	assert.Equal(t, 2, changes)
}

func TestListenerStartFailureReleasesFirstSubscription(t *testing.T) {
	feed := newFakeFeed()
	feed.failOn = "company-7-contact"
	store := NewStore()
	l := NewListener(feed, store, nil, nil)

	err := l.Start(context.Background(), "7", models.Ticket{ID: "t1"})
	require.Error(t, err)
	assert.Zero(t, feed.subscribers("company-7-appMessage"))
}
