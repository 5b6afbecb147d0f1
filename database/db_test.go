package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketchat/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *Store, ticketID string, n int) []string {
	t.Helper()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		m := &models.Message{
			TicketID:  ticketID,
			Body:      "msg",
			MediaType: models.MediaChat,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.CreateMessage(context.Background(), m))
		ids[i] = m.ID
	}
	return ids
}

func pageIDs(p models.Page) []string {
	out := make([]string, len(p.Messages))
	for i, m := range p.Messages {
		out[i] = m.ID
	}
	return out
}

func TestListMessagesPagesNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ids := seed(t, s, "t1", 5)
	seed(t, s, "t2", 1)

	p1, err := s.ListMessages(ctx, "t1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[3], ids[4]}, pageIDs(p1))
	assert.True(t, p1.HasMore)

	p2, err := s.ListMessages(ctx, "t1", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1], ids[2]}, pageIDs(p2))
	assert.True(t, p2.HasMore)

	p3, err := s.ListMessages(ctx, "t1", 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0]}, pageIDs(p3))
	assert.False(t, p3.HasMore)

	empty, err := s.ListMessages(ctx, "nope", 1, 2)
	require.NoError(t, err)
	assert.NotNil(t, empty.Messages)
	assert.Empty(t, empty.Messages)
}

func TestCreateMessageResolvesRelations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	quoted := &models.Message{TicketID: "t1", Body: "original", MediaType: models.MediaChat}
	require.NoError(t, s.CreateMessage(ctx, quoted))
	require.NotEmpty(t, quoted.ID)

	reply := &models.Message{
		TicketID:  "t1",
		Body:      "reply",
		MediaType: models.MediaChat,
		QuotedMsg: &models.Message{ID: quoted.ID},
		Contact:   &models.Contact{ID: "c1", Name: "Ana", Number: "5511"},
		Queue:     &models.Queue{ID: "q1", Name: "Billing"},
	}
	require.NoError(t, s.CreateMessage(ctx, reply))

	got, err := s.GetMessage(ctx, reply.ID)
	require.NoError(t, err)
	require.NotNil(t, got.QuotedMsg)
	assert.Equal(t, "original", got.QuotedMsg.Body)
	require.NotNil(t, got.Contact)
	assert.Equal(t, "Ana", got.Contact.Name)
	require.NotNil(t, got.Queue)
	assert.Equal(t, "Billing", got.Queue.Name)
	assert.Equal(t, time.UTC, got.CreatedAt.Location())

	_, err = s.GetMessage(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMessage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	m := &models.Message{TicketID: "t1", Body: "hi", FromMe: true, MediaType: models.MediaChat}
	require.NoError(t, s.CreateMessage(ctx, m))

	body := "hello"
	read := models.AckRead
	got, err := s.UpdateMessage(ctx, m.ID, MessagePatch{Body: &body, Ack: &read})
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Body)
	assert.True(t, got.IsEdited)
	assert.Equal(t, models.AckRead, got.Ack)

	delivered := models.AckDelivered
	got, err = s.UpdateMessage(ctx, m.ID, MessagePatch{Ack: &delivered})
	require.NoError(t, err)
	assert.Equal(t, models.AckRead, got.Ack, "acks never go backwards")

	deleted := true
	got, err = s.UpdateMessage(ctx, m.ID, MessagePatch{IsDeleted: &deleted})
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)

	stored, err := s.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, got, stored)

	_, err = s.UpdateMessage(ctx, "missing", MessagePatch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetPresence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetContact(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)

	c, err := s.SetPresence(ctx, "c1", models.PresenceComposing)
	require.NoError(t, err)
	assert.Equal(t, models.PresenceComposing, c.Presence)

	require.NoError(t, s.UpsertContact(ctx, models.Contact{ID: "c1", Name: "Ana"}))
	c, err = s.GetContact(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", c.Name)
	assert.Equal(t, models.PresenceComposing, c.Presence, "renaming keeps presence")

	c, err = s.SetPresence(ctx, "c1", "")
	require.NoError(t, err)
	assert.Equal(t, models.PresenceAvailable, c.Presence)
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: "postgres"}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &Store{driver: "sqlite3"}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}
