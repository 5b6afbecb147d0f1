package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ticketchat/models"
	"ticketchat/transcript"
)

func TestDrawFrameEmpty(t *testing.T) {
	out := drawFrame(transcript.Render(nil, models.PresenceComposing, transcript.Options{}), 60)
	assert.Contains(t, out, "Say hello to your new contact!")
	assert.Contains(t, out, "typing...")
}

func TestDrawFrameEntries(t *testing.T) {
	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		{ID: "a", TicketID: "t1", Body: "hello there", MediaType: models.MediaChat, CreatedAt: created},
		{ID: "b", TicketID: "t1", FromMe: true, Body: "hi!", MediaType: models.MediaChat, Ack: models.AckRead, CreatedAt: created.Add(time.Minute)},
		{ID: "c", TicketID: "t1", MediaType: models.MediaCallLog, CreatedAt: created.Add(2 * time.Minute)},
	}
	frame := transcript.Render(msgs, models.PresenceAvailable, transcript.Options{Location: time.UTC})
	frame.Loading = true

	out := drawFrame(frame, 60)
	assert.Contains(t, out, "loading older messages...")
	assert.Contains(t, out, "01/01/2024")
	assert.Contains(t, out, "hello there")
	assert.Contains(t, out, "hi!")
	assert.Contains(t, out, "read")
	assert.Contains(t, out, "Missed voice/video call at 10:02")
}

func TestDrawMedia(t *testing.T) {
	assert.Equal(t, "[image] http://x/a.png", drawMedia(transcript.Media{Kind: transcript.MediaImage, URL: "http://x/a.png"}))
	assert.Equal(t, "[contact] Ana +55, +1", drawMedia(transcript.Media{
		Kind:    transcript.MediaContactCard,
		Contact: &transcript.ContactCard{Name: "Ana", Numbers: []string{"+55", "+1"}},
	}))
	assert.Empty(t, drawMedia(transcript.Media{}))
}
