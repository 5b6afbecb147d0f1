package models

import "time"

// MediaType tags the kind of content a message carries
type MediaType string

const (
	MediaChat        MediaType = "chat"
	MediaImage       MediaType = "image"
	MediaAudio       MediaType = "audio"
	MediaVideo       MediaType = "video"
	MediaApplication MediaType = "application"
	MediaLocation    MediaType = "locationMessage"
	MediaContact     MediaType = "contactMessage"
	MediaVCard       MediaType = "vcard"
	MediaReaction    MediaType = "reactionMessage"
	MediaCallLog     MediaType = "call_log"
)

// Ack is the delivery acknowledgement level of an outgoing message
type Ack int

const (
	AckPending Ack = iota
	AckSent
	AckServer
	AckDelivered
	AckRead
	AckPlayed
)

// Message represents a chat message inside a ticket
type Message struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticketId"`
	FromMe      bool      `json:"fromMe"`
	CreatedAt   time.Time `json:"createdAt"`
	Body        string    `json:"body"`
	MediaType   MediaType `json:"mediaType,omitempty"`
	MediaURL    string    `json:"mediaUrl,omitempty"`
	Ack         Ack       `json:"ack"`
	IsEdited    bool      `json:"isEdited"`
	IsDeleted   bool      `json:"isDeleted"`
	IsForwarded bool      `json:"isForwarded"`
	QuotedMsg   *Message  `json:"quotedMsg,omitempty"`
	Contact     *Contact  `json:"contact,omitempty"`
	Queue       *Queue    `json:"queue,omitempty"`
}

// Clone returns a deep copy so the caller can own the result outright
func (m Message) Clone() Message {
	out := m
	if m.QuotedMsg != nil {
		q := m.QuotedMsg.Clone()
		out.QuotedMsg = &q
	}
	if m.Contact != nil {
		c := *m.Contact
		out.Contact = &c
	}
	if m.Queue != nil {
		q := *m.Queue
		out.Queue = &q
	}
	return out
}

// HasMedia reports whether the message needs a media preview
func (m Message) HasMedia() bool {
	if m.MediaURL != "" {
		return true
	}
	switch m.MediaType {
	case MediaLocation, MediaVCard, MediaContact:
		return true
	}
	return false
}

// Queue is the department a ticket was routed through
type Queue struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Ticket is the conversation currently open in the transcript
type Ticket struct {
	ID      string  `json:"id"`
	Contact Contact `json:"contact"`
	IsGroup bool    `json:"isGroup"`
}

// Page is one batch of history returned by the messages endpoint
type Page struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}
