package transcript

import (
	"strings"
	"time"

	"ticketchat/models"
)

// Variant selects how an entry is drawn
type Variant int

const (
	VariantIncoming Variant = iota
	VariantOutgoing
	VariantCallLog
)

// Glyph is the acknowledgement icon of an outgoing message
type Glyph int

const (
	GlyphNone Glyph = iota
	GlyphPending
	GlyphSent
	GlyphDelivered
	GlyphRead
)

// ReadColor distinguishes read acknowledgements
const ReadColor = "#0377FC"

// AckGlyph maps an acknowledgement level to its icon
func AckGlyph(ack models.Ack) Glyph {
	switch ack {
	case models.AckPending:
		return GlyphPending
	case models.AckSent, models.AckServer:
		return GlyphSent
	case models.AckDelivered:
		return GlyphDelivered
	case models.AckRead, models.AckPlayed:
		return GlyphRead
	}
	return GlyphNone
}

// Color returns the highlight colour of the glyph, empty for the default colour
func (g Glyph) Color() string {
	if g == GlyphRead {
		return ReadColor
	}
	return ""
}

func (g Glyph) String() string {
	switch g {
	case GlyphPending:
		return "pending"
	case GlyphSent:
		return "sent"
	case GlyphDelivered:
		return "delivered"
	case GlyphRead:
		return "read"
	}
	return ""
}

// MediaKind selects the media preview widget
type MediaKind int

const (
	MediaNone MediaKind = iota
	MediaImage
	MediaAudio
	MediaVideo
	MediaLocation
	MediaContactCard
	MediaDownload
)

// Location is a parsed location composite
type Location struct {
	ImageURL    string
	Link        string
	Description string
}

// ContactCard is a parsed shared contact
type ContactCard struct {
	Name    string
	Numbers []string
}

// Media describes the preview drawn for an entry
type Media struct {
	Kind     MediaKind
	URL      string
	Location *Location
	Contact  *ContactCard
}

// Quoted is the preview of a replied-to message
type Quoted struct {
	ID         string
	FromMe     bool
	SenderName string
	Media      Media
	Body       string
}

// Reaction summarises a reaction message
type Reaction struct {
	Who   string
	Emoji string
}

// TicketBoundary separates entries of two different tickets of the same contact
type TicketBoundary struct {
	ClosedAt time.Time
	OpenedAt time.Time
}

// Entry is one display row derived from a message
type Entry struct {
	Message   models.Message
	DayMarker bool
	Day       string
	Ticket    *TicketBoundary
	Divider   bool
	Anchor    bool
	Variant   Variant

	SenderName string
	QueueName  string
	Media      Media
	Quoted     *Quoted
	Reaction   *Reaction
	Body       string
	Ack        Glyph
	Notice     string
	Deleted    bool
	Edited     bool
	Forwarded  bool
	Timestamp  string
}

// Frame is everything the viewport draws
type Frame struct {
	Entries   []Entry
	Presence  models.Presence
	Typing    bool
	Recording bool
	Loading   bool
	Empty     string
}

// Options tunes the derivation
type Options struct {
	// Location decides calendar days; nil means time.Local
	Location *time.Location
	IsGroup  bool
	// SelfName labels reactions sent by the current user
	SelfName string
	// EmptyText is shown when the transcript has no entries
	EmptyText string
}

// Annotations shown in place of a deleted message's body
const (
	DeletedNotice          = "This message was deleted"
	DeletedByContactNotice = "This message was deleted by the contact"
)

const (
	dayLayout   = "02/01/2006"
	clockLayout = "15:04"
)

// Render derives display entries from msgs. It holds no state of its own.
func Render(msgs []models.Message, presence models.Presence, opts Options) Frame {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	presence = presence.Normalize()

	frame := Frame{
		Entries:   make([]Entry, 0, len(msgs)),
		Presence:  presence,
		Typing:    presence == models.PresenceComposing,
		Recording: presence == models.PresenceRecording,
	}
	if len(msgs) == 0 {
		frame.Empty = opts.EmptyText
		if frame.Empty == "" {
			frame.Empty = "Say hello to your new contact!"
		}
		return frame
	}

	for i, m := range msgs {
		e := renderEntry(m, opts, loc)
		created := m.CreatedAt.In(loc)
		if i == 0 {
			e.DayMarker = true
		} else {
			prev := msgs[i-1]
			if !sameDay(created, prev.CreatedAt.In(loc)) {
				e.DayMarker = true
			}
			if prev.TicketID != m.TicketID {
				e.Ticket = &TicketBoundary{ClosedAt: prev.CreatedAt.In(loc), OpenedAt: created}
			}
			if prev.FromMe != m.FromMe {
				e.Divider = true
			}
		}
		if e.DayMarker {
			e.Day = created.Format(dayLayout)
		}
		frame.Entries = append(frame.Entries, e)
	}
	frame.Entries[len(frame.Entries)-1].Anchor = true
	return frame
}

func renderEntry(m models.Message, opts Options, loc *time.Location) Entry {
	e := Entry{
		Message:   m,
		Deleted:   m.IsDeleted,
		Edited:    m.IsEdited,
		Forwarded: m.IsForwarded,
		Timestamp: m.CreatedAt.In(loc).Format(clockLayout),
	}
	if m.IsEdited {
		e.Timestamp = "Edited " + e.Timestamp
	}
	if m.IsDeleted {
		e.Notice = DeletedNotice
		if !m.FromMe {
			e.Notice = DeletedByContactNotice
		}
	}
	if opts.IsGroup {
		e.SenderName = m.Contact.DisplayName()
	}

	if m.MediaType == models.MediaCallLog {
		e.Variant = VariantCallLog
		e.Body = "Missed voice/video call at " + m.CreatedAt.In(loc).Format(clockLayout)
		return e
	}

	if m.FromMe {
		e.Variant = VariantOutgoing
		e.Ack = AckGlyph(m.Ack)
	} else {
		e.Variant = VariantIncoming
		if m.Queue != nil {
			e.QueueName = m.Queue.Name
		}
	}

	if m.HasMedia() {
		e.Media = mediaPreview(m)
	}
	if m.QuotedMsg != nil {
		e.Quoted = quotedPreview(*m.QuotedMsg)
	}

	switch m.MediaType {
	case models.MediaReaction:
		if m.QuotedMsg != nil && m.Body != "" {
			e.Reaction = &Reaction{Who: reactor(m, opts), Emoji: m.Body}
		}
	case models.MediaLocation:
	case models.MediaContact:
		// incoming cards show only the card preview
		if m.FromMe {
			e.Body = m.Body
		}
	default:
		e.Body = m.Body
	}
	return e
}

func reactor(m models.Message, opts Options) string {
	if m.FromMe {
		if opts.SelfName != "" {
			return opts.SelfName
		}
		return "You"
	}
	if name := m.Contact.DisplayName(); name != "" {
		return name
	}
	return "Contact"
}

func mediaPreview(m models.Message) Media {
	switch m.MediaType {
	case models.MediaLocation:
		if loc, ok := ParseLocation(m.Body); ok {
			return Media{Kind: MediaLocation, Location: loc}
		}
	case models.MediaContact, models.MediaVCard:
		return Media{Kind: MediaContactCard, Contact: ParseContactCard(m.Body)}
	case models.MediaImage:
		return Media{Kind: MediaImage, URL: m.MediaURL}
	case models.MediaAudio:
		return Media{Kind: MediaAudio, URL: m.MediaURL}
	case models.MediaVideo:
		return Media{Kind: MediaVideo, URL: m.MediaURL}
	}
	return Media{Kind: MediaDownload, URL: m.MediaURL}
}

func quotedPreview(q models.Message) *Quoted {
	out := &Quoted{ID: q.ID, FromMe: q.FromMe, Body: q.Body}
	if !q.FromMe {
		out.SenderName = q.Contact.DisplayName()
	}
	switch q.MediaType {
	case models.MediaImage:
		out.Media = Media{Kind: MediaImage, URL: q.MediaURL}
		out.Body = ""
	case models.MediaAudio:
		out.Media = Media{Kind: MediaAudio, URL: q.MediaURL}
	case models.MediaVideo:
		out.Media = Media{Kind: MediaVideo, URL: q.MediaURL}
	case models.MediaApplication:
		out.Media = Media{Kind: MediaDownload, URL: q.MediaURL}
	}
	return out
}

// ParseLocation splits an "image|link|description" location body
func ParseLocation(body string) (*Location, bool) {
	parts := strings.Split(body, "|")
	if len(parts) < 2 {
		return nil, false
	}
	loc := &Location{ImageURL: parts[0], Link: parts[1]}
	if len(parts) > 2 {
		loc.Description = parts[2]
	}
	return loc, true
}

// ParseContactCard extracts the FN name and "+" numbers from a vCard body
func ParseContactCard(body string) *ContactCard {
	card := &ContactCard{}
	for _, line := range strings.Split(body, "\n") {
		values := strings.Split(strings.TrimRight(line, "\r"), ":")
		for i, v := range values {
			if strings.Contains(v, "+") {
				card.Numbers = append(card.Numbers, v)
			}
			if strings.Contains(v, "FN") && i+1 < len(values) {
				card.Name = values[i+1]
			}
		}
	}
	return card
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
