package models

// Presence is the ephemeral activity state of a contact
type Presence string

const (
	PresenceAvailable Presence = "available"
	PresenceComposing Presence = "composing"
	PresenceRecording Presence = "recording"
)

// Normalize maps an unset presence to available
func (p Presence) Normalize() Presence {
	if p == "" {
		return PresenceAvailable
	}
	return p
}

// Contact is the counterpart of a ticket
type Contact struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Number   string   `json:"number,omitempty"`
	Presence Presence `json:"presence,omitempty"`
}

// DisplayName falls back to the number when the contact has no name
func (c *Contact) DisplayName() string {
	if c == nil {
		return ""
	}
	if c.Name != "" {
		return c.Name
	}
	return c.Number
}
