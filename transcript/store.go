package transcript

import (
	"errors"
	"sync"

	"ticketchat/models"
)

// ErrStale is returned when a write targets a ticket that is no longer open
var ErrStale = errors.New("transcript: ticket is no longer open")

// Action selects a store transition
type Action int

const (
	ActionLoad Action = iota
	ActionAdd
	ActionUpdate
	ActionReset
)

// Event is one input to Apply
type Event struct {
	Action   Action
	Messages []models.Message
}

// Apply returns the list that results from applying ev to list.
// list is never modified and every entry in the result that came from ev is a clone.
func Apply(list []models.Message, ev Event) []models.Message {
	switch ev.Action {
	case ActionReset:
		return []models.Message{}
	case ActionLoad:
		return applyLoad(list, ev.Messages)
	case ActionAdd:
		out := list
		for _, m := range ev.Messages {
			out = applyUpsert(out, m, true)
		}
		return copyIfSame(list, out)
	case ActionUpdate:
		out := list
		for _, m := range ev.Messages {
			out = applyUpsert(out, m, false)
		}
		return copyIfSame(list, out)
	}
	return copyIfSame(list, list)
}

func applyLoad(list []models.Message, page []models.Message) []models.Message {
	existing := indexOf(list)
	prev := make([]models.Message, len(list))
	copy(prev, list)

	fresh := make([]models.Message, 0, len(page))
	seen := make(map[string]int, len(page))
	for _, m := range page {
		if i, ok := existing[m.ID]; ok {
			prev[i] = m.Clone()
			continue
		}
		if i, ok := seen[m.ID]; ok {
			fresh[i] = m.Clone()
			continue
		}
		seen[m.ID] = len(fresh)
		fresh = append(fresh, m.Clone())
	}
	return append(fresh, prev...)
}

// applyUpsert replaces m in place by id, appending it when missing and appendMissing is set.
// The returned slice never aliases list when anything changed.
func applyUpsert(list []models.Message, m models.Message, appendMissing bool) []models.Message {
	for i := range list {
		if list[i].ID == m.ID {
			out := make([]models.Message, len(list))
			copy(out, list)
			out[i] = m.Clone()
			return out
		}
	}
	if !appendMissing {
		return list
	}
	out := make([]models.Message, len(list), len(list)+1)
	copy(out, list)
	return append(out, m.Clone())
}

func copyIfSame(in, out []models.Message) []models.Message {
	if len(in) != len(out) || len(in) == 0 || &in[0] != &out[0] {
		return out
	}
	dup := make([]models.Message, len(in))
	copy(dup, in)
	return dup
}

func indexOf(list []models.Message) map[string]int {
	idx := make(map[string]int, len(list))
	for i, m := range list {
		idx[m.ID] = i
	}
	return idx
}

// Store owns the ordered message list of the open ticket.
// All writes name the ticket they belong to and fail with ErrStale otherwise.
type Store struct {
	mu       sync.RWMutex
	ticketID string
	messages []models.Message
	version  uint64
	onChange func()
}

// NewStore creates an empty store with no ticket open
func NewStore() *Store {
	return &Store{messages: []models.Message{}}
}

// OnChange registers fn to run after every successful write, outside the lock
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Reset clears the list and hands ownership to ticketID
func (s *Store) Reset(ticketID string) {
	s.mu.Lock()
	s.ticketID = ticketID
	s.messages = Apply(s.messages, Event{Action: ActionReset})
	s.version++
	fn := s.onChange
	s.mu.Unlock()
	notify(fn)
}

// LoadPage merges an oldest-first history page ahead of the current list
func (s *Store) LoadPage(ticketID string, page []models.Message) error {
	s.mu.Lock()
	if ticketID != s.ticketID {
		s.mu.Unlock()
		return ErrStale
	}
	s.messages = Apply(s.messages, Event{Action: ActionLoad, Messages: page})
	s.version++
	fn := s.onChange
	s.mu.Unlock()
	notify(fn)
	return nil
}

// Add replaces msg in place or appends it. appended is true only for a new id.
func (s *Store) Add(msg models.Message) (appended bool, err error) {
	s.mu.Lock()
	if msg.TicketID != s.ticketID {
		s.mu.Unlock()
		return false, ErrStale
	}
	before := len(s.messages)
	s.messages = Apply(s.messages, Event{Action: ActionAdd, Messages: []models.Message{msg}})
	appended = len(s.messages) > before
	s.version++
	fn := s.onChange
	s.mu.Unlock()
	notify(fn)
	return appended, nil
}

// Update replaces msg in place; it reports false when the id is not present
func (s *Store) Update(msg models.Message) (bool, error) {
	s.mu.Lock()
	if msg.TicketID != s.ticketID {
		s.mu.Unlock()
		return false, ErrStale
	}
	if _, ok := indexOf(s.messages)[msg.ID]; !ok {
		s.mu.Unlock()
		return false, nil
	}
	s.messages = Apply(s.messages, Event{Action: ActionUpdate, Messages: []models.Message{msg}})
	s.version++
	fn := s.onChange
	s.mu.Unlock()
	notify(fn)
	return true, nil
}

// Messages returns a copy of the current list
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// Get looks up one message by id
func (s *Store) Get(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m.Clone(), true
		}
	}
	return models.Message{}, false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *Store) TicketID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticketID
}

// Version increases on every successful write
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func notify(fn func()) {
	if fn != nil {
		fn()
	}
}
