// Package flash associates ephemeral user-facing notifications with the
// specific page that produced them instead of the whole browser session,
// so that a message flashed in one tab never surfaces in another.
package flash

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// SessionKey is where the message mapping lives inside a session's values.
const SessionKey = "_flash_messages"

// DefaultCategory tags messages flashed without an explicit category.
const DefaultCategory = "message"

const (
	DefaultMaxAge        = 60 * time.Second
	DefaultMaxPerSession = 25
)

// Record is a single flash message held in a session. A zero Timestamp
// decodes as the epoch, which makes a malformed record maximally old and
// lets the next sweep discard it instead of anything newer.
type Record struct {
	Message   string    `json:"message"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Consumed  bool      `json:"consumed"`
}

// Messages maps a request identifier to its record. It is the value stored
// under SessionKey and travels by value through every operation: loaded at
// call start, written back at call end.
type Messages map[string]Record

// Entry is one delivered message.
type Entry struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Scope gives an operation access to the active request and its session.
// A nil Scope means no request is in flight; every operation degrades to
// an empty result rather than returning an error.
type Scope interface {
	// Path returns the current request path, or "" when unknown.
	Path() string
	// Messages returns the session's current message mapping, never nil.
	Messages() Messages
	// SetMessages writes the mapping back into the session.
	SetMessages(Messages)
}

// Observer receives store events so the host can count them.
type Observer interface {
	Flashed(category string)
	Consumed(category string)
	Dropped(reason string)
}

// Store applies age and capacity policy to per-session flash messages.
// It holds no per-session state itself: the session middleware serializes
// load and save around each request, and concurrent requests from two
// tabs resolve as last-writer-wins on the whole mapping.
type Store struct {
	MaxAge        time.Duration
	MaxPerSession int

	observer Observer
	now      func() time.Time
	newID    func() string
}

// NewStore builds a store with the given policy. Non-positive values fall
// back to the defaults. observer may be nil.
func NewStore(maxAge time.Duration, maxPerSession int, observer Observer) *Store {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if maxPerSession <= 0 {
		maxPerSession = DefaultMaxPerSession
	}
	return &Store{
		MaxAge:        maxAge,
		MaxPerSession: maxPerSession,
		observer:      observer,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// RequestID builds an identifier tying a message to the page that produced
// it: the request path plus a random suffix, or a bare random token when no
// request is in flight.
func (s *Store) RequestID(scope Scope) string {
	id := s.newID()
	if scope == nil {
		return id
	}
	if path := scope.Path(); path != "" {
		return path + ":" + id
	}
	return id
}

// Flash stores a message for later retrieval and returns the request
// identifier it was stored under. With a nil scope nothing is stored and
// "" is returned; callers must treat "" as "message was not stored".
//
// Flashing sweeps expired records first, then evicts the single oldest
// record if the session is at capacity.
func (s *Store) Flash(scope Scope, message, category, requestID string) string {
	if scope == nil {
		return ""
	}
	if category == "" {
		category = DefaultCategory
	}
	if requestID == "" {
		requestID = s.RequestID(scope)
	}

	msgs := s.sweep(scope.Messages())

	if len(msgs) >= s.MaxPerSession {
		s.evictOldest(msgs)
	}

	msgs[requestID] = Record{
		Message:   message,
		Category:  category,
		Timestamp: s.now(),
	}
	scope.SetMessages(msgs)
	s.flashed(category)
	return requestID
}

// Get looks up the record stored under requestID and returns it as a
// single-entry slice, or nil when the scope is nil, the key is absent, or
// the record's category is not in categories (when any are given).
//
// A hit burns the record: it is marked consumed and written back even when
// the category filter excludes it from the result. Filtered-out messages
// are still spent.
func (s *Store) Get(scope Scope, requestID string, categories ...string) []Entry {
	if scope == nil {
		return nil
	}
	msgs := scope.Messages()
	rec, ok := msgs[requestID]
	if !ok {
		return nil
	}

	rec.Consumed = true
	msgs[requestID] = rec
	scope.SetMessages(msgs)
	s.consumed(rec.Category)

	if len(categories) > 0 && !slices.Contains(categories, rec.Category) {
		return nil
	}
	return []Entry{{Category: rec.Category, Message: rec.Message}}
}

// GetAll drains every unconsumed, unexpired record in the session, marking
// each delivered record consumed. Unlike Get, a record excluded by the
// category filter is left unconsumed so a later call with a wider filter
// can still deliver it. Order follows map iteration, not insertion.
func (s *Store) GetAll(scope Scope, categories ...string) []Entry {
	if scope == nil {
		return nil
	}
	msgs := s.sweep(scope.Messages())

	var out []Entry
	for id, rec := range msgs {
		if rec.Consumed {
			continue
		}
		if len(categories) > 0 && !slices.Contains(categories, rec.Category) {
			continue
		}
		rec.Consumed = true
		msgs[id] = rec
		s.consumed(rec.Category)
		out = append(out, Entry{Category: rec.Category, Message: rec.Message})
	}
	scope.SetMessages(msgs)
	return out
}

// Clear removes the record stored under requestID, or the whole mapping
// when requestID is "". Unknown ids are a no-op.
func (s *Store) Clear(scope Scope, requestID string) {
	if scope == nil {
		return
	}
	if requestID == "" {
		scope.SetMessages(Messages{})
		return
	}
	msgs := scope.Messages()
	if _, ok := msgs[requestID]; ok {
		delete(msgs, requestID)
		scope.SetMessages(msgs)
	}
}

// Has reports whether an unconsumed record exists under requestID, or under
// any id when requestID is "". It deliberately performs no expiry sweep: a
// record past MaxAge that no other operation has swept yet still counts.
func (s *Store) Has(scope Scope, requestID string) bool {
	if scope == nil {
		return false
	}
	msgs := scope.Messages()
	if requestID != "" {
		rec, ok := msgs[requestID]
		return ok && !rec.Consumed
	}
	for _, rec := range msgs {
		if !rec.Consumed {
			return true
		}
	}
	return false
}

// sweep returns a fresh mapping holding only records younger than MaxAge.
func (s *Store) sweep(msgs Messages) Messages {
	now := s.now()
	kept := make(Messages, len(msgs))
	for id, rec := range msgs {
		if now.Sub(rec.Timestamp) < s.MaxAge {
			kept[id] = rec
		} else {
			s.dropped("expired")
		}
	}
	return kept
}

func (s *Store) evictOldest(msgs Messages) {
	var oldestID string
	var oldestAt time.Time
	first := true
	for id, rec := range msgs {
		if first || rec.Timestamp.Before(oldestAt) {
			oldestID, oldestAt = id, rec.Timestamp
			first = false
		}
	}
	if !first {
		delete(msgs, oldestID)
		s.dropped("capacity")
	}
}

func (s *Store) flashed(category string) {
	if s.observer != nil {
		s.observer.Flashed(category)
	}
}

func (s *Store) consumed(category string) {
	if s.observer != nil {
		s.observer.Consumed(category)
	}
}

func (s *Store) dropped(reason string) {
	if s.observer != nil {
		s.observer.Dropped(reason)
	}
}
