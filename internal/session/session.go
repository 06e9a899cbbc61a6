// Package session provides cookie-backed server-side sessions with a
// pluggable persistence store. Each request loads its session once, mutates
// it in memory, and saves it once at the end; concurrent requests on the
// same session resolve as last-writer-wins on the whole value map.
package session

import (
	"encoding/json"
	"time"
)

// Session is one browser session's server-side state. Values holds
// arbitrary JSON documents keyed by string, such as the flash message
// mapping or the GitHub auth token.
type Session struct {
	ID         string                     `json:"session_id"`
	CSRFToken  string                     `json:"csrf_token"`
	Values     map[string]json.RawMessage `json:"values"`
	CreatedAt  time.Time                  `json:"created_at"`
	LastSeenAt time.Time                  `json:"last_seen_at"`
}

// GetJSON decodes the value stored under key into v. It returns false when
// the key is absent or the stored document does not decode; a corrupt value
// reads the same as a missing one.
func (s *Session) GetJSON(key string, v any) bool {
	raw, ok := s.Values[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// SetJSON stores v under key, replacing any previous value.
func (s *Session) SetJSON(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if s.Values == nil {
		s.Values = make(map[string]json.RawMessage)
	}
	s.Values[key] = raw
}

// GetString reads a string value stored under key, or "" when absent.
func (s *Session) GetString(key string) string {
	var v string
	if !s.GetJSON(key, &v) {
		return ""
	}
	return v
}

// SetString stores a string value under key.
func (s *Session) SetString(key, value string) {
	s.SetJSON(key, value)
}

// PopString reads and removes a string value, returning fallback when the
// key is absent.
func (s *Session) PopString(key, fallback string) string {
	v := s.GetString(key)
	if v == "" {
		return fallback
	}
	delete(s.Values, key)
	return v
}

// Remove drops the value stored under key, if any.
func (s *Session) Remove(key string) {
	delete(s.Values, key)
}

func clone(s *Session) *Session {
	c := *s
	if s.Values != nil {
		c.Values = make(map[string]json.RawMessage, len(s.Values))
		for k, v := range s.Values {
			c.Values[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}
