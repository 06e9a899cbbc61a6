package flash

import (
	"strings"
	"testing"
	"time"
)

type fakeScope struct {
	path string
	msgs Messages
}

func (f *fakeScope) Path() string { return f.path }

func (f *fakeScope) Messages() Messages {
	if f.msgs == nil {
		return Messages{}
	}
	return f.msgs
}

func (f *fakeScope) SetMessages(m Messages) { f.msgs = m }

type fakeClock struct {
	at time.Time
}

func (c *fakeClock) Now() time.Time { return c.at }

func (c *fakeClock) Advance(d time.Duration) { c.at = c.at.Add(d) }

func newTestStore(clk *fakeClock) *Store {
	s := NewStore(DefaultMaxAge, DefaultMaxPerSession, nil)
	s.now = clk.Now
	return s
}

func TestFlashStoresRecord(t *testing.T) {
	clk := &fakeClock{at: time.Unix(1000, 0)}
	s := newTestStore(clk)
	scope := &fakeScope{path: "/test"}

	id := s.Flash(scope, "Test message", "positive", "")
	if id == "" {
		t.Fatalf("Flash() returned empty id")
	}
	if !strings.HasPrefix(id, "/test:") {
		t.Fatalf("id = %q, want /test: prefix", id)
	}

	rec, ok := scope.msgs[id]
	if !ok {
		t.Fatalf("record not stored under %q", id)
	}
	if rec.Message != "Test message" || rec.Category != "positive" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Consumed {
		t.Fatalf("new record should not be consumed")
	}
	if !rec.Timestamp.Equal(clk.at) {
		t.Fatalf("Timestamp = %v, want %v", rec.Timestamp, clk.at)
	}
}

func TestFlashDefaultCategory(t *testing.T) {
	s := newTestStore(&fakeClock{at: time.Unix(1000, 0)})
	scope := &fakeScope{path: "/test"}

	id := s.Flash(scope, "hello", "", "")
	if got := scope.msgs[id].Category; got != DefaultCategory {
		t.Fatalf("Category = %q, want %q", got, DefaultCategory)
	}
}

func TestFlashKeepsCallerSuppliedID(t *testing.T) {
	s := newTestStore(&fakeClock{at: time.Unix(1000, 0)})
	scope := &fakeScope{path: "/test"}

	id := s.Flash(scope, "hello", "positive", "my-id")
	if id != "my-id" {
		t.Fatalf("id = %q, want my-id", id)
	}
	if _, ok := scope.msgs["my-id"]; !ok {
		t.Fatalf("record not stored under caller id")
	}
}

func TestGetMarksConsumed(t *testing.T) {
	s := newTestStore(&fakeClock{at: time.Unix(1000, 0)})
	scope := &fakeScope{path: "/test"}

	id := s.Flash(scope, "Test message", "positive", "")
	got := s.Get(scope, id)
	if len(got) != 1 || got[0].Message != "Test message" || got[0].Category != "positive" {
		t.Fatalf("Get() = %+v, want one positive entry", got)
	}
	if !scope.msgs[id].Consumed {
		t.Fatalf("record should be consumed after Get")
	}
	if s.Has(scope, id) {
		t.Fatalf("Has() should be false after Get even though the record remains")
	}
}

func TestGetUnknownID(t *testing.T) {
	s := newTestStore(&fakeClock{at: time.Unix(1000, 0)})
	scope := &fakeScope{path: "/test"}

	if got := s.Get(scope, "missing"); got != nil {
		t.Fatalf("Get(missing) = %+v, want nil", got)
	}
}

func TestGetCategoryFilterStillBurns(t *testing.T) {
	s := newTestStore(&fakeClock{at: time.Unix(1000, 0)})
	scope := &fakeScope{path: "/test"}

	posID := s.Flash(scope, "Positive message", "positive", "")
	negID := s.Flash(scope, "Negative message", "negative", "")

	if got := s.Get(scope, posID, "positive"); len(got) != 1 || got[0].Message != "Positive message" {
		t.Fatalf("Get(posID, positive) = %+v", got)
	}
	if got := s.Get(scope, negID, "negative"); len(got) != 1 || got[0].Message != "Negative message" {
		t.Fatalf("Get(negID, negative) = %+v", got)
	}

	excludedID := s.Flash(scope, "Another positive", "positive", "")
	if got := s.Get(scope, excludedID, "negative"); got != nil {
		t.Fatalf("filtered Get = %+v, want nil", got)
	}
	// The lookup burned the record even though the filter excluded it.
	if s.Has(scope, excludedID) {
		t.Fatalf("Has() should be false after a filtered-out lookup")
	}
	if got := s.Get(scope, excludedID, "negative"); got != nil {
		t.Fatalf("second filtered Get = %+v, want nil", got)
	}
}

func TestGetAfterConsumptionStillReturnsContent(t *testing.T) {
	s := newTestStore(&fakeClock{at: time.Unix(1000, 0)})
	scope := &fakeScope{path: "/test"}

	id := s.Flash(scope, "hello", "positive", "")
	first := s.Get(scope, id)
	second := s.Get(scope, id)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("Get does not short-circuit on prior consumption: first=%+v second=%+v", first, second)
	}
}

func TestGetAllDrains(t *testing.T) {
	s := newTestStore(&fakeClock{at: time.Unix(1000, 0)})
	scope := &fakeScope{path: "/test"}

	s.Flash(scope, "Message 1", "positive", "")
	s.Flash(scope, "Message 2", "negative", "")

	got := s.GetAll(scope)
	if len(got) != 2 {
		t.Fatalf("GetAll() returned %d entries, want 2", len(got))
	}
	seen := map[string]bool{}
	for _, e := range got {
		seen[e.Message] = true
	}
	if !seen["Message 1"] || !seen["Message 2"] {
		t.Fatalf("GetAll() = %+v", got)
	}

	if again := s.GetAll(scope); len(again) != 0 {
		t.Fatalf("second GetAll() = %+v, want empty", again)
	}
}

func TestGetAllFilterLeavesExcludedUnconsumed(t *testing.T) {
	s := newTestStore(&fakeClock{at: time.Unix(1000, 0)})
	scope := &fakeScope{path: "/test"}

	s.Flash(scope, "Positive message", "positive", "")
	s.Flash(scope, "Negative message", "negative", "")

	pos := s.GetAll(scope, "positive")
	if len(pos) != 1 || pos[0].Message != "Positive message" {
		t.Fatalf("GetAll(positive) = %+v", pos)
	}

	// The excluded negative message must remain retrievable.
	neg := s.GetAll(scope, "negative")
	if len(neg) != 1 || neg[0].Message != "Negative message" {
		t.Fatalf("GetAll(negative) = %+v", neg)
	}

	if rest := s.GetAll(scope); len(rest) != 0 {
		t.Fatalf("third GetAll() = %+v, want empty", rest)
	}
}

func TestClearSingle(t *testing.T) {
	s := newTestStore(&fakeClock{at: time.Unix(1000, 0)})
	scope := &fakeScope{path: "/test"}

	id := s.Flash(scope, "Test message", "positive", "")
	other := s.Flash(scope, "Keep me", "positive", "")

	s.Clear(scope, id)
	if s.Has(scope, id) {
		t.Fatalf("record %q should be gone", id)
	}
	if !s.Has(scope, other) {
		t.Fatalf("record %q should survive", other)
	}

	// Unknown ids are a no-op.
	s.Clear(scope, "missing")
	if !s.Has(scope, other) {
		t.Fatalf("Clear(missing) must not disturb other records")
	}
}

func TestClearAll(t *testing.T) {
	s := newTestStore(&fakeClock{at: time.Unix(1000, 0)})
	scope := &fakeScope{path: "/test"}

	s.Flash(scope, "Message 1", "positive", "")
	s.Flash(scope, "Message 2", "negative", "")
	if !s.Has(scope, "") {
		t.Fatalf("Has() should be true before Clear")
	}

	s.Clear(scope, "")
	if s.Has(scope, "") {
		t.Fatalf("Has() should be false after Clear")
	}
	if len(scope.msgs) != 0 {
		t.Fatalf("mapping not emptied: %+v", scope.msgs)
	}
}

func TestHas(t *testing.T) {
	s := newTestStore(&fakeClock{at: time.Unix(1000, 0)})
	scope := &fakeScope{path: "/test"}

	if s.Has(scope, "") {
		t.Fatalf("Has() should start false")
	}

	id := s.Flash(scope, "Test message", "positive", "")
	if !s.Has(scope, "") || !s.Has(scope, id) {
		t.Fatalf("Has() should be true after Flash")
	}
	if s.Has(scope, "some-other-id") {
		t.Fatalf("Has(unknown) should be false")
	}

	s.Get(scope, id)
	if s.Has(scope, "") || s.Has(scope, id) {
		t.Fatalf("Has() should be false once everything is consumed")
	}
}

func TestHasSkipsExpirySweep(t *testing.T) {
	clk := &fakeClock{at: time.Unix(1000, 0)}
	s := newTestStore(clk)
	scope := &fakeScope{path: "/test"}

	id := s.Flash(scope, "Old message", "positive", "")
	clk.Advance(s.MaxAge + time.Second)

	// Has does not sweep: the expired record still counts until some other
	// operation cleans it up.
	if !s.Has(scope, id) {
		t.Fatalf("Has() should still see the expired, unswept record")
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	clk := &fakeClock{at: time.Unix(1000, 0)}
	s := NewStore(time.Hour, 3, nil)
	s.now = clk.Now
	scope := &fakeScope{path: "/test"}

	first := s.Flash(scope, "m0", "message", "")
	var rest []string
	for i := 0; i < 3; i++ {
		clk.Advance(time.Second)
		rest = append(rest, s.Flash(scope, "m", "message", ""))
	}

	if len(scope.msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(scope.msgs))
	}
	if _, ok := scope.msgs[first]; ok {
		t.Fatalf("oldest record should have been evicted")
	}
	for _, id := range rest {
		if _, ok := scope.msgs[id]; !ok {
			t.Fatalf("record %q should survive eviction", id)
		}
	}
}

func TestExpiredMessagesSweptOnFlash(t *testing.T) {
	clk := &fakeClock{at: time.Unix(1000, 0)}
	s := newTestStore(clk)
	scope := &fakeScope{path: "/test"}

	oldID := s.Flash(scope, "Old message", "positive", "")
	clk.Advance(s.MaxAge + time.Second)

	newID := s.Flash(scope, "New message", "positive", "")
	if s.Has(scope, oldID) {
		t.Fatalf("expired record should be gone after the sweep")
	}
	got := s.Get(scope, newID)
	if len(got) != 1 || got[0].Message != "New message" {
		t.Fatalf("Get(newID) = %+v", got)
	}
}

func TestGetAllSkipsExpired(t *testing.T) {
	clk := &fakeClock{at: time.Unix(1000, 0)}
	s := newTestStore(clk)
	scope := &fakeScope{path: "/test"}

	s.Flash(scope, "Old message", "positive", "")
	clk.Advance(s.MaxAge + time.Second)
	s.Flash(scope, "New message", "positive", "")

	got := s.GetAll(scope)
	if len(got) != 1 || got[0].Message != "New message" {
		t.Fatalf("GetAll() = %+v, want only the new message", got)
	}
}

func TestNilScopeSentinels(t *testing.T) {
	s := newTestStore(&fakeClock{at: time.Unix(1000, 0)})

	if id := s.Flash(nil, "Test", "positive", ""); id != "" {
		t.Fatalf("Flash(nil) = %q, want empty", id)
	}
	if got := s.Get(nil, "some-id"); got != nil {
		t.Fatalf("Get(nil) = %+v, want nil", got)
	}
	if got := s.GetAll(nil); got != nil {
		t.Fatalf("GetAll(nil) = %+v, want nil", got)
	}
	if s.Has(nil, "") {
		t.Fatalf("Has(nil) = true, want false")
	}
	s.Clear(nil, "") // must not panic
}

func TestRequestIDWithoutScope(t *testing.T) {
	s := newTestStore(&fakeClock{at: time.Unix(1000, 0)})

	id := s.RequestID(nil)
	if id == "" || strings.Contains(id, ":") {
		t.Fatalf("RequestID(nil) = %q, want bare token", id)
	}
	if s.RequestID(nil) == id {
		t.Fatalf("ids must be unique")
	}
}

func TestMalformedRecordTolerated(t *testing.T) {
	clk := &fakeClock{at: time.Unix(1000, 0)}
	s := newTestStore(clk)
	scope := &fakeScope{path: "/test", msgs: Messages{
		// A record missing timestamp and consumed, as a buggy client or an
		// older serialization might leave behind.
		"stale": {Message: "who knows"},
	}}

	if !s.Has(scope, "stale") {
		t.Fatalf("zero Consumed should read as unconsumed")
	}

	// The zero timestamp makes it maximally old: first sweep discards it.
	s.Flash(scope, "fresh", "positive", "")
	if s.Has(scope, "stale") {
		t.Fatalf("zero-timestamp record should be swept")
	}
}

type countingObserver struct {
	flashed, consumed int
	dropped           map[string]int
}

func (o *countingObserver) Flashed(string)  { o.flashed++ }
func (o *countingObserver) Consumed(string) { o.consumed++ }
func (o *countingObserver) Dropped(reason string) {
	if o.dropped == nil {
		o.dropped = map[string]int{}
	}
	o.dropped[reason]++
}

func TestObserverCounts(t *testing.T) {
	clk := &fakeClock{at: time.Unix(1000, 0)}
	obs := &countingObserver{}
	s := NewStore(time.Minute, 2, obs)
	s.now = clk.Now
	scope := &fakeScope{path: "/test"}

	id := s.Flash(scope, "a", "positive", "")
	clk.Advance(time.Second)
	s.Flash(scope, "b", "positive", "")
	clk.Advance(time.Second)
	s.Flash(scope, "c", "positive", "") // evicts "a"

	s.Get(scope, id) // miss, no consumption
	s.GetAll(scope)  // delivers b and c

	clk.Advance(2 * time.Minute)
	s.Flash(scope, "d", "positive", "") // sweeps b and c

	if obs.flashed != 4 {
		t.Fatalf("flashed = %d, want 4", obs.flashed)
	}
	if obs.consumed != 2 {
		t.Fatalf("consumed = %d, want 2", obs.consumed)
	}
	if obs.dropped["capacity"] != 1 {
		t.Fatalf("dropped[capacity] = %d, want 1", obs.dropped["capacity"])
	}
	if obs.dropped["expired"] != 2 {
		t.Fatalf("dropped[expired] = %d, want 2", obs.dropped["expired"])
	}
}
