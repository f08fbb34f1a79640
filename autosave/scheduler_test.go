package autosave

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"forum/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs due timers on the calling goroutine.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

func (c *manualClock) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type saveCall struct {
	DraftID string
	Fields  models.DraftFields
}

type fakeSaver struct {
	mu       sync.Mutex
	calls    []saveCall
	next     int
	failNext error
	gate     chan struct{} // when set, each save blocks until it receives
	started  chan struct{}
	inFlight int
	maxSeen  int
}

func (f *fakeSaver) SaveDraft(ctx context.Context, draftID string, fields models.DraftFields) (string, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.calls = append(f.calls, saveCall{DraftID: draftID, Fields: fields})
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if err := f.failNext; err != nil {
		f.failNext = nil
		return "", err
	}
	if draftID == "" {
		f.next++
		draftID = fmt.Sprintf("d%d", f.next)
	}
	return draftID, nil
}

func (f *fakeSaver) snapshot() []saveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]saveCall(nil), f.calls...)
}

func newTestScheduler(saver *fakeSaver) (*Scheduler, *manualClock) {
	clock := &manualClock{}
	return New(saver, WithClock(clock)), clock
}

func setTitle(title string) func(*models.DraftFields) {
	return func(f *models.DraftFields) { f.Title = title }
}

func TestBurstOfEditsSavesOnce(t *testing.T) {
	saver := &fakeSaver{}
	s, clock := newTestScheduler(saver)

	for _, title := range []string{"H", "He", "Hel", "Hell", "Hello"} {
		s.Edit(setTitle(title))
		clock.Advance(100 * time.Millisecond)
	}
	assert.Empty(t, saver.snapshot())
	assert.Equal(t, Pending, s.Status().State)
	assert.Equal(t, 1, clock.active())

	clock.Advance(DefaultDelay)
	calls := saver.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "", calls[0].DraftID)
	assert.Equal(t, "Hello", calls[0].Fields.Title)

	st := s.Status()
	assert.Equal(t, Idle, st.State)
	assert.Equal(t, "d1", st.DraftID)
	assert.False(t, st.Dirty)
	assert.NoError(t, st.Err)
	assert.False(t, st.SavedAt.IsZero())
}

func TestLaterSavesReuseReturnedID(t *testing.T) {
	saver := &fakeSaver{}
	s, clock := newTestScheduler(saver)

	s.Edit(setTitle("one"))
	clock.Advance(DefaultDelay)
	s.Edit(func(f *models.DraftFields) { f.Text = "body" })
	clock.Advance(DefaultDelay)

	calls := saver.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "d1", calls[1].DraftID)
	assert.Equal(t, models.DraftFields{Title: "one", Text: "body"}, calls[1].Fields)
}

func TestEditsDuringSaveStartANewCycle(t *testing.T) {
	saver := &fakeSaver{gate: make(chan struct{}), started: make(chan struct{})}
	s, clock := newTestScheduler(saver)

	s.Edit(setTitle("first"))
	advanced := make(chan struct{})
	go func() {
		clock.Advance(DefaultDelay)
		close(advanced)
	}()
	<-saver.started

	s.Edit(setTitle("second"))
	st := s.Status()
	assert.Equal(t, Saving, st.State)
	assert.True(t, st.Dirty)
	assert.Equal(t, 0, clock.active(), "no timer runs while a save is in flight")

	saver.gate <- struct{}{}
	<-advanced

	assert.Equal(t, Pending, s.Status().State)
	assert.Equal(t, "d1", s.DraftID())

	saver.mu.Lock()
	saver.gate, saver.started = nil, nil
	saver.mu.Unlock()

	clock.Advance(DefaultDelay)
	calls := saver.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "d1", calls[1].DraftID)
	assert.Equal(t, "second", calls[1].Fields.Title)
	assert.Equal(t, 1, saver.maxSeen)
	assert.Equal(t, Idle, s.Status().State)
}

func TestFailedSaveKeepsEditsForNextCycle(t *testing.T) {
	saver := &fakeSaver{failNext: errors.New("server error")}
	s, clock := newTestScheduler(saver)

	s.Edit(setTitle("kept"))
	clock.Advance(DefaultDelay)

	st := s.Status()
	assert.Equal(t, Idle, st.State)
	assert.True(t, st.Dirty)
	assert.EqualError(t, st.Err, "server error")
	assert.Equal(t, "", st.DraftID)

	clock.Advance(10 * DefaultDelay)
	assert.Len(t, saver.snapshot(), 1, "failures are retried by the next edit, not by a timer")

	s.Edit(func(f *models.DraftFields) { f.Text = "newer" })
	clock.Advance(DefaultDelay)

	calls := saver.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "", calls[1].DraftID)
	assert.Equal(t, models.DraftFields{Title: "kept", Text: "newer"}, calls[1].Fields)

	st = s.Status()
	assert.NoError(t, st.Err)
	assert.Equal(t, "d1", st.DraftID)
}

func TestLoadCancelsPendingSave(t *testing.T) {
	saver := &fakeSaver{}
	s, clock := newTestScheduler(saver)

	s.Edit(setTitle("scratch"))
	s.Load("x9", models.DraftFields{Title: "stored", Tags: []string{"go"}, Private: true})
	clock.Advance(DefaultDelay)
	assert.Empty(t, saver.snapshot())

	assert.Equal(t, models.DraftFields{Title: "stored", Tags: []string{"go"}, Private: true}, s.Fields())
	assert.Equal(t, Idle, s.Status().State)

	s.Edit(func(f *models.DraftFields) { f.Text = "more" })
	clock.Advance(DefaultDelay)
	calls := saver.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "x9", calls[0].DraftID)
	assert.Equal(t, "stored", calls[0].Fields.Title)
	assert.Equal(t, "more", calls[0].Fields.Text)
}

func TestLoadDuringSaveDiscardsOldResult(t *testing.T) {
	saver := &fakeSaver{gate: make(chan struct{}), started: make(chan struct{})}
	s, clock := newTestScheduler(saver)

	s.Edit(setTitle("old"))
	advanced := make(chan struct{})
	go func() {
		clock.Advance(DefaultDelay)
		close(advanced)
	}()
	<-saver.started

	s.Load("x9", models.DraftFields{Title: "loaded"})
	saver.gate <- struct{}{}
	<-advanced

	st := s.Status()
	assert.Equal(t, "x9", st.DraftID)
	assert.Equal(t, Idle, st.State)
	assert.False(t, st.Dirty)
	assert.Equal(t, "loaded", s.Fields().Title)
}

func TestFlush(t *testing.T) {
	saver := &fakeSaver{}
	s, clock := newTestScheduler(saver)

	require.NoError(t, s.Flush(context.Background()))
	assert.Empty(t, saver.snapshot())

	s.Edit(setTitle("now"))
	require.NoError(t, s.Flush(context.Background()))
	require.Len(t, saver.snapshot(), 1)
	assert.Equal(t, "d1", s.DraftID())

	clock.Advance(DefaultDelay)
	assert.Len(t, saver.snapshot(), 1, "the cancelled window does not save again")

	saver.failNext = errors.New("offline")
	s.Edit(setTitle("later"))
	assert.EqualError(t, s.Flush(context.Background()), "offline")
	assert.True(t, s.Status().Dirty)
}

func TestReset(t *testing.T) {
	saver := &fakeSaver{}
	s, clock := newTestScheduler(saver)

	s.Edit(setTitle("a"))
	clock.Advance(DefaultDelay)
	require.Equal(t, "d1", s.DraftID())

	s.Reset()
	assert.Equal(t, "", s.DraftID())
	s.Edit(setTitle("b"))
	clock.Advance(DefaultDelay)
	assert.Equal(t, "d2", s.DraftID())
}

func TestStatusCallback(t *testing.T) {
	var (
		mu     sync.Mutex
		states []State
	)
	saver := &fakeSaver{}
	clock := &manualClock{}
	s := New(saver, WithClock(clock), WithStatusFunc(func(st Status) {
		mu.Lock()
		states = append(states, st.State)
		mu.Unlock()
	}))

	s.Edit(setTitle("x"))
	clock.Advance(DefaultDelay)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Pending, Saving, Idle}, states)
}

type blockingSaver struct{}

func (blockingSaver) SaveDraft(ctx context.Context, _ string, _ models.DraftFields) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestSaveTimeoutAbandonsSlowSave(t *testing.T) {
	s := New(blockingSaver{}, WithClock(&manualClock{}), WithSaveTimeout(20*time.Millisecond))
	s.Edit(setTitle("slow"))

	err := s.Flush(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)

	st := s.Status()
	assert.Equal(t, Idle, st.State)
	assert.True(t, st.Dirty, "a timed out save leaves the draft unsaved")
}
