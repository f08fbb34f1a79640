// Package autosave turns bursts of draft edits into single debounced save
// calls and keeps track of the draft id the server hands back.
package autosave

import (
	"context"
	"sync"
	"time"

	"forum/models"
)

const (
	DefaultDelay       = 500 * time.Millisecond
	defaultSaveTimeout = 10 * time.Second
)

type State int

const (
	Idle State = iota
	Pending
	Saving
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Saving:
		return "saving"
	}
	return "idle"
}

// Saver persists a draft. An empty draftID asks for a new draft; the returned
// id is the one to use from then on.
type Saver interface {
	SaveDraft(ctx context.Context, draftID string, fields models.DraftFields) (string, error)
}

type Timer interface {
	Stop() bool
}

// Clock schedules the debounce timer. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemClock uses real timers.
var SystemClock Clock = systemClock{}

type Status struct {
	State   State
	DraftID string
	// Dirty is true while there are edits the server has not acknowledged.
	Dirty   bool
	Err     error
	SavedAt time.Time
}

type Option func(*Scheduler)

func WithClock(c Clock) Option { return func(s *Scheduler) { s.clock = c } }

func WithDelay(d time.Duration) Option { return func(s *Scheduler) { s.delay = d } }

func WithSaveTimeout(d time.Duration) Option { return func(s *Scheduler) { s.timeout = d } }

// WithStatusFunc registers a callback run after every state change. It is
// called without the scheduler lock held and may call Status.
func WithStatusFunc(f func(Status)) Option { return func(s *Scheduler) { s.onStatus = f } }

// Scheduler is one editing session. At most one save is in flight at a time.
type Scheduler struct {
	saver    Saver
	clock    Clock
	delay    time.Duration
	timeout  time.Duration
	onStatus func(Status)

	mu      sync.Mutex
	state   State
	draftID string
	fields  models.DraftFields
	dirty   bool
	timer   Timer
	gen     uint64 // invalidates timers that were stopped too late
	epoch   uint64 // invalidates saves started before the last Load
	inDone  chan struct{}
	lastErr error
	savedAt time.Time
}

func New(saver Saver, opts ...Option) *Scheduler {
	s := &Scheduler{
		saver:   saver,
		clock:   SystemClock,
		delay:   DefaultDelay,
		timeout: defaultSaveTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Edit applies fn to the working fields and restarts the debounce window.
// While a save is in flight the edit is kept and a new window starts once
// that save resolves.
func (s *Scheduler) Edit(fn func(f *models.DraftFields)) {
	s.mu.Lock()
	fn(&s.fields)
	s.dirty = true
	if s.state != Saving {
		s.scheduleLocked()
	}
	st := s.statusLocked()
	s.mu.Unlock()
	s.notify(st)
}

// Replace swaps in a complete field snapshot as one edit.
func (s *Scheduler) Replace(fields models.DraftFields) {
	fields = fields.Clone()
	s.Edit(func(f *models.DraftFields) { *f = fields })
}

// Load switches the session to an existing draft. The pending window is
// cancelled and the result of any in-flight save for the previous draft is
// ignored. An empty draftID starts a fresh draft.
func (s *Scheduler) Load(draftID string, fields models.DraftFields) {
	s.mu.Lock()
	s.cancelLocked()
	s.epoch++
	s.draftID = draftID
	s.fields = fields.Clone()
	s.dirty = false
	s.lastErr = nil
	if s.state == Pending {
		s.state = Idle
	}
	st := s.statusLocked()
	s.mu.Unlock()
	s.notify(st)
}

// Reset starts an empty, unsaved draft.
func (s *Scheduler) Reset() {
	s.Load("", models.DraftFields{})
}

// Flush waits for an in-flight save and then saves right away if anything is
// still unsaved. It returns the error of the last save attempt.
func (s *Scheduler) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		if done := s.inDone; done != nil {
			s.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if !s.dirty {
			err := s.lastErr
			s.mu.Unlock()
			return err
		}
		s.cancelLocked()
		run := s.startLocked()
		s.mu.Unlock()

		run()

		s.mu.Lock()
		err := s.lastErr
		s.mu.Unlock()
		return err
	}
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Fields returns a copy of the working fields.
func (s *Scheduler) Fields() models.DraftFields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields.Clone()
}

func (s *Scheduler) DraftID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftID
}

func (s *Scheduler) statusLocked() Status {
	return Status{
		State:   s.state,
		DraftID: s.draftID,
		Dirty:   s.dirty,
		Err:     s.lastErr,
		SavedAt: s.savedAt,
	}
}

func (s *Scheduler) notify(st Status) {
	if s.onStatus != nil {
		s.onStatus(st)
	}
}

func (s *Scheduler) scheduleLocked() {
	s.cancelLocked()
	gen := s.gen
	s.state = Pending
	s.timer = s.clock.AfterFunc(s.delay, func() { s.fire(gen) })
}

func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != Pending {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	run := s.startLocked()
	s.mu.Unlock()
	run()
}

// startLocked moves to Saving and returns the function that performs the save.
func (s *Scheduler) startLocked() func() {
	draftID, snapshot, epoch := s.draftID, s.fields.Clone(), s.epoch
	done := make(chan struct{})
	s.state = Saving
	s.dirty = false
	s.inDone = done
	st := s.statusLocked()

	return func() {
		s.notify(st)

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		newID, err := s.saver.SaveDraft(ctx, draftID, snapshot)
		cancel()

		s.mu.Lock()
		editedMeanwhile := s.dirty
		if epoch == s.epoch {
			if err != nil {
				s.dirty = true
				s.lastErr = err
			} else {
				s.draftID = newID
				s.lastErr = nil
				s.savedAt = time.Now()
			}
		}
		s.inDone = nil
		close(done)
		s.state = Idle
		if editedMeanwhile {
			s.scheduleLocked()
		}
		st := s.statusLocked()
		s.mu.Unlock()
		s.notify(st)
	}
}
