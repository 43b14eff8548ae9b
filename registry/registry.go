package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relaygate/gateway/contracts"
)

// slotState is the terminal-state machine of a PendingSlot. Transitions are
// monotone and exclusive: whichever caller wins the CAS out of pending
// decides the outcome; the loser observes its own attempt fail and defers
// to the winner.
type slotState int32

const (
	statePending slotState = iota
	stateCompleted
	stateTimedOut
	stateCancelled
)

// Slot is one in-flight request in the registry.
type Slot struct {
	CorrelationID string
	CreatedAt     time.Time
	Deadline      time.Time
	TraceID       string

	state   atomic.Int32
	replyCh chan contracts.ResponseEnvelope
}

func newSlot(id string, deadline time.Time, traceID string) *Slot {
	return &Slot{
		CorrelationID: id,
		CreatedAt:     time.Now(),
		Deadline:      deadline,
		TraceID:       traceID,
		replyCh:       make(chan contracts.ResponseEnvelope, 1),
	}
}

func (s *Slot) claim(to slotState) bool {
	return s.state.CompareAndSwap(int32(statePending), int32(to))
}

// DuplicateCorrelationError is returned by Register when a correlation ID is
// already present. This is never expected in normal operation and is
// treated as a fatal error for the losing request.
type DuplicateCorrelationError struct {
	CorrelationID string
}

func (e *DuplicateCorrelationError) Error() string {
	return fmt.Sprintf("registry: duplicate correlation id %q", e.CorrelationID)
}

// CompleteResult describes the outcome of a Complete call.
type CompleteResult int

const (
	Delivered CompleteResult = iota
	Orphan
	LateCompletion
)

func (r CompleteResult) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case Orphan:
		return "orphan"
	case LateCompletion:
		return "late-completion"
	default:
		return "unknown"
	}
}

// AwaitOutcome describes why Await returned.
type AwaitOutcome int

const (
	Replied AwaitOutcome = iota
	TimedOut
	Cancelled
)

// Registry is the concurrent correlation table. Zero value is not usable;
// construct with New.
type Registry struct {
	mu    sync.RWMutex
	slots map[string]*Slot

	orphanCount atomic.Int64
	lateCount   atomic.Int64

	reaperInterval time.Duration
	stopReaper     chan struct{}
	reaperOnce     sync.Once
}

// Option configures a Registry.
type Option func(*Registry)

// WithReaperInterval overrides the default sweep interval for the
// background goroutine that removes slots whose deadline has passed but
// whose Await caller never observed it (e.g. it crashed or was abandoned).
func WithReaperInterval(d time.Duration) Option {
	return func(r *Registry) {
		r.reaperInterval = d
	}
}

// New creates a Registry and starts its reaper goroutine.
func New(options ...Option) *Registry {
	r := &Registry{
		slots:          make(map[string]*Slot),
		reaperInterval: 10 * time.Second,
		stopReaper:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(r)
	}
	go r.reap()
	return r
}

// Register inserts a new PendingSlot for id with the given absolute
// deadline. Fails with *DuplicateCorrelationError if id is already present.
func (r *Registry) Register(id string, deadline time.Time, traceID string) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.slots[id]; exists {
		return nil, &DuplicateCorrelationError{CorrelationID: id}
	}

	slot := newSlot(id, deadline, traceID)
	r.slots[id] = slot
	return slot, nil
}

// Await blocks until slot is completed, its deadline elapses, or ctx is
// cancelled — whichever happens first. It always deregisters the slot
// before returning.
func (r *Registry) Await(ctx context.Context, slot *Slot) (contracts.ResponseEnvelope, AwaitOutcome) {
	defer r.deregister(slot.CorrelationID)

	timer := time.NewTimer(time.Until(slot.Deadline))
	defer timer.Stop()

	select {
	case env := <-slot.replyCh:
		return env, Replied

	case <-timer.C:
		if slot.claim(stateTimedOut) {
			return contracts.ResponseEnvelope{}, TimedOut
		}
		// Something else won the claim race between the deadline firing
		// here and the CAS above: either Complete delivered a genuine
		// reply, or the background reaper swept the slot first. Both push
		// onto replyCh, so read it and report the outcome the winner
		// actually claimed rather than assuming it was Complete.
		return slot.resolveLostRace()

	case <-ctx.Done():
		if slot.claim(stateCancelled) {
			return contracts.ResponseEnvelope{}, Cancelled
		}
		return slot.resolveLostRace()
	}
}

// resolveLostRace is called after this Slot's own claim attempt has lost to
// a concurrent winner. It reads the value the winner is guaranteed to have
// pushed onto replyCh and reports the outcome matching whichever terminal
// state actually won, rather than assuming the winner was always Complete.
func (s *Slot) resolveLostRace() (contracts.ResponseEnvelope, AwaitOutcome) {
	env := <-s.replyCh
	if slotState(s.state.Load()) == stateTimedOut {
		return contracts.ResponseEnvelope{}, TimedOut
	}
	return env, Replied
}

// Complete resolves the slot for id with envelope. Called by the reply
// listener. Returns Orphan if no slot exists, LateCompletion if the slot
// was already terminated by timeout or cancellation, Delivered otherwise.
// The returned duration is the time between Register and Complete, and is
// zero unless the result is Delivered.
func (r *Registry) Complete(id string, envelope contracts.ResponseEnvelope) (CompleteResult, time.Duration) {
	r.mu.RLock()
	slot, exists := r.slots[id]
	r.mu.RUnlock()

	if !exists {
		r.orphanCount.Add(1)
		return Orphan, 0
	}

	if !slot.claim(stateCompleted) {
		r.lateCount.Add(1)
		return LateCompletion, 0
	}

	latency := time.Since(slot.CreatedAt)
	slot.replyCh <- envelope
	return Delivered, latency
}

// CancelPending removes a slot that was registered but will never be
// awaited, because publishing the request failed before the caller reached
// Await. It is a no-op if the slot has already reached a terminal state or
// no longer exists.
func (r *Registry) CancelPending(id string) {
	r.mu.RLock()
	slot, exists := r.slots[id]
	r.mu.RUnlock()
	if !exists {
		return
	}
	slot.claim(stateCancelled)
	r.deregister(id)
}

// Count returns the number of currently in-flight slots.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots)
}

// OrphanCount returns the running total of replies for which no slot was
// found.
func (r *Registry) OrphanCount() int64 {
	return r.orphanCount.Load()
}

// LateCompletionCount returns the running total of replies that arrived
// after their slot had already been timed out or cancelled.
func (r *Registry) LateCompletionCount() int64 {
	return r.lateCount.Load()
}

// Close stops the reaper goroutine. It does not affect in-flight Awaits.
func (r *Registry) Close() {
	r.reaperOnce.Do(func() {
		close(r.stopReaper)
	})
}

func (r *Registry) deregister(id string) {
	r.mu.Lock()
	delete(r.slots, id)
	r.mu.Unlock()
}

// reap sweeps slots whose deadline has passed but whose Await caller never
// claimed them, so an abandoned or crashed caller can never leak a slot. A
// slot the reaper claims may still have a live Await blocked in its own
// timer or ctx.Done branch, having lost the claim race to the reaper by a
// hair; that branch's fallback, resolveLostRace, reads unconditionally from
// replyCh before checking which state won, so the reaper must push a value
// there too, exactly as Complete does, or that Await call blocks forever.
func (r *Registry) reap() {
	ticker := time.NewTicker(r.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			r.mu.Lock()
			for id, slot := range r.slots {
				if now.After(slot.Deadline) && slot.claim(stateTimedOut) {
					slot.replyCh <- contracts.ResponseEnvelope{}
					delete(r.slots, id)
				}
			}
			r.mu.Unlock()

		case <-r.stopReaper:
			return
		}
	}
}
