// Package optimistic keeps a client-side copy of a server collection, applies
// edits to it before the server confirms them and reconciles the two once the
// confirmation or rejection arrives.
package optimistic

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrInFlight is returned when a mutation is started or a local edit is
	// made while another mutation is still awaiting its confirmation.
	ErrInFlight = errors.New("optimistic: a mutation is already in flight")
	// ErrStale is returned by Commit and Rollback once the mutation has been
	// resolved, either by an earlier call or by a matching server snapshot.
	ErrStale = errors.New("optimistic: mutation already resolved")
)

type State int

const (
	Settled State = iota
	Pending
)

func (s State) String() string {
	if s == Pending {
		return "pending"
	}
	return "settled"
}

// Outcome reports what Receive did with a server snapshot.
type Outcome int

const (
	// Adopted means the snapshot replaced both the local and settled views.
	Adopted Outcome = iota
	// Suppressed means a mutation is in flight and the snapshot did not match
	// it, so the snapshot was dropped.
	Suppressed
	// Confirmed means the snapshot matched the in-flight mutation, which is
	// now settled.
	Confirmed
)

func (o Outcome) String() string {
	switch o {
	case Suppressed:
		return "suppressed"
	case Confirmed:
		return "confirmed"
	default:
		return "adopted"
	}
}

// Intent describes one optimistic edit.
type Intent[T any] struct {
	Kind string
	Keys []string
	// Next computes the optimistic collection from the current local view.
	// A nil Next keeps the local view as it is, for edits already staged
	// through Engine.Edit.
	Next func(current []T) []T
	// Success is the notification shown when the mutation settles.
	Success string
	// Failure renders the notification shown on rollback. Nil shows the
	// cause's own message.
	Failure func(cause error) string
}

// Engine reconciles one collection. It is safe for concurrent use.
type Engine[T any] struct {
	mu          sync.Mutex
	fingerprint func([]T) string
	toaster     *Toaster

	local   []T
	settled []T

	pending          *Mutation[T]
	pendingSignature string
}

// NewEngine starts settled on initial. toaster may be nil.
func NewEngine[T any](initial []T, fingerprint func([]T) string, toaster *Toaster) *Engine[T] {
	return &Engine[T]{
		fingerprint: fingerprint,
		toaster:     toaster,
		local:       clone(initial),
		settled:     clone(initial),
	}
}

// Local returns what the user should currently see.
func (e *Engine[T]) Local() []T {
	e.mu.Lock()
	defer e.mu.Unlock()
	return clone(e.local)
}

// Settled returns the last server-confirmed collection.
func (e *Engine[T]) Settled() []T {
	e.mu.Lock()
	defer e.mu.Unlock()
	return clone(e.settled)
}

func (e *Engine[T]) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending != nil {
		return Pending
	}
	return Settled
}

// PendingSignature is the fingerprint of the in-flight optimistic view, or ""
// when settled.
func (e *Engine[T]) PendingSignature() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pendingSignature
}

// Edit changes the local view only, e.g. an unsaved slider move.
func (e *Engine[T]) Edit(fn func(current []T) []T) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending != nil {
		return ErrInFlight
	}
	e.local = clone(fn(clone(e.local)))
	return nil
}

// Begin applies intent locally and returns the mutation to resolve once the
// server answers.
func (e *Engine[T]) Begin(intent Intent[T]) (*Mutation[T], error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending != nil {
		return nil, ErrInFlight
	}

	next := clone(e.local)
	if intent.Next != nil {
		next = clone(intent.Next(clone(e.local)))
	}

	m := &Mutation[T]{
		engine:     e,
		intent:     intent,
		rollback:   clone(e.settled),
		optimistic: next,
		signature:  e.fingerprint(next),
	}
	e.local = clone(next)
	e.pending = m
	e.pendingSignature = m.signature
	return m, nil
}

// Receive offers a fresh server snapshot to the engine.
func (e *Engine[T]) Receive(incoming []T) Outcome {
	e.mu.Lock()

	if e.pending == nil {
		e.local = clone(incoming)
		e.settled = clone(incoming)
		e.mu.Unlock()
		return Adopted
	}

	if e.fingerprint(incoming) != e.pendingSignature {
		e.mu.Unlock()
		return Suppressed
	}

	m := e.pending
	m.resolved = true
	e.local = clone(incoming)
	e.settled = clone(incoming)
	e.clearPending()
	e.mu.Unlock()

	e.success(m.intent)
	return Confirmed
}

// Do runs Begin, call and then Commit or Rollback. call receives the
// optimistic collection. A mutation confirmed by Receive while call was
// running is not an error.
func (e *Engine[T]) Do(ctx context.Context, intent Intent[T], call func(ctx context.Context, next []T) error) error {
	m, err := e.Begin(intent)
	if err != nil {
		return err
	}

	if err := call(ctx, m.Optimistic()); err != nil {
		if rbErr := m.Rollback(err); rbErr != nil && !errors.Is(rbErr, ErrStale) {
			return rbErr
		}
		return err
	}

	if err := m.Commit(); err != nil && !errors.Is(err, ErrStale) {
		return err
	}
	return nil
}

func (e *Engine[T]) clearPending() {
	e.pending = nil
	e.pendingSignature = ""
}

func (e *Engine[T]) success(intent Intent[T]) {
	if e.toaster != nil && intent.Success != "" {
		e.toaster.Success(intent.Success)
	}
}

func (e *Engine[T]) failure(intent Intent[T], cause error) {
	if e.toaster == nil {
		return
	}
	message := ""
	if intent.Failure != nil {
		message = intent.Failure(cause)
	} else if cause != nil {
		message = cause.Error()
	}
	e.toaster.Error(message, cause)
}

// Mutation is one in-flight optimistic edit.
type Mutation[T any] struct {
	engine     *Engine[T]
	intent     Intent[T]
	rollback   []T
	optimistic []T
	signature  string
	resolved   bool
}

func (m *Mutation[T]) Kind() string {
	return m.intent.Kind
}

func (m *Mutation[T]) Signature() string {
	return m.signature
}

// Optimistic returns the collection the mutation applied.
func (m *Mutation[T]) Optimistic() []T {
	return clone(m.optimistic)
}

// Commit makes the optimistic collection the settled baseline.
func (m *Mutation[T]) Commit() error {
	return m.settle(m.optimistic)
}

// CommitWith settles on final instead of the optimistic collection, for
// servers that answer with the authoritative record.
func (m *Mutation[T]) CommitWith(final []T) error {
	return m.settle(final)
}

// Rollback restores the collection captured when the mutation began.
func (m *Mutation[T]) Rollback(cause error) error {
	e := m.engine
	e.mu.Lock()
	if m.resolved {
		e.mu.Unlock()
		return ErrStale
	}
	m.resolved = true
	e.local = clone(m.rollback)
	e.settled = clone(m.rollback)
	e.clearPending()
	e.mu.Unlock()

	e.failure(m.intent, cause)
	return nil
}

func (m *Mutation[T]) settle(final []T) error {
	e := m.engine
	e.mu.Lock()
	if m.resolved {
		e.mu.Unlock()
		return ErrStale
	}
	m.resolved = true
	e.local = clone(final)
	e.settled = clone(final)
	e.clearPending()
	e.mu.Unlock()

	e.success(m.intent)
	return nil
}

func clone[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
