// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events provides a per-instance, synchronous observer list for
// sampler lifecycle notifications.
//
// # Description
//
// Every sampler owns its own Emitter; there is no process-wide registry.
// Handlers run synchronously on the caller's goroutine in subscription
// order. A handler error (or panic) is never swallowed: Emit stops at the
// first failing handler and returns its error, and the sampler aborts the
// run without recording the step.
//
// # Thread Safety
//
// Subscribe/Unsubscribe/Emit are safe for concurrent use. Handlers are
// invoked outside the lock.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrHandler wraps an error returned by a subscriber.
var ErrHandler = errors.New("event handler failed")

// Type names a lifecycle event.
type Type string

// Lifecycle events fired by the samplers.
const (
	MHStepStart Type = "mh_step_start"
	MHStepEnd   Type = "mh_step_end"

	HMCStepStart Type = "hmc_step_start"
	HMCStepEnd   Type = "hmc_step_end"

	LFMHStepStart       Type = "lfmh_step_start"
	LFMHStepEnd         Type = "lfmh_step_end"
	LFMHSimulationStart Type = "lfmh_simulation_start"
	LFMHSimulationEnd   Type = "lfmh_simulation_end"
	LFMHTrainStart      Type = "lfmh_train_start"
	LFMHTrainEnd        Type = "lfmh_train_end"
)

// IsStepEnd reports whether t marks the end of a sampler step.
func (t Type) IsStepEnd() bool {
	return t == MHStepEnd || t == HMCStepEnd || t == LFMHStepEnd
}

// Event is a single notification.
type Event struct {
	ID        string
	Type      Type
	ChainID   string
	Timestamp time.Time
	Data      any
}

// StepData accompanies *_step_end events.
type StepData struct {
	// Index is the zero-based step within the current phase.
	Index int

	// Burnin is true while the chain is in its burn-in phase.
	Burnin bool

	// Theta is the chain state after the step (before it, on step start).
	// Each event carries its own copy.
	Theta []float64

	// Acceptance is the Metropolis-Hastings acceptance probability.
	Acceptance float64

	// Accepted is true if the proposal was taken.
	Accepted bool
}

// Handler receives events. A non-nil error aborts the emitting operation.
type Handler func(ctx context.Context, event *Event) error

type subscription struct {
	id      string
	handler Handler
	types   []Type
}

func (s *subscription) matches(t Type) bool {
	if len(s.types) == 0 {
		return true
	}
	for _, want := range s.types {
		if want == t {
			return true
		}
	}
	return false
}

// Emitter dispatches events to subscribers.
//
// The zero value is not usable; construct with NewEmitter. A nil *Emitter
// is a valid no-op sink.
type Emitter struct {
	mu            sync.RWMutex
	subscriptions []*subscription
	chainID       string
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithChainID stamps every event with id.
func WithChainID(id string) EmitterOption {
	return func(e *Emitter) {
		e.chainID = id
	}
}

// NewEmitter creates an emitter with no subscribers.
func NewEmitter(opts ...EmitterOption) *Emitter {
	e := &Emitter{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers handler for the given types (all types if none).
// Returns a subscription id for Unsubscribe.
func (e *Emitter) Subscribe(handler Handler, types ...Type) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &subscription{
		id:      uuid.NewString(),
		handler: handler,
		types:   append([]Type(nil), types...),
	}
	e.subscriptions = append(e.subscriptions, sub)
	return sub.id
}

// Unsubscribe removes a subscription. Returns false if id is unknown.
func (e *Emitter) Unsubscribe(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, sub := range e.subscriptions {
		if sub.id == id {
			e.subscriptions = append(e.subscriptions[:i], e.subscriptions[i+1:]...)
			return true
		}
	}
	return false
}

// SubscriptionCount returns the number of active subscriptions.
func (e *Emitter) SubscriptionCount() int {
	if e == nil {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscriptions)
}

// ChainID returns the id stamped on events.
func (e *Emitter) ChainID() string {
	if e == nil {
		return ""
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.chainID
}

// Emit delivers an event to every matching subscriber in order.
//
// Outputs:
//   - error: The first handler failure, wrapped with ErrHandler. Remaining
//     handlers are not called. A handler panic is converted to an error.
func (e *Emitter) Emit(ctx context.Context, eventType Type, data any) error {
	if e == nil {
		return nil
	}

	e.mu.RLock()
	subs := make([]*subscription, len(e.subscriptions))
	copy(subs, e.subscriptions)
	chainID := e.chainID
	e.mu.RUnlock()

	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ChainID:   chainID,
		Timestamp: time.Now(),
		Data:      data,
	}

	for _, sub := range subs {
		if !sub.matches(eventType) {
			continue
		}
		if err := invoke(ctx, sub.handler, &event); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrHandler, eventType, err)
		}
	}
	return nil
}

func invoke(ctx context.Context, handler Handler, event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, event)
}

// Recorder is a Handler that keeps every event it sees. Useful in tests and
// for post-run inspection.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle implements Handler.
func (r *Recorder) Handle(_ context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}
