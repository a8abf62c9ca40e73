// Package events provides the synchronous event bus that carries message
// lifecycle events to their subscribers, plus the subscribers themselves
// (notification fan-out, edit audit logging, cascade cleanup).
//
// The bus is an explicit, constructed object: subscribers are registered
// once at process startup, dispatch order is registration order, and a
// publish does not return until every subscriber has run or one of them
// failed. There is no queuing, no async deferral, and no hidden global
// dispatch table.
package events

import (
	"context"
	"fmt"

	"github.com/tbourn/go-messaging-backend/internal/domain"
)

// Kind discriminates the event variants carried by the bus.
type Kind string

// Event kinds published by the message lifecycle.
const (
	KindMessageCreated   Kind = "message.created"
	KindMessageEdited    Kind = "message.edited"
	KindPrincipalDeleted Kind = "principal.deleted"
)

// Event is the closed set of lifecycle events. The interface is sealed via
// the unexported method so every variant lives in this package.
type Event interface {
	Kind() Kind
	sealed()
}

// MessageCreated fires after a message row has been persisted. Exactly one
// MessageCreated is published per message, which is what makes the
// notification fan-out exactly-once.
type MessageCreated struct {
	Message domain.Message
}

// Kind implements Event.
func (MessageCreated) Kind() Kind { return KindMessageCreated }
func (MessageCreated) sealed()    {}

// MessageEdited fires after an edit whose body actually changed. The
// publisher compares old and new bodies and suppresses no-op writes, so
// subscribers may assume PreviousBody differs from Message.Body.
type MessageEdited struct {
	Message      domain.Message
	PreviousBody string
}

// Kind implements Event.
func (MessageEdited) Kind() Kind { return KindMessageEdited }
func (MessageEdited) sealed()    {}

// PrincipalDeleted fires when a user account is deleted and its dependent
// records must be removed.
type PrincipalDeleted struct {
	PrincipalID string
}

// Kind implements Event.
func (PrincipalDeleted) Kind() Kind { return KindPrincipalDeleted }
func (PrincipalDeleted) sealed()    {}

// Subscriber is one focused reactor to lifecycle events. Handle is invoked
// synchronously inside the publishing call; returning an error aborts the
// remaining subscriber chain for that publish and surfaces the failure to
// the publisher, since a lost notification or audit row is a correctness
// problem, not best-effort telemetry.
type Subscriber interface {
	// Name identifies the subscriber in logs and error messages.
	Name() string
	// Handle reacts to one event. Events the subscriber does not care about
	// must be ignored by returning nil.
	Handle(ctx context.Context, ev Event) error
}

// Bus dispatches events to subscribers in registration order.
//
// Registration is a startup-time concern: Subscribe is not synchronized and
// must not be called after the bus is in use. Publish itself carries no
// internal concurrency, so two subscribers can never interleave within one
// publish; concurrent publishes of unrelated events are serialized only by
// whatever the subscribers' storage layer provides.
type Bus struct {
	subscribers []Subscriber
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe appends s to the dispatch order. Call once per subscriber at
// process startup, before the first Publish.
func (b *Bus) Subscribe(s Subscriber) {
	b.subscribers = append(b.subscribers, s)
}

// Publish delivers ev to every subscriber, in registration order, within
// the calling goroutine. The first subscriber error stops delivery and is
// returned wrapped with the subscriber's name.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	for _, s := range b.subscribers {
		if err := s.Handle(ctx, ev); err != nil {
			return fmt.Errorf("events: subscriber %s failed on %s: %w", s.Name(), ev.Kind(), err)
		}
	}
	return nil
}
