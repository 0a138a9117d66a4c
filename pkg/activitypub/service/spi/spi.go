/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package spi defines the service interfaces.
package spi

import (
	"context"

	"github.com/weft-social/weft/pkg/activitypub/vocab"
	"github.com/weft-social/weft/pkg/lifecycle"
)

// ServiceLifecycle manages the lifecycle of a service.
type ServiceLifecycle interface {
	// Start starts the service.
	Start()

	// Stop stops the service.
	Stop()

	// State returns the state of the service.
	State() lifecycle.State
}

// Event is published to subscribers after an activity has been accepted by
// the outbox.
type Event struct {
	// ActorIRI is the IRI of the actor that posted the activity.
	ActorIRI string

	// Activity is the accepted activity in its stored (normalized) form.
	Activity *vocab.Activity

	// Object is the activity's object after side effects have been applied:
	// the tombstone for a Delete, the merged document for an Update,
	// otherwise the activity's embedded object. Nil when the activity only
	// references its object by IRI and no handler materialized it.
	Object vocab.Document
}

// Outbox posts activities on behalf of local actors.
type Outbox interface {
	ServiceLifecycle

	// Post processes the given document as an activity of the given actor and
	// returns the stored activity.
	Post(ctx context.Context, actorIRI string, doc vocab.Document) (*vocab.Activity, error)

	// Subscribe returns a channel of events for accepted activities. The channel
	// is closed when the outbox is stopped.
	Subscribe() <-chan *Event
}
