/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metrics defines the metrics recorded by the outbox pipeline and the
// delivery engine.
package metrics

import "time"

// Namespace is the metrics namespace.
const Namespace = "weft"

// Subsystems.
const (
	ActivityPub = "activitypub"
	Delivery    = "delivery"
)

// Metric names.
const (
	PostTimeMetric           = "outbox_post_seconds"
	ResolveInboxesTimeMetric = "outbox_resolve_inboxes_seconds"
	OutboxActivityMetric     = "outbox_count"

	DeliveryTimeMetric    = "post_seconds"
	DeliveryRetryMetric   = "retry_count"
	DeliveryDroppedMetric = "dropped_count"
)

// Metrics records the metrics of the outbox pipeline and the delivery engine.
type Metrics interface {
	// OutboxPostTime records the time it takes to post an activity to the outbox.
	OutboxPostTime(value time.Duration)

	// ResolveInboxesTime records the time it takes to expand the audience of an
	// activity into inboxes.
	ResolveInboxesTime(value time.Duration)

	// ActivityPosted increments the number of activities of the given type
	// posted to the outbox.
	ActivityPosted(activityType string)

	// DeliveryTime records the time it takes to deliver an activity to an inbox.
	DeliveryTime(value time.Duration)

	// DeliveryRetry increments the number of delivery retries.
	DeliveryRetry()

	// DeliveryDropped increments the number of deliveries that were dropped,
	// either permanently rejected or with retries exhausted.
	DeliveryDropped()
}
