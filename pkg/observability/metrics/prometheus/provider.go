/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package prometheus provides a Prometheus-backed metrics implementation.
package prometheus

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weft-social/weft/pkg/activitypub/vocab"
	"github.com/weft-social/weft/pkg/observability/metrics"
	"github.com/weft-social/weft/pkg/restapi/common"
)

//nolint:gochecknoglobals
var (
	createOnce sync.Once
	instance   metrics.Metrics
)

// GetMetrics returns the Prometheus metrics implementation. The collectors are
// registered with the default registry on first use.
func GetMetrics() metrics.Metrics {
	createOnce.Do(func() {
		instance = newMetrics()
	})

	return instance
}

// PromMetrics records metrics with Prometheus.
type PromMetrics struct {
	outboxPostTime         prometheus.Histogram
	outboxResolveInboxTime prometheus.Histogram
	outboxActivityCounts   map[string]prometheus.Counter

	deliveryTime    prometheus.Histogram
	deliveryRetry   prometheus.Counter
	deliveryDropped prometheus.Counter
}

func newMetrics() *PromMetrics {
	activityTypes := []string{
		vocab.TypeCreate, vocab.TypeUpdate, vocab.TypeDelete, vocab.TypeUndo,
		vocab.TypeFollow, vocab.TypeAccept, vocab.TypeReject, vocab.TypeLike,
		vocab.TypeAnnounce, vocab.TypeAdd, vocab.TypeRemove, vocab.TypeBlock,
	}

	pm := &PromMetrics{
		outboxPostTime: newHistogram(
			metrics.ActivityPub, metrics.PostTimeMetric,
			"The time (in seconds) that it takes to post an activity to the outbox.",
			nil,
		),
		outboxResolveInboxTime: newHistogram(
			metrics.ActivityPub, metrics.ResolveInboxesTimeMetric,
			"The time (in seconds) that it takes to resolve the inboxes of the recipients when posting to the outbox.",
			nil,
		),
		outboxActivityCounts: newOutboxActivityCounts(activityTypes),
		deliveryTime: newHistogram(
			metrics.Delivery, metrics.DeliveryTimeMetric,
			"The time (in seconds) that it takes to deliver an activity to an inbox.",
			nil,
		),
		deliveryRetry: newCounter(
			metrics.Delivery, metrics.DeliveryRetryMetric,
			"The number of delivery retries.",
			nil,
		),
		deliveryDropped: newCounter(
			metrics.Delivery, metrics.DeliveryDroppedMetric,
			"The number of dropped deliveries.",
			nil,
		),
	}

	prometheus.MustRegister(
		pm.outboxPostTime, pm.outboxResolveInboxTime,
		pm.deliveryTime, pm.deliveryRetry, pm.deliveryDropped,
	)

	for _, c := range pm.outboxActivityCounts {
		prometheus.MustRegister(c)
	}

	return pm
}

// OutboxPostTime records the time it takes to post an activity to the outbox.
func (pm *PromMetrics) OutboxPostTime(value time.Duration) {
	pm.outboxPostTime.Observe(value.Seconds())
}

// ResolveInboxesTime records the time it takes to expand the audience of an
// activity into inboxes.
func (pm *PromMetrics) ResolveInboxesTime(value time.Duration) {
	pm.outboxResolveInboxTime.Observe(value.Seconds())
}

// ActivityPosted increments the number of activities of the given type posted
// to the outbox.
func (pm *PromMetrics) ActivityPosted(activityType string) {
	if c, ok := pm.outboxActivityCounts[activityType]; ok {
		c.Inc()
	}
}

// DeliveryTime records the time it takes to deliver an activity to an inbox.
func (pm *PromMetrics) DeliveryTime(value time.Duration) {
	pm.deliveryTime.Observe(value.Seconds())
}

// DeliveryRetry increments the number of delivery retries.
func (pm *PromMetrics) DeliveryRetry() {
	pm.deliveryRetry.Inc()
}

// DeliveryDropped increments the number of dropped deliveries.
func (pm *PromMetrics) DeliveryDropped() {
	pm.deliveryDropped.Inc()
}

func newOutboxActivityCounts(activityTypes []string) map[string]prometheus.Counter {
	counters := make(map[string]prometheus.Counter)

	for _, activityType := range activityTypes {
		counters[activityType] = newCounter(
			metrics.ActivityPub, metrics.OutboxActivityMetric,
			"The number of activities posted to the outbox.",
			prometheus.Labels{"type": activityType},
		)
	}

	return counters
}

func newCounter(subsystem, name, help string, labels prometheus.Labels) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metrics.Namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	})
}

func newHistogram(subsystem, name, help string, labels prometheus.Labels) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   metrics.Namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	})
}

// Handler is the REST endpoint that exposes the metrics.
type Handler struct{}

// NewHandler returns the REST endpoint that exposes the metrics.
func NewHandler() *Handler {
	return &Handler{}
}

// Path returns the path of the endpoint.
func (h *Handler) Path() string {
	return "/metrics"
}

// Method returns the HTTP method of the endpoint.
func (h *Handler) Method() string {
	return http.MethodGet
}

// Handler returns the handler to be invoked for requests to the endpoint.
func (h *Handler) Handler() common.HTTPRequestHandler {
	return promhttp.Handler().ServeHTTP
}
