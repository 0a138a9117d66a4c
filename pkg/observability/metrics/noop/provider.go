/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package noop provides a metrics implementation that records nothing.
package noop

import (
	"time"

	"github.com/weft-social/weft/pkg/observability/metrics"
)

// Metrics records nothing.
type Metrics struct{}

// GetMetrics returns a no-op metrics implementation.
func GetMetrics() metrics.Metrics {
	return &Metrics{}
}

// OutboxPostTime records nothing.
func (m *Metrics) OutboxPostTime(time.Duration) {}

// ResolveInboxesTime records nothing.
func (m *Metrics) ResolveInboxesTime(time.Duration) {}

// ActivityPosted records nothing.
func (m *Metrics) ActivityPosted(string) {}

// DeliveryTime records nothing.
func (m *Metrics) DeliveryTime(time.Duration) {}

// DeliveryRetry records nothing.
func (m *Metrics) DeliveryRetry() {}

// DeliveryDropped records nothing.
func (m *Metrics) DeliveryDropped() {}
