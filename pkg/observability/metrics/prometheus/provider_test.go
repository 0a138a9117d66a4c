/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package prometheus

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weft-social/weft/pkg/activitypub/vocab"
)

func TestMetrics(t *testing.T) {
	m := GetMetrics()
	require.NotNil(t, m)

	// The instance is a registered singleton.
	require.Equal(t, m, GetMetrics())

	m.OutboxPostTime(time.Second)
	m.ResolveInboxesTime(time.Second)
	m.ActivityPosted(vocab.TypeCreate)
	m.ActivityPosted("SomethingElse")
	m.DeliveryTime(time.Second)
	m.DeliveryRetry()
	m.DeliveryDropped()
}

func TestHandler(t *testing.T) {
	h := NewHandler()

	require.Equal(t, "/metrics", h.Path())
	require.Equal(t, "GET", h.Method())

	GetMetrics().DeliveryRetry()

	w := httptest.NewRecorder()

	h.Handler()(w, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, w.Code)
	require.Contains(t, w.Body.String(), "weft_delivery_retry_count")
}
