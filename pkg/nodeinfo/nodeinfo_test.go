/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package nodeinfo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weft-social/weft/pkg/activitypub/service/spi"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
)

func TestService(t *testing.T) {
	events := make(chan *spi.Event)

	s := NewService(events)

	s.Start()

	events <- &spi.Event{
		ActorIRI: "https://localhost/u/alice",
		Activity: vocab.NewActivity(vocab.Document{
			vocab.PropertyType: vocab.TypeCreate,
		}),
	}

	events <- &spi.Event{
		ActorIRI: "https://localhost/u/alice",
		Activity: vocab.NewActivity(vocab.Document{
			vocab.PropertyType: vocab.TypeLike,
		}),
	}

	events <- &spi.Event{
		ActorIRI: "https://localhost/u/bob",
		Activity: vocab.NewActivity(vocab.Document{
			vocab.PropertyType: vocab.TypeCreate,
		}),
	}

	close(events)

	require.Eventually(t, func() bool {
		return s.GetNodeInfo(V2_0).Usage.LocalPosts == 2
	}, time.Second, 10*time.Millisecond)

	info := s.GetNodeInfo(V2_0)

	require.Equal(t, V2_0, info.Version)
	require.Equal(t, softwareName, info.Software.Name)
	require.Empty(t, info.Software.Repository)
	require.Equal(t, []string{activityPubProtocol}, info.Protocols)
	require.Equal(t, 2, info.Usage.Users.Total)
	require.Equal(t, 2, info.Usage.LocalPosts)

	require.Equal(t, softwareRepository, s.GetNodeInfo(V2_1).Software.Repository)
}

func TestHandler(t *testing.T) {
	s := NewService(make(chan *spi.Event))

	h := NewHandler(V2_0, s)
	require.Equal(t, "/nodeinfo/2.0", h.Path())
	require.Equal(t, http.MethodGet, h.Method())

	w := httptest.NewRecorder()

	h.Handler()(w, httptest.NewRequest(http.MethodGet, "/nodeinfo/2.0", nil))
	require.Equal(t, http.StatusOK, w.Code)

	info := &NodeInfo{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), info))
	require.Equal(t, V2_0, info.Version)
}

func TestWellKnownHandler(t *testing.T) {
	h := NewWellKnownHandler("https://localhost")
	require.Equal(t, "/.well-known/nodeinfo", h.Path())

	w := httptest.NewRecorder()

	h.Handler()(w, httptest.NewRequest(http.MethodGet, "/.well-known/nodeinfo", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "https://localhost/nodeinfo/2.0")
	require.Contains(t, w.Body.String(), "https://localhost/nodeinfo/2.1")
}
