/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webfinger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weft-social/weft/pkg/activitypub/client/transport"
	"github.com/weft-social/weft/pkg/activitypub/resolver"
	"github.com/weft-social/weft/pkg/activitypub/service/collection"
	"github.com/weft-social/weft/pkg/activitypub/store/memstore"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
)

const (
	baseURL  = "https://weft.example.com"
	actorIRI = "https://weft.example.com/u/alice"
)

type noTransport struct{}

func (t *noTransport) Get(context.Context, *transport.Request) (*http.Response, error) {
	return nil, http.ErrNotSupported
}

func newHandler(t *testing.T) *Handler {
	t.Helper()

	store := memstore.New("service1")

	require.NoError(t, store.PutObject(vocab.NewObject(vocab.Document{
		vocab.PropertyID:   actorIRI,
		vocab.PropertyType: vocab.TypePerson,
	})))

	h, err := NewHandler(baseURL,
		resolver.New(baseURL, store, &noTransport{}),
		collection.New(baseURL, store))
	require.NoError(t, err)

	return h
}

func invoke(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()

	h.Handler()(w, httptest.NewRequest(http.MethodGet, target, nil))

	return w
}

func TestHandler(t *testing.T) {
	h := newHandler(t)

	require.Equal(t, webFingerEndpoint, h.Path())
	require.Equal(t, http.MethodGet, h.Method())

	t.Run("acct resource", func(t *testing.T) {
		w := invoke(t, h, webFingerEndpoint+"?resource=acct:alice@weft.example.com")
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, JRDType, w.Header().Get("Content-Type"))

		resp := &JRD{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), resp))
		require.Equal(t, "acct:alice@weft.example.com", resp.Subject)
		require.Equal(t, []string{actorIRI}, resp.Aliases)
		require.Len(t, resp.Links, 1)
		require.Equal(t, selfRel, resp.Links[0].Rel)
		require.Equal(t, actorIRI, resp.Links[0].Href)
	})

	t.Run("IRI resource", func(t *testing.T) {
		w := invoke(t, h, webFingerEndpoint+"?resource="+actorIRI)
		require.Equal(t, http.StatusOK, w.Code)

		resp := &JRD{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), resp))
		require.Equal(t, "acct:alice@weft.example.com", resp.Subject)
	})

	t.Run("missing resource param", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, invoke(t, h, webFingerEndpoint).Code)
	})

	t.Run("unknown actor", func(t *testing.T) {
		w := invoke(t, h, webFingerEndpoint+"?resource=acct:bob@weft.example.com")
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("foreign host", func(t *testing.T) {
		w := invoke(t, h, webFingerEndpoint+"?resource=acct:alice@other.example.com")
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("foreign IRI", func(t *testing.T) {
		w := invoke(t, h, webFingerEndpoint+"?resource=https://other.example.com/u/alice")
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid base URL", func(t *testing.T) {
		_, err := NewHandler("::not-a-url", nil, nil)
		require.Error(t, err)
	})
}
