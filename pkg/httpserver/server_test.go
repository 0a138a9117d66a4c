/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package httpserver

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weft-social/weft/pkg/restapi/common"
)

type testHandler struct{}

func (h *testHandler) Path() string   { return "/ping" }
func (h *testHandler) Method() string { return http.MethodGet }

func (h *testHandler) Handler() common.HTTPRequestHandler {
	return func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)

		_, _ = w.Write([]byte("pong"))
	}
}

func TestServer_StartStop(t *testing.T) {
	s := New("localhost:18590", "", "", time.Minute, 10*time.Second, &testHandler{})

	require.NoError(t, s.Start())
	require.Error(t, s.Start())

	// Wait for the listener to come up.
	var resp *http.Response

	require.Eventually(t, func() bool {
		var err error

		resp, err = http.Get("http://localhost:18590/ping")

		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "pong", string(body))

	require.NoError(t, s.Stop(context.Background()))
	require.Error(t, s.Stop(context.Background()))
}
