/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLifecycle(t *testing.T) {
	started := 0
	stopped := 0

	lc := New("service1",
		WithStart(func() { started++ }),
		WithStop(func() { stopped++ }),
	)

	require.Equal(t, StateNotStarted, lc.State())

	lc.Start()
	lc.Start()

	require.Equal(t, StateStarted, lc.State())
	require.Equal(t, 1, started)

	lc.Stop()
	lc.Stop()

	require.Equal(t, StateStopped, lc.State())
	require.Equal(t, 1, stopped)
}

func TestLifecycle_Defaults(t *testing.T) {
	lc := New("service2")

	require.NotPanics(t, lc.Start)
	require.NotPanics(t, lc.Stop)
}
