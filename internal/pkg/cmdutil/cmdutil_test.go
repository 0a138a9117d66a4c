/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cmdutil

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func newCmd() *cobra.Command {
	cmd := &cobra.Command{}

	cmd.Flags().String("host", "", "")
	cmd.Flags().String("timeout", "", "")
	cmd.Flags().String("count", "", "")

	return cmd
}

func TestGetString(t *testing.T) {
	t.Run("from flag", func(t *testing.T) {
		cmd := newCmd()
		require.NoError(t, cmd.Flags().Set("host", "localhost:8080"))

		value, err := GetString(cmd, "host", "TEST_HOST")
		require.NoError(t, err)
		require.Equal(t, "localhost:8080", value)
	})

	t.Run("from env", func(t *testing.T) {
		t.Setenv("TEST_HOST", "localhost:9090")

		value, err := GetString(newCmd(), "host", "TEST_HOST")
		require.NoError(t, err)
		require.Equal(t, "localhost:9090", value)
	})

	t.Run("flag overrides env", func(t *testing.T) {
		t.Setenv("TEST_HOST", "localhost:9090")

		cmd := newCmd()
		require.NoError(t, cmd.Flags().Set("host", "localhost:8080"))

		value, err := GetString(cmd, "host", "TEST_HOST")
		require.NoError(t, err)
		require.Equal(t, "localhost:8080", value)
	})

	t.Run("neither set", func(t *testing.T) {
		_, err := GetString(newCmd(), "host", "TEST_HOST_UNSET")
		require.Error(t, err)
	})
}

func TestGetOptionalString(t *testing.T) {
	value, err := GetOptionalString(newCmd(), "host", "TEST_HOST_UNSET")
	require.NoError(t, err)
	require.Empty(t, value)
}

func TestGetOptionalInt(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		value, err := GetOptionalInt(newCmd(), "count", "TEST_COUNT_UNSET", 7)
		require.NoError(t, err)
		require.Equal(t, 7, value)
	})

	t.Run("from flag", func(t *testing.T) {
		cmd := newCmd()
		require.NoError(t, cmd.Flags().Set("count", "42"))

		value, err := GetOptionalInt(cmd, "count", "TEST_COUNT_UNSET", 7)
		require.NoError(t, err)
		require.Equal(t, 42, value)
	})

	t.Run("invalid", func(t *testing.T) {
		cmd := newCmd()
		require.NoError(t, cmd.Flags().Set("count", "not-a-number"))

		_, err := GetOptionalInt(cmd, "count", "TEST_COUNT_UNSET", 7)
		require.Error(t, err)
	})
}

func TestGetOptionalDuration(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		value, err := GetOptionalDuration(newCmd(), "timeout", "TEST_TIMEOUT_UNSET", time.Minute)
		require.NoError(t, err)
		require.Equal(t, time.Minute, value)
	})

	t.Run("from env", func(t *testing.T) {
		t.Setenv("TEST_TIMEOUT", "30s")

		value, err := GetOptionalDuration(newCmd(), "timeout", "TEST_TIMEOUT", time.Minute)
		require.NoError(t, err)
		require.Equal(t, 30*time.Second, value)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("TEST_TIMEOUT", "not-a-duration")

		_, err := GetOptionalDuration(newCmd(), "timeout", "TEST_TIMEOUT", time.Minute)
		require.Error(t, err)
	})
}
