/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetStartCmd(t *testing.T) {
	cmd := GetStartCmd()

	require.Equal(t, "start", cmd.Use)
	require.NotNil(t, cmd.Flags().Lookup(hostURLFlagName))
	require.NotNil(t, cmd.Flags().Lookup(externalEndpointFlagName))
}

func TestGetServerParams(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cmd := GetStartCmd()

		require.NoError(t, cmd.Flags().Set(hostURLFlagName, "localhost:8080"))
		require.NoError(t, cmd.Flags().Set(externalEndpointFlagName, "https://weft.example.com"))

		params, err := getServerParams(cmd)
		require.NoError(t, err)

		require.Equal(t, "localhost:8080", params.hostURL)
		require.Equal(t, "https://weft.example.com", params.externalEndpoint)
		require.Equal(t, databaseTypeMem, params.databaseType)
		require.Equal(t, queueTypeMem, params.queueType)
		require.Equal(t, 50, params.pageSize)
	})

	t.Run("from environment", func(t *testing.T) {
		t.Setenv(hostURLEnvKey, "localhost:8080")
		t.Setenv(externalEndpointEnvKey, "https://weft.example.com")
		t.Setenv(pageSizeEnvKey, "10")
		t.Setenv(deliverySendTimeoutEnvKey, "15s")

		params, err := getServerParams(GetStartCmd())
		require.NoError(t, err)

		require.Equal(t, 10, params.pageSize)
		require.Equal(t, 15*time.Second, params.deliverySendTimeout)
	})

	t.Run("missing host URL", func(t *testing.T) {
		_, err := getServerParams(GetStartCmd())
		require.Error(t, err)
		require.Contains(t, err.Error(), hostURLFlagName)
	})

	t.Run("mongo requires database URL", func(t *testing.T) {
		cmd := GetStartCmd()

		require.NoError(t, cmd.Flags().Set(hostURLFlagName, "localhost:8080"))
		require.NoError(t, cmd.Flags().Set(externalEndpointFlagName, "https://weft.example.com"))
		require.NoError(t, cmd.Flags().Set(databaseTypeFlagName, databaseTypeMongo))

		_, err := getServerParams(cmd)
		require.Error(t, err)
		require.Contains(t, err.Error(), databaseURLFlagName)
	})

	t.Run("amqp requires queue URL", func(t *testing.T) {
		cmd := GetStartCmd()

		require.NoError(t, cmd.Flags().Set(hostURLFlagName, "localhost:8080"))
		require.NoError(t, cmd.Flags().Set(externalEndpointFlagName, "https://weft.example.com"))
		require.NoError(t, cmd.Flags().Set(queueTypeFlagName, queueTypeAMQP))

		_, err := getServerParams(cmd)
		require.Error(t, err)
		require.Contains(t, err.Error(), queueURLFlagName)
	})
}
