/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransient(t *testing.T) {
	errTransient := NewTransient(errors.New("transient error"))
	errPersistent := errors.New("persistent error")

	require.True(t, IsTransient(errTransient))
	require.True(t, IsTransient(fmt.Errorf("wrapped: %w", errTransient)))
	require.False(t, IsTransient(errPersistent))
	require.EqualError(t, errTransient, "transient error")
	require.EqualError(t, NewTransientf("transient %s", "error"), "transient error")
}

func TestBadRequest(t *testing.T) {
	err := NewBadRequest(errors.New("missing object"))

	require.True(t, IsBadRequest(err))
	require.True(t, IsBadRequest(fmt.Errorf("wrapped: %w", err)))
	require.False(t, IsBadRequest(errors.New("some error")))
	require.EqualError(t, NewBadRequestf("invalid %s", "activity"), "invalid activity")
}

func TestForbidden(t *testing.T) {
	err := NewForbidden(errors.New("not the owner"))

	require.True(t, IsForbidden(err))
	require.True(t, IsForbidden(fmt.Errorf("wrapped: %w", err)))
	require.False(t, IsForbidden(errors.New("some error")))
	require.EqualError(t, NewForbiddenf("not the owner of [%s]", "https://example.com/o/1"),
		"not the owner of [https://example.com/o/1]")
}

func TestNotFound(t *testing.T) {
	err := NewNotFound(errors.New("no such actor"))

	require.True(t, IsNotFound(err))
	require.True(t, IsNotFound(fmt.Errorf("wrapped: %w", err)))
	require.False(t, IsNotFound(errors.New("some error")))
	require.EqualError(t, NewNotFoundf("'%s' not found on this instance", "noone"),
		"'noone' not found on this instance")
}
