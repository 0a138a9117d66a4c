/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package cmdutil resolves command parameters from either a command-line flag
// or an environment variable, the flag taking precedence.
package cmdutil

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// GetString returns the value of the given flag or, if the flag was not set,
// of the given environment variable. An error is returned if neither is set.
func GetString(cmd *cobra.Command, flagName, envKey string) (string, error) {
	value, err := GetOptionalString(cmd, flagName, envKey)
	if err != nil {
		return "", err
	}

	if value == "" {
		return "", fmt.Errorf("neither %s (command line flag) nor %s (environment variable) have been set",
			flagName, envKey)
	}

	return value, nil
}

// GetOptionalString returns the value of the given flag or, if the flag was
// not set, of the given environment variable. Returns an empty string if
// neither is set.
func GetOptionalString(cmd *cobra.Command, flagName, envKey string) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf("get flag %s: %w", flagName, err)
		}

		return value, nil
	}

	return os.Getenv(envKey), nil
}

// GetOptionalInt returns the int value of the given flag or environment
// variable, or defaultValue if neither is set.
func GetOptionalInt(cmd *cobra.Command, flagName, envKey string, defaultValue int) (int, error) {
	str, err := GetOptionalString(cmd, flagName, envKey)
	if err != nil {
		return 0, err
	}

	if str == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s [%s]: %w", flagName, str, err)
	}

	return value, nil
}

// GetOptionalDuration returns the duration value of the given flag or
// environment variable, or defaultValue if neither is set.
func GetOptionalDuration(cmd *cobra.Command, flagName, envKey string,
	defaultValue time.Duration) (time.Duration, error) {
	str, err := GetOptionalString(cmd, flagName, envKey)
	if err != nil {
		return 0, err
	}

	if str == "" {
		return defaultValue, nil
	}

	value, err := time.ParseDuration(str)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s [%s]: %w", flagName, str, err)
	}

	return value, nil
}
