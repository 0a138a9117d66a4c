/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"github.com/trustbloc/logutil-go/pkg/log"
)

// Log is re-exported so that packages only need to import this package.
type Log = log.Log

// Level is re-exported so that packages only need to import this package.
type Level = log.Level

// Re-exported constructors and common fields from logutil-go.
var (
	New             = log.New
	WithFields      = log.WithFields
	WithStdOut      = log.WithStdOut
	WithStdErr      = log.WithStdErr
	WithError       = log.WithError
	SetLevel        = log.SetLevel
	SetDefaultLevel = log.SetDefaultLevel
	SetSpec         = log.SetSpec
	ParseLevel      = log.ParseLevel
)
