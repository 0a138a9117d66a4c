/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package errors

import (
	"errors"
	"fmt"
)

var (
	transientType  = &transient{}  //nolint:gochecknoglobals
	badRequestType = &badRequest{} //nolint:gochecknoglobals
	forbiddenType  = &forbidden{}  //nolint:gochecknoglobals
	notFoundType   = &notFound{}   //nolint:gochecknoglobals
)

// NewTransient returns a transient error that wraps the given error in order to indicate to the caller that a retry
// may resolve the problem, whereas a non-transient (persistent) error will always fail with the same outcome if
// retried.
func NewTransient(err error) error {
	return &transient{err: err}
}

// NewTransientf returns a transient error in order to indicate to the caller that a retry may resolve the problem,
// whereas a non-transient (persistent) error will always fail with the same outcome if retried.
func NewTransientf(format string, a ...interface{}) error {
	return &transient{err: fmt.Errorf(format, a...)}
}

// IsTransient returns true if the given error is a 'transient' error.
func IsTransient(err error) bool {
	return errors.As(err, &transientType)
}

// NewBadRequest returns a 'bad request' error that wraps the given error in order to indicate to the caller that
// the request was invalid.
func NewBadRequest(err error) error {
	return &badRequest{err: err}
}

// NewBadRequestf returns a 'bad request' error in order to indicate to the caller that the request was invalid.
func NewBadRequestf(format string, a ...interface{}) error {
	return &badRequest{err: fmt.Errorf(format, a...)}
}

// IsBadRequest returns true if the given error is a 'bad request' error.
func IsBadRequest(err error) bool {
	return errors.As(err, &badRequestType)
}

// NewForbidden returns a 'forbidden' error that wraps the given error in order to indicate to the caller that
// the requester does not own the resource being acted on.
func NewForbidden(err error) error {
	return &forbidden{err: err}
}

// NewForbiddenf returns a 'forbidden' error in order to indicate to the caller that the requester does not own
// the resource being acted on.
func NewForbiddenf(format string, a ...interface{}) error {
	return &forbidden{err: fmt.Errorf(format, a...)}
}

// IsForbidden returns true if the given error is a 'forbidden' error.
func IsForbidden(err error) bool {
	return errors.As(err, &forbiddenType)
}

// NewNotFound returns a 'not found' error that wraps the given error.
func NewNotFound(err error) error {
	return &notFound{err: err}
}

// NewNotFoundf returns a 'not found' error.
func NewNotFoundf(format string, a ...interface{}) error {
	return &notFound{err: fmt.Errorf(format, a...)}
}

// IsNotFound returns true if the given error is a 'not found' error.
func IsNotFound(err error) bool {
	return errors.As(err, &notFoundType)
}

type transient struct {
	err error
}

func (e *transient) Error() string {
	return e.err.Error()
}

func (e *transient) Unwrap() error {
	return e.err
}

type badRequest struct {
	err error
}

func (e *badRequest) Error() string {
	return e.err.Error()
}

func (e *badRequest) Unwrap() error {
	return e.err
}

type forbidden struct {
	err error
}

func (e *forbidden) Error() string {
	return e.err.Error()
}

func (e *forbidden) Unwrap() error {
	return e.err
}

type notFound struct {
	err error
}

func (e *notFound) Error() string {
	return e.err.Error()
}

func (e *notFound) Unwrap() error {
	return e.err
}
