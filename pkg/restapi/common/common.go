/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package common defines the contract between REST handlers and the HTTP
// server that registers them.
package common

import "net/http"

// HTTPRequestHandler is invoked when a request arrives at a registered
// endpoint.
type HTTPRequestHandler func(w http.ResponseWriter, req *http.Request)

// HTTPHandler is an endpoint that may be registered with an HTTP server.
type HTTPHandler interface {
	// Path returns the path of the endpoint, which may contain variables,
	// e.g. /outbox/{actor}.
	Path() string

	// Method returns the HTTP method of the endpoint.
	Method() string

	// Handler returns the handler to be invoked for requests to the endpoint.
	Handler() HTTPRequestHandler
}
