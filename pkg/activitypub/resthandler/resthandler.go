/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package resthandler provides the REST endpoints of the outbox: activities
// are posted to POST /outbox/{actor} and read back from GET /outbox/{actor}.
package resthandler

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/weft-social/weft/internal/pkg/log"
	"github.com/weft-social/weft/pkg/activitypub/client/transport"
	"github.com/weft-social/weft/pkg/restapi/common"
)

const (
	activityStreamsProfile = "https://www.w3.org/ns/activitystreams"

	badRequestResponse          = "Invalid activity"
	forbiddenResponse           = "Forbidden"
	notFoundResponse            = "Not Found"
	internalServerErrorResponse = "Internal Server Error"
)

var logger = log.New("activitypub_resthandler")

// Config holds the configuration parameters of the REST handlers.
type Config struct {
	BaseURL string
}

type handler struct {
	*Config

	endpoint string
	method   string
	handle   common.HTTPRequestHandler
	marshal  func(v interface{}) ([]byte, error)
}

func newHandler(cfg *Config, endpoint, method string, handle common.HTTPRequestHandler) *handler {
	return &handler{
		Config:   cfg,
		endpoint: endpoint,
		method:   method,
		handle:   handle,
		marshal:  json.Marshal,
	}
}

// Path returns the path of the endpoint.
func (h *handler) Path() string {
	return h.endpoint
}

// Method returns the HTTP method of the endpoint.
func (h *handler) Method() string {
	return h.method
}

// Handler returns the handler to be invoked for requests to the endpoint.
func (h *handler) Handler() common.HTTPRequestHandler {
	return h.handle
}

func (h *handler) writeResponse(w http.ResponseWriter, status int, body []byte) {
	if len(body) > 0 {
		w.Header().Set("Content-Type", transport.ActivityJSONType)
	}

	w.WriteHeader(status)

	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			log.WriteResponseBodyError(logger, err)
		}
	}
}

func actorNotFoundResponse(username string) []byte {
	return []byte(fmt.Sprintf("'%s' not found on this instance", username))
}

// isAcceptableMediaType reports whether the given Accept header admits an
// ActivityStreams response. An absent header accepts anything.
func isAcceptableMediaType(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}

		switch mediaType {
		case "*/*", "application/*", "application/json", transport.ActivityJSONType:
			return true
		case "application/ld+json":
			if strings.Contains(params["profile"], activityStreamsProfile) {
				return true
			}
		}
	}

	return false
}

// isActivityMediaType reports whether the given Content-Type denotes an
// ActivityStreams document: application/activity+json, or application/ld+json
// with the ActivityStreams profile.
func isActivityMediaType(contentType string) bool {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	switch mediaType {
	case transport.ActivityJSONType:
		return true
	case "application/ld+json":
		return strings.Contains(params["profile"], activityStreamsProfile)
	default:
		return false
	}
}
