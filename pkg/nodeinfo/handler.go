/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package nodeinfo

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/weft-social/weft/internal/pkg/log"
	"github.com/weft-social/weft/pkg/restapi/common"
)

const (
	wellKnownEndpoint = "/.well-known/nodeinfo"

	profileBase = "http://nodeinfo.diaspora.software/ns/schema/"
)

// Handler serves the NodeInfo document of a given schema version.
type Handler struct {
	version  Version
	endpoint string
	service  *Service
}

// NewHandler returns the REST endpoint that serves the NodeInfo document of
// the given schema version.
func NewHandler(version Version, service *Service) *Handler {
	return &Handler{
		version:  version,
		endpoint: "/nodeinfo/" + version,
		service:  service,
	}
}

// Path returns the path of the endpoint.
func (h *Handler) Path() string {
	return h.endpoint
}

// Method returns the HTTP method of the endpoint.
func (h *Handler) Method() string {
	return http.MethodGet
}

// Handler returns the handler to be invoked for requests to the endpoint.
func (h *Handler) Handler() common.HTTPRequestHandler {
	return h.handle
}

func (h *Handler) handle(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.service.GetNodeInfo(h.version))
}

// WellKnownHandler serves the NodeInfo discovery document, which links to the
// documents of the supported schema versions.
type WellKnownHandler struct {
	links interface{}
}

// NewWellKnownHandler returns the REST endpoint that serves the NodeInfo
// discovery document.
func NewWellKnownHandler(baseURL string) *WellKnownHandler {
	type link struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	}

	return &WellKnownHandler{
		links: struct {
			Links []link `json:"links"`
		}{
			Links: []link{
				{Rel: profileBase + V2_0, Href: fmt.Sprintf("%s/nodeinfo/%s", baseURL, V2_0)},
				{Rel: profileBase + V2_1, Href: fmt.Sprintf("%s/nodeinfo/%s", baseURL, V2_1)},
			},
		},
	}
}

// Path returns the path of the endpoint.
func (h *WellKnownHandler) Path() string {
	return wellKnownEndpoint
}

// Method returns the HTTP method of the endpoint.
func (h *WellKnownHandler) Method() string {
	return http.MethodGet
}

// Handler returns the handler to be invoked for requests to the endpoint.
func (h *WellKnownHandler) Handler() common.HTTPRequestHandler {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, h.links)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Error("Error marshalling response", log.WithError(err))

		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(body); err != nil {
		log.WriteResponseBodyError(logger, err)
	}
}
