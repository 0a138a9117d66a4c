/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webfinger

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/weft-social/weft/internal/pkg/log"
	"github.com/weft-social/weft/pkg/activitypub/client/transport"
	"github.com/weft-social/weft/pkg/activitypub/service/collection"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
	weftErrors "github.com/weft-social/weft/pkg/errors"
	"github.com/weft-social/weft/pkg/restapi/common"
)

const (
	webFingerEndpoint = "/.well-known/webfinger"

	// JRDType is the media type of a JSON Resource Descriptor.
	JRDType = "application/jrd+json"

	selfRel = "self"
)

var logger = log.New("webfinger")

type actorResolver interface {
	Resolve(iri string) (*vocab.Object, error)
}

// Handler resolves webfinger resource queries for local actors.
type Handler struct {
	baseURL     string
	host        string
	resolver    actorResolver
	collections *collection.Service
}

// NewHandler returns the REST endpoint that resolves webfinger resources.
func NewHandler(baseURL string, resolver actorResolver, collections *collection.Service) (*Handler, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL [%s]: %w", baseURL, err)
	}

	return &Handler{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		host:        u.Host,
		resolver:    resolver,
		collections: collections,
	}, nil
}

// Path returns the path of the endpoint.
func (h *Handler) Path() string {
	return webFingerEndpoint
}

// Method returns the HTTP method of the endpoint.
func (h *Handler) Method() string {
	return http.MethodGet
}

// Handler returns the handler to be invoked for requests to the endpoint.
func (h *Handler) Handler() common.HTTPRequestHandler {
	return h.handle
}

func (h *Handler) handle(w http.ResponseWriter, req *http.Request) {
	resource := req.URL.Query().Get("resource")
	if resource == "" {
		writeError(w, http.StatusBadRequest, "resource query string parameter is required")

		return
	}

	username, ok := h.localUsername(resource)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("resource [%s] not found", resource))

		return
	}

	actorIRI := h.collections.ActorIRI(username)

	if _, err := h.resolver.Resolve(actorIRI); err != nil {
		if weftErrors.IsNotFound(err) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("resource [%s] not found", resource))

			return
		}

		logger.Error("Error resolving actor", log.WithActorID(actorIRI), log.WithError(err))

		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	resp := &JRD{
		Subject: fmt.Sprintf("acct:%s@%s", username, h.host),
		Aliases: []string{actorIRI},
		Links: []Link{
			{
				Rel:  selfRel,
				Type: transport.ActivityJSONType,
				Href: actorIRI,
			},
		},
	}

	body, err := json.Marshal(resp)
	if err != nil {
		logger.Error("Error marshalling response", log.WithError(err))

		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", JRDType)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(body); err != nil {
		log.WriteResponseBodyError(logger, err)
	}
}

// localUsername maps an acct: URI or an actor IRI to the username of a local
// actor.
func (h *Handler) localUsername(resource string) (string, bool) {
	if acct, ok := strings.CutPrefix(resource, "acct:"); ok {
		name, host, found := strings.Cut(acct, "@")
		if !found || name == "" || host != h.host {
			return "", false
		}

		return name, true
	}

	return h.collections.Username(resource)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)

	if _, err := w.Write([]byte(msg)); err != nil {
		log.WriteResponseBodyError(logger, err)
	}
}
