/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package resthandler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/weft-social/weft/internal/pkg/log"
	"github.com/weft-social/weft/pkg/activitypub/service/collection"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
	weftErrors "github.com/weft-social/weft/pkg/errors"
)

// PageParam selects a collection page: 'true' requests the first page and a
// cursor requests the items strictly older than the cursor.
const PageParam = "page"

type actorResolver interface {
	Resolve(iri string) (*vocab.Object, error)
}

// ReadOutbox implements the REST handler that reads an actor's outbox, either
// as an OrderedCollection summary or one page at a time.
type ReadOutbox struct {
	*handler

	resolver    actorResolver
	collections *collection.Service
}

// NewReadOutbox returns a new REST handler to read an actor's outbox.
func NewReadOutbox(cfg *Config, resolver actorResolver, collections *collection.Service) *ReadOutbox {
	h := &ReadOutbox{
		resolver:    resolver,
		collections: collections,
	}

	h.handler = newHandler(cfg, outboxEndpoint, http.MethodGet, h.handleGet)

	return h
}

func (h *ReadOutbox) handleGet(w http.ResponseWriter, req *http.Request) {
	username := mux.Vars(req)["actor"]

	// Same compatibility quirk as the POST side: a mismatch is a 404.
	if accept := req.Header.Get("Accept"); accept != "" && !isAcceptableMediaType(accept) {
		logger.Debug("Unacceptable media type", log.WithActorID(username))

		h.writeResponse(w, http.StatusNotFound, []byte(notFoundResponse))

		return
	}

	if _, err := h.resolver.Resolve(h.collections.ActorIRI(username)); err != nil {
		if weftErrors.IsNotFound(err) {
			h.writeResponse(w, http.StatusNotFound, actorNotFoundResponse(username))

			return
		}

		logger.Error("Error resolving actor", log.WithActorID(username), log.WithError(err))

		h.writeResponse(w, http.StatusInternalServerError, []byte(internalServerErrorResponse))

		return
	}

	outboxIRI := h.collections.IRI(collection.KindOutbox, username)

	var (
		doc vocab.Document
		err error
	)

	if cursor, ok := pageParam(req); ok {
		doc, err = h.collections.Page(outboxIRI, cursor)
	} else {
		doc, err = h.collections.Summary(outboxIRI)
	}

	if err != nil {
		if weftErrors.IsBadRequest(err) {
			logger.Debug("Invalid page request", log.WithCollectionIRI(outboxIRI), log.WithError(err))

			h.writeResponse(w, http.StatusBadRequest, []byte(badRequestResponse))

			return
		}

		logger.Error("Error reading collection", log.WithCollectionIRI(outboxIRI),
			log.WithError(err))

		h.writeResponse(w, http.StatusInternalServerError, []byte(internalServerErrorResponse))

		return
	}

	response, err := h.marshal(doc)
	if err != nil {
		logger.Error("Error marshalling collection", log.WithCollectionIRI(outboxIRI),
			log.WithError(err))

		h.writeResponse(w, http.StatusInternalServerError, []byte(internalServerErrorResponse))

		return
	}

	h.writeResponse(w, http.StatusOK, response)
}

func pageParam(req *http.Request) (string, bool) {
	if !req.URL.Query().Has(PageParam) {
		return "", false
	}

	return req.URL.Query().Get(PageParam), true
}
