/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package resthandler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/weft-social/weft/internal/pkg/log"
	"github.com/weft-social/weft/pkg/activitypub/service/collection"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
	weftErrors "github.com/weft-social/weft/pkg/errors"
)

const outboxEndpoint = "/outbox/{actor}"

type outbox interface {
	Post(ctx context.Context, actorIRI string, doc vocab.Document) (*vocab.Activity, error)
}

// PostOutbox implements the REST handler that posts activities to an actor's
// outbox.
type PostOutbox struct {
	*handler

	ob          outbox
	collections *collection.Service
}

// NewPostOutbox returns a new REST handler to post activities to the outbox.
func NewPostOutbox(cfg *Config, ob outbox, collections *collection.Service) *PostOutbox {
	h := &PostOutbox{
		ob:          ob,
		collections: collections,
	}

	h.handler = newHandler(cfg, outboxEndpoint, http.MethodPost, h.handlePost)

	return h
}

func (h *PostOutbox) handlePost(w http.ResponseWriter, req *http.Request) {
	username := mux.Vars(req)["actor"]

	// An unrecognized content type returns 404 rather than 415. This is a
	// compatibility quirk that clients depend on.
	if !isActivityMediaType(req.Header.Get("Content-Type")) {
		logger.Debug("Unsupported content type", log.WithActorID(username))

		h.writeResponse(w, http.StatusNotFound, []byte(notFoundResponse))

		return
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		log.ReadRequestBodyError(logger, err)

		h.writeResponse(w, http.StatusInternalServerError, []byte(internalServerErrorResponse))

		return
	}

	var doc vocab.Document

	if err := json.Unmarshal(body, &doc); err != nil {
		logger.Debug("Error unmarshalling activity", log.WithActorID(username), log.WithError(err))

		h.writeResponse(w, http.StatusBadRequest, []byte(badRequestResponse))

		return
	}

	// A document without an @context is not an ActivityStreams document.
	if _, ok := doc[vocab.PropertyContext]; !ok {
		logger.Debug("Document has no @context", log.WithActorID(username))

		h.writeResponse(w, http.StatusNotFound, []byte(notFoundResponse))

		return
	}

	activity, err := h.ob.Post(req.Context(), h.collections.ActorIRI(username), doc)
	if err != nil {
		h.writePostError(w, username, err)

		return
	}

	response, err := h.marshal(vocab.Compact(activity.Doc()))
	if err != nil {
		logger.Error("Error marshalling activity", log.WithActivityID(activity.ID()),
			log.WithError(err))

		h.writeResponse(w, http.StatusInternalServerError, []byte(internalServerErrorResponse))

		return
	}

	h.writeResponse(w, http.StatusOK, response)
}

func (h *PostOutbox) writePostError(w http.ResponseWriter, username string, err error) {
	switch {
	case weftErrors.IsNotFound(err):
		logger.Debug("Actor not found", log.WithActorID(username), log.WithError(err))

		h.writeResponse(w, http.StatusNotFound, actorNotFoundResponse(username))
	case weftErrors.IsBadRequest(err):
		logger.Debug("Invalid activity", log.WithActorID(username), log.WithError(err))

		h.writeResponse(w, http.StatusBadRequest, []byte(badRequestResponse))
	case weftErrors.IsForbidden(err):
		logger.Info("Forbidden", log.WithActorID(username), log.WithError(err))

		h.writeResponse(w, http.StatusForbidden, []byte(forbiddenResponse))
	default:
		logger.Error("Error posting activity", log.WithActorID(username), log.WithError(err))

		h.writeResponse(w, http.StatusInternalServerError, []byte(internalServerErrorResponse))
	}
}
