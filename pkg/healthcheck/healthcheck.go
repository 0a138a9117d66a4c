/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package healthcheck exposes a health check endpoint reporting the status of
// the server's collaborators.
package healthcheck

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/weft-social/weft/internal/pkg/log"
	"github.com/weft-social/weft/pkg/lifecycle"
	"github.com/weft-social/weft/pkg/restapi/common"
)

var logger = log.New("healthcheck")

const (
	healthCheckEndpoint = "/healthcheck"

	statusOK           = "success"
	statusNotConnected = "not connected"
	statusNotStarted   = "not started"
)

type PubSub interface {
	IsConnected() bool
}

type DB interface {
	Ping() error
}

type Service interface {
	State() lifecycle.State
}

// Handler implements the health check endpoint. Collaborators that are nil are
// excluded from the check.
type Handler struct {
	pubSub   PubSub
	db       DB
	services map[string]Service
}

// NewHandler returns a new health check handler.
func NewHandler(pubSub PubSub, db DB, services map[string]Service) *Handler {
	return &Handler{
		pubSub:   pubSub,
		db:       db,
		services: services,
	}
}

// Method returns the HTTP method of the endpoint.
func (h *Handler) Method() string {
	return http.MethodGet
}

// Path returns the path of the endpoint.
func (h *Handler) Path() string {
	return healthCheckEndpoint
}

// Handler returns the handler to be invoked for requests to the endpoint.
func (h *Handler) Handler() common.HTTPRequestHandler {
	return h.checkHealth
}

type response struct {
	Status      string            `json:"status"`
	MQStatus    string            `json:"mqStatus,omitempty"`
	DBStatus    string            `json:"dbStatus,omitempty"`
	Services    map[string]string `json:"services,omitempty"`
	CurrentTime time.Time         `json:"currentTime"`
}

func (h *Handler) checkHealth(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK

	resp := &response{
		Status:      "OK",
		CurrentTime: time.Now(),
	}

	if h.pubSub != nil {
		if h.pubSub.IsConnected() {
			resp.MQStatus = statusOK
		} else {
			resp.MQStatus = statusNotConnected
			status = http.StatusServiceUnavailable
		}
	}

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			resp.DBStatus = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.DBStatus = statusOK
		}
	}

	if len(h.services) > 0 {
		resp.Services = make(map[string]string)

		for name, s := range h.services {
			if s.State() == lifecycle.StateStarted {
				resp.Services[name] = statusOK
			} else {
				resp.Services[name] = statusNotStarted
				status = http.StatusServiceUnavailable
			}
		}
	}

	if status != http.StatusOK {
		resp.Status = "Service Unavailable"
	}

	body, err := json.Marshal(resp)
	if err != nil {
		logger.Error("Error marshalling health check response", log.WithError(err))

		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	logger.Debug("Health check response", log.WithHTTPStatus(status))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(body); err != nil {
		log.WriteResponseBodyError(logger, err)
	}
}
