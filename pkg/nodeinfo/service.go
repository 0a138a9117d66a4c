/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package nodeinfo exposes standard NodeInfo metadata about this server, as
// defined at http://nodeinfo.diaspora.software/. Usage statistics are derived
// from the outbox event stream.
package nodeinfo

import (
	"sync"

	"github.com/weft-social/weft/internal/pkg/log"
	"github.com/weft-social/weft/pkg/activitypub/service/spi"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
	"github.com/weft-social/weft/pkg/lifecycle"
)

var logger = log.New("nodeinfo")

// Service derives NodeInfo data from the activities accepted by the outbox.
type Service struct {
	*lifecycle.Lifecycle

	events <-chan *spi.Event

	mutex  sync.RWMutex
	posts  int
	actors map[string]struct{}
}

// NewService returns a new NodeInfo service consuming the given outbox event
// channel. The service stops when the channel is closed.
func NewService(events <-chan *spi.Event) *Service {
	s := &Service{
		events: events,
		actors: make(map[string]struct{}),
	}

	s.Lifecycle = lifecycle.New("nodeinfo",
		lifecycle.WithStart(s.start))

	return s
}

// GetNodeInfo returns a NodeInfo document compatible with the given schema
// version.
func (s *Service) GetNodeInfo(version Version) *NodeInfo {
	var repository string

	if version == V2_1 {
		repository = softwareRepository
	}

	s.mutex.RLock()
	posts := s.posts
	users := len(s.actors)
	s.mutex.RUnlock()

	return &NodeInfo{
		Version:   version,
		Protocols: []string{activityPubProtocol},
		Software: Software{
			Name:       softwareName,
			Version:    SoftwareVersion,
			Repository: repository,
		},
		Services: Services{
			Inbound:  []string{},
			Outbound: []string{},
		},
		OpenRegistrations: false,
		Usage: Usage{
			Users: Users{
				Total: users,
			},
			LocalPosts: posts,
		},
		Metadata: map[string]interface{}{},
	}
}

func (s *Service) start() {
	go s.listen()
}

func (s *Service) listen() {
	for event := range s.events {
		s.mutex.Lock()

		s.actors[event.ActorIRI] = struct{}{}

		if event.Activity.Type() == vocab.TypeCreate {
			s.posts++
		}

		s.mutex.Unlock()
	}

	logger.Debug("Event channel closed. Exiting.")
}
