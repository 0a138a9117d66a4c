/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package audience expands an activity's addressing properties into the set of
// inboxes that should receive it.
package audience

import (
	"fmt"

	"github.com/weft-social/weft/internal/pkg/log"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
	weftErrors "github.com/weft-social/weft/pkg/errors"
)

var logger = log.New("activitypub_audience")

type actorResolver interface {
	ResolveActor(iri string) (*vocab.Object, error)
}

// MemberResolver expands a local collection IRI into its member actor IRIs.
type MemberResolver interface {
	// ResolveMembers returns the member actor IRIs of the given collection IRI,
	// or ok=false if the IRI is not a local collection.
	ResolveMembers(collectionIRI string) (members []string, ok bool, err error)
}

// BlockListProvider returns the IRIs of the actors blocked by the given actor.
type BlockListProvider interface {
	BlockList(actorIRI string) ([]string, error)
}

// Resolver expands an activity's recipients into inbox IRIs.
type Resolver struct {
	actors  actorResolver
	members MemberResolver
	blocks  BlockListProvider
}

// New returns a new audience resolver.
func New(actors actorResolver, members MemberResolver, blocks BlockListProvider) *Resolver {
	return &Resolver{
		actors:  actors,
		members: members,
		blocks:  blocks,
	}
}

// ResolveInboxes returns the inboxes of the activity's recipients, in
// addressing order, without duplicates. Recipient collections owned by this
// instance (e.g. the sender's followers) are expanded into their members. The
// sender, the public pseudo-IRI and actors blocked by the sender are excluded.
// Recipients that cannot be resolved are skipped.
func (r *Resolver) ResolveInboxes(senderIRI string, activity *vocab.Activity) ([]string, error) {
	actorIRIs, err := r.expandRecipients(activity.Recipients())
	if err != nil {
		return nil, err
	}

	blocked, err := r.blockedSet(senderIRI)
	if err != nil {
		return nil, err
	}

	var inboxes []string

	seenActors := map[string]struct{}{}
	seenInboxes := map[string]struct{}{}

	for _, actorIRI := range actorIRIs {
		if actorIRI == senderIRI {
			continue
		}

		if _, ok := seenActors[actorIRI]; ok {
			continue
		}

		seenActors[actorIRI] = struct{}{}

		if _, ok := blocked[actorIRI]; ok {
			logger.Debug("Not delivering to blocked actor",
				log.WithActorID(senderIRI), log.WithTargetIRI(actorIRI))

			continue
		}

		actor, err := r.actors.ResolveActor(actorIRI)
		if err != nil {
			logger.Warn("Unable to resolve recipient. Skipping delivery.",
				log.WithTargetIRI(actorIRI), log.WithError(err))

			continue
		}

		inbox := actor.SharedInbox()
		if inbox == "" {
			inbox = actor.Inbox()
		}

		if inbox == "" {
			logger.Warn("Recipient has no inbox. Skipping delivery.",
				log.WithTargetIRI(actorIRI))

			continue
		}

		if _, ok := seenInboxes[inbox]; ok {
			continue
		}

		seenInboxes[inbox] = struct{}{}

		inboxes = append(inboxes, inbox)
	}

	return inboxes, nil
}

func (r *Resolver) expandRecipients(recipients []string) ([]string, error) {
	var actorIRIs []string

	for _, recipient := range recipients {
		if recipient == vocab.PublicIRI {
			continue
		}

		members, ok, err := r.members.ResolveMembers(recipient)
		if err != nil {
			return nil, fmt.Errorf("resolve members of [%s]: %w", recipient, err)
		}

		if ok {
			actorIRIs = append(actorIRIs, members...)
		} else {
			actorIRIs = append(actorIRIs, recipient)
		}
	}

	return actorIRIs, nil
}

func (r *Resolver) blockedSet(senderIRI string) (map[string]struct{}, error) {
	blockList, err := r.blocks.BlockList(senderIRI)
	if err != nil {
		return nil, weftErrors.NewTransientf("get block list [%s]: %w", senderIRI, err)
	}

	blocked := make(map[string]struct{}, len(blockList))

	for _, iri := range blockList {
		blocked[iri] = struct{}{}
	}

	return blocked, nil
}
