/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package collection manages the collections of local actors. A collection
// does not exist as its own record: membership is tagged on the stored
// activities, and the collection documents are derived on demand.
package collection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/weft-social/weft/internal/pkg/log"
	storespi "github.com/weft-social/weft/pkg/activitypub/store/spi"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
)

// DefaultPageSize is the default number of items in a collection page.
const DefaultPageSize = 50

var logger = log.New("activitypub_collection")

// Kinds of well-known per-actor collections.
const (
	KindOutbox    = "outbox"
	KindFollowers = "followers"
	KindFollowing = "following"
	KindLiked     = "liked"
	KindBlocked   = "blocked"
	KindRejected  = "rejected"
	KindShares    = "shares"

	namedPrefix = "c"
)

var wellKnownKinds = map[string]struct{}{ //nolint:gochecknoglobals
	KindOutbox: {}, KindFollowers: {}, KindFollowing: {}, KindLiked: {},
	KindBlocked: {}, KindRejected: {}, KindShares: {},
}

type queryStore interface {
	QueryCollection(collectionIRI string, opts ...storespi.QueryOpt) (storespi.ActivityIterator, error)
}

// Option sets an option on the collection service.
type Option func(s *Service)

// WithPageSize sets the number of items in a collection page.
func WithPageSize(pageSize int) Option {
	return func(s *Service) {
		s.pageSize = pageSize
	}
}

// Service derives collection documents and membership from the activity store.
type Service struct {
	baseURL  string
	store    queryStore
	pageSize int
}

// New returns a new collection service.
func New(baseURL string, store queryStore, opts ...Option) *Service {
	s := &Service{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		store:    store,
		pageSize: DefaultPageSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ActorIRI returns the IRI of the local actor with the given username.
func (s *Service) ActorIRI(username string) string {
	return fmt.Sprintf("%s/u/%s", s.baseURL, username)
}

// IRI returns the IRI of the given well-known collection of the given actor.
func (s *Service) IRI(kind, username string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, kind, username)
}

// NamedIRI returns the IRI of an actor-defined collection with the given slug.
func (s *Service) NamedIRI(username, slug string) string {
	return fmt.Sprintf("%s/%s/%s/%s", s.baseURL, namedPrefix, username, slug)
}

// Owner parses a local collection IRI and returns its kind and the username of
// the owning actor. For actor-defined collections the kind is the slug prefixed
// with "c/". Returns ok=false if the IRI is not a local collection.
func (s *Service) Owner(collectionIRI string) (kind, username string, ok bool) {
	if !strings.HasPrefix(collectionIRI, s.baseURL+"/") {
		return "", "", false
	}

	segments := strings.Split(strings.TrimPrefix(collectionIRI, s.baseURL+"/"), "/")

	switch {
	case len(segments) == 2:
		if _, ok := wellKnownKinds[segments[0]]; !ok {
			return "", "", false
		}

		return segments[0], segments[1], true
	case len(segments) == 3 && segments[0] == namedPrefix:
		return namedPrefix + "/" + segments[2], segments[1], true
	default:
		return "", "", false
	}
}

// OwnerActorIRI returns the IRI of the actor that owns the given local
// collection, or ok=false if the IRI is not a local collection.
func (s *Service) OwnerActorIRI(collectionIRI string) (string, bool) {
	_, username, ok := s.Owner(collectionIRI)
	if !ok {
		return "", false
	}

	return s.ActorIRI(username), true
}

// Summary returns the OrderedCollection document for the given collection.
func (s *Service) Summary(collectionIRI string) (vocab.Document, error) {
	it, err := s.store.QueryCollection(collectionIRI, storespi.WithPageSize(1))
	if err != nil {
		return nil, fmt.Errorf("query collection [%s]: %w", collectionIRI, err)
	}

	defer s.closeIterator(it)

	totalItems, err := it.TotalItems()
	if err != nil {
		return nil, fmt.Errorf("get total items [%s]: %w", collectionIRI, err)
	}

	return vocab.NewOrderedCollection(collectionIRI, totalItems, collectionIRI+"?page=true"), nil
}

// Page returns an OrderedCollectionPage of the given collection, newest first.
// An empty cursor (or "true") returns the first page; otherwise the page holds
// items strictly older than the cursor.
func (s *Service) Page(collectionIRI, cursor string) (vocab.Document, error) {
	opts := []storespi.QueryOpt{storespi.WithPageSize(s.pageSize)}

	pageID := collectionIRI + "?page=true"

	if cursor != "" && cursor != "true" {
		opts = append(opts, storespi.WithBefore(cursor))

		pageID = collectionIRI + "?page=" + cursor
	}

	it, err := s.store.QueryCollection(collectionIRI, opts...)
	if err != nil {
		return nil, fmt.Errorf("query collection [%s]: %w", collectionIRI, err)
	}

	defer s.closeIterator(it)

	totalItems, err := it.TotalItems()
	if err != nil {
		return nil, fmt.Errorf("get total items [%s]: %w", collectionIRI, err)
	}

	var items []interface{}

	lastKey := ""

	for {
		entry, err := it.Next()
		if err != nil {
			if errors.Is(err, storespi.ErrNotFound) {
				break
			}

			return nil, fmt.Errorf("iterate collection [%s]: %w", collectionIRI, err)
		}

		item := vocab.Compact(entry.Activity.Doc())

		delete(item, vocab.PropertyContext)

		items = append(items, map[string]interface{}(item))
		lastKey = entry.Key
	}

	next := ""

	if len(items) == s.pageSize && lastKey != "" {
		next = collectionIRI + "?page=" + lastKey
	}

	return vocab.NewOrderedCollectionPage(pageID, collectionIRI, totalItems, items, next), nil
}

// ResolveMembers returns the member actor IRIs of the given collection IRI, or
// ok=false if the IRI is not a local followers collection. Only followers
// collections are expandable as activity recipients. Members are derived from
// the Follow activities in the collection.
func (s *Service) ResolveMembers(collectionIRI string) ([]string, bool, error) {
	kind, _, ok := s.Owner(collectionIRI)
	if !ok || kind != KindFollowers {
		return nil, false, nil
	}

	it, err := s.store.QueryCollection(collectionIRI)
	if err != nil {
		return nil, true, fmt.Errorf("query collection [%s]: %w", collectionIRI, err)
	}

	defer s.closeIterator(it)

	var members []string

	seen := map[string]struct{}{}

	for {
		entry, err := it.Next()
		if err != nil {
			if errors.Is(err, storespi.ErrNotFound) {
				break
			}

			return nil, true, fmt.Errorf("iterate collection [%s]: %w", collectionIRI, err)
		}

		if entry.Activity.Type() != vocab.TypeFollow {
			continue
		}

		for _, actorIRI := range entry.Activity.Actor() {
			if _, ok := seen[actorIRI]; ok {
				continue
			}

			seen[actorIRI] = struct{}{}

			members = append(members, actorIRI)
		}
	}

	return members, true, nil
}

// BlockList returns the IRIs of the actors blocked by the given local actor,
// derived from the Block activities in the actor's blocked collection. Returns
// an empty list for non-local actors.
func (s *Service) BlockList(actorIRI string) ([]string, error) {
	username, ok := s.localUsername(actorIRI)
	if !ok {
		return nil, nil
	}

	it, err := s.store.QueryCollection(s.IRI(KindBlocked, username))
	if err != nil {
		return nil, fmt.Errorf("query block list [%s]: %w", actorIRI, err)
	}

	defer s.closeIterator(it)

	var blocked []string

	for {
		entry, err := it.Next()
		if err != nil {
			if errors.Is(err, storespi.ErrNotFound) {
				break
			}

			return nil, fmt.Errorf("iterate block list [%s]: %w", actorIRI, err)
		}

		if entry.Activity.Type() != vocab.TypeBlock {
			continue
		}

		blocked = append(blocked, entry.Activity.ObjectIDs()...)
	}

	return blocked, nil
}

// Username returns the username of the given local actor IRI, or ok=false if
// the IRI is not a local actor.
func (s *Service) Username(actorIRI string) (string, bool) {
	return s.localUsername(actorIRI)
}

func (s *Service) localUsername(actorIRI string) (string, bool) {
	prefix := s.baseURL + "/u/"

	if !strings.HasPrefix(actorIRI, prefix) {
		return "", false
	}

	username := strings.TrimPrefix(actorIRI, prefix)
	if username == "" || strings.Contains(username, "/") {
		return "", false
	}

	return username, true
}

func (s *Service) closeIterator(it storespi.ActivityIterator) {
	if err := it.Close(); err != nil {
		log.CloseIteratorError(logger, err)
	}
}
