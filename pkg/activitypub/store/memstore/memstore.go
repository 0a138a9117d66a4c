/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package memstore implements an in-memory activity store.
package memstore

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/weft-social/weft/pkg/activitypub/store/spi"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
	weftErrors "github.com/weft-social/weft/pkg/errors"
)

// Store implements an in-memory activity store.
type Store struct {
	serviceName string

	mutex      sync.RWMutex
	activities map[string]*record
	objects    map[string]vocab.Document
	nextKey    uint64
}

type record struct {
	doc vocab.Document
	key uint64
}

// New returns a new in-memory activity store.
func New(serviceName string) *Store {
	return &Store{
		serviceName: serviceName,
		activities:  make(map[string]*record),
		objects:     make(map[string]vocab.Document),
		nextKey:     1,
	}
}

// PutActivity stores the given activity. If an activity with the same ID is
// already stored then it is overwritten and keeps its original insertion key.
func (s *Store) PutActivity(activity *vocab.Activity) error {
	if activity.ID() == "" {
		return fmt.Errorf("activity has no ID")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := s.nextKey

	if existing, ok := s.activities[activity.ID()]; ok {
		key = existing.key
	} else {
		s.nextKey++
	}

	s.activities[activity.ID()] = &record{
		doc: activity.Doc().Copy(),
		key: key,
	}

	return nil
}

// GetActivity returns the activity with the given IRI or spi.ErrNotFound.
func (s *Store) GetActivity(activityIRI string) (*vocab.Activity, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rec, ok := s.activities[activityIRI]
	if !ok {
		return nil, spi.ErrNotFound
	}

	return vocab.NewActivity(rec.doc.Copy()), nil
}

// DeleteActivity removes the activity with the given IRI.
func (s *Store) DeleteActivity(activityIRI string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.activities, activityIRI)

	return nil
}

// PutObject stores the given object, overwriting any object with the same IRI.
func (s *Store) PutObject(obj *vocab.Object) error {
	if obj.ID() == "" {
		return fmt.Errorf("object has no ID")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.objects[obj.ID()] = obj.Doc().Copy()

	return nil
}

// GetObject returns the object with the given IRI or spi.ErrNotFound.
func (s *Store) GetObject(objectIRI string) (*vocab.Object, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	doc, ok := s.objects[objectIRI]
	if !ok {
		return nil, spi.ErrNotFound
	}

	return vocab.NewObject(doc.Copy()), nil
}

// DeleteObject removes the object with the given IRI.
func (s *Store) DeleteObject(objectIRI string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.objects, objectIRI)

	return nil
}

// AddToCollection tags the given activities as members of the given collection.
func (s *Store) AddToCollection(collectionIRI string, activityIRIs ...string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, activityIRI := range activityIRIs {
		rec, ok := s.activities[activityIRI]
		if !ok {
			return fmt.Errorf("activity [%s]: %w", activityIRI, spi.ErrNotFound)
		}

		vocab.NewObject(rec.doc).AddCollection(collectionIRI)
	}

	return nil
}

// RemoveFromCollection removes the collection tag from the given activities.
func (s *Store) RemoveFromCollection(collectionIRI string, activityIRIs ...string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, activityIRI := range activityIRIs {
		rec, ok := s.activities[activityIRI]
		if !ok {
			continue
		}

		vocab.NewObject(rec.doc).RemoveCollection(collectionIRI)
	}

	return nil
}

// ReplaceObjectInActivities replaces the embedded object with the given IRI in
// every stored activity that embeds it.
func (s *Store) ReplaceObjectInActivities(objectIRI string, replacement vocab.Document) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, rec := range s.activities {
		activity := vocab.NewActivity(rec.doc)

		values := activity.ObjectValues()

		replaced := false

		for i, member := range values {
			embedded, ok := member.(map[string]interface{})
			if !ok {
				continue
			}

			if id, ok := embedded[vocab.PropertyID].(string); ok && id == objectIRI {
				values[i] = map[string]interface{}(replacement.Copy())
				replaced = true
			}
		}

		if replaced {
			activity.SetProperty(vocab.PropertyObject, values...)
		}
	}

	return nil
}

// QueryCollection returns an iterator over the members of the given collection,
// newest first.
func (s *Store) QueryCollection(collectionIRI string, opts ...spi.QueryOpt) (spi.ActivityIterator, error) {
	options := spi.NewQueryOptions(opts...)

	before := uint64(0)

	if options.Before != "" {
		cursor, err := strconv.ParseUint(options.Before, 10, 64)
		if err != nil {
			return nil, weftErrors.NewBadRequestf("invalid cursor [%s]: %s", options.Before, err)
		}

		before = cursor
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var members []*record

	total := 0

	for _, rec := range s.activities {
		if !contains(vocab.NewObject(rec.doc).Collections(), collectionIRI) {
			continue
		}

		total++

		if before > 0 && rec.key >= before {
			continue
		}

		members = append(members, rec)
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].key > members[j].key
	})

	if options.PageSize > 0 && len(members) > options.PageSize {
		members = members[:options.PageSize]
	}

	entries := make([]*spi.Entry, len(members))

	for i, rec := range members {
		entries[i] = &spi.Entry{
			Activity: vocab.NewActivity(rec.doc.Copy()),
			Key:      strconv.FormatUint(rec.key, 10),
		}
	}

	return &iterator{entries: entries, totalItems: total}, nil
}

type iterator struct {
	entries    []*spi.Entry
	totalItems int
	pos        int
}

func (it *iterator) TotalItems() (int, error) {
	return it.totalItems, nil
}

func (it *iterator) Next() (*spi.Entry, error) {
	if it.pos >= len(it.entries) {
		return nil, spi.ErrNotFound
	}

	entry := it.entries[it.pos]
	it.pos++

	return entry, nil
}

func (it *iterator) Close() error {
	return nil
}

func contains(list []string, s string) bool {
	for _, member := range list {
		if member == s {
			return true
		}
	}

	return false
}
