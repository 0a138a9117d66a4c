/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package spi defines the activity store interfaces.
package spi

import (
	"errors"

	"github.com/weft-social/weft/pkg/activitypub/vocab"
)

// ErrNotFound is returned from various store functions when a requested
// record is not found in the store.
var ErrNotFound = errors.New("not found")

// Store defines the persistence functions of an ActivityPub service. Activities
// and objects (including actors) are stored as normalized documents. An activity
// is assigned a monotonically increasing insertion key when it is first stored;
// the key orders collection queries and serves as the paging cursor.
type Store interface {
	// PutActivity stores the given activity. If an activity with the same ID is
	// already stored then it is overwritten and keeps its original insertion key.
	PutActivity(activity *vocab.Activity) error

	// GetActivity returns the activity with the given IRI. Returns ErrNotFound
	// if the activity is not in the store.
	GetActivity(activityIRI string) (*vocab.Activity, error)

	// DeleteActivity removes the activity with the given IRI. Deleting an
	// activity that is not in the store is not an error.
	DeleteActivity(activityIRI string) error

	// PutObject stores the given object, overwriting any object with the same IRI.
	PutObject(obj *vocab.Object) error

	// GetObject returns the object with the given IRI. Returns ErrNotFound if
	// the object is not in the store.
	GetObject(objectIRI string) (*vocab.Object, error)

	// DeleteObject removes the object with the given IRI. Deleting an object
	// that is not in the store is not an error.
	DeleteObject(objectIRI string) error

	// AddToCollection tags the given activities as members of the given
	// collection. Activities that are already members are left as-is. Returns
	// ErrNotFound if any of the activities is not in the store.
	AddToCollection(collectionIRI string, activityIRIs ...string) error

	// RemoveFromCollection removes the collection tag from the given activities.
	// Activities that are not members (or not in the store) are ignored.
	RemoveFromCollection(collectionIRI string, activityIRIs ...string) error

	// ReplaceObjectInActivities replaces the embedded object with the given IRI
	// in every stored activity that embeds it.
	ReplaceObjectInActivities(objectIRI string, replacement vocab.Document) error

	// QueryCollection returns an iterator over the members of the given
	// collection, newest first.
	QueryCollection(collectionIRI string, opts ...QueryOpt) (ActivityIterator, error)
}

// Entry is a member of a collection query result.
type Entry struct {
	Activity *vocab.Activity

	// Key is the activity's insertion key, rendered as an opaque paging cursor.
	Key string
}

// ActivityIterator iterates over the members of a collection.
type ActivityIterator interface {
	// TotalItems returns the total number of members in the collection,
	// regardless of paging options.
	TotalItems() (int, error)

	// Next returns the next entry or ErrNotFound if there are no more entries.
	Next() (*Entry, error)

	// Close closes the iterator.
	Close() error
}

// QueryOptions holds the options for a collection query.
type QueryOptions struct {
	// PageSize limits the number of entries returned by the iterator.
	// Zero means no limit.
	PageSize int

	// Before restricts the result to entries whose insertion key is strictly
	// less than the given cursor. An empty cursor means start from the newest.
	Before string
}

// QueryOpt sets a query option.
type QueryOpt func(options *QueryOptions)

// WithPageSize sets the maximum number of entries returned by the iterator.
func WithPageSize(pageSize int) QueryOpt {
	return func(options *QueryOptions) {
		options.PageSize = pageSize
	}
}

// WithBefore restricts the result to entries older than the given cursor.
func WithBefore(cursor string) QueryOpt {
	return func(options *QueryOptions) {
		options.Before = cursor
	}
}

// NewQueryOptions returns the options populated from the given QueryOpts.
func NewQueryOptions(opts ...QueryOpt) *QueryOptions {
	options := &QueryOptions{}

	for _, opt := range opts {
		opt(options)
	}

	return options
}
