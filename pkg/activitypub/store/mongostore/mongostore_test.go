/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/weft-social/weft/pkg/activitypub/store/spi"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
)

// The tests in this package require a running MongoDB instance, e.g.
//
//	docker run -p 27017:27017 mongo:6
//
// and are skipped unless MONGODB_URI is set.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, client.Disconnect(context.Background()))
	})

	s, err := New(client, "weft_test_"+uuid.NewString()[:8])
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, s.db.Drop(context.Background()))
	})

	return s
}

func TestStore_ActivitiesAndCollections(t *testing.T) {
	s := newTestStore(t)

	const collection = "https://localhost/outbox/test"

	var ids []string

	for i := 0; i < 5; i++ {
		activity := vocab.NewActivity(vocab.Document{
			vocab.PropertyID:    "https://localhost/s/" + uuid.NewString(),
			vocab.PropertyType:  vocab.TypeCreate,
			vocab.PropertyActor: []interface{}{"https://localhost/u/test"},
		})

		require.NoError(t, s.PutActivity(activity))
		require.NoError(t, s.AddToCollection(collection, activity.ID()))

		ids = append(ids, activity.ID())
	}

	retrieved, err := s.GetActivity(ids[0])
	require.NoError(t, err)
	require.Equal(t, ids[0], retrieved.ID())
	require.Contains(t, retrieved.Collections(), collection)

	_, err = s.GetActivity("https://localhost/s/unknown")
	require.ErrorIs(t, err, spi.ErrNotFound)

	it, err := s.QueryCollection(collection, spi.WithPageSize(3))
	require.NoError(t, err)

	total, err := it.TotalItems()
	require.NoError(t, err)
	require.Equal(t, 5, total)

	// Newest first.
	var got []string

	var lastKey string

	for {
		entry, err := it.Next()
		if err != nil {
			require.ErrorIs(t, err, spi.ErrNotFound)

			break
		}

		got = append(got, entry.Activity.ID())
		lastKey = entry.Key
	}

	require.NoError(t, it.Close())
	require.Equal(t, []string{ids[4], ids[3], ids[2]}, got)

	it, err = s.QueryCollection(collection, spi.WithBefore(lastKey))
	require.NoError(t, err)

	entry, err := it.Next()
	require.NoError(t, err)
	require.Equal(t, ids[1], entry.Activity.ID())

	require.NoError(t, s.RemoveFromCollection(collection, ids...))

	it, err = s.QueryCollection(collection)
	require.NoError(t, err)

	_, err = it.Next()
	require.ErrorIs(t, err, spi.ErrNotFound)
}

func TestStore_Objects(t *testing.T) {
	s := newTestStore(t)

	id := "https://localhost/o/" + uuid.NewString()

	obj := vocab.NewObject(vocab.Document{
		vocab.PropertyID:   id,
		vocab.PropertyType: vocab.TypeNote,
		"content":          []interface{}{"hello"},
	})

	require.NoError(t, s.PutObject(obj))

	retrieved, err := s.GetObject(id)
	require.NoError(t, err)
	require.Equal(t, vocab.TypeNote, retrieved.Type())

	require.NoError(t, s.DeleteObject(id))

	_, err = s.GetObject(id)
	require.ErrorIs(t, err, spi.ErrNotFound)
}
