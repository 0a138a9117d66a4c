/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package memstore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weft-social/weft/pkg/activitypub/store/spi"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
)

func TestStore_Activities(t *testing.T) {
	s := New("service1")

	activity := newActivity(t, "https://localhost/s/1", vocab.TypeCreate)

	require.NoError(t, s.PutActivity(activity))

	retrieved, err := s.GetActivity("https://localhost/s/1")
	require.NoError(t, err)
	require.Equal(t, activity.Doc(), retrieved.Doc())

	// Mutating the retrieved copy must not affect the stored document.
	retrieved.SetProperty("content", "changed")

	retrieved, err = s.GetActivity("https://localhost/s/1")
	require.NoError(t, err)

	_, hasContent := retrieved.Doc()["content"]
	require.False(t, hasContent)

	_, err = s.GetActivity("https://localhost/s/unknown")
	require.ErrorIs(t, err, spi.ErrNotFound)

	require.NoError(t, s.DeleteActivity("https://localhost/s/1"))

	_, err = s.GetActivity("https://localhost/s/1")
	require.ErrorIs(t, err, spi.ErrNotFound)

	require.Error(t, s.PutActivity(vocab.NewActivity(vocab.Document{vocab.PropertyType: vocab.TypeCreate})))
}

func TestStore_Objects(t *testing.T) {
	s := New("service1")

	obj := vocab.NewObject(vocab.Document{
		vocab.PropertyID:   "https://localhost/o/1",
		vocab.PropertyType: vocab.TypeNote,
	})

	require.NoError(t, s.PutObject(obj))

	retrieved, err := s.GetObject("https://localhost/o/1")
	require.NoError(t, err)
	require.Equal(t, obj.Doc(), retrieved.Doc())

	_, err = s.GetObject("https://localhost/o/unknown")
	require.ErrorIs(t, err, spi.ErrNotFound)

	require.NoError(t, s.DeleteObject("https://localhost/o/1"))

	_, err = s.GetObject("https://localhost/o/1")
	require.ErrorIs(t, err, spi.ErrNotFound)
}

func TestStore_Collections(t *testing.T) {
	s := New("service1")

	const collection = "https://localhost/outbox/test"

	for i := 1; i <= 5; i++ {
		activity := newActivity(t, fmt.Sprintf("https://localhost/s/%d", i), vocab.TypeCreate)

		require.NoError(t, s.PutActivity(activity))
		require.NoError(t, s.AddToCollection(collection, activity.ID()))
	}

	require.ErrorIs(t, s.AddToCollection(collection, "https://localhost/s/unknown"), spi.ErrNotFound)

	it, err := s.QueryCollection(collection)
	require.NoError(t, err)

	total, err := it.TotalItems()
	require.NoError(t, err)
	require.Equal(t, 5, total)

	// Newest first.
	require.Equal(t, []string{
		"https://localhost/s/5", "https://localhost/s/4", "https://localhost/s/3",
		"https://localhost/s/2", "https://localhost/s/1",
	}, drain(t, it))

	t.Run("page size", func(t *testing.T) {
		it, err := s.QueryCollection(collection, spi.WithPageSize(2))
		require.NoError(t, err)

		require.Equal(t, []string{"https://localhost/s/5", "https://localhost/s/4"}, drain(t, it))
	})

	t.Run("cursor pages", func(t *testing.T) {
		it, err := s.QueryCollection(collection, spi.WithPageSize(2))
		require.NoError(t, err)

		first, err := it.Next()
		require.NoError(t, err)

		second, err := it.Next()
		require.NoError(t, err)
		require.NoError(t, it.Close())

		// Entries strictly older than the last cursor of the previous page.
		it, err = s.QueryCollection(collection, spi.WithPageSize(2), spi.WithBefore(second.Key))
		require.NoError(t, err)

		require.Equal(t, []string{"https://localhost/s/3", "https://localhost/s/2"}, drain(t, it))

		require.NotEqual(t, first.Key, second.Key)
	})

	t.Run("invalid cursor", func(t *testing.T) {
		_, err := s.QueryCollection(collection, spi.WithBefore("not-a-cursor"))
		require.Error(t, err)
	})

	t.Run("remove member", func(t *testing.T) {
		require.NoError(t, s.RemoveFromCollection(collection, "https://localhost/s/3"))
		require.NoError(t, s.RemoveFromCollection(collection, "https://localhost/s/unknown"))

		it, err := s.QueryCollection(collection)
		require.NoError(t, err)

		require.Equal(t, []string{
			"https://localhost/s/5", "https://localhost/s/4",
			"https://localhost/s/2", "https://localhost/s/1",
		}, drain(t, it))
	})
}

func TestStore_InsertionKeyStableOnOverwrite(t *testing.T) {
	s := New("service1")

	const collection = "https://localhost/outbox/test"

	first := newActivity(t, "https://localhost/s/1", vocab.TypeCreate)
	second := newActivity(t, "https://localhost/s/2", vocab.TypeLike)

	require.NoError(t, s.PutActivity(first))
	require.NoError(t, s.PutActivity(second))
	require.NoError(t, s.AddToCollection(collection, first.ID(), second.ID()))

	// Overwriting the first activity must not move it ahead of the second.
	first.SetProperty("content", "edited")
	require.NoError(t, s.PutActivity(first))
	require.NoError(t, s.AddToCollection(collection, first.ID()))

	it, err := s.QueryCollection(collection)
	require.NoError(t, err)

	require.Equal(t, []string{"https://localhost/s/2", "https://localhost/s/1"}, drain(t, it))
}

func TestStore_ReplaceObjectInActivities(t *testing.T) {
	s := New("service1")

	activity := newActivity(t, "https://localhost/s/1", vocab.TypeCreate)
	activity.SetEmbeddedObject(vocab.Document{
		vocab.PropertyID:   "https://localhost/o/1",
		vocab.PropertyType: vocab.TypeNote,
		"content":          []interface{}{"hello"},
	})

	other := newActivity(t, "https://localhost/s/2", vocab.TypeLike)
	other.SetProperty(vocab.PropertyObject, "https://localhost/o/1")

	require.NoError(t, s.PutActivity(activity))
	require.NoError(t, s.PutActivity(other))

	tombstone := vocab.Document{
		vocab.PropertyID:   "https://localhost/o/1",
		vocab.PropertyType: vocab.TypeTombstone,
	}

	require.NoError(t, s.ReplaceObjectInActivities("https://localhost/o/1", tombstone))

	retrieved, err := s.GetActivity("https://localhost/s/1")
	require.NoError(t, err)
	require.Equal(t, vocab.TypeTombstone, retrieved.EmbeddedObject().Type())

	// Activities that reference the object by IRI only are left alone.
	retrieved, err = s.GetActivity("https://localhost/s/2")
	require.NoError(t, err)
	require.Equal(t, "https://localhost/o/1", retrieved.FirstObjectID())
	require.Nil(t, retrieved.EmbeddedObject())
}

func newActivity(t *testing.T, id string, activityType vocab.Type) *vocab.Activity {
	t.Helper()

	return vocab.NewActivity(vocab.Document{
		vocab.PropertyID:    id,
		vocab.PropertyType:  activityType,
		vocab.PropertyActor: []interface{}{"https://localhost/u/test"},
	})
}

func drain(t *testing.T, it spi.ActivityIterator) []string {
	t.Helper()

	var ids []string

	for {
		entry, err := it.Next()
		if err != nil {
			require.ErrorIs(t, err, spi.ErrNotFound)

			break
		}

		ids = append(ids, entry.Activity.ID())
	}

	require.NoError(t, it.Close())

	return ids
}
