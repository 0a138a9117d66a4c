/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package collection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weft-social/weft/pkg/activitypub/store/memstore"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
)

const baseURL = "https://localhost"

func TestIRIs(t *testing.T) {
	s := New(baseURL, memstore.New("service1"))

	require.Equal(t, "https://localhost/u/test", s.ActorIRI("test"))
	require.Equal(t, "https://localhost/outbox/test", s.IRI(KindOutbox, "test"))
	require.Equal(t, "https://localhost/followers/test", s.IRI(KindFollowers, "test"))
	require.Equal(t, "https://localhost/c/test/reading-list", s.NamedIRI("test", "reading-list"))

	kind, username, ok := s.Owner("https://localhost/outbox/test")
	require.True(t, ok)
	require.Equal(t, KindOutbox, kind)
	require.Equal(t, "test", username)

	kind, username, ok = s.Owner("https://localhost/c/test/reading-list")
	require.True(t, ok)
	require.Equal(t, "c/reading-list", kind)
	require.Equal(t, "test", username)

	_, _, ok = s.Owner("https://remote.example/outbox/test")
	require.False(t, ok)

	_, _, ok = s.Owner("https://localhost/u/test")
	require.False(t, ok)

	actorIRI, ok := s.OwnerActorIRI("https://localhost/followers/test")
	require.True(t, ok)
	require.Equal(t, "https://localhost/u/test", actorIRI)
}

func TestSummaryAndPage(t *testing.T) {
	store := memstore.New("service1")
	s := New(baseURL, store, WithPageSize(2))

	outbox := s.IRI(KindOutbox, "test")

	for i := 1; i <= 5; i++ {
		activity := vocab.NewActivity(vocab.Document{
			vocab.PropertyID:    fmt.Sprintf("https://localhost/s/%d", i),
			vocab.PropertyType:  vocab.TypeCreate,
			vocab.PropertyActor: []interface{}{"https://localhost/u/test"},
		})

		require.NoError(t, store.PutActivity(activity))
		require.NoError(t, store.AddToCollection(outbox, activity.ID()))
	}

	summary, err := s.Summary(outbox)
	require.NoError(t, err)
	require.Equal(t, vocab.TypeOrderedCollection, summary[vocab.PropertyType])
	require.Equal(t, outbox, summary[vocab.PropertyID])
	require.Equal(t, 5, summary[vocab.PropertyTotalItems])
	require.Equal(t, outbox+"?page=true", summary[vocab.PropertyFirst])

	page, err := s.Page(outbox, "true")
	require.NoError(t, err)
	require.Equal(t, vocab.TypeOrderedCollectionPage, page[vocab.PropertyType])
	require.Equal(t, outbox+"?page=true", page[vocab.PropertyID])
	require.Equal(t, outbox, page[vocab.PropertyPartOf])
	require.Equal(t, 5, page[vocab.PropertyTotalItems])

	items := page[vocab.PropertyOrderedItems].([]interface{})
	require.Len(t, items, 2)

	// Newest first, in the external shape without a nested @context.
	first := items[0].(map[string]interface{})
	require.Equal(t, "https://localhost/s/5", first[vocab.PropertyID])
	require.NotContains(t, first, vocab.PropertyContext)
	require.NotContains(t, first, vocab.PropertyMeta)

	next, ok := page[vocab.PropertyNext].(string)
	require.True(t, ok)

	// Follow the next links through the whole collection.
	var ids []string

	for _, item := range items {
		ids = append(ids, item.(map[string]interface{})[vocab.PropertyID].(string))
	}

	for next != "" {
		cursor := next[len(outbox+"?page="):]

		page, err = s.Page(outbox, cursor)
		require.NoError(t, err)

		for _, item := range page[vocab.PropertyOrderedItems].([]interface{}) {
			ids = append(ids, item.(map[string]interface{})[vocab.PropertyID].(string))
		}

		next, _ = page[vocab.PropertyNext].(string)
	}

	require.Equal(t, []string{
		"https://localhost/s/5", "https://localhost/s/4", "https://localhost/s/3",
		"https://localhost/s/2", "https://localhost/s/1",
	}, ids)
}

func TestPage_Empty(t *testing.T) {
	s := New(baseURL, memstore.New("service1"))

	page, err := s.Page(s.IRI(KindOutbox, "test"), "")
	require.NoError(t, err)
	require.Equal(t, 0, page[vocab.PropertyTotalItems])
	require.Empty(t, page[vocab.PropertyOrderedItems])
	require.NotContains(t, page, vocab.PropertyNext)
}

func TestResolveMembers(t *testing.T) {
	store := memstore.New("service1")
	s := New(baseURL, store)

	followers := s.IRI(KindFollowers, "test")

	follow1 := vocab.NewActivity(vocab.Document{
		vocab.PropertyID:     "https://localhost/s/f1",
		vocab.PropertyType:   vocab.TypeFollow,
		vocab.PropertyActor:  []interface{}{"https://remote.example/u/alice"},
		vocab.PropertyObject: []interface{}{"https://localhost/u/test"},
	})

	follow2 := vocab.NewActivity(vocab.Document{
		vocab.PropertyID:     "https://localhost/s/f2",
		vocab.PropertyType:   vocab.TypeFollow,
		vocab.PropertyActor:  []interface{}{"https://remote.example/u/bob"},
		vocab.PropertyObject: []interface{}{"https://localhost/u/test"},
	})

	// A non-Follow activity in the collection contributes no members.
	other := vocab.NewActivity(vocab.Document{
		vocab.PropertyID:    "https://localhost/s/x1",
		vocab.PropertyType:  vocab.TypeLike,
		vocab.PropertyActor: []interface{}{"https://remote.example/u/carol"},
	})

	for _, activity := range []*vocab.Activity{follow1, follow2, other} {
		require.NoError(t, store.PutActivity(activity))
		require.NoError(t, store.AddToCollection(followers, activity.ID()))
	}

	members, ok, err := s.ResolveMembers(followers)
	require.NoError(t, err)
	require.True(t, ok)
	require.ElementsMatch(t, []string{
		"https://remote.example/u/alice", "https://remote.example/u/bob",
	}, members)

	_, ok, err = s.ResolveMembers(s.IRI(KindOutbox, "test"))
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = s.ResolveMembers("https://remote.example/followers/alice")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBlockList(t *testing.T) {
	store := memstore.New("service1")
	s := New(baseURL, store)

	block := vocab.NewActivity(vocab.Document{
		vocab.PropertyID:     "https://localhost/s/b1",
		vocab.PropertyType:   vocab.TypeBlock,
		vocab.PropertyActor:  []interface{}{"https://localhost/u/test"},
		vocab.PropertyObject: []interface{}{"https://remote.example/u/mallory"},
	})

	require.NoError(t, store.PutActivity(block))
	require.NoError(t, store.AddToCollection(s.IRI(KindBlocked, "test"), block.ID()))

	blocked, err := s.BlockList("https://localhost/u/test")
	require.NoError(t, err)
	require.Equal(t, []string{"https://remote.example/u/mallory"}, blocked)

	blocked, err = s.BlockList("https://remote.example/u/alice")
	require.NoError(t, err)
	require.Empty(t, blocked)
}
