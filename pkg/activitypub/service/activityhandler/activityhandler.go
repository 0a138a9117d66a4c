/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package activityhandler executes the type-specific side effects of outbox
// activities.
package activityhandler

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/weft-social/weft/internal/pkg/log"
	"github.com/weft-social/weft/pkg/activitypub/service/collection"
	storespi "github.com/weft-social/weft/pkg/activitypub/store/spi"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
	weftErrors "github.com/weft-social/weft/pkg/errors"
)

var logger = log.New("activitypub_activityhandler")

type objectResolver interface {
	Resolve(iri string) (*vocab.Object, error)
}

// Result describes the effect of handling an activity. The caller persists the
// activity after the handler returns, so side effects become visible only when
// the activity itself is written.
type Result struct {
	// AddToCollections are the collections (besides the actor's outbox) to which
	// the posted activity is added.
	AddToCollections []string

	// SkipOutbox indicates that the activity is not added to the actor's outbox.
	SkipOutbox bool

	// ChangedCollections are the collections whose membership changed. Each
	// results in a synthetic Update broadcast after the activity is persisted.
	ChangedCollections []string

	// DoNotDeliver indicates that the activity must not be federated.
	DoNotDeliver bool

	// Object is the handler's post-mutation view of the activity's object:
	// the merged document for Update, the tombstone for Delete. Nil when the
	// handler did not materialize an object.
	Object vocab.Document
}

type handlerFunc func(sender *vocab.Object, activity *vocab.Activity) (*Result, error)

// Handler dispatches an activity to the handler for its type. Unrecognized
// types fall through to the generic handler, which has no side effects.
type Handler struct {
	baseURL     string
	store       storespi.Store
	resolver    objectResolver
	collections *collection.Service
	handlers    map[vocab.Type]handlerFunc
}

// New returns a new activity handler.
func New(baseURL string, store storespi.Store, resolver objectResolver,
	collections *collection.Service) *Handler {
	h := &Handler{
		baseURL:     baseURL,
		store:       store,
		resolver:    resolver,
		collections: collections,
	}

	h.handlers = map[vocab.Type]handlerFunc{
		vocab.TypeCreate:   h.handleCreate,
		vocab.TypeUpdate:   h.handleUpdate,
		vocab.TypeDelete:   h.handleDelete,
		vocab.TypeUndo:     h.handleUndo,
		vocab.TypeAccept:   h.handleAccept,
		vocab.TypeReject:   h.handleReject,
		vocab.TypeLike:     h.handleLike,
		vocab.TypeAnnounce: h.handleAnnounce,
		vocab.TypeAdd:      h.handleAdd,
		vocab.TypeRemove:   h.handleRemove,
		vocab.TypeBlock:    h.handleBlock,
	}

	return h
}

// HandleActivity validates the given activity and performs its side effects.
// The activity's ID must already be assigned.
func (h *Handler) HandleActivity(sender *vocab.Object, activity *vocab.Activity) (*Result, error) {
	handle, ok := h.handlers[activity.Type()]
	if !ok {
		logger.Debug("No handler for activity type. Using generic handler.",
			log.WithActivityType(activity.Type()), log.WithActivityID(activity.ID()))

		return &Result{}, nil
	}

	return handle(sender, activity)
}

func (h *Handler) handleCreate(sender *vocab.Object, activity *vocab.Activity) (*Result, error) {
	obj := activity.EmbeddedObject()
	if obj == nil {
		// A Create that references its object by IRI is persisted as-is.
		return &Result{}, nil
	}

	if obj.ID() == "" {
		obj.SetID(h.newObjectIRI())
	}

	if len(obj.AttributedTo()) == 0 {
		obj.SetProperty(vocab.PropertyAttributedTo, sender.ID())
	}

	if obj.Published().IsZero() {
		obj.SetPublished(time.Now())
	}

	if err := h.store.PutObject(obj); err != nil {
		return nil, fmt.Errorf("store object [%s]: %w", obj.ID(), err)
	}

	activity.SetEmbeddedObject(obj.Doc())

	return &Result{Object: obj.Doc()}, nil
}

// handleUpdate merges the activity's object into the stored object and patches
// every stored activity that embeds it. An Update whose object is not in the
// store (e.g. a collection summary) has no side effects.
func (h *Handler) handleUpdate(sender *vocab.Object, activity *vocab.Activity) (*Result, error) {
	partial := activity.EmbeddedObject()
	if partial == nil || partial.ID() == "" {
		return nil, weftErrors.NewBadRequestf("update has no object with an ID")
	}

	stored, err := h.store.GetObject(partial.ID())
	if err != nil {
		if errors.Is(err, storespi.ErrNotFound) {
			return &Result{}, nil
		}

		return nil, fmt.Errorf("get object [%s]: %w", partial.ID(), err)
	}

	merged := partial.Doc().Copy()

	merged.MergeWith(stored.Doc())

	mergedObj := vocab.NewObject(merged)

	mergedObj.SetProperty(vocab.PropertyUpdated, time.Now().UTC().Format(time.RFC3339))

	if err := h.store.PutObject(mergedObj); err != nil {
		return nil, fmt.Errorf("store object [%s]: %w", mergedObj.ID(), err)
	}

	if err := h.store.ReplaceObjectInActivities(mergedObj.ID(), merged); err != nil {
		return nil, fmt.Errorf("patch embedded copies of [%s]: %w", mergedObj.ID(), err)
	}

	// The federated activity carries the full post-merge object. Internal
	// metadata (including key material) is stripped on egress.
	activity.SetEmbeddedObject(merged)

	return &Result{Object: merged}, nil
}

func (h *Handler) handleDelete(sender *vocab.Object, activity *vocab.Activity) (*Result, error) {
	objectIRI := activity.FirstObjectID()
	if objectIRI == "" {
		return nil, weftErrors.NewBadRequestf("delete has no object")
	}

	stored, err := h.store.GetObject(objectIRI)
	if err != nil {
		if errors.Is(err, storespi.ErrNotFound) {
			// Deleting an object that is already gone is a no-op.
			return &Result{}, nil
		}

		return nil, fmt.Errorf("get object [%s]: %w", objectIRI, err)
	}

	if stored.Type() == vocab.TypeTombstone {
		return &Result{}, nil
	}

	if !containsString(stored.AttributedTo(), sender.ID()) {
		return nil, weftErrors.NewForbiddenf("[%s] does not own object [%s]", sender.ID(), objectIRI)
	}

	tombstone := vocab.NewTombstone(stored, time.Now().UTC().Format(time.RFC3339))

	if err := h.store.PutObject(vocab.NewObject(tombstone)); err != nil {
		return nil, fmt.Errorf("store tombstone [%s]: %w", objectIRI, err)
	}

	if err := h.store.ReplaceObjectInActivities(objectIRI, tombstone); err != nil {
		return nil, fmt.Errorf("patch embedded copies of [%s]: %w", objectIRI, err)
	}

	// The Delete activity itself references the object by IRI, so the
	// tombstone is surfaced through the result.
	return &Result{Object: tombstone}, nil
}

// handleUndo reverses the side effects of a prior activity by the same actor:
// the activity is removed from all of its collections and then deleted.
func (h *Handler) handleUndo(sender *vocab.Object, activity *vocab.Activity) (*Result, error) {
	targetIRI := activity.FirstObjectID()
	if targetIRI == "" {
		return nil, weftErrors.NewBadRequestf("undo has no object")
	}

	target, err := h.store.GetActivity(targetIRI)
	if err != nil {
		if errors.Is(err, storespi.ErrNotFound) {
			return nil, weftErrors.NewBadRequestf("activity [%s] not found", targetIRI)
		}

		return nil, fmt.Errorf("get activity [%s]: %w", targetIRI, err)
	}

	if !sameActors(target.Actor(), activity.Actor()) {
		return nil, weftErrors.NewForbiddenf("[%s] is not the actor of activity [%s]",
			sender.ID(), targetIRI)
	}

	collections := target.Collections()

	for _, collectionIRI := range collections {
		if err := h.store.RemoveFromCollection(collectionIRI, targetIRI); err != nil {
			return nil, fmt.Errorf("remove [%s] from collection [%s]: %w",
				targetIRI, collectionIRI, err)
		}
	}

	if err := h.store.DeleteActivity(targetIRI); err != nil {
		return nil, fmt.Errorf("delete activity [%s]: %w", targetIRI, err)
	}

	return &Result{ChangedCollections: h.broadcastable(collections)}, nil
}

// handleAccept accepts a Follow: the Follow activity is stored and added to the
// local actor's followers collection.
func (h *Handler) handleAccept(sender *vocab.Object, activity *vocab.Activity) (*Result, error) {
	follow, err := h.embeddedFollow(activity)
	if err != nil {
		return nil, err
	}

	username, ok := h.collections.Username(sender.ID())
	if !ok {
		return nil, weftErrors.NewBadRequestf("[%s] is not a local actor", sender.ID())
	}

	followersIRI := h.collections.IRI(collection.KindFollowers, username)

	if err := h.addActivityToCollection(follow, followersIRI); err != nil {
		return nil, err
	}

	return &Result{ChangedCollections: []string{followersIRI}}, nil
}

// handleReject rejects a Follow: the Follow activity is moved from the
// followers collection into the rejected collection.
func (h *Handler) handleReject(sender *vocab.Object, activity *vocab.Activity) (*Result, error) {
	follow, err := h.embeddedFollow(activity)
	if err != nil {
		return nil, err
	}

	username, ok := h.collections.Username(sender.ID())
	if !ok {
		return nil, weftErrors.NewBadRequestf("[%s] is not a local actor", sender.ID())
	}

	followersIRI := h.collections.IRI(collection.KindFollowers, username)

	if err := h.store.RemoveFromCollection(followersIRI, follow.ID()); err != nil {
		return nil, fmt.Errorf("remove [%s] from collection [%s]: %w",
			follow.ID(), followersIRI, err)
	}

	if err := h.addActivityToCollection(follow, h.collections.IRI(collection.KindRejected, username)); err != nil {
		return nil, err
	}

	return &Result{ChangedCollections: []string{followersIRI}}, nil
}

// handleLike resolves the liked object and embeds it in the activity so that
// the stored and delivered forms carry the object.
func (h *Handler) handleLike(sender *vocab.Object, activity *vocab.Activity) (*Result, error) {
	objectIRI := activity.FirstObjectID()
	if objectIRI == "" {
		return nil, weftErrors.NewBadRequestf("like has no object")
	}

	if activity.EmbeddedObject() == nil {
		obj, err := h.resolver.Resolve(objectIRI)
		if err != nil {
			logger.Warn("Unable to resolve liked object. The activity will reference it by IRI.",
				log.WithObjectID(objectIRI), log.WithError(err))
		} else {
			activity.SetEmbeddedObject(obj.Doc().Copy())
		}
	}

	username, ok := h.collections.Username(sender.ID())
	if !ok {
		return nil, weftErrors.NewBadRequestf("[%s] is not a local actor", sender.ID())
	}

	likedIRI := h.collections.IRI(collection.KindLiked, username)

	result := &Result{
		AddToCollections:   []string{likedIRI},
		ChangedCollections: []string{likedIRI},
	}

	if obj := activity.EmbeddedObject(); obj != nil {
		result.Object = obj.Doc()
	}

	return result, nil
}

// handleAnnounce persists the activity with its object as an IRI reference.
// Embedding the object here would defeat the reference semantics.
func (h *Handler) handleAnnounce(sender *vocab.Object, activity *vocab.Activity) (*Result, error) {
	if len(activity.ObjectIDs()) == 0 {
		return nil, weftErrors.NewBadRequestf("announce has no object")
	}

	activity.SetProperty(vocab.PropertyObject, toInterfaceSlice(activity.ObjectIDs())...)

	username, ok := h.collections.Username(sender.ID())
	if !ok {
		return nil, weftErrors.NewBadRequestf("[%s] is not a local actor", sender.ID())
	}

	return &Result{
		AddToCollections: []string{h.collections.IRI(collection.KindShares, username)},
	}, nil
}

func (h *Handler) handleAdd(sender *vocab.Object, activity *vocab.Activity) (*Result, error) {
	targetIRI, err := h.ownedTargetCollection(sender, activity)
	if err != nil {
		return nil, err
	}

	for _, objectIRI := range activity.ObjectIDs() {
		if err := h.store.AddToCollection(targetIRI, objectIRI); err != nil {
			if errors.Is(err, storespi.ErrNotFound) {
				return nil, weftErrors.NewBadRequestf("activity [%s] not found", objectIRI)
			}

			return nil, fmt.Errorf("add [%s] to collection [%s]: %w", objectIRI, targetIRI, err)
		}
	}

	return &Result{ChangedCollections: h.broadcastable([]string{targetIRI})}, nil
}

func (h *Handler) handleRemove(sender *vocab.Object, activity *vocab.Activity) (*Result, error) {
	targetIRI, err := h.ownedTargetCollection(sender, activity)
	if err != nil {
		return nil, err
	}

	if err := h.store.RemoveFromCollection(targetIRI, activity.ObjectIDs()...); err != nil {
		return nil, fmt.Errorf("remove from collection [%s]: %w", targetIRI, err)
	}

	return &Result{ChangedCollections: h.broadcastable([]string{targetIRI})}, nil
}

// handleBlock adds the activity to the actor's blocked collection. The
// activity is kept out of the outbox and its recipients are cleared so that it
// is never federated.
func (h *Handler) handleBlock(sender *vocab.Object, activity *vocab.Activity) (*Result, error) {
	if len(activity.ObjectIDs()) == 0 {
		return nil, weftErrors.NewBadRequestf("block has no object")
	}

	username, ok := h.collections.Username(sender.ID())
	if !ok {
		return nil, weftErrors.NewBadRequestf("[%s] is not a local actor", sender.ID())
	}

	activity.ClearRecipients()

	return &Result{
		AddToCollections: []string{h.collections.IRI(collection.KindBlocked, username)},
		SkipOutbox:       true,
		DoNotDeliver:     true,
	}, nil
}

func (h *Handler) embeddedFollow(activity *vocab.Activity) (*vocab.Activity, error) {
	obj := activity.EmbeddedObject()
	if obj == nil {
		// The Follow may be referenced by IRI if it was previously stored.
		followIRI := activity.FirstObjectID()
		if followIRI == "" {
			return nil, weftErrors.NewBadRequestf("%s has no object", activity.Type())
		}

		follow, err := h.store.GetActivity(followIRI)
		if err != nil {
			if errors.Is(err, storespi.ErrNotFound) {
				return nil, weftErrors.NewBadRequestf("follow activity [%s] not found", followIRI)
			}

			return nil, fmt.Errorf("get activity [%s]: %w", followIRI, err)
		}

		return follow, nil
	}

	if obj.Type() != vocab.TypeFollow {
		return nil, weftErrors.NewBadRequestf("object of %s is not a Follow activity", activity.Type())
	}

	follow := vocab.NewActivity(obj.Doc())

	if follow.ID() == "" || len(follow.Actor()) == 0 {
		return nil, weftErrors.NewBadRequestf("follow activity has no ID or actor")
	}

	return follow, nil
}

func (h *Handler) addActivityToCollection(activity *vocab.Activity, collectionIRI string) error {
	if _, err := h.store.GetActivity(activity.ID()); err != nil {
		if !errors.Is(err, storespi.ErrNotFound) {
			return fmt.Errorf("get activity [%s]: %w", activity.ID(), err)
		}

		if err := h.store.PutActivity(activity); err != nil {
			return fmt.Errorf("store activity [%s]: %w", activity.ID(), err)
		}
	}

	if err := h.store.AddToCollection(collectionIRI, activity.ID()); err != nil {
		return fmt.Errorf("add [%s] to collection [%s]: %w", activity.ID(), collectionIRI, err)
	}

	return nil
}

func (h *Handler) ownedTargetCollection(sender *vocab.Object, activity *vocab.Activity) (string, error) {
	targetIRI := activity.FirstTarget()
	if targetIRI == "" {
		return "", weftErrors.NewBadRequestf("%s has no target", activity.Type())
	}

	if len(activity.ObjectIDs()) == 0 {
		return "", weftErrors.NewBadRequestf("%s has no object", activity.Type())
	}

	ownerIRI, ok := h.collections.OwnerActorIRI(targetIRI)
	if !ok {
		return "", weftErrors.NewBadRequestf("target [%s] is not a collection", targetIRI)
	}

	if ownerIRI != sender.ID() {
		return "", weftErrors.NewForbiddenf("[%s] does not own collection [%s]",
			sender.ID(), targetIRI)
	}

	return targetIRI, nil
}

// broadcastable filters the given collections down to those whose membership
// changes are broadcast to followers. The outbox itself and the private
// blocked/rejected collections are excluded.
func (h *Handler) broadcastable(collectionIRIs []string) []string {
	var out []string

	for _, iri := range collectionIRIs {
		kind, _, ok := h.collections.Owner(iri)
		if !ok {
			continue
		}

		switch kind {
		case collection.KindOutbox, collection.KindBlocked, collection.KindRejected:
		default:
			out = append(out, iri)
		}
	}

	return out
}

func (h *Handler) newObjectIRI() string {
	return fmt.Sprintf("%s/o/%s", h.baseURL, uuid.NewString())
}

func sameActors(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for _, actor := range a {
		if !containsString(b, actor) {
			return false
		}
	}

	return true
}

func containsString(list []string, s string) bool {
	for _, member := range list {
		if member == s {
			return true
		}
	}

	return false
}

func toInterfaceSlice(values []string) []interface{} {
	out := make([]interface{}, len(values))

	for i, v := range values {
		out[i] = v
	}

	return out
}
