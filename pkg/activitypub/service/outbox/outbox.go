/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package outbox implements the outbox processing pipeline: it accepts
// activities on behalf of local actors, runs the type-specific side effects,
// persists the activity, enqueues federated delivery and emits an event.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/weft-social/weft/internal/pkg/log"
	"github.com/weft-social/weft/pkg/activitypub/service/activityhandler"
	"github.com/weft-social/weft/pkg/activitypub/service/collection"
	"github.com/weft-social/weft/pkg/activitypub/service/spi"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
	weftErrors "github.com/weft-social/weft/pkg/errors"
	"github.com/weft-social/weft/pkg/lifecycle"
)

// EventTopic is the topic to which events for accepted activities are published.
const EventTopic = "weft.outbox.events"

var logger = log.New("activitypub_outbox")

type activityStore interface {
	PutActivity(activity *vocab.Activity) error
}

type actorResolver interface {
	IsLocal(iri string) bool
	Resolve(iri string) (*vocab.Object, error)
}

type audienceResolver interface {
	ResolveInboxes(senderIRI string, activity *vocab.Activity) ([]string, error)
}

type deliveryEnqueuer interface {
	Enqueue(senderIRI, inbox string, activity *vocab.Activity) error
}

type pubSub interface {
	Publish(topic string, messages ...*message.Message) error
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

type metricsProvider interface {
	OutboxPostTime(value time.Duration)
	ResolveInboxesTime(value time.Duration)
	ActivityPosted(activityType string)
}

// Config holds the configuration parameters of the outbox.
type Config struct {
	ServiceName string
	BaseURL     string
}

// Outbox implements the outbox pipeline.
type Outbox struct {
	*lifecycle.Lifecycle
	*Config

	store       activityStore
	resolver    actorResolver
	audience    audienceResolver
	handler     *activityhandler.Handler
	collections *collection.Service
	delivery    deliveryEnqueuer
	pubSub      pubSub
	metrics     metricsProvider

	subscribeCtx    context.Context
	subscribeCancel context.CancelFunc
}

type eventPayload struct {
	ActorIRI string         `json:"actor"`
	Activity vocab.Document `json:"activity"`
	Object   vocab.Document `json:"object,omitempty"`
}

// New returns a new outbox.
func New(cfg *Config, store activityStore, resolver actorResolver, audience audienceResolver,
	handler *activityhandler.Handler, collections *collection.Service,
	delivery deliveryEnqueuer, ps pubSub, metrics metricsProvider) *Outbox {
	o := &Outbox{
		Config:      cfg,
		store:       store,
		resolver:    resolver,
		audience:    audience,
		handler:     handler,
		collections: collections,
		delivery:    delivery,
		pubSub:      ps,
		metrics:     metrics,
	}

	o.subscribeCtx, o.subscribeCancel = context.WithCancel(context.Background())

	o.Lifecycle = lifecycle.New(cfg.ServiceName,
		lifecycle.WithStop(o.stop))

	return o
}

func (o *Outbox) stop() {
	o.subscribeCancel()
}

// Subscribe returns a channel of events for accepted activities. The channel
// is closed when the outbox is stopped.
func (o *Outbox) Subscribe() <-chan *spi.Event {
	eventChan := make(chan *spi.Event)

	msgChan, err := o.pubSub.Subscribe(o.subscribeCtx, EventTopic)
	if err != nil {
		logger.Error("Error subscribing to event topic", log.WithTopic(EventTopic),
			log.WithError(err))

		close(eventChan)

		return eventChan
	}

	go func() {
		defer close(eventChan)

		for msg := range msgChan {
			payload := &eventPayload{}

			if err := json.Unmarshal(msg.Payload, payload); err != nil {
				logger.Error("Error unmarshalling event", log.WithMessageID(msg.UUID),
					log.WithError(err))

				msg.Ack()

				continue
			}

			eventChan <- &spi.Event{
				ActorIRI: payload.ActorIRI,
				Activity: vocab.NewActivity(payload.Activity),
				Object:   payload.Object,
			}

			msg.Ack()
		}
	}()

	return eventChan
}

// Post processes the given document as an activity of the given actor: the
// document is normalized (a bare object is first wrapped in a Create), the
// type-specific side effects are executed, the activity is persisted tagged
// with the actor's outbox, deliveries are enqueued for the expanded audience
// and an event is emitted. Returns the stored activity.
//
// Once side effects have begun, processing continues on a context detached
// from the given one: a dropped client connection does not leave a
// half-applied activity.
func (o *Outbox) Post(ctx context.Context, actorIRI string, doc vocab.Document) (*vocab.Activity, error) {
	if o.State() != lifecycle.StateStarted {
		return nil, lifecycle.ErrNotStarted
	}

	startTime := time.Now()

	defer func() {
		o.metrics.OutboxPostTime(time.Since(startTime))
	}()

	if !o.resolver.IsLocal(actorIRI) {
		return nil, weftErrors.NewNotFoundf("actor [%s]", actorIRI)
	}

	actor, err := o.resolver.Resolve(actorIRI)
	if err != nil {
		return nil, err
	}

	activity, err := o.prepare(actorIRI, doc)
	if err != nil {
		return nil, err
	}

	logger.Debug("Handling activity", log.WithActivityType(activity.Type()),
		log.WithActivityID(activity.ID()), log.WithActorID(actorIRI))

	// Side effects begin here. Run to completion regardless of the caller's
	// context.
	detachedCtx := context.WithoutCancel(ctx)

	result, err := o.handler.HandleActivity(actor, activity)
	if err != nil {
		return nil, err
	}

	if !result.SkipOutbox {
		username, ok := o.collections.Username(actorIRI)
		if !ok {
			return nil, weftErrors.NewNotFoundf("actor [%s]", actorIRI)
		}

		activity.AddCollection(o.collections.IRI(collection.KindOutbox, username))
	}

	activity.AddCollection(result.AddToCollections...)

	// The activity is the last thing written: if anything above failed,
	// nothing references the side effects.
	if err := o.store.PutActivity(activity); err != nil {
		return nil, fmt.Errorf("store activity [%s]: %w", activity.ID(), err)
	}

	o.metrics.ActivityPosted(activity.Type())

	if !result.DoNotDeliver {
		o.deliver(actorIRI, activity)
	}

	o.publishEvent(actorIRI, activity, eventObject(result, activity))

	for _, collectionIRI := range result.ChangedCollections {
		o.broadcastCollectionUpdate(detachedCtx, actorIRI, collectionIRI)
	}

	return activity, nil
}

// prepare wraps a bare object in a Create, normalizes the document and assigns
// the server-side properties.
func (o *Outbox) prepare(actorIRI string, doc vocab.Document) (*vocab.Activity, error) {
	docType, _ := doc[vocab.PropertyType].(string)

	if !vocab.IsActivityType(docType) {
		// A document carrying an actor is an activity, so a missing or unknown
		// verb is an error rather than something to wrap.
		if _, ok := doc[vocab.PropertyActor]; ok {
			return nil, weftErrors.NewBadRequestf("invalid activity: no activity type specified")
		}

		doc = vocab.NewCreateWrapper(actorIRI, doc)
	}

	if _, ok := doc[vocab.PropertyActor]; !ok {
		doc[vocab.PropertyActor] = actorIRI
	}

	activity, err := vocab.NormalizeActivity(doc)
	if err != nil {
		return nil, weftErrors.NewBadRequestf("invalid activity: %s", err)
	}

	for _, iri := range activity.Actor() {
		if iri != actorIRI {
			return nil, weftErrors.NewForbiddenf("activity actor [%s] is not [%s]", iri, actorIRI)
		}
	}

	if activity.ID() == "" {
		activity.SetID(fmt.Sprintf("%s/s/%s", o.BaseURL, uuid.NewString()))
	}

	if activity.Published().IsZero() {
		activity.SetPublished(time.Now())
	}

	return activity, nil
}

// deliver expands the audience and enqueues one delivery per inbox. Delivery
// failures are absorbed by the retry queue and never surface to the poster.
func (o *Outbox) deliver(actorIRI string, activity *vocab.Activity) {
	startTime := time.Now()

	inboxes, err := o.audience.ResolveInboxes(actorIRI, activity)

	o.metrics.ResolveInboxesTime(time.Since(startTime))

	if err != nil {
		logger.Error("Error resolving recipients. The activity was stored but not delivered.",
			log.WithActivityID(activity.ID()), log.WithError(err))

		return
	}

	for _, inbox := range inboxes {
		if err := o.delivery.Enqueue(actorIRI, inbox, activity); err != nil {
			logger.Error("Error enqueueing delivery", log.WithActivityID(activity.ID()),
				log.WithTargetIRI(inbox), log.WithError(err))
		}
	}
}

// eventObject is the object member of the emitted event: the handler's
// post-mutation object when there is one (e.g. the tombstone of a Delete),
// otherwise the activity's embedded object.
func eventObject(result *activityhandler.Result, activity *vocab.Activity) vocab.Document {
	if result.Object != nil {
		return result.Object
	}

	if obj := activity.EmbeddedObject(); obj != nil {
		return obj.Doc()
	}

	return nil
}

func (o *Outbox) publishEvent(actorIRI string, activity *vocab.Activity, object vocab.Document) {
	payload, err := json.Marshal(&eventPayload{
		ActorIRI: actorIRI,
		Activity: activity.Doc(),
		Object:   object,
	})
	if err != nil {
		logger.Error("Error marshalling event", log.WithActivityID(activity.ID()),
			log.WithError(err))

		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)

	if err := o.pubSub.Publish(EventTopic, msg); err != nil {
		logger.Error("Error publishing event", log.WithActivityID(activity.ID()),
			log.WithError(err))
	}
}

// broadcastCollectionUpdate posts a synthetic Update activity whose object is
// the fresh collection summary, addressed to the actor's followers. It
// re-enters the pipeline so that audience expansion and delivery are shared
// with regular posts.
func (o *Outbox) broadcastCollectionUpdate(ctx context.Context, actorIRI, collectionIRI string) {
	summary, err := o.collections.Summary(collectionIRI)
	if err != nil {
		logger.Error("Error building collection summary", log.WithCollectionIRI(collectionIRI),
			log.WithError(err))

		return
	}

	username, ok := o.collections.Username(actorIRI)
	if !ok {
		return
	}

	update := vocab.Document{
		vocab.PropertyType:   vocab.TypeUpdate,
		vocab.PropertyActor:  actorIRI,
		vocab.PropertyObject: map[string]interface{}(summary),
		vocab.PropertyTo:     o.collections.IRI(collection.KindFollowers, username),
	}

	logger.Debug("Broadcasting collection update", log.WithCollectionIRI(collectionIRI),
		log.WithActorID(actorIRI))

	if _, err := o.Post(ctx, actorIRI, update); err != nil {
		logger.Error("Error posting collection update", log.WithCollectionIRI(collectionIRI),
			log.WithError(err))
	}
}
