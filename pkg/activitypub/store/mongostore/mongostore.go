/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mongostore implements an activity store backed by MongoDB.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/weft-social/weft/internal/pkg/log"
	"github.com/weft-social/weft/pkg/activitypub/store/spi"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
	weftErrors "github.com/weft-social/weft/pkg/errors"
)

const (
	activityCollection = "activities"
	objectCollection   = "objects"
	counterCollection  = "counters"

	activityKeyCounter = "activity_key"

	defaultTimeout = 10 * time.Second
)

var logger = log.New("activitypub_mongostore")

// Store implements an activity store backed by MongoDB. Documents are stored as
// marshalled JSON; the fields needed for queries (collection tags, embedded
// object IRIs and the insertion key) are maintained alongside the payload.
type Store struct {
	db      *mongo.Database
	timeout time.Duration
}

type activityRecord struct {
	ID          string   `bson:"_id"`
	Key         int64    `bson:"key"`
	Doc         []byte   `bson:"doc"`
	Collections []string `bson:"collections"`
	ObjectIRIs  []string `bson:"objectIRIs"`
}

type objectRecord struct {
	ID  string `bson:"_id"`
	Doc []byte `bson:"doc"`
}

// New returns a new MongoDB activity store using the given client. The required
// indexes are created if they do not exist.
func New(client *mongo.Client, dbName string) (*Store, error) {
	s := &Store{
		db:      client.Database(dbName),
		timeout: defaultTimeout,
	}

	ctx, cancel := s.newContext()
	defer cancel()

	_, err := s.db.Collection(activityCollection).Indexes().CreateMany(ctx,
		[]mongo.IndexModel{
			{Keys: bson.D{{Key: "collections", Value: 1}, {Key: "key", Value: -1}}},
			{Keys: bson.D{{Key: "objectIRIs", Value: 1}}},
		})
	if err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return s, nil
}

// PutActivity stores the given activity. If an activity with the same ID is
// already stored then it is overwritten and keeps its original insertion key.
func (s *Store) PutActivity(activity *vocab.Activity) error {
	if activity.ID() == "" {
		return fmt.Errorf("activity has no ID")
	}

	doc := activity.Doc().Copy()

	collections := vocab.NewObject(doc).Collections()

	// Collection tags are maintained in their own field so that membership
	// updates don't rewrite the payload.
	if meta, ok := doc[vocab.PropertyMeta].(map[string]interface{}); ok {
		delete(meta, vocab.MetaCollection)
	}

	payload, err := marshalDoc(doc)
	if err != nil {
		return err
	}

	ctx, cancel := s.newContext()
	defer cancel()

	coll := s.db.Collection(activityCollection)

	result := coll.FindOneAndUpdate(ctx,
		bson.M{"_id": activity.ID()},
		bson.M{
			"$set":         bson.M{"doc": payload, "objectIRIs": embeddedObjectIRIs(activity)},
			"$addToSet":    bson.M{"collections": bson.M{"$each": collections}},
			"$setOnInsert": bson.M{"key": int64(0)},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)

	var rec activityRecord

	if err := result.Decode(&rec); err != nil {
		return weftErrors.NewTransientf("store activity [%s]: %w", activity.ID(), err)
	}

	if rec.Key == 0 {
		key, err := s.nextKey(ctx)
		if err != nil {
			return weftErrors.NewTransientf("assign insertion key [%s]: %w", activity.ID(), err)
		}

		_, err = coll.UpdateOne(ctx,
			bson.M{"_id": activity.ID(), "key": int64(0)},
			bson.M{"$set": bson.M{"key": key}})
		if err != nil {
			return weftErrors.NewTransientf("assign insertion key [%s]: %w", activity.ID(), err)
		}
	}

	return nil
}

// GetActivity returns the activity with the given IRI or spi.ErrNotFound.
func (s *Store) GetActivity(activityIRI string) (*vocab.Activity, error) {
	ctx, cancel := s.newContext()
	defer cancel()

	var rec activityRecord

	err := s.db.Collection(activityCollection).FindOne(ctx, bson.M{"_id": activityIRI}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, spi.ErrNotFound
		}

		return nil, weftErrors.NewTransientf("get activity [%s]: %w", activityIRI, err)
	}

	return rec.toActivity()
}

// DeleteActivity removes the activity with the given IRI.
func (s *Store) DeleteActivity(activityIRI string) error {
	ctx, cancel := s.newContext()
	defer cancel()

	_, err := s.db.Collection(activityCollection).DeleteOne(ctx, bson.M{"_id": activityIRI})
	if err != nil {
		return weftErrors.NewTransientf("delete activity [%s]: %w", activityIRI, err)
	}

	return nil
}

// PutObject stores the given object, overwriting any object with the same IRI.
func (s *Store) PutObject(obj *vocab.Object) error {
	if obj.ID() == "" {
		return fmt.Errorf("object has no ID")
	}

	payload, err := marshalDoc(obj.Doc())
	if err != nil {
		return err
	}

	ctx, cancel := s.newContext()
	defer cancel()

	_, err = s.db.Collection(objectCollection).ReplaceOne(ctx,
		bson.M{"_id": obj.ID()},
		objectRecord{ID: obj.ID(), Doc: payload},
		options.Replace().SetUpsert(true))
	if err != nil {
		return weftErrors.NewTransientf("store object [%s]: %w", obj.ID(), err)
	}

	return nil
}

// GetObject returns the object with the given IRI or spi.ErrNotFound.
func (s *Store) GetObject(objectIRI string) (*vocab.Object, error) {
	ctx, cancel := s.newContext()
	defer cancel()

	var rec objectRecord

	err := s.db.Collection(objectCollection).FindOne(ctx, bson.M{"_id": objectIRI}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, spi.ErrNotFound
		}

		return nil, weftErrors.NewTransientf("get object [%s]: %w", objectIRI, err)
	}

	doc, err := vocab.UnmarshalToDoc(rec.Doc)
	if err != nil {
		return nil, fmt.Errorf("unmarshal object [%s]: %w", objectIRI, err)
	}

	return vocab.NewObject(doc), nil
}

// DeleteObject removes the object with the given IRI.
func (s *Store) DeleteObject(objectIRI string) error {
	ctx, cancel := s.newContext()
	defer cancel()

	_, err := s.db.Collection(objectCollection).DeleteOne(ctx, bson.M{"_id": objectIRI})
	if err != nil {
		return weftErrors.NewTransientf("delete object [%s]: %w", objectIRI, err)
	}

	return nil
}

// AddToCollection tags the given activities as members of the given collection.
func (s *Store) AddToCollection(collectionIRI string, activityIRIs ...string) error {
	ctx, cancel := s.newContext()
	defer cancel()

	for _, activityIRI := range activityIRIs {
		result, err := s.db.Collection(activityCollection).UpdateOne(ctx,
			bson.M{"_id": activityIRI},
			bson.M{"$addToSet": bson.M{"collections": collectionIRI}})
		if err != nil {
			return weftErrors.NewTransientf("add activity [%s] to collection [%s]: %w",
				activityIRI, collectionIRI, err)
		}

		if result.MatchedCount == 0 {
			return fmt.Errorf("activity [%s]: %w", activityIRI, spi.ErrNotFound)
		}
	}

	return nil
}

// RemoveFromCollection removes the collection tag from the given activities.
func (s *Store) RemoveFromCollection(collectionIRI string, activityIRIs ...string) error {
	ctx, cancel := s.newContext()
	defer cancel()

	_, err := s.db.Collection(activityCollection).UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": activityIRIs}},
		bson.M{"$pull": bson.M{"collections": collectionIRI}})
	if err != nil {
		return weftErrors.NewTransientf("remove activities from collection [%s]: %w",
			collectionIRI, err)
	}

	return nil
}

// ReplaceObjectInActivities replaces the embedded object with the given IRI in
// every stored activity that embeds it.
func (s *Store) ReplaceObjectInActivities(objectIRI string, replacement vocab.Document) error {
	ctx, cancel := s.newContext()
	defer cancel()

	coll := s.db.Collection(activityCollection)

	cursor, err := coll.Find(ctx, bson.M{"objectIRIs": objectIRI})
	if err != nil {
		return weftErrors.NewTransientf("query activities for object [%s]: %w", objectIRI, err)
	}

	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.CloseIteratorError(logger, err)
		}
	}()

	for cursor.Next(ctx) {
		var rec activityRecord

		if err := cursor.Decode(&rec); err != nil {
			return weftErrors.NewTransientf("decode activity: %w", err)
		}

		activity, err := rec.toActivity()
		if err != nil {
			return err
		}

		values := activity.ObjectValues()

		for i, member := range values {
			embedded, ok := member.(map[string]interface{})
			if !ok {
				continue
			}

			if id, ok := embedded[vocab.PropertyID].(string); ok && id == objectIRI {
				values[i] = map[string]interface{}(replacement.Copy())
			}
		}

		activity.SetProperty(vocab.PropertyObject, values...)

		payload, err := marshalDoc(activity.Doc())
		if err != nil {
			return err
		}

		_, err = coll.UpdateOne(ctx,
			bson.M{"_id": rec.ID},
			bson.M{"$set": bson.M{"doc": payload}})
		if err != nil {
			return weftErrors.NewTransientf("update activity [%s]: %w", rec.ID, err)
		}
	}

	if err := cursor.Err(); err != nil {
		return weftErrors.NewTransientf("iterate activities for object [%s]: %w", objectIRI, err)
	}

	return nil
}

// QueryCollection returns an iterator over the members of the given collection,
// newest first.
func (s *Store) QueryCollection(collectionIRI string, opts ...spi.QueryOpt) (spi.ActivityIterator, error) {
	queryOptions := spi.NewQueryOptions(opts...)

	filter := bson.M{"collections": collectionIRI}

	if queryOptions.Before != "" {
		cursor, err := strconv.ParseInt(queryOptions.Before, 10, 64)
		if err != nil {
			return nil, weftErrors.NewBadRequestf("invalid cursor [%s]: %s", queryOptions.Before, err)
		}

		filter["key"] = bson.M{"$lt": cursor, "$gt": int64(0)}
	} else {
		filter["key"] = bson.M{"$gt": int64(0)}
	}

	ctx, cancel := s.newContext()
	defer cancel()

	total, err := s.db.Collection(activityCollection).CountDocuments(ctx,
		bson.M{"collections": collectionIRI})
	if err != nil {
		return nil, weftErrors.NewTransientf("count collection [%s]: %w", collectionIRI, err)
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "key", Value: -1}})

	if queryOptions.PageSize > 0 {
		findOptions.SetLimit(int64(queryOptions.PageSize))
	}

	cursor, err := s.db.Collection(activityCollection).Find(ctx, filter, findOptions)
	if err != nil {
		return nil, weftErrors.NewTransientf("query collection [%s]: %w", collectionIRI, err)
	}

	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.CloseIteratorError(logger, err)
		}
	}()

	var entries []*spi.Entry

	for cursor.Next(ctx) {
		var rec activityRecord

		if err := cursor.Decode(&rec); err != nil {
			return nil, weftErrors.NewTransientf("decode activity: %w", err)
		}

		activity, err := rec.toActivity()
		if err != nil {
			return nil, err
		}

		entries = append(entries, &spi.Entry{
			Activity: activity,
			Key:      strconv.FormatInt(rec.Key, 10),
		})
	}

	if err := cursor.Err(); err != nil {
		return nil, weftErrors.NewTransientf("iterate collection [%s]: %w", collectionIRI, err)
	}

	return &iterator{entries: entries, totalItems: int(total)}, nil
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

func (s *Store) nextKey(ctx context.Context) (int64, error) {
	result := s.db.Collection(counterCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": activityKeyCounter},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)

	var counter struct {
		Seq int64 `bson:"seq"`
	}

	if err := result.Decode(&counter); err != nil {
		return 0, err
	}

	return counter.Seq, nil
}

func (s *Store) newContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (rec *activityRecord) toActivity() (*vocab.Activity, error) {
	doc, err := vocab.UnmarshalToDoc(rec.Doc)
	if err != nil {
		return nil, fmt.Errorf("unmarshal activity [%s]: %w", rec.ID, err)
	}

	activity := vocab.NewActivity(doc)

	if len(rec.Collections) > 0 {
		activity.AddCollection(rec.Collections...)
	}

	return activity, nil
}

func embeddedObjectIRIs(activity *vocab.Activity) []string {
	iris := []string{}

	for _, member := range activity.ObjectValues() {
		if embedded, ok := member.(map[string]interface{}); ok {
			if id, ok := embedded[vocab.PropertyID].(string); ok {
				iris = append(iris, id)
			}
		}
	}

	return iris
}

func marshalDoc(doc vocab.Document) ([]byte, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	return payload, nil
}
