/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vocab

import (
	"encoding/json"
)

// Context defines the document context.
type Context = string

const (
	// ContextActivityStreams is the ActivityStreams context.
	ContextActivityStreams Context = "https://www.w3.org/ns/activitystreams"
	// ContextSecurity is the security context.
	ContextSecurity Context = "https://w3id.org/security/v1"
)

// PublicIRI indicates that the object is public, i.e. it may be viewed by anyone.
const PublicIRI = "https://www.w3.org/ns/activitystreams#Public"

// Type indicates the type of an object or activity.
type Type = string

const (
	// TypeCreate specifies the 'Create' activity type.
	TypeCreate Type = "Create"
	// TypeUpdate specifies the 'Update' activity type.
	TypeUpdate Type = "Update"
	// TypeDelete specifies the 'Delete' activity type.
	TypeDelete Type = "Delete"
	// TypeUndo specifies the 'Undo' activity type.
	TypeUndo Type = "Undo"
	// TypeFollow specifies the 'Follow' activity type.
	TypeFollow Type = "Follow"
	// TypeAccept specifies the 'Accept' activity type.
	TypeAccept Type = "Accept"
	// TypeReject specifies the 'Reject' activity type.
	TypeReject Type = "Reject"
	// TypeLike specifies the 'Like' activity type.
	TypeLike Type = "Like"
	// TypeAnnounce specifies the 'Announce' activity type.
	TypeAnnounce Type = "Announce"
	// TypeAdd specifies the 'Add' activity type.
	TypeAdd Type = "Add"
	// TypeRemove specifies the 'Remove' activity type.
	TypeRemove Type = "Remove"
	// TypeBlock specifies the 'Block' activity type.
	TypeBlock Type = "Block"

	// TypePerson specifies the 'Person' actor type.
	TypePerson Type = "Person"
	// TypeService specifies the 'Service' actor type.
	TypeService Type = "Service"
	// TypeNote specifies the 'Note' object type.
	TypeNote Type = "Note"
	// TypeTombstone specifies the 'Tombstone' object type.
	TypeTombstone Type = "Tombstone"
	// TypeOrderedCollection specifies the 'OrderedCollection' object type.
	TypeOrderedCollection Type = "OrderedCollection"
	// TypeOrderedCollectionPage specifies the 'OrderedCollectionPage' object type.
	TypeOrderedCollectionPage Type = "OrderedCollectionPage"
)

// Property names.
const (
	PropertyContext      = "@context"
	PropertyID           = "id"
	PropertyType         = "type"
	PropertyActor        = "actor"
	PropertyObject       = "object"
	PropertyTarget       = "target"
	PropertyTo           = "to"
	PropertyCc           = "cc"
	PropertyBto          = "bto"
	PropertyBcc          = "bcc"
	PropertyAudience     = "audience"
	PropertyPublished    = "published"
	PropertyUpdated      = "updated"
	PropertyDeleted      = "deleted"
	PropertyAttributedTo = "attributedTo"
	PropertyInbox        = "inbox"
	PropertyOutbox       = "outbox"
	PropertyFollowers    = "followers"
	PropertyFollowing    = "following"
	PropertyLiked        = "liked"
	PropertyEndpoints    = "endpoints"
	PropertySharedInbox  = "sharedInbox"
	PropertyPublicKey    = "publicKey"
	PropertyTotalItems   = "totalItems"
	PropertyOrderedItems = "orderedItems"
	PropertyPartOf       = "partOf"
	PropertyFirst        = "first"
	PropertyNext         = "next"

	// PropertyMeta holds internal metadata. It is never included in a federated payload.
	PropertyMeta = "_meta"
	// MetaCollection is the set of collection IRIs that an activity belongs to.
	MetaCollection = "collection"
	// MetaPrivateKey is the PEM-encoded private key of a local actor.
	MetaPrivateKey = "privateKey"
)

// activityTypes is the set of ActivityStreams 2.0 activity types. A document whose
// 'type' is not in this set is treated as a bare object and wrapped in a 'Create'.
var activityTypes = map[string]struct{}{ //nolint:gochecknoglobals
	"Accept": {}, "Add": {}, "Announce": {}, "Arrive": {}, "Block": {}, "Create": {},
	"Delete": {}, "Dislike": {}, "Flag": {}, "Follow": {}, "Ignore": {}, "Invite": {},
	"Join": {}, "Leave": {}, "Like": {}, "Listen": {}, "Move": {}, "Offer": {},
	"Question": {}, "Reject": {}, "Read": {}, "Remove": {}, "TentativeAccept": {},
	"TentativeReject": {}, "Travel": {}, "Undo": {}, "Update": {}, "View": {},
}

// IsActivityType returns true if the given type is an ActivityStreams activity type.
func IsActivityType(t Type) bool {
	_, ok := activityTypes[t]

	return ok
}

// Document defines a JSON document as a map.
type Document map[string]interface{}

// Copy returns a deep copy of the document.
func (doc Document) Copy() Document {
	if doc == nil {
		return nil
	}

	out := make(Document, len(doc))

	for k, v := range doc {
		out[k] = copyValue(v)
	}

	return out
}

// MergeWith merges the document with the given document. Any duplicate fields
// in the given document are ignored.
func (doc Document) MergeWith(other Document) {
	for k, v := range other {
		if _, ok := doc[k]; !ok {
			doc[k] = v
		}
	}
}

func copyValue(v interface{}) interface{} {
	switch value := v.(type) {
	case map[string]interface{}:
		return map[string]interface{}(Document(value).Copy())
	case Document:
		return value.Copy()
	case []interface{}:
		out := make([]interface{}, len(value))

		for i, member := range value {
			out[i] = copyValue(member)
		}

		return out
	default:
		return v
	}
}

// MarshalToDoc marshals the given object to a Document.
func MarshalToDoc(obj interface{}) (Document, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}

	return UnmarshalToDoc(b)
}

// UnmarshalToDoc unmarshals the given bytes to a Document.
func UnmarshalToDoc(raw []byte) (Document, error) {
	var doc Document

	err := json.Unmarshal(raw, &doc)
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// MustUnmarshalToDoc unmarshals the given bytes to a Document.
// If an error occurs then the function panics.
func MustUnmarshalToDoc(raw []byte) Document {
	doc, err := UnmarshalToDoc(raw)
	if err != nil {
		panic(err)
	}

	return doc
}
