/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vocab

import (
	"time"
)

// Object wraps a normalized document and provides typed access to its properties.
type Object struct {
	doc Document
}

// NewObject returns an Object backed by the given normalized document.
func NewObject(doc Document) *Object {
	return &Object{doc: doc}
}

// Doc returns the underlying document.
func (o *Object) Doc() Document {
	return o.doc
}

// ID returns the object's IRI or an empty string if the object has no ID.
func (o *Object) ID() string {
	id, _ := o.doc[PropertyID].(string)

	return id
}

// SetID sets the object's IRI.
func (o *Object) SetID(id string) {
	o.doc[PropertyID] = id
}

// Type returns the object's type or an empty string if the object has no type.
func (o *Object) Type() string {
	t, _ := o.doc[PropertyType].(string)

	return t
}

// SetType sets the object's type.
func (o *Object) SetType(t Type) {
	o.doc[PropertyType] = t
}

// IsActivity returns true if the object's type is an activity type.
func (o *Object) IsActivity() bool {
	return IsActivityType(o.Type())
}

// Values returns the members of the given list-valued property.
func (o *Object) Values(property string) []interface{} {
	list, _ := o.doc[property].([]interface{})

	return list
}

// Strings returns the IRIs in the given property. A string member contributes
// itself; an embedded object contributes its 'id'.
func (o *Object) Strings(property string) []string {
	var out []string

	for _, member := range o.Values(property) {
		switch v := member.(type) {
		case string:
			out = append(out, v)
		case map[string]interface{}:
			if id, ok := v[PropertyID].(string); ok {
				out = append(out, id)
			}
		}
	}

	return out
}

// FirstString returns the first IRI in the given property or an empty string.
func (o *Object) FirstString(property string) string {
	values := o.Strings(property)
	if len(values) == 0 {
		return ""
	}

	return values[0]
}

// SetProperty sets the given property to a list containing the given values.
func (o *Object) SetProperty(property string, values ...interface{}) {
	o.doc[property] = values
}

// DeleteProperty removes the given property from the document.
func (o *Object) DeleteProperty(property string) {
	delete(o.doc, property)
}

// AttributedTo returns the IRIs of the actors that own this object.
func (o *Object) AttributedTo() []string {
	return o.Strings(PropertyAttributedTo)
}

// Published returns the object's 'published' timestamp or the zero time.
func (o *Object) Published() time.Time {
	return o.timeValue(PropertyPublished)
}

// SetPublished sets the object's 'published' timestamp.
func (o *Object) SetPublished(t time.Time) {
	o.SetProperty(PropertyPublished, t.UTC().Format(time.RFC3339))
}

func (o *Object) timeValue(property string) time.Time {
	s := o.FirstString(property)
	if s == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}

	return t
}

// Meta returns the object's internal metadata, creating it if necessary.
func (o *Object) Meta() Document {
	if meta, ok := asDocument(o.doc[PropertyMeta]); ok {
		return meta
	}

	meta := map[string]interface{}{}

	o.doc[PropertyMeta] = meta

	return meta
}

// Collections returns the IRIs of the collections that this record belongs to.
func (o *Object) Collections() []string {
	meta, ok := asDocument(o.doc[PropertyMeta])
	if !ok {
		return nil
	}

	list, _ := meta[MetaCollection].([]interface{})

	var out []string

	for _, member := range list {
		if iri, ok := member.(string); ok {
			out = append(out, iri)
		}
	}

	return out
}

// AddCollection adds the given collection IRIs to the record's metadata.
// IRIs that are already present are ignored.
func (o *Object) AddCollection(iris ...string) {
	existing := o.Collections()

	meta := o.Meta()

	list, _ := meta[MetaCollection].([]interface{})

	for _, iri := range iris {
		if !containsString(existing, iri) {
			list = append(list, iri)
			existing = append(existing, iri)
		}
	}

	meta[MetaCollection] = list
}

// RemoveCollection removes the given collection IRI from the record's metadata.
func (o *Object) RemoveCollection(iri string) {
	meta, ok := asDocument(o.doc[PropertyMeta])
	if !ok {
		return
	}

	list, _ := meta[MetaCollection].([]interface{})

	var out []interface{}

	for _, member := range list {
		if member != iri {
			out = append(out, member)
		}
	}

	meta[MetaCollection] = out
}

// PrivateKeyPem returns the PEM-encoded private key of a local actor, or an
// empty string if the actor is not local. The private key lives in internal
// metadata and is never included in a federated payload.
func (o *Object) PrivateKeyPem() string {
	meta, ok := asDocument(o.doc[PropertyMeta])
	if !ok {
		return ""
	}

	pem, _ := meta[MetaPrivateKey].(string)

	return pem
}

// SetPrivateKeyPem sets the PEM-encoded private key of a local actor.
func (o *Object) SetPrivateKeyPem(pem string) {
	o.Meta()[MetaPrivateKey] = pem
}

func containsString(list []string, s string) bool {
	for _, member := range list {
		if member == s {
			return true
		}
	}

	return false
}
