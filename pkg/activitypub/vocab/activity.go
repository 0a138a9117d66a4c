/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vocab

// RecipientProperties are the addressing properties of an activity, in the
// order in which they are expanded into a recipient set.
func RecipientProperties() []string {
	return []string{PropertyTo, PropertyCc, PropertyBto, PropertyBcc, PropertyAudience}
}

// Activity wraps a normalized activity document.
type Activity struct {
	*Object
}

// NewActivity returns an Activity backed by the given normalized document.
func NewActivity(doc Document) *Activity {
	return &Activity{Object: NewObject(doc)}
}

// Actor returns the actor IRIs of the activity.
func (a *Activity) Actor() []string {
	return a.Strings(PropertyActor)
}

// SetActor sets the activity's actor.
func (a *Activity) SetActor(iri string) {
	a.SetProperty(PropertyActor, iri)
}

// ObjectValues returns the raw members of the activity's 'object' property.
// Each member is either an IRI string or an embedded object document.
func (a *Activity) ObjectValues() []interface{} {
	return a.Values(PropertyObject)
}

// ObjectIDs returns the IRI of each member of the activity's 'object' property.
func (a *Activity) ObjectIDs() []string {
	return a.Strings(PropertyObject)
}

// FirstObjectID returns the IRI of the first member of the activity's 'object'
// property, or an empty string.
func (a *Activity) FirstObjectID() string {
	return a.FirstString(PropertyObject)
}

// EmbeddedObject returns the first embedded object in the activity's 'object'
// property, or nil if the first member is a bare IRI.
func (a *Activity) EmbeddedObject() *Object {
	values := a.ObjectValues()
	if len(values) == 0 {
		return nil
	}

	doc, ok := asDocument(values[0])
	if !ok {
		return nil
	}

	return NewObject(doc)
}

// SetEmbeddedObject replaces the activity's 'object' property with a
// single-element list containing the given document.
func (a *Activity) SetEmbeddedObject(doc Document) {
	a.SetProperty(PropertyObject, map[string]interface{}(doc))
}

// Target returns the target IRIs of the activity.
func (a *Activity) Target() []string {
	return a.Strings(PropertyTarget)
}

// FirstTarget returns the first target IRI of the activity or an empty string.
func (a *Activity) FirstTarget() string {
	return a.FirstString(PropertyTarget)
}

// Recipients returns the union of the activity's addressing properties,
// in order, without deduplication.
func (a *Activity) Recipients() []string {
	var out []string

	for _, property := range RecipientProperties() {
		out = append(out, a.Strings(property)...)
	}

	return out
}

// ClearRecipients removes all addressing properties from the activity so that
// it is never federated.
func (a *Activity) ClearRecipients() {
	for _, property := range RecipientProperties() {
		a.DeleteProperty(property)
	}
}

// NewCreateWrapper wraps a bare (non-activity) object document in a synthetic
// 'Create' activity with the same 'to', 'cc' and 'audience' as the object.
func NewCreateWrapper(actorIRI string, object Document) Document {
	wrapper := Document{
		PropertyType:   TypeCreate,
		PropertyActor:  actorIRI,
		PropertyObject: []interface{}{map[string]interface{}(object)},
	}

	for _, property := range []string{PropertyTo, PropertyCc, PropertyAudience} {
		if value, ok := object[property]; ok {
			wrapper[property] = copyValue(value)
		}
	}

	return wrapper
}

// NewTombstone returns a Tombstone document that replaces the given object.
// Only the object's 'id' and 'published' are retained.
func NewTombstone(obj *Object, deleted string) Document {
	tombstone := Document{
		PropertyID:      obj.ID(),
		PropertyType:    TypeTombstone,
		PropertyDeleted: []interface{}{deleted},
		PropertyUpdated: []interface{}{deleted},
	}

	if published, ok := obj.Doc()[PropertyPublished]; ok {
		tombstone[PropertyPublished] = copyValue(published)
	}

	return tombstone
}
