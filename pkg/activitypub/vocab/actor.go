/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vocab

// Actor-specific accessors on Object. An actor is stored in the same uniform
// shape as any other object; these helpers read the well-known actor properties.

// Inbox returns the actor's inbox IRI.
func (o *Object) Inbox() string {
	return o.FirstString(PropertyInbox)
}

// Outbox returns the actor's outbox IRI.
func (o *Object) Outbox() string {
	return o.FirstString(PropertyOutbox)
}

// Followers returns the IRI of the actor's followers collection.
func (o *Object) Followers() string {
	return o.FirstString(PropertyFollowers)
}

// Following returns the IRI of the actor's following collection.
func (o *Object) Following() string {
	return o.FirstString(PropertyFollowing)
}

// Liked returns the IRI of the actor's liked collection.
func (o *Object) Liked() string {
	return o.FirstString(PropertyLiked)
}

// SharedInbox returns the actor's shared inbox IRI, or an empty string if the
// actor does not advertise one. The 'endpoints' map is not an object and so
// retains its original shape after normalization.
func (o *Object) SharedInbox() string {
	for _, member := range o.Values(PropertyEndpoints) {
		endpoints, ok := asDocument(member)
		if !ok {
			continue
		}

		if sharedInbox, ok := endpoints[PropertySharedInbox].(string); ok {
			return sharedInbox
		}
	}

	return ""
}

// PublicKeyID returns the ID of the actor's public key, or an empty string.
func (o *Object) PublicKeyID() string {
	key := o.publicKey()
	if key == nil {
		return ""
	}

	id, _ := key[PropertyID].(string)

	return id
}

// PublicKeyPem returns the actor's PEM-encoded public key, or an empty string.
func (o *Object) PublicKeyPem() string {
	key := o.publicKey()
	if key == nil {
		return ""
	}

	return NewObject(key).FirstString("publicKeyPem")
}

func (o *Object) publicKey() Document {
	for _, member := range o.Values(PropertyPublicKey) {
		if key, ok := asDocument(member); ok {
			return key
		}
	}

	return nil
}
