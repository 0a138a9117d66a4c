/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log fields.
const (
	FieldServiceName   = "service"
	FieldActorID       = "actor-id"
	FieldActorName     = "actor-name"
	FieldActivityID    = "activity-id"
	FieldActivityType  = "activity-type"
	FieldObjectID      = "object-id"
	FieldCollectionIRI = "collection"
	FieldTargetIRI     = "target"
	FieldInboxIRI      = "inbox"
	FieldRecipients    = "recipients"
	FieldMessageID     = "message-id"
	FieldTopic         = "topic"
	FieldData          = "data"
	FieldHTTPStatus    = "http-status"
	FieldAttempt       = "attempt"
	FieldBackoff       = "backoff"
	FieldKeyID         = "key-id"
	FieldAddress       = "address"
	FieldSize          = "size"
	FieldExpiration    = "expiration"
	FieldTotalItems    = "total"
	FieldCursor        = "cursor"
	FieldConfig        = "config"
	FieldParameter     = "parameter"
	FieldEndpoint      = "endpoint"
)

// WithServiceName sets the service field.
func WithServiceName(value string) zap.Field {
	return zap.String(FieldServiceName, value)
}

// WithActorIRI sets the actor-id field.
func WithActorIRI(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldActorID, value)
}

// WithActorID sets the actor-id field.
func WithActorID(value string) zap.Field {
	return zap.String(FieldActorID, value)
}

// WithActorName sets the actor-name field.
func WithActorName(value string) zap.Field {
	return zap.String(FieldActorName, value)
}

// WithActivityID sets the activity-id field.
func WithActivityID(value string) zap.Field {
	return zap.String(FieldActivityID, value)
}

// WithActivityType sets the activity-type field.
func WithActivityType(value string) zap.Field {
	return zap.String(FieldActivityType, value)
}

// WithObjectID sets the object-id field.
func WithObjectID(value string) zap.Field {
	return zap.String(FieldObjectID, value)
}

// WithCollectionIRI sets the collection field.
func WithCollectionIRI(value string) zap.Field {
	return zap.String(FieldCollectionIRI, value)
}

// WithTargetIRI sets the target field.
func WithTargetIRI(value string) zap.Field {
	return zap.String(FieldTargetIRI, value)
}

// WithInboxIRI sets the inbox field.
func WithInboxIRI(value fmt.Stringer) zap.Field {
	return zap.Stringer(FieldInboxIRI, value)
}

// WithRecipients sets the recipients field.
func WithRecipients(value []*url.URL) zap.Field {
	return zap.Array(FieldRecipients, urlArrayMarshaller(value))
}

// WithMessageID sets the message-id field.
func WithMessageID(value string) zap.Field {
	return zap.String(FieldMessageID, value)
}

// WithTopic sets the topic field.
func WithTopic(value string) zap.Field {
	return zap.String(FieldTopic, value)
}

// WithData sets the data field.
func WithData(value []byte) zap.Field {
	return zap.String(FieldData, string(value))
}

// WithHTTPStatus sets the http-status field.
func WithHTTPStatus(value int) zap.Field {
	return zap.Int(FieldHTTPStatus, value)
}

// WithAttempt sets the attempt field.
func WithAttempt(value int) zap.Field {
	return zap.Int(FieldAttempt, value)
}

// WithBackoff sets the backoff field.
func WithBackoff(value time.Duration) zap.Field {
	return zap.Duration(FieldBackoff, value)
}

// WithKeyID sets the key-id field.
func WithKeyID(value string) zap.Field {
	return zap.String(FieldKeyID, value)
}

// WithAddress sets the address field.
func WithAddress(value string) zap.Field {
	return zap.String(FieldAddress, value)
}

// WithSize sets the size field.
func WithSize(value int) zap.Field {
	return zap.Int(FieldSize, value)
}

// WithExpiration sets the expiration field.
func WithExpiration(value time.Duration) zap.Field {
	return zap.Duration(FieldExpiration, value)
}

// WithTotalItems sets the total field.
func WithTotalItems(value int) zap.Field {
	return zap.Int(FieldTotalItems, value)
}

// WithCursor sets the cursor field.
func WithCursor(value string) zap.Field {
	return zap.String(FieldCursor, value)
}

// WithConfig sets the config field. The value of the field is encoded as JSON.
func WithConfig(value interface{}) zap.Field {
	return zap.Any(FieldConfig, value)
}

// WithParameter sets the parameter field.
func WithParameter(value string) zap.Field {
	return zap.String(FieldParameter, value)
}

// WithServiceEndpoint sets the endpoint field.
func WithServiceEndpoint(value string) zap.Field {
	return zap.String(FieldEndpoint, value)
}

type urlArrayMarshaller []*url.URL

func (m urlArrayMarshaller) MarshalLogArray(e zapcore.ArrayEncoder) error {
	for _, u := range m {
		e.AppendString(u.String())
	}

	return nil
}
