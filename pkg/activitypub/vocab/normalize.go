/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vocab

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDocument indicates that a document could not be normalized.
var ErrInvalidDocument = errors.New("invalid document")

// scalarProperties are properties that remain scalar strings in the normalized
// (internal) shape. Every other property is coerced to an ordered list so that
// storage and indexing are uniform.
func isScalarProperty(property string) bool {
	return property == PropertyID || property == PropertyType
}

// Normalize converts a document into the internal canonical shape: '@context'
// is stripped and every property other than 'id' and 'type' is coerced to an
// ordered list. Embedded objects (nested maps containing 'id' or 'type') are
// normalized recursively. Language maps and typed values are preserved as-is.
// The document must have a 'type'.
func Normalize(doc Document) (Document, error) {
	out, err := normalize(doc)
	if err != nil {
		return nil, err
	}

	if _, ok := out[PropertyType].(string); !ok {
		return nil, fmt.Errorf("%w: no type specified", ErrInvalidDocument)
	}

	return out, nil
}

// NormalizeActivity normalizes the given document and additionally requires a
// non-empty 'actor'.
func NormalizeActivity(doc Document) (*Activity, error) {
	normalized, err := Normalize(doc)
	if err != nil {
		return nil, err
	}

	activity := NewActivity(normalized)

	if len(activity.Actor()) == 0 {
		return nil, fmt.Errorf("%w: no actor specified", ErrInvalidDocument)
	}

	return activity, nil
}

func normalize(doc Document) (Document, error) {
	out := make(Document, len(doc))

	for property, value := range doc {
		switch {
		case property == PropertyContext:
			// The context is implicit in the internal shape.
		case isScalarProperty(property):
			s, err := toScalarString(property, value)
			if err != nil {
				return nil, err
			}

			out[property] = s
		case property == PropertyMeta:
			meta, ok := asDocument(value)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be an object", ErrInvalidDocument, PropertyMeta)
			}

			normalizedMeta, err := normalizeMeta(meta)
			if err != nil {
				return nil, err
			}

			out[property] = map[string]interface{}(normalizedMeta)
		default:
			list, err := toNormalizedList(value)
			if err != nil {
				return nil, fmt.Errorf("normalize property [%s]: %w", property, err)
			}

			out[property] = list
		}
	}

	return out, nil
}

func normalizeMeta(meta Document) (Document, error) {
	out := make(Document, len(meta))

	for k, v := range meta {
		if k == MetaPrivateKey {
			out[k] = v

			continue
		}

		list, err := toNormalizedList(v)
		if err != nil {
			return nil, fmt.Errorf("normalize metadata [%s]: %w", k, err)
		}

		out[k] = list
	}

	return out, nil
}

func toNormalizedList(value interface{}) ([]interface{}, error) {
	var members []interface{}

	if list, ok := value.([]interface{}); ok {
		members = list
	} else {
		members = []interface{}{value}
	}

	out := make([]interface{}, len(members))

	for i, member := range members {
		normalized, err := normalizeMember(member)
		if err != nil {
			return nil, err
		}

		out[i] = normalized
	}

	return out, nil
}

func normalizeMember(member interface{}) (interface{}, error) {
	embedded, ok := asDocument(member)
	if !ok {
		return member, nil
	}

	// Only maps that identify an object are normalized recursively. Language maps
	// and typed values keep their shape.
	_, hasID := embedded[PropertyID]
	_, hasType := embedded[PropertyType]

	if !hasID && !hasType {
		return member, nil
	}

	normalized, err := normalize(embedded)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}(normalized), nil
}

func toScalarString(property string, value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []interface{}:
		if len(v) == 0 {
			return "", fmt.Errorf("%w: empty %s", ErrInvalidDocument, property)
		}

		s, ok := v[0].(string)
		if !ok {
			return "", fmt.Errorf("%w: %s must be a string", ErrInvalidDocument, property)
		}

		return s, nil
	default:
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidDocument, property)
	}
}

// Compact converts a document from the internal canonical shape to the external
// (federation) shape: single-element lists are unwrapped to scalars, internal
// metadata and all underscore-prefixed properties are dropped, and 'bto'/'bcc'
// are stripped. The ActivityStreams '@context' is added at the top level.
func Compact(doc Document) Document {
	out := compact(doc, true)

	out[PropertyContext] = ContextActivityStreams

	return out
}

func compact(doc Document, topLevel bool) Document {
	out := make(Document, len(doc))

	for property, value := range doc {
		if strings.HasPrefix(property, "_") ||
			property == PropertyBto || property == PropertyBcc {
			continue
		}

		out[property] = compactValue(value)
	}

	if !topLevel {
		delete(out, PropertyContext)
	}

	return out
}

func compactValue(value interface{}) interface{} {
	switch v := value.(type) {
	case []interface{}:
		if len(v) == 1 {
			return compactValue(v[0])
		}

		out := make([]interface{}, len(v))

		for i, member := range v {
			out[i] = compactValue(member)
		}

		return out
	case map[string]interface{}:
		return map[string]interface{}(compact(v, false))
	case Document:
		return map[string]interface{}(compact(v, false))
	default:
		return value
	}
}

func asDocument(value interface{}) (Document, bool) {
	switch v := value.(type) {
	case map[string]interface{}:
		return v, true
	case Document:
		return v, true
	default:
		return nil, false
	}
}
