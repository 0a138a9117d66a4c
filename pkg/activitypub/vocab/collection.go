/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vocab

// NewOrderedCollection returns an OrderedCollection summary document in the
// external (compact) shape.
func NewOrderedCollection(id string, totalItems int, first string) Document {
	return Document{
		PropertyContext:    ContextActivityStreams,
		PropertyID:         id,
		PropertyType:       TypeOrderedCollection,
		PropertyTotalItems: totalItems,
		PropertyFirst:      first,
	}
}

// NewOrderedCollectionPage returns an OrderedCollectionPage document in the
// external (compact) shape. 'next' is omitted when empty, indicating the last
// page of the collection.
func NewOrderedCollectionPage(id, partOf string, totalItems int, items []interface{}, next string) Document {
	page := Document{
		PropertyContext:      ContextActivityStreams,
		PropertyID:           id,
		PropertyType:         TypeOrderedCollectionPage,
		PropertyPartOf:       partOf,
		PropertyTotalItems:   totalItems,
		PropertyOrderedItems: items,
	}

	if next != "" {
		page[PropertyNext] = next
	}

	return page
}
