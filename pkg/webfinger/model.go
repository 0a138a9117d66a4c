/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package webfinger implements actor discovery per RFC 7033: an acct: or IRI
// resource is resolved to a JSON Resource Descriptor that links to the actor
// document.
package webfinger

// JRD is a JSON Resource Descriptor.
type JRD struct {
	Subject string   `json:"subject"`
	Aliases []string `json:"aliases,omitempty"`
	Links   []Link   `json:"links"`
}

// Link is a link in a JSON Resource Descriptor.
type Link struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href"`
}
