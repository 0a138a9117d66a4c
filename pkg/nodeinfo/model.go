/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package nodeinfo

// Version is a NodeInfo schema version.
type Version = string

// Supported NodeInfo schema versions.
const (
	// V2_0 is NodeInfo schema version 2.0.
	V2_0 Version = "2.0"
	// V2_1 is NodeInfo schema version 2.1.
	V2_1 Version = "2.1"
)

const (
	softwareName       = "weft"
	softwareRepository = "https://github.com/weft-social/weft"

	activityPubProtocol = "activitypub"
)

// SoftwareVersion is the version of the server software, set at build time.
var SoftwareVersion = "latest" //nolint:gochecknoglobals

// NodeInfo provides standard metadata about a federated server.
type NodeInfo struct {
	Version           Version                `json:"version"`
	Software          Software               `json:"software"`
	Protocols         []string               `json:"protocols"`
	Services          Services               `json:"services"`
	OpenRegistrations bool                   `json:"openRegistrations"`
	Usage             Usage                  `json:"usage"`
	Metadata          map[string]interface{} `json:"metadata"`
}

// Software describes the server software.
type Software struct {
	Name    string `json:"name"`
	Version string `json:"version"`

	// Repository is only included in schema version 2.1.
	Repository string `json:"repository,omitempty"`
}

// Services describes the third-party services this server connects to.
type Services struct {
	Inbound  []string `json:"inbound"`
	Outbound []string `json:"outbound"`
}

// Usage holds server usage statistics.
type Usage struct {
	Users      Users `json:"users"`
	LocalPosts int   `json:"localPosts"`
}

// Users holds user statistics.
type Users struct {
	Total int `json:"total"`
}
