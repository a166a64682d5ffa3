// Package common contains shared constants and the error taxonomy used across
// petmatch components.
package common

// AuthorizationHeader carries the bearer token on inbound API requests.
const AuthorizationHeader = "Authorization"

// BearerScheme is the only accepted authorization scheme.
const BearerScheme = "Bearer"
