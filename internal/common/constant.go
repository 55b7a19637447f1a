// Package common contains shared constants and sentinel errors used across
// petauth components.
package common

// AuthorizationHeaderName is the HTTP header (and lower-cased gRPC metadata
// key) carrying the bearer access token. Responses that reissue an access
// token echo it back under the same name.
const AuthorizationHeaderName = "Authorization"

// RefreshTokenHeaderName carries the caller's refresh token so the request
// gate can transparently renew an expired access token.
const RefreshTokenHeaderName = "X-Refresh-Token"

// BearerPrefix is the scheme marker in front of every access token.
const BearerPrefix = "Bearer "

// RoleUser is granted to every identity at registration.
const RoleUser = "ROLE_USER"

// RoleAdmin guards the administrative routes.
const RoleAdmin = "ROLE_ADMIN"
