package models

import "slices"

// TokenPair bundles a short-lived access token and the refresh token of the
// identity's current session.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Identity IdentitySummary `json:"identity"`
	TokenPair
}

// Principal is the authenticated identity attached to a request after its
// access token was verified.
type Principal struct {
	ID    int64    `json:"id"`
	Roles []string `json:"roles"`
}

// HasRole reports whether the principal carries role.
func (p *Principal) HasRole(role string) bool {
	return p != nil && slices.Contains(p.Roles, role)
}
