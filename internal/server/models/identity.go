// Package models defines the server-side data shapes of petauth: persisted
// identities and refresh records, and the transient values handed between
// services and transports.
package models

import (
	"slices"
	"strings"
	"time"
)

// Identity is a registered account. It is immutable once created; roles
// are assigned at registration time only.
type Identity struct {
	ID           int64
	Email        string
	PasswordHash string
	DisplayName  string
	Roles        []string
	CreatedAt    time.Time
}

// HasRole reports whether the identity was granted role.
func (i *Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// JoinRoles renders roles for the comma-separated storage column.
func JoinRoles(roles []string) string {
	return strings.Join(roles, ",")
}

// SplitRoles parses the comma-separated storage column, dropping blanks.
func SplitRoles(column string) []string {
	roles := make([]string, 0, 2)
	for _, r := range strings.Split(column, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// IdentitySummary is the part of an identity that is safe to return to a
// client.
type IdentitySummary struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Roles       []string `json:"roles"`
}

// Summary strips the password hash.
func (i *Identity) Summary() IdentitySummary {
	return IdentitySummary{
		ID:          i.ID,
		Email:       i.Email,
		DisplayName: i.DisplayName,
		Roles:       slices.Clone(i.Roles),
	}
}
