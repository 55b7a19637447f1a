package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/petauth/internal/common"
	"github.com/dmitrijs2005/petauth/internal/server/models"
	"github.com/dmitrijs2005/petauth/internal/server/repositories/repomanager"
)

// PasswordEncoder hashes passwords and compares them in constant time.
type PasswordEncoder interface {
	Encode(password string) (string, error)
	Matches(hash, password string) bool
}

const dummyPassword = "petauth-dummy-password"

// CredentialVerifier checks an email and password pair against the stored
// hash.
type CredentialVerifier struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	encoder     PasswordEncoder
	policy      storePolicy
	dummyHash   string
}

// NewCredentialVerifier hashes the dummy password up front; it fails when
// the encoder cannot produce a hash.
func NewCredentialVerifier(db *sql.DB, m repomanager.RepositoryManager, encoder PasswordEncoder, policy storePolicy) (*CredentialVerifier, error) {
	dummyHash, err := encoder.Encode(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("credential verifier: dummy hash: %w", err)
	}
	return &CredentialVerifier{db: db, repomanager: m, encoder: encoder, policy: policy, dummyHash: dummyHash}, nil
}

// Verify returns the identity owning email when password matches. Unknown
// emails and wrong passwords both yield common.ErrBadCredentials, and an
// unknown email still pays for one hash comparison.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*models.Identity, error) {
	repo := v.repomanager.Identities(v.db)

	identity, err := storeCall(ctx, v.policy, func(ctx context.Context) (*models.Identity, error) {
		return repo.GetByEmail(ctx, NormalizeEmail(email))
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			v.encoder.Matches(v.dummyHash, password)
			return nil, common.ErrBadCredentials
		}
		return nil, err
	}

	if !v.encoder.Matches(identity.PasswordHash, password) {
		return nil, common.ErrBadCredentials
	}
	return identity, nil
}

// NormalizeEmail trims and lower-cases an address so lookups and the
// uniqueness constraint agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
