// Package services contains server-side business logic: credential
// verification and AuthService, which registers identities, logs them in
// and keeps their sessions alive with refresh tokens.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/petauth/internal/common"
	"github.com/dmitrijs2005/petauth/internal/dbx"
	"github.com/dmitrijs2005/petauth/internal/logging"
	"github.com/dmitrijs2005/petauth/internal/server/auth"
	"github.com/dmitrijs2005/petauth/internal/server/config"
	"github.com/dmitrijs2005/petauth/internal/server/models"
	"github.com/dmitrijs2005/petauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/petauth/internal/server/repositories/repomanager"
)

// refreshTokenBytes gives 256 bits of entropy per refresh token.
const refreshTokenBytes = 32

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// AuthService drives the session of each identity through its refresh
// record: absent (no session), active, or expired.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sessions    refreshtokens.Store
	codec       *auth.TokenCodec
	encoder     PasswordEncoder
	verifier    *CredentialVerifier
	logger      logging.Logger
	policy      storePolicy

	accessTTL      time.Duration
	refreshTTL     time.Duration
	renewThreshold time.Duration
	defaultRoles   []string

	now      func() time.Time
	newToken func() (string, error)
}

// Option customizes an AuthService.
type Option func(*AuthService)

// WithClock replaces time.Now. Pass the same clock to the TokenCodec.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithTokenGenerator replaces the random refresh token source.
func WithTokenGenerator(gen func() (string, error)) Option {
	return func(s *AuthService) { s.newToken = gen }
}

// NewAuthService wires the service. sessions may be any refreshtokens.Store
// backend; identities always live in db.
func NewAuthService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	sessions refreshtokens.Store,
	codec *auth.TokenCodec,
	encoder PasswordEncoder,
	cfg *config.Config,
	logger logging.Logger,
	opts ...Option,
) (*AuthService, error) {
	policy := newStorePolicy(cfg.StoreTimeout, cfg.StoreRetryBackoff)
	verifier, err := NewCredentialVerifier(db, m, encoder, policy)
	if err != nil {
		return nil, err
	}
	s := &AuthService{
		db:             db,
		repomanager:    m,
		sessions:       sessions,
		codec:          codec,
		encoder:        encoder,
		verifier:       verifier,
		logger:         logger.With("module", "auth_service"),
		policy:         policy,
		accessTTL:      cfg.AccessTokenTTL,
		refreshTTL:     cfg.RefreshTokenTTL,
		renewThreshold: cfg.RefreshRenewThreshold,
		defaultRoles:   []string{common.RoleUser},
		now:            time.Now,
		newToken:       func() (string, error) { return common.MakeRandHexString(refreshTokenBytes) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates an identity with the default role. The email is checked
// before hashing; two racing registrations for the same address are settled
// by the unique constraint, which also yields common.ErrEmailTaken.
func (s *AuthService) Register(ctx context.Context, email, password, displayName string) (*models.Identity, error) {
	return s.register(ctx, email, password, displayName, s.defaultRoles)
}

// RegisterWithRoles is Register for operator tooling that needs to grant
// roles other than the default one.
func (s *AuthService) RegisterWithRoles(ctx context.Context, email, password, displayName string, roles []string) (*models.Identity, error) {
	if len(roles) == 0 {
		roles = s.defaultRoles
	}
	return s.register(ctx, email, password, displayName, roles)
}

func (s *AuthService) register(ctx context.Context, email, password, displayName string, roles []string) (*models.Identity, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, common.ErrorValidation
	}
	if len(password) > MaxPasswordBytes {
		return nil, fmt.Errorf("password longer than %d bytes: %w", MaxPasswordBytes, common.ErrorValidation)
	}

	if err := s.CheckEmail(ctx, email); err != nil {
		return nil, err
	}

	hash, err := s.encoder.Encode(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	identity := &models.Identity{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		Roles:        roles,
	}

	var created *models.Identity
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		created, err = s.repomanager.Identities(tx).Create(ctx, identity)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrEmailTaken) || errors.Is(err, common.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, common.Unavailable("register", err)
	}

	s.logger.Info(ctx, "identity registered", "user_id", created.ID)
	return created, nil
}

// CheckEmail returns common.ErrEmailTaken when email is already registered.
func (s *AuthService) CheckEmail(ctx context.Context, email string) error {
	repo := s.repomanager.Identities(s.db)
	exists, err := storeCall(ctx, s.policy, func(ctx context.Context) (bool, error) {
		return repo.ExistsByEmail(ctx, NormalizeEmail(email))
	})
	if err != nil {
		return err
	}
	if exists {
		return common.ErrEmailTaken
	}
	return nil
}

// Identity loads a registered identity by id.
func (s *AuthService) Identity(ctx context.Context, id int64) (*models.Identity, error) {
	repo := s.repomanager.Identities(s.db)
	return storeCall(ctx, s.policy, func(ctx context.Context) (*models.Identity, error) {
		return repo.GetByID(ctx, id)
	})
}

// Login verifies the credentials and opens a fresh session, replacing any
// earlier one for the same identity.
//
// Login is not safe to retry blindly: a retry after a timeout may write a
// second refresh token that supersedes the first. Under the one session per
// identity policy the latest login simply wins.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.LoginResult, error) {
	identity, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		return nil, err
	}

	access, err := s.codec.Sign(identity.ID, identity.Roles, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.putNewRefreshToken(ctx, identity.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "login", "user_id", identity.ID)
	return &models.LoginResult{
		Identity:  identity.Summary(),
		TokenPair: models.TokenPair{AccessToken: access, RefreshToken: refresh},
	}, nil
}

// Refresh exchanges a signature-valid access token (expired or not) and the
// matching refresh token for a new access token.
//
// The refresh token is rotated, with a fresh expiry, only when its remaining
// validity is below the renew threshold; otherwise the same value is
// returned. A presented refresh token that differs from the stored one fails
// with common.ErrRefreshTokenMismatch and leaves the record untouched. An
// expired record is deleted and reported as common.ErrSessionExpired.
func (s *AuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (*models.TokenPair, error) {
	v := s.codec.Verify(accessToken)
	if v.Status == auth.StatusInvalid {
		return nil, common.ErrSignatureInvalid
	}

	rec, err := s.getRecord(ctx, v.UserID)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Token == "" {
		return nil, common.ErrSessionExpired
	}
	if subtle.ConstantTimeCompare([]byte(rec.Token), []byte(refreshToken)) != 1 {
		s.logger.Warn(ctx, "refresh token mismatch", "user_id", v.UserID)
		return nil, common.ErrRefreshTokenMismatch
	}

	now := s.now()
	if !rec.Active(now) {
		if err := s.deleteRecord(ctx, v.UserID); err != nil {
			s.logger.Error(ctx, "delete expired session", "user_id", v.UserID, "error", err)
		}
		return nil, common.ErrSessionExpired
	}

	access, err := s.codec.Sign(v.UserID, v.Claims.Roles, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	next := rec.Token
	if rec.Remaining(now) < s.renewThreshold {
		next, err = s.putNewRefreshToken(ctx, v.UserID)
		if err != nil {
			return nil, err
		}
		s.logger.Debug(ctx, "refresh token rotated", "user_id", v.UserID)
	}

	return &models.TokenPair{AccessToken: access, RefreshToken: next}, nil
}

// Logout ends the session of id. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, id int64) error {
	if err := s.deleteRecord(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "logout", "user_id", id)
	return nil
}

// LookupByAccessToken returns the refresh record of the identity named by a
// signature-valid access token, expired or not. The record is read by
// identity id, never by scanning token values. (nil, nil) means no session.
func (s *AuthService) LookupByAccessToken(ctx context.Context, accessToken string) (*models.RefreshRecord, error) {
	v := s.codec.Verify(accessToken)
	if v.Status == auth.StatusInvalid {
		return nil, common.ErrSignatureInvalid
	}
	return s.getRecord(ctx, v.UserID)
}

func (s *AuthService) putNewRefreshToken(ctx context.Context, id int64) (string, error) {
	token, err := s.newToken()
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	expiresAt := s.now().Add(s.refreshTTL)

	err = storeExec(ctx, s.policy, func(ctx context.Context) error {
		return s.sessions.Put(ctx, id, token, expiresAt)
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *AuthService) getRecord(ctx context.Context, id int64) (*models.RefreshRecord, error) {
	return storeCall(ctx, s.policy, func(ctx context.Context) (*models.RefreshRecord, error) {
		return s.sessions.Get(ctx, id)
	})
}

func (s *AuthService) deleteRecord(ctx context.Context, id int64) error {
	return storeExec(ctx, s.policy, func(ctx context.Context) error {
		return s.sessions.Delete(ctx, id)
	})
}
