// Package auth issues and verifies access tokens and carries the
// authenticated principal through a request context.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/petauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the payload of an access token. The subject is the
// decimal identity id.
type AccessClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *AccessClaims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// Status is the outcome of verifying an access token.
type Status int

const (
	// StatusInvalid covers malformed tokens, bad signatures, wrong algorithm
	// or issuer.
	StatusInvalid Status = iota
	// StatusValid means the signature matches and the token is live.
	StatusValid
	// StatusExpired means the signature matches but exp has passed. Claims
	// are still populated.
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Verification is the tagged result of TokenCodec.Verify.
type Verification struct {
	Status Status
	Claims *AccessClaims
	UserID int64
}

// Err maps the status onto the common error taxonomy; nil when valid.
func (v Verification) Err() error {
	switch v.Status {
	case StatusValid:
		return nil
	case StatusExpired:
		return common.ErrTokenExpired
	default:
		return common.ErrSignatureInvalid
	}
}

// CodecOption customizes a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock replaces time.Now, for deterministic tests.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) { c.now = now }
}

// TokenCodec signs and verifies HS256 access tokens with a key fixed at
// construction. It holds no mutable state and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenCodec builds a codec for secret. An empty issuer disables the iss
// check.
func NewTokenCodec(secret []byte, issuer string, opts ...CodecOption) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token codec: empty secret key")
	}

	c := &TokenCodec{
		secret: secret,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(issuer))
	}
	c.parser = jwt.NewParser(parserOpts...)

	return c, nil
}

// Sign issues a bearer-prefixed access token for the identity.
func (c *TokenCodec) Sign(userID int64, roles []string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("token codec: non-positive ttl %s", ttl)
	}

	now := c.now()
	claims := AccessClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token codec: sign: %w", err)
	}

	return FormatBearer(signed), nil
}

// Verify checks token, with or without the bearer prefix. An expired token
// is reported as StatusExpired only when its signature is intact.
//
// Expiry is inclusive at one-second resolution: exp is stored in whole
// seconds and a token is expired once now >= exp, so it expires up to a
// second earlier than a strict now > issuedAt+ttl comparison would.
func (c *TokenCodec) Verify(token string) Verification {
	token = strings.TrimSpace(strings.TrimPrefix(token, common.BearerPrefix))
	if token == "" {
		return Verification{Status: StatusInvalid}
	}

	claims := &AccessClaims{}
	_, err := c.parser.ParseWithClaims(token, claims, c.key)

	status := StatusValid
	if err != nil {
		if !onlyExpired(err) {
			return Verification{Status: StatusInvalid}
		}
		status = StatusExpired
	}

	userID, err := claims.UserID()
	if err != nil {
		return Verification{Status: StatusInvalid}
	}

	return Verification{Status: status, Claims: claims, UserID: userID}
}

func (c *TokenCodec) key(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return c.secret, nil
}

// onlyExpired is true when exp is the sole failed check. jwt joins all
// claim failures, so an expired token with a foreign issuer stays invalid.
func onlyExpired(err error) bool {
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return false
	}
	for _, other := range []error{
		jwt.ErrTokenSignatureInvalid,
		jwt.ErrTokenMalformed,
		jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenUsedBeforeIssued,
	} {
		if errors.Is(err, other) {
			return false
		}
	}
	return true
}

// FormatBearer prefixes token with the bearer scheme marker.
func FormatBearer(token string) string {
	return common.BearerPrefix + token
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, common.BearerPrefix)
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
