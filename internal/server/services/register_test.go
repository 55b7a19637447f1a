package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/petauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)

	identity := f.register(t, " Bob@Example.com", "pw123")
	assert.Equal(t, int64(1), identity.ID)
	assert.Equal(t, "bob@example.com", identity.Email)
	assert.Equal(t, "Test User", identity.DisplayName)
	assert.NotEqual(t, "pw123", identity.PasswordHash)
	assert.True(t, identity.HasRole(common.RoleUser))
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRegister_EmailTaken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "pw123")

	_, err := f.svc.Register(context.Background(), "ALICE@example.com", "other", "Alice 2")
	assert.ErrorIs(t, err, common.ErrEmailTaken)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRegister_RaceSettledByConstraint(t *testing.T) {
	f := newFixture(t)
	f.ids.createErr = common.ErrEmailTaken

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Register(context.Background(), "alice@example.com", "pw123", "Alice")
	assert.ErrorIs(t, err, common.ErrEmailTaken)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRegister_BeginFails(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	_, err := f.svc.Register(context.Background(), "alice@example.com", "pw123", "Alice")
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), "  ", "pw123", "x")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = f.svc.Register(context.Background(), "a@example.com", "", "x")
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestRegisterWithRoles(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	admin, err := f.svc.RegisterWithRoles(context.Background(), "root@example.com", "pw123", "Root",
		[]string{common.RoleUser, common.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, admin.HasRole(common.RoleAdmin))

	res, err := f.svc.Login(context.Background(), "root@example.com", "pw123")
	require.NoError(t, err)
	assert.Equal(t, []string{common.RoleUser, common.RoleAdmin}, f.codec.Verify(res.AccessToken).Claims.Roles)
}

func TestCheckEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "pw123")

	assert.ErrorIs(t, f.svc.CheckEmail(context.Background(), "alice@example.com"), common.ErrEmailTaken)
	assert.NoError(t, f.svc.CheckEmail(context.Background(), "bob@example.com"))

	f.ids.existsErr = common.Unavailable("check email", errConnReset)
	assert.ErrorIs(t, f.svc.CheckEmail(context.Background(), "bob@example.com"), common.ErrStoreUnavailable)
}

func TestIdentity(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice@example.com", "pw123")

	got, err := f.svc.Identity(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)

	_, err = f.svc.Identity(context.Background(), 999)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRegister_PasswordTooLongIsValidation(t *testing.T) {
	f := newFixture(t)

	long := strings.Repeat("p", MaxPasswordBytes+1)
	_, err := f.svc.RegisterWithRoles(context.Background(), "ops@example.com", long, "Ops", []string{common.RoleAdmin})
	assert.ErrorIs(t, err, common.ErrorValidation)

	// multi-byte runes count by byte
	_, err = f.svc.Register(context.Background(), "ops@example.com", strings.Repeat("é", 37), "Ops")
	assert.ErrorIs(t, err, common.ErrorValidation)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRegister_PasswordAtLimit(t *testing.T) {
	f := newFixture(t)

	identity := f.register(t, "ops@example.com", strings.Repeat("p", MaxPasswordBytes))
	assert.Equal(t, "ops@example.com", identity.Email)
}
