package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/petauth/internal/common"
	"github.com/dmitrijs2005/petauth/internal/dbx"
	"github.com/dmitrijs2005/petauth/internal/logging"
	"github.com/dmitrijs2005/petauth/internal/server/auth"
	"github.com/dmitrijs2005/petauth/internal/server/config"
	"github.com/dmitrijs2005/petauth/internal/server/models"
	"github.com/dmitrijs2005/petauth/internal/server/repositories/identities"
	"github.com/dmitrijs2005/petauth/internal/server/repositories/refreshtokens"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- clock ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- identities ---

type fakeIdentities struct {
	mu      sync.Mutex
	byEmail map[string]*models.Identity
	nextID  int64

	createErr error
	existsErr error
}

func newFakeIdentities() *fakeIdentities {
	return &fakeIdentities{byEmail: map[string]*models.Identity{}, nextID: 1}
}

func (f *fakeIdentities) Create(_ context.Context, i *models.Identity) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byEmail[i.Email]; ok {
		return nil, common.ErrEmailTaken
	}
	i.ID = f.nextID
	f.nextID++
	stored := *i
	f.byEmail[i.Email] = &stored
	return i, nil
}

func (f *fakeIdentities) GetByEmail(_ context.Context, email string) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *i
	return &c, nil
}

func (f *fakeIdentities) GetByID(_ context.Context, id int64) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, i := range f.byEmail {
		if i.ID == id {
			c := *i
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeIdentities) ExistsByEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.byEmail[email]
	return ok, nil
}

// --- refresh store that can fail ---

type flakyStore struct {
	*refreshtokens.MemoryStore

	mu       sync.Mutex
	failGets int
	failPuts int
	gets     int
	puts     int
}

var errConnReset = errors.New("connection reset")

func (s *flakyStore) Get(ctx context.Context, id int64) (*models.RefreshRecord, error) {
	s.mu.Lock()
	s.gets++
	fail := s.failGets > 0
	if fail {
		s.failGets--
	}
	s.mu.Unlock()
	if fail {
		return nil, common.Unavailable("get refresh token", errConnReset)
	}
	return s.MemoryStore.Get(ctx, id)
}

func (s *flakyStore) Put(ctx context.Context, id int64, token string, exp time.Time) error {
	s.mu.Lock()
	s.puts++
	fail := s.failPuts > 0
	if fail {
		s.failPuts--
	}
	s.mu.Unlock()
	if fail {
		return common.Unavailable("put refresh token", errConnReset)
	}
	return s.MemoryStore.Put(ctx, id, token, exp)
}

// --- repository manager ---

type fakeRepoManager struct {
	ids *fakeIdentities
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Identities(dbx.DBTX) identities.Repository { return m.ids }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Store { return nil }

// --- fixture ---

type fixture struct {
	svc   *AuthService
	codec *auth.TokenCodec
	clock *fakeClock
	ids   *fakeIdentities
	store *flakyStore
	db    *sql.DB
	mock  sqlmock.Sqlmock
}

func testConfig() *config.Config {
	return &config.Config{
		AccessTokenTTL:        15 * time.Minute,
		RefreshTokenTTL:       14 * 24 * time.Hour,
		RefreshRenewThreshold: 3 * 24 * time.Hour,
		StoreTimeout:          time.Second,
		StoreRetryBackoff:     time.Millisecond,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := newFakeClock()
	codec, err := auth.NewTokenCodec([]byte("test-secret"), "petauth-test", auth.WithClock(clock.Now))
	require.NoError(t, err)

	ids := newFakeIdentities()
	store := &flakyStore{MemoryStore: refreshtokens.NewMemoryStore()}

	svc, err := NewAuthService(db, &fakeRepoManager{ids: ids}, store, codec,
		auth.NewBcryptEncoder(bcrypt.MinCost), testConfig(), logging.Nop{}, WithClock(clock.Now))
	require.NoError(t, err)

	return &fixture{svc: svc, codec: codec, clock: clock, ids: ids, store: store, db: db, mock: mock}
}

// register creates an identity through the service, satisfying the
// transaction expectations on the mock.
func (f *fixture) register(t *testing.T, email, password string) *models.Identity {
	t.Helper()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	identity, err := f.svc.Register(context.Background(), email, password, "Test User")
	require.NoError(t, err)
	return identity
}
