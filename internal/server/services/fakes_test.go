package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/davkeeper/internal/common"
	"github.com/dmitrijs2005/davkeeper/internal/cryptox"
	"github.com/dmitrijs2005/davkeeper/internal/dbx"
	"github.com/dmitrijs2005/davkeeper/internal/logging"
	"github.com/dmitrijs2005/davkeeper/internal/server/config"
	"github.com/dmitrijs2005/davkeeper/internal/server/models"
	"github.com/dmitrijs2005/davkeeper/internal/server/repositories/appsessions"
	"github.com/dmitrijs2005/davkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/davkeeper/internal/server/sessions"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// memStore is an in-memory credential store shared by the fake repositories.
// Every method takes the lock, so conditional writes are atomic.
type memStore struct {
	mu    sync.Mutex
	users map[string]models.User
	apps  map[string]models.AppSession
	err   error
}

func newMemStore() *memStore {
	return &memStore{users: map[string]models.User{}, apps: map[string]models.AppSession{}}
}

type memUsers struct{ s *memStore }

func (r memUsers) List(context.Context) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return nil, r.s.err
	}
	out := make([]models.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })
	return out, nil
}

func (r memUsers) GetByLogin(_ context.Context, login string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return nil, r.s.err
	}
	u, ok := r.s.users[login]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r memUsers) CreateIfAbsent(_ context.Context, u *models.User) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return false, r.s.err
	}
	if _, ok := r.s.users[u.Login]; ok {
		return false, nil
	}
	r.s.users[u.Login] = *u
	return true, nil
}

func (r memUsers) Update(_ context.Context, login string, c models.UserChanges) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return r.s.err
	}
	u, ok := r.s.users[login]
	if !ok {
		return nil
	}
	if c.PasswordHash != nil {
		u.PasswordHash = *c.PasswordHash
	}
	if c.QuotaBytes != nil {
		u.QuotaBytes = *c.QuotaBytes
	}
	if c.IsAdmin != nil {
		u.IsAdmin = *c.IsAdmin
	}
	r.s.users[login] = u
	return nil
}

type memApps struct{ s *memStore }

func (r memApps) CreateIfAbsent(_ context.Context, a *models.AppSession) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return false, r.s.err
	}
	if _, ok := r.s.apps[a.Token]; ok {
		return false, nil
	}
	r.s.apps[a.Token] = *a
	return true, nil
}

func (r memApps) FindByToken(_ context.Context, token string) (*models.AppSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return nil, r.s.err
	}
	a, ok := r.s.apps[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &a, nil
}

func (r memApps) FindValid(_ context.Context, token string, now time.Time) (*models.AppSession, *models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return nil, nil, r.s.err
	}
	a, ok := r.s.apps[token]
	if !ok || !a.ExpiresAt.After(now) {
		return nil, nil, common.ErrorNotFound
	}
	u, ok := r.s.users[a.OwnerLogin]
	if !ok {
		return nil, nil, common.ErrorNotFound
	}
	return &a, &u, nil
}

func (r memApps) Rotate(_ context.Context, oldToken, newToken, hash string, expires time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return r.s.err
	}
	a, ok := r.s.apps[oldToken]
	if !ok {
		return common.ErrorNotFound
	}
	delete(r.s.apps, oldToken)
	a.Token, a.CredentialHash, a.ExpiresAt = newToken, hash, expires
	r.s.apps[newToken] = a
	return nil
}

func (r memApps) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return 0, r.s.err
	}
	var n int64
	for k, a := range r.s.apps {
		if !a.ExpiresAt.After(now) {
			delete(r.s.apps, k)
			n++
		}
	}
	return n, nil
}

func (r memApps) ListByOwner(_ context.Context, login string) ([]models.AppSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return nil, r.s.err
	}
	var out []models.AppSession
	for _, a := range r.s.apps {
		if a.OwnerLogin == login {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r memApps) Delete(_ context.Context, login, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return r.s.err
	}
	if a, ok := r.s.apps[token]; ok && a.OwnerLogin == login {
		delete(r.s.apps, token)
	}
	return nil
}

type memManager struct{ s *memStore }

func (m memManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m memManager) Users(dbx.DBTX) users.Repository              { return memUsers{m.s} }
func (m memManager) AppSessions(dbx.DBTX) appsessions.Repository  { return memApps{m.s} }

// fakeBackend records provisioned paths and reports a fixed size.
type fakeBackend struct {
	mu      sync.Mutex
	ensured []string
	size    int64
	err     error
}

func (b *fakeBackend) EnsureDir(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.ensured = append(b.ensured, path)
	return nil
}

func (b *fakeBackend) Size(context.Context, string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size, b.err
}

type fixture struct {
	store    *memStore
	backend  *fakeBackend
	sessions *sessions.MemoryStore
	cfg      *config.Config

	users    *UserDirectory
	resolver *SessionResolver
	apps     *AppSessionService
	quota    *QuotaService
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.StoragePath = "/srv/dav/%s/"
	cfg.BaseURL = "https://dav.example.com/"
	return cfg
}

// newFixture wires the services over in-memory fakes. The SQLite handle only
// provides transactions; no statement is ever run on it.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		store:    newMemStore(),
		backend:  &fakeBackend{},
		sessions: sessions.NewMemoryStore(),
		cfg:      testConfig(),
	}
	hasher := &cryptox.Argon2Hasher{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32}
	log := logging.Nop{}
	rm := memManager{f.store}

	f.users = NewUserDirectory(db, rm, f.backend, hasher, f.cfg, log)
	f.resolver = NewSessionResolver(f.users, hasher, log)
	f.apps = NewAppSessionService(db, rm, f.users, f.resolver, hasher, f.cfg, log)
	f.apps.sample = func(int) int { return 1 }
	f.quota = NewQuotaService(f.resolver, f.users, f.backend)
	return f
}

// session returns a fresh anonymous request session.
func (f *fixture) session() *sessions.Session {
	return sessions.New(f.sessions, "", time.Hour)
}

// resume returns the session a follow-up request carrying sess's cookie would get.
func (f *fixture) resume(sess *sessions.Session) *sessions.Session {
	return sessions.New(f.sessions, sess.ID(), time.Hour)
}

func (f *fixture) loggedIn(t *testing.T, login, password string) *sessions.Session {
	t.Helper()
	require.NoError(t, f.users.Create(context.Background(), login, password))
	sess := f.session()
	_, err := f.resolver.Login(context.Background(), sess, login, password)
	require.NoError(t, err)
	return f.resume(sess)
}
