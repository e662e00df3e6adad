package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/blacklist"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	now      time.Time
	cfg      *config.Config
	runner   dbx.Runner
	m        repomanager.RepositoryManager
	registry *RevocationRegistry
	sessions *SessionStore
	svc      *UserService
	resolver *IdentityResolver
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return cfg
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	return newFixtureWith(t, cfg, repomanager.NewInMemoryRepositoryManager(nil))
}

func newFixtureWith(t *testing.T, cfg *config.Config, m repomanager.RepositoryManager) *fixture {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}

	f := &fixture{
		now:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		cfg:    cfg,
		runner: dbx.NewSerialRunner(),
		m:      m,
	}
	log := logging.Nop()
	f.registry = NewRevocationRegistry(f.runner, m, log)
	f.sessions = NewSessionStore(f.runner, m, cfg.SessionValidityDuration, log)
	f.svc = NewUserService(f.runner, m, cfg, f.registry, f.sessions, log)
	f.resolver = NewIdentityResolver(f.svc.Verifier(), f.sessions, f.runner, m, log)

	clock := func() time.Time { return f.now }
	f.registry.clock = clock
	f.svc.clock = clock
	f.resolver.clock = clock
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) register(t *testing.T, username, password string) *models.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) login(t *testing.T, login, password string) *AuthResult {
	t.Helper()
	res, err := f.svc.Login(context.Background(), login, password)
	require.NoError(t, err)
	return res
}

func (f *fixture) bearer(t *testing.T, token string) *models.Identity {
	t.Helper()
	id, err := f.resolver.Resolve(context.Background(), Credentials{BearerToken: token})
	require.NoError(t, err)
	require.NotNil(t, id)
	return id
}

// brokenBlacklistManager swaps in a blacklist that always fails.
type brokenBlacklistManager struct {
	repomanager.RepositoryManager
	bl blacklist.Repository
}

func (m *brokenBlacklistManager) Blacklist(dbx.DBTX) blacklist.Repository { return m.bl }

type failingBlacklist struct{ err error }

func (b failingBlacklist) Add(context.Context, *models.BlacklistEntry) error { return b.err }
func (b failingBlacklist) Exists(context.Context, string, time.Time) (bool, error) {
	return false, nil
}
func (b failingBlacklist) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, b.err
}
