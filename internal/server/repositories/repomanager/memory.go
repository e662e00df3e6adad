package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/blacklist"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/redis/go-redis/v9"
)

// InMemoryRepositoryManager hands out the same process-local repositories
// regardless of the DBTX argument. Pair it with dbx.SerialRunner.
type InMemoryRepositoryManager struct {
	users     *users.MemoryRepository
	refresh   *refreshtokens.MemoryRepository
	blacklist blacklist.Repository
	sessions  sessions.Repository
}

func NewInMemoryRepositoryManager(rdb redis.UniversalClient) RepositoryManager {
	m := &InMemoryRepositoryManager{
		users:   users.NewMemoryRepository(),
		refresh: refreshtokens.NewMemoryRepository(),
	}
	if rdb != nil {
		m.blacklist = blacklist.NewRedisRepository(rdb)
		m.sessions = sessions.NewRedisRepository(rdb)
	} else {
		m.blacklist = blacklist.NewMemoryRepository()
		m.sessions = sessions.NewMemoryRepository()
	}
	return m
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.users }

func (m *InMemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.refresh
}

func (m *InMemoryRepositoryManager) Blacklist(dbx.DBTX) blacklist.Repository { return m.blacklist }

func (m *InMemoryRepositoryManager) Sessions(dbx.DBTX) sessions.Repository { return m.sessions }
