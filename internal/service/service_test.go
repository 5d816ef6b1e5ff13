package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/peerlearn/peerlearn/internal/cache"
	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/internal/idgen"
	"github.com/peerlearn/peerlearn/internal/repository"
	"github.com/peerlearn/peerlearn/pkg/database"
	"github.com/peerlearn/peerlearn/pkg/jwt"
	"github.com/peerlearn/peerlearn/pkg/pubsub"
	"github.com/peerlearn/peerlearn/pkg/storage"
)

type testEnv struct {
	accounts  *repository.MemoryAccountRepository
	profiles  *repository.GormProfileRepository
	chats     *repository.GormChatRepository
	messages  *repository.GormMessageRepository
	groups    *repository.GormGroupRepository
	tokens    *jwt.Manager
	bus       *pubsub.MemoryPubSub
	media     *storage.LocalStorage
	cache     *cache.MemoryProfileCache
	directory DirectoryService
	notifier  *Notifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, domain.AllModels()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	tokens, err := jwt.NewManager("test-secret", 15*time.Minute, time.Hour, "peerlearn", nil)
	require.NoError(t, err)

	media, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	bus := pubsub.NewMemoryPubSub()
	t.Cleanup(func() { _ = bus.Close() })

	profiles := repository.NewGormProfileRepository(db)
	profileCache := cache.NewMemoryProfileCache("profile")

	return &testEnv{
		accounts:  repository.NewMemoryAccountRepository(),
		profiles:  profiles,
		chats:     repository.NewGormChatRepository(db),
		messages:  repository.NewGormMessageRepository(db, idgen.NewULIDGenerator()),
		groups:    repository.NewGormGroupRepository(db),
		tokens:    tokens,
		bus:       bus,
		media:     media,
		cache:     profileCache,
		directory: NewDirectoryService(profiles, profileCache, time.Minute),
		notifier:  NewNotifier(bus, nil),
	}
}

func (e *testEnv) accountService() AccountService {
	return NewAccountService(e.accounts, e.profiles, e.tokens, e.directory, e.media, AccountConfig{BcryptCost: bcrypt.MinCost})
}

func (e *testEnv) onboardingService() OnboardingService {
	return NewOnboardingService(e.accounts, e.profiles, e.directory, nil)
}

func (e *testEnv) chatService() ChatService {
	return NewChatService(e.chats, e.messages, e.profiles, e.directory, e.notifier)
}

func (e *testEnv) groupService() GroupService {
	return NewGroupService(e.groups, e.messages, e.notifier)
}

// newUser creates a profile with a username and returns its id.
func (e *testEnv) newUser(t *testing.T, username string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := e.profiles.Upsert(context.Background(), id, username, nil)
	require.NoError(t, err)
	return id
}

func strPtr(s string) *string {
	return &s
}

// nextEvent waits briefly for one event on ch.
func nextEvent(t *testing.T, ch <-chan *pubsub.Event) *pubsub.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}
