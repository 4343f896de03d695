package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) AccessSessionKey(accessID string) string {
	return fmt.Sprintf("sess:%s", accessID)
}

func newTestManager(store *mockStore) *Manager {
	return &Manager{
		store: store,
		keyer: store,
		ttl:   time.Hour,
	}
}

func TestManagerEstablishAndRevoke(t *testing.T) {
	store := newMockStore()
	manager := newTestManager(store)

	ctx := context.Background()
	accessID := NewAccessID()
	userID := uuid.New()

	if err := manager.Establish(ctx, accessID, userID); err != nil {
		t.Fatalf("establish: %v", err)
	}
	if stored := store.data[store.AccessSessionKey(accessID)]; stored != userID.String() {
		t.Fatalf("expected stored user %q, got %q", userID, stored)
	}

	ok, err := manager.HasSession(ctx, accessID)
	if err != nil {
		t.Fatalf("has session: %v", err)
	}
	if !ok {
		t.Fatal("expected active session")
	}

	got, err := manager.SessionUser(ctx, accessID)
	if err != nil {
		t.Fatalf("session user: %v", err)
	}
	if got != userID {
		t.Fatalf("expected user %s, got %s", userID, got)
	}

	if err := manager.Revoke(ctx, accessID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err = manager.HasSession(ctx, accessID)
	if err != nil {
		t.Fatalf("has session after revoke: %v", err)
	}
	if ok {
		t.Fatal("expected session gone after revoke")
	}
}

func TestSessionUserMissing(t *testing.T) {
	manager := newTestManager(newMockStore())

	if _, err := manager.SessionUser(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestEstablishValidation(t *testing.T) {
	manager := newTestManager(newMockStore())
	ctx := context.Background()

	if err := manager.Establish(ctx, "", uuid.New()); err == nil {
		t.Fatal("expected blank access id to fail")
	}
	if err := manager.Establish(ctx, NewAccessID(), uuid.Nil); err == nil {
		t.Fatal("expected nil user id to fail")
	}
}
