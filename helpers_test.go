package authcore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Afolstee/authcore/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

/*
====================================
SHARED TEST FIXTURES
====================================
*/

type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]AccountRecord
	byIdent  map[string]string

	// transientFailures makes identifier lookups fail that many times
	// before succeeding, to exercise the retry path.
	transientFailures int

	identifierErr     error
	idErr             error
	createErr         error
	updateStatusErr   error
	updatePasswordErr error

	getByIdentifierCalls int
	getByIDCalls         int
	createCalls          int
	updateStatusCalls    int
	updatePasswordCalls  int
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{
		accounts: make(map[string]AccountRecord),
		byIdent:  make(map[string]string),
	}
}

func (m *mockAccountStore) put(rec AccountRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[rec.UserID] = rec
	m.byIdent[rec.Identifier] = rec.UserID
}

func (m *mockAccountStore) get(userID string) (AccountRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.accounts[userID]
	return rec, ok
}

func (m *mockAccountStore) GetAccountByIdentifier(_ context.Context, identifier string) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByIdentifierCalls++

	if m.transientFailures > 0 {
		m.transientFailures--
		return AccountRecord{}, errTestBackend
	}
	if m.identifierErr != nil {
		return AccountRecord{}, m.identifierErr
	}

	id, ok := m.byIdent[identifier]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return m.accounts[id], nil
}

func (m *mockAccountStore) GetAccountByID(_ context.Context, userID string) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByIDCalls++

	if m.idErr != nil {
		return AccountRecord{}, m.idErr
	}

	rec, ok := m.accounts[userID]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return rec, nil
}

func (m *mockAccountStore) CreateAccount(_ context.Context, input CreateAccountInput) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++

	if m.createErr != nil {
		return AccountRecord{}, m.createErr
	}
	if _, exists := m.byIdent[input.Identifier]; exists {
		return AccountRecord{}, ErrAccountExists
	}

	now := time.Now().Unix()
	rec := AccountRecord{
		UserID:       input.UserID,
		Identifier:   input.Identifier,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		Status:       input.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.accounts[rec.UserID] = rec
	m.byIdent[rec.Identifier] = rec.UserID
	return rec, nil
}

func (m *mockAccountStore) UpdateAccountStatus(_ context.Context, userID string, status AccountStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateStatusCalls++

	if m.updateStatusErr != nil {
		return m.updateStatusErr
	}

	rec, ok := m.accounts[userID]
	if !ok {
		return ErrAccountNotFound
	}
	rec.Status = status
	m.accounts[userID] = rec
	return nil
}

func (m *mockAccountStore) UpdatePasswordHash(_ context.Context, userID string, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updatePasswordCalls++

	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}

	rec, ok := m.accounts[userID]
	if !ok {
		return ErrAccountNotFound
	}
	rec.PasswordHash = newHash
	m.accounts[userID] = rec
	return nil
}

var errTestBackend = &backendTestError{}

type backendTestError struct{}

func (*backendTestError) Error() string { return "simulated backend failure" }

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// testConfig keeps argon2 costs at their floor so the suite stays fast.
func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("test-secret-key")
	cfg.JWT.AccessTTL = 10 * time.Minute
	cfg.JWT.RefreshTTL = time.Hour
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.SaltLength = 16
	cfg.Password.KeyLength = 16
	cfg.Security.MaxLoginAttempts = 5
	cfg.Security.LoginCooldownDuration = time.Minute
	return cfg
}

func newEngineWith(t *testing.T, cfg Config, store AccountStore) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithPermissions([]string{"user.read", "user.write", "admin.panel"}).
		WithRoles(map[string][]string{
			"member": {"user.read"},
			"admin":  {"user.read", "user.write", "admin.panel"},
		}).
		WithAccountStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, mr
}

// newWeakHash produces a hash at floor cost, below what testConfig engines
// with raised parameters would accept without upgrade.
func newWeakHash(secret string) (string, error) {
	h, err := password.New(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		return "", err
	}
	return h.Hash(secret)
}

// seedAccount hashes password with the engine's hasher and stores an active
// account record.
func seedAccount(t *testing.T, engine *Engine, store *mockAccountStore, userID, identifier, password, role string) {
	t.Helper()

	hash, err := engine.hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	store.put(AccountRecord{
		UserID:       userID,
		Identifier:   identifier,
		PasswordHash: hash,
		Role:         role,
		Status:       AccountActive,
	})
}
