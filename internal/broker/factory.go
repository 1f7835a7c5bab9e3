package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/devanshjainms/exitengine/internal/models"
	"github.com/devanshjainms/exitengine/pkg/applog"
	"github.com/devanshjainms/exitengine/pkg/cryptoutil"
)

// Builder constructs an authenticated Client from decrypted credentials.
// Concrete broker packages register a Builder under their name via
// Register, in an init() func, so the factory never imports them
// directly — mirroring database/sql's driver registry.
type Builder func(account *models.BrokerAccount, apiKey, accessToken string) (Client, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Builder{}
)

// Register installs a Builder for a broker name. Panics on duplicate
// registration, matching database/sql.Register's contract.
func Register(name string, build Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name = strings.ToLower(name)
	if _, exists := registry[name]; exists {
		panic("broker: Register called twice for broker " + name)
	}
	registry[name] = build
}

func lookup(name string) (Builder, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[strings.ToLower(name)]
	return b, ok
}

// AccountStore is the subset of the BrokerAccount repository the factory
// needs. Implemented by internal/repository.
type AccountStore interface {
	GetByUserAndBroker(ctx context.Context, userID int64, brokerID string) (*models.BrokerAccount, error)
}

type cacheKey struct {
	userID   int64
	brokerID string
}

type cacheEntry struct {
	client         Client
	tokenExpiresAt *time.Time
}

// Factory constructs and caches broker clients per (userID, brokerID),
// decrypting stored credentials on first use. A single process-wide lock
// guards construction and invalidation only — Client method calls
// themselves are never blocked by this lock.
type Factory struct {
	accounts AccountStore
	cipher   *cryptoutil.CredentialCipher
	log      *applog.Logger

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
}

// NewFactory builds a Factory backed by accounts and cipher.
func NewFactory(accounts AccountStore, cipher *cryptoutil.CredentialCipher, log *applog.Logger) *Factory {
	if log == nil {
		log = applog.L()
	}
	return &Factory{
		accounts: accounts,
		cipher:   cipher,
		log:      log.WithComponent("broker_factory"),
		cache:    make(map[cacheKey]cacheEntry),
	}
}

// GetClient returns a cached or freshly-constructed client for
// (userID, brokerID). Returns nil, nil if no active account with a valid
// token exists — this is not an error, it means the user hasn't linked
// (or has unlinked) that broker.
func (f *Factory) GetClient(ctx context.Context, userID int64, brokerID string) (Client, error) {
	key := cacheKey{userID, brokerID}

	f.mu.Lock()
	if entry, ok := f.cache[key]; ok && tokenStillValid(entry.tokenExpiresAt) {
		f.mu.Unlock()
		return entry.client, nil
	}
	f.mu.Unlock()

	account, err := f.accounts.GetByUserAndBroker(ctx, userID, brokerID)
	if err != nil {
		return nil, err
	}
	if account == nil || !account.IsActive {
		return nil, nil
	}
	if !account.TokenValid(time.Now()) {
		return nil, nil
	}

	apiKey, err := f.cipher.Decrypt(account.APIKey)
	if err != nil {
		return nil, NewError(KindAuth, brokerID, "failed to decrypt api key", err)
	}
	accessToken, err := f.cipher.Decrypt(account.AccessToken)
	if err != nil {
		return nil, NewError(KindAuth, brokerID, "failed to decrypt access token", err)
	}

	build, ok := lookup(brokerID)
	if !ok {
		return nil, fmt.Errorf("broker: no client registered for %q", brokerID)
	}
	client, err := build(account, apiKey, accessToken)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cache[key] = cacheEntry{client: client, tokenExpiresAt: account.TokenExpiresAt}
	f.mu.Unlock()

	f.log.Info("broker client constructed", applog.UserID(userID), applog.Broker(brokerID))
	return client, nil
}

// Invalidate purges the cached client for (userID, brokerID), e.g. after
// credential rotation or a failed-auth disconnect. The next GetClient
// call reconstructs from the repository.
func (f *Factory) Invalidate(userID int64, brokerID string) {
	key := cacheKey{userID, brokerID}
	f.mu.Lock()
	entry, ok := f.cache[key]
	delete(f.cache, key)
	f.mu.Unlock()
	if ok {
		_ = entry.client.Close()
		f.log.Info("broker client invalidated", applog.UserID(userID), applog.Broker(brokerID))
	}
}

func tokenStillValid(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return true
	}
	return expiresAt.After(time.Now())
}
