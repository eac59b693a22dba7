package wallet

import (
	"context"
	"sync"

	"idem/internal/identity/ports"
	dErrors "idem/pkg/domain-errors"
	"idem/pkg/platform/sentinel"
)

// Manager hands out a lazily-initialized wallet: the factory runs at most
// once, on first Get. Reset forces the next Get to initialize again, which
// tests and credential-store rotation rely on.
type Manager struct {
	mu      sync.Mutex
	factory func(ctx context.Context) (ports.Wallet, error)
	wallet  ports.Wallet
}

func NewManager(factory func(ctx context.Context) (ports.Wallet, error)) *Manager {
	return &Manager{factory: factory}
}

// Get returns the ready wallet, initializing it on first use. Initialization
// failures are not cached; the next Get retries.
func (m *Manager) Get(ctx context.Context) (ports.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.wallet != nil {
		return m.wallet, nil
	}
	if m.factory == nil {
		return nil, dErrors.Wrap(sentinel.ErrInvalidState, dErrors.CodeUnavailable, "wallet is not initialized")
	}

	w, err := m.factory(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "wallet initialization failed")
	}
	m.wallet = w
	return m.wallet, nil
}

// Reset transitions the manager back to uninitialized.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallet = nil
}
