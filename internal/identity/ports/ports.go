// Package ports defines the collaborator contracts the identity engine
// consumes. The engine depends on these interfaces only; concrete stores and
// wallets live in their own packages.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"idem/internal/identity/models"
	"idem/pkg/platform/audit"
)

// Storage persists identity records. Implementations are read-modify-write
// per call with no optimistic concurrency: two reconciliations racing on the
// same identity can lose an update, last write wins.
type Storage interface {
	// Load returns every stored record.
	Load(ctx context.Context) ([]models.IdentityRecord, error)

	// Save replaces the full record set.
	Save(ctx context.Context, records []models.IdentityRecord) error

	// GetByID returns a single record, or sentinel.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.IdentityRecord, error)

	// Add stores a new record, assigning its id and creation time once.
	Add(ctx context.Context, record models.IdentityRecord) (models.IdentityRecord, error)

	// Update applies a partial update, returning the updated record or
	// sentinel.ErrNotFound.
	Update(ctx context.Context, id string, update models.IdentityUpdate) (*models.IdentityRecord, error)

	// Delete removes a record, reporting whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
}

// Wallet holds credential custody: storage, retrieval, and presentation
// construction. Cryptographic correctness is the wallet's responsibility, not
// the engine's.
type Wallet interface {
	// GetDID returns the wallet holder's decentralized identifier.
	GetDID(ctx context.Context) (string, error)

	// StoreCredential puts a credential into custody.
	StoreCredential(ctx context.Context, cred models.Credential) error

	// GetAllCredentials returns every credential in custody.
	GetAllCredentials(ctx context.Context) ([]models.Credential, error)

	// CreatePresentation builds a full presentation over the given
	// credential ids.
	CreatePresentation(ctx context.Context, credentialIDs []string) (*models.Presentation, error)

	// CreateSelectiveDisclosurePresentation builds a presentation revealing
	// only the requested attributes per credential.
	CreateSelectiveDisclosurePresentation(ctx context.Context, requests []models.DisclosureRequest) (*models.Presentation, error)
}

// WalletProvider hands out a ready wallet, initializing it lazily at most
// once. Reset forces the next Get to initialize again.
type WalletProvider interface {
	Get(ctx context.Context) (Wallet, error)
	Reset()
}

// AuditPublisher emits audit events for identity lifecycle operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
