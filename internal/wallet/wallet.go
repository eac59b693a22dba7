// Package wallet implements credential custody: holding credentials and
// constructing presentations over them. The identity engine consumes it
// through ports.Wallet and never builds proofs itself.
package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"

	"idem/internal/identity/models"
	dErrors "idem/pkg/domain-errors"
)

// Store persists credentials in custody.
type Store interface {
	Save(ctx context.Context, cred models.Credential) error
	Get(ctx context.Context, id string) (models.Credential, error)
	List(ctx context.Context) ([]models.Credential, error)
}

// Wallet holds a signing key and a credential store. Presentations are JWTs
// signed with the wallet key; verification of those tokens is out of scope
// for the identity engine.
type Wallet struct {
	did        string
	signingKey ed25519.PrivateKey
	store      Store
	logger     *slog.Logger
}

// Option configures a Wallet.
type Option func(*Wallet)

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Wallet) { w.logger = logger }
}

// Create builds a wallet with a fresh random key.
func Create(store Store, opts ...Option) (*Wallet, error) {
	if store == nil {
		return nil, fmt.Errorf("credential store is required")
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate wallet key: %w", err)
	}
	return newWallet(priv, store, opts...), nil
}

// restoreSalt pins passphrase derivation so Restore yields the same DID for
// the same passphrase across processes.
const restoreSalt = "idem-wallet-v1"

// Restore derives the wallet key deterministically from a passphrase.
func Restore(passphrase string, store Store, opts ...Option) (*Wallet, error) {
	if store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if passphrase == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "passphrase cannot be empty")
	}

	seed, err := scrypt.Key([]byte(passphrase), []byte(restoreSalt), 1<<15, 8, 1, ed25519.SeedSize)
	if err != nil {
		return nil, fmt.Errorf("derive wallet key: %w", err)
	}
	return newWallet(ed25519.NewKeyFromSeed(seed), store, opts...), nil
}

func newWallet(priv ed25519.PrivateKey, store Store, opts ...Option) *Wallet {
	pub := priv.Public().(ed25519.PublicKey)
	w := &Wallet{
		did:        "did:idem:" + base64.RawURLEncoding.EncodeToString(pub),
		signingKey: priv,
		store:      store,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// GetDID returns the wallet holder's decentralized identifier.
func (w *Wallet) GetDID(_ context.Context) (string, error) {
	return w.did, nil
}

// StoreCredential puts a credential into custody, assigning an id when the
// issuer supplied none.
func (w *Wallet) StoreCredential(ctx context.Context, cred models.Credential) error {
	if cred.ID == "" {
		cred.ID = "urn:uuid:" + uuid.NewString()
	}
	if err := w.store.Save(ctx, cred); err != nil {
		if w.logger != nil {
			w.logger.ErrorContext(ctx, "credential save failed", "credential_id", cred.ID, "error", err)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credential")
	}
	return nil
}

// GetAllCredentials returns every credential in custody.
func (w *Wallet) GetAllCredentials(ctx context.Context) ([]models.Credential, error) {
	creds, err := w.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	return creds, nil
}

// CreatePresentation builds a full presentation over the given credential
// ids, signed as a JWT with the wallet key.
func (w *Wallet) CreatePresentation(ctx context.Context, credentialIDs []string) (*models.Presentation, error) {
	if len(credentialIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "presentation needs at least one credential")
	}

	creds := make([]models.Credential, 0, len(credentialIDs))
	for _, id := range credentialIDs {
		cred, err := w.store.Get(ctx, id)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("credential %s not in wallet", id))
		}
		creds = append(creds, cred)
	}
	return w.present(creds)
}

// CreateSelectiveDisclosurePresentation builds a presentation whose
// credentials carry only the requested subject attributes (plus the subject
// id, which identifies who the claims are about).
func (w *Wallet) CreateSelectiveDisclosurePresentation(ctx context.Context, requests []models.DisclosureRequest) (*models.Presentation, error) {
	if len(requests) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "presentation needs at least one disclosure request")
	}

	creds := make([]models.Credential, 0, len(requests))
	for _, req := range requests {
		cred, err := w.store.Get(ctx, req.CredentialID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("credential %s not in wallet", req.CredentialID))
		}
		creds = append(creds, discloseSubset(cred, req.Attributes))
	}
	return w.present(creds)
}

func (w *Wallet) present(creds []models.Credential) (*models.Presentation, error) {
	now := time.Now().UTC()

	presentation := &models.Presentation{
		Context:     []string{"https://www.w3.org/2018/credentials/v1"},
		Type:        []string{"VerifiablePresentation"},
		Holder:      w.did,
		Credentials: creds,
		Created:     now,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"iss": w.did,
		"iat": now.Unix(),
		"jti": uuid.NewString(),
		"vp": map[string]any{
			"@context":             presentation.Context,
			"type":                 presentation.Type,
			"verifiableCredential": creds,
		},
	})
	signed, err := token.SignedString(w.signingKey)
	if err != nil {
		return nil, fmt.Errorf("sign presentation: %w", err)
	}
	presentation.Token = signed

	return presentation, nil
}

// discloseSubset narrows a credential's subject to the requested attribute
// names. Proof is dropped: a subset no longer matches the issuer signature.
func discloseSubset(cred models.Credential, attributes []string) models.Credential {
	subject := make(map[string]any, len(attributes)+1)
	if id, ok := cred.CredentialSubject["id"]; ok {
		subject["id"] = id
	}
	for _, attr := range attributes {
		if value, ok := cred.CredentialSubject[attr]; ok {
			subject[attr] = value
		}
	}

	cred.CredentialSubject = subject
	cred.Proof = nil
	return cred
}
