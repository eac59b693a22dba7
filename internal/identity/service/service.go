// Package service is the ingestion front of the identity engine: raw payloads
// come in, pass the pre-flight gate, and become stored identity records either
// through the payload parser or, for verifiable credentials, through the
// wallet.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"idem/internal/identity/credential"
	"idem/internal/identity/metrics"
	"idem/internal/identity/models"
	"idem/internal/identity/parser"
	"idem/internal/identity/ports"
	"idem/internal/identity/validation"
	"idem/internal/remote"
	dErrors "idem/pkg/domain-errors"
	"idem/pkg/platform/audit"
	"idem/pkg/platform/sentinel"
	"idem/pkg/requestcontext"
)

// Service orchestrates payload ingestion, validation, and credential import.
type Service struct {
	storage ports.Storage
	wallets ports.WalletProvider
	engine  *validation.Engine
	fetcher *remote.Fetcher
	auditor ports.AuditPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithFetcher enables remote credential import.
func WithFetcher(fetcher *remote.Fetcher) Option {
	return func(s *Service) { s.fetcher = fetcher }
}

func New(storage ports.Storage, wallets ports.WalletProvider, engine *validation.Engine, opts ...Option) (*Service, error) {
	if storage == nil {
		return nil, fmt.Errorf("identity storage is required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet provider is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("validation engine is required")
	}

	svc := &Service{
		storage: storage,
		wallets: wallets,
		engine:  engine,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ParsePayload normalizes a raw payload into an attribute set. It never
// fails; unrecognized payloads come back as a bare identifier.
func (s *Service) ParsePayload(raw string) models.AttributeSet {
	attrs := parser.Parse(raw)
	if s.metrics != nil {
		s.metrics.ObservePayloadParsed("parsed")
	}
	return attrs
}

// ValidatePayload is the pre-flight gate. A nil return means the payload is
// worth parsing; otherwise the error says why it was rejected.
func (s *Service) ValidatePayload(raw string) error {
	if err := parser.Validate(raw); err != nil {
		if s.metrics != nil {
			s.metrics.ObservePayloadParsed("rejected")
		}
		return err
	}
	return nil
}

// Ingest turns a raw payload into a stored identity record. Credential
// payloads are placed in wallet custody and yield a verified record carrying
// the subject's DID reference; anything else goes through the parser and
// yields an unverified record.
func (s *Service) Ingest(ctx context.Context, raw string) (*models.IdentityRecord, error) {
	var record models.IdentityRecord
	if cred, ok := credential.ParseCredential(raw); ok {
		// Credentials skip the pre-flight gate: a VC without a top-level
		// id is still a valid payload.
		stored, err := s.ingestCredential(ctx, *cred, raw)
		if err != nil {
			return nil, err
		}
		record = *stored
	} else {
		if err := s.ValidatePayload(raw); err != nil {
			return nil, err
		}
		record = recordFrom(parser.Parse(raw), raw)
		if s.metrics != nil {
			s.metrics.ObservePayloadParsed("parsed")
		}
	}

	added, err := s.storage.Add(ctx, record)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store identity")
	}

	if s.metrics != nil {
		s.metrics.IncrementIdentitiesCreated()
	}
	s.emit(ctx, audit.Event{
		IdentityID: added.ID,
		Action:     string(audit.EventIdentityCreated),
	})
	if s.logger != nil {
		s.logger.InfoContext(ctx, "identity ingested",
			"identity_id", added.ID,
			"verified", added.IsVerified,
		)
	}
	return &added, nil
}

func (s *Service) ingestCredential(ctx context.Context, cred models.Credential, raw string) (*models.IdentityRecord, error) {
	if s.metrics != nil {
		s.metrics.ObservePayloadParsed("credential")
		s.metrics.IncrementCredentialsDetected()
	}

	wallet, err := s.wallets.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := wallet.StoreCredential(ctx, cred); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credential")
	}
	s.emit(ctx, audit.Event{
		Action:       string(audit.EventCredentialStored),
		CredentialID: cred.ID,
	})

	attrs, extractErr := credential.Extract(cred)
	if extractErr != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "credential extraction incomplete",
			"credential_id", cred.ID,
			"error", extractErr,
		)
	}

	record := recordFrom(attrs, raw)
	record.IsVerified = true
	if id, ok := cred.CredentialSubject["id"].(string); ok && id != "" {
		if record.AdditionalData == nil {
			record.AdditionalData = make(map[string]any, 1)
		}
		record.AdditionalData["did"] = id
	}
	return &record, nil
}

// Get returns a stored identity by id.
func (s *Service) Get(ctx context.Context, id string) (*models.IdentityRecord, error) {
	record, err := s.storage.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "identity %s not found", id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return record, nil
}

// List returns all stored identities.
func (s *Service) List(ctx context.Context) ([]models.IdentityRecord, error) {
	records, err := s.storage.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identities")
	}
	return records, nil
}

// Delete removes a stored identity.
func (s *Service) Delete(ctx context.Context, id string) error {
	existed, err := s.storage.Delete(ctx, id)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete identity")
	}
	if !existed {
		return dErrors.Newf(dErrors.CodeNotFound, "identity %s not found", id)
	}
	s.emit(ctx, audit.Event{
		IdentityID: id,
		Action:     string(audit.EventIdentityDeleted),
	})
	return nil
}

// Validate runs the rule engine over a stored identity.
func (s *Service) Validate(ctx context.Context, id string) (*models.ValidationResult, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	result := s.engine.Evaluate(*record)
	if s.metrics != nil {
		s.metrics.ObserveValidation(result.Score)
	}
	return &result, nil
}

// Summarize produces the tiered validation summary for a stored identity.
func (s *Service) Summarize(ctx context.Context, id string) (*validation.Summary, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := s.engine.Summarize(*record)
	return &summary, nil
}

// ValidateBatch evaluates the given identities, or every stored identity when
// ids is empty. Unknown ids fail the whole batch.
func (s *Service) ValidateBatch(ctx context.Context, ids []string) ([]models.ValidationResult, *validation.BatchSummary, error) {
	var records []models.IdentityRecord
	if len(ids) == 0 {
		all, err := s.storage.Load(ctx)
		if err != nil {
			return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identities")
		}
		records = all
	} else {
		records = make([]models.IdentityRecord, 0, len(ids))
		for _, id := range ids {
			record, err := s.Get(ctx, id)
			if err != nil {
				return nil, nil, err
			}
			records = append(records, *record)
		}
	}

	results, summary := s.engine.EvaluateBatch(records)
	if s.metrics != nil {
		for _, result := range results {
			s.metrics.ObserveValidation(result.Score)
		}
	}
	return results, &summary, nil
}

// ImportCredential fetches a credential from a remote endpoint and places it
// in wallet custody. The response body must be a verifiable credential,
// bare or wrapped in a credential envelope.
func (s *Service) ImportCredential(ctx context.Context, url string) (*models.Credential, error) {
	if s.fetcher == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "remote import is not configured")
	}

	body, err := s.fetcher.Fetch(ctx, url, http.MethodGet, "")
	if err != nil {
		return nil, err
	}

	cred, ok := credential.ParseCredential(body)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "remote payload is not a verifiable credential")
	}

	wallet, err := s.wallets.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := wallet.StoreCredential(ctx, *cred); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credential")
	}

	if s.metrics != nil {
		s.metrics.IncrementCredentialsDetected()
	}
	s.emit(ctx, audit.Event{
		Action:       string(audit.EventCredentialImported),
		CredentialID: cred.ID,
		Reason:       url,
	})
	return cred, nil
}

// recordFrom maps an attribute set onto a record. Attributes without a named
// record field keep their place under AdditionalData.
func recordFrom(attrs models.AttributeSet, raw string) models.IdentityRecord {
	additional := make(map[string]any, len(attrs.AdditionalData)+3)
	for k, v := range attrs.AdditionalData {
		additional[k] = v
	}
	if attrs.Identifier != "" {
		additional["identifier"] = attrs.Identifier
	}
	if attrs.DateOfBirth != "" {
		additional["dateOfBirth"] = attrs.DateOfBirth
	}
	if attrs.Address != "" {
		additional["address"] = attrs.Address
	}
	if len(additional) == 0 {
		additional = nil
	}

	return models.IdentityRecord{
		Name:           attrs.Name,
		Email:          attrs.Email,
		Phone:          attrs.Phone,
		QRData:         raw,
		AdditionalData: additional,
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
