// Package reconcile matches stored identities against wallet credentials and
// merges extracted attributes back into the stored record.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"idem/internal/identity/credential"
	"idem/internal/identity/metrics"
	"idem/internal/identity/models"
	"idem/internal/identity/ports"
	dErrors "idem/pkg/domain-errors"
	"idem/pkg/platform/audit"
	"idem/pkg/platform/sentinel"
	platformstrings "idem/pkg/platform/strings"
	"idem/pkg/requestcontext"
)

// Service reconciles identities. Storage writes are read-modify-write with
// last-write-wins; racing reconciliations on one identity can lose an update.
type Service struct {
	storage ports.Storage
	wallets ports.WalletProvider
	auditor ports.AuditPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
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

// WithClock overrides the reconciliation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(storage ports.Storage, wallets ports.WalletProvider, opts ...Option) (*Service, error) {
	if storage == nil {
		return nil, fmt.Errorf("identity storage is required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet provider is required")
	}

	svc := &Service{
		storage: storage,
		wallets: wallets,
		tracer:  otel.Tracer("idem/internal/identity/reconcile"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Result is a successful reconciliation outcome. Warnings carry non-fatal
// conditions such as "no credentials matched" or an extraction fault.
type Result struct {
	Identity           *models.IdentityRecord
	Warnings           []string
	MatchedCredentials int
}

// Reconcile merges wallet credentials matching the identity into its stored
// record. Named fields merge first-non-empty-wins across the matched
// credentials; AdditionalData merges last-write-wins. That asymmetry is
// deliberate and must not be "fixed" here.
func (s *Service) Reconcile(ctx context.Context, identityID string) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "reconcile.Reconcile",
		trace.WithAttributes(attribute.String("identity.id", identityID)))
	defer span.End()

	record, err := s.storage.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.observe("failed", 0)
			return nil, dErrors.Newf(dErrors.CodeNotFound, "identity %s not found", identityID)
		}
		s.observe("failed", 0)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}

	wallet, err := s.wallets.Get(ctx)
	if err != nil {
		s.observe("failed", 0)
		return nil, err
	}

	credentials, err := wallet.GetAllCredentials(ctx)
	if err != nil {
		s.observe("failed", 0)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load wallet credentials")
	}

	matched := matchCredentials(*record, credentials)
	span.SetAttributes(attribute.Int("reconcile.matched", len(matched)))

	if len(matched) == 0 {
		s.observe("no_match", 0)
		return &Result{
			Identity: record,
			Warnings: []string{"no credentials matched this identity"},
		}, nil
	}

	update, warnings := s.merge(*record, matched)

	updated, err := s.storage.Update(ctx, identityID, update)
	if err != nil {
		s.observe("failed", len(matched))
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist reconciled identity")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "identity reconciled",
			"identity_id", identityID,
			"matched_credentials", len(matched),
		)
	}
	s.observe("merged", len(matched))
	s.emit(ctx, audit.Event{
		IdentityID:         identityID,
		Action:             string(audit.EventIdentityReconciled),
		MatchedCredentials: len(matched),
	})

	return &Result{
		Identity:           updated,
		Warnings:           warnings,
		MatchedCredentials: len(matched),
	}, nil
}

// BuildPresentation creates a presentation over the credentials matching the
// identity. An empty attribute list yields a full presentation; otherwise the
// wallet builds a selective disclosure scoped to the requested names.
func (s *Service) BuildPresentation(ctx context.Context, identityID string, attributes []string) (*models.Presentation, error) {
	ctx, span := s.tracer.Start(ctx, "reconcile.BuildPresentation",
		trace.WithAttributes(attribute.String("identity.id", identityID)))
	defer span.End()

	record, err := s.storage.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "identity %s not found", identityID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}

	wallet, err := s.wallets.Get(ctx)
	if err != nil {
		return nil, err
	}

	credentials, err := wallet.GetAllCredentials(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load wallet credentials")
	}

	matched := matchCredentials(*record, credentials)
	if len(matched) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no credentials match this identity")
	}

	attributes = platformstrings.DedupeAndTrim(attributes)

	var presentation *models.Presentation
	mode := "full"
	if len(attributes) == 0 {
		ids := make([]string, len(matched))
		for i, cred := range matched {
			ids[i] = cred.ID
		}
		presentation, err = wallet.CreatePresentation(ctx, ids)
	} else {
		mode = "selective"
		requests := make([]models.DisclosureRequest, len(matched))
		for i, cred := range matched {
			requests[i] = models.DisclosureRequest{CredentialID: cred.ID, Attributes: attributes}
		}
		presentation, err = wallet.CreateSelectiveDisclosurePresentation(ctx, requests)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build presentation")
	}

	if s.metrics != nil {
		s.metrics.IncrementPresentations(mode)
	}
	s.emit(ctx, audit.Event{
		IdentityID: identityID,
		Action:     string(audit.EventPresentationCreated),
		Reason:     mode,
	})

	return presentation, nil
}

// matchCredentials selects the credentials referring to the record: by
// subject id against the stored DID reference, by email, or by name (plain or
// givenName).
func matchCredentials(record models.IdentityRecord, credentials []models.Credential) []models.Credential {
	var matched []models.Credential
	for _, cred := range credentials {
		if subjectMatches(record, cred.CredentialSubject) {
			matched = append(matched, cred)
		}
	}
	return matched
}

func subjectMatches(record models.IdentityRecord, subject map[string]any) bool {
	if subject == nil {
		return false
	}
	if id, _ := subject["id"].(string); id != "" && id == record.DIDRef() {
		return true
	}
	if email, _ := subject["email"].(string); email != "" && email == record.Email {
		return true
	}
	if name, _ := subject["name"].(string); name != "" && name == record.Name {
		return true
	}
	if given, _ := subject["givenName"].(string); given != "" && given == record.Name {
		return true
	}
	return false
}

// merge folds the matched credentials into an update for the record. Name,
// email, and phone keep the first non-empty value (the record's own value
// counts as first); AdditionalData takes a last-write-wins union, later
// credentials overwriting earlier keys. Extracted dateOfBirth and address
// land in AdditionalData under the same keys ingest uses.
func (s *Service) merge(record models.IdentityRecord, matched []models.Credential) (models.IdentityUpdate, []string) {
	var warnings []string

	name, email, phone := record.Name, record.Email, record.Phone

	additional := make(map[string]any, len(record.AdditionalData)+8)
	for k, v := range record.AdditionalData {
		additional[k] = v
	}

	refs := make([]models.CredentialRef, 0, len(matched))
	for _, cred := range matched {
		attrs, err := credential.Extract(cred)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("credential %s: %v", cred.ID, err))
			if s.logger != nil {
				s.logger.Warn("credential extraction failed during merge", "credential_id", cred.ID, "error", err)
			}
		}

		if name == "" && attrs.Name != "" {
			name = attrs.Name
		}
		if email == "" && attrs.Email != "" {
			email = attrs.Email
		}
		if phone == "" && attrs.Phone != "" {
			phone = attrs.Phone
		}
		for k, v := range attrs.AdditionalData {
			additional[k] = v
		}
		if attrs.DateOfBirth != "" {
			additional["dateOfBirth"] = attrs.DateOfBirth
		}
		if attrs.Address != "" {
			additional["address"] = attrs.Address
		}

		refs = append(refs, models.CredentialRef{
			ID:           cred.ID,
			Issuer:       cred.Issuer,
			IssuanceDate: cred.IssuanceDate,
			Type:         cred.Type,
		})
	}

	additional["credentials"] = refs
	additional["credentialCount"] = len(matched)
	additional["lastReconciled"] = s.now().UTC().Format(time.RFC3339)

	verified := true
	return models.IdentityUpdate{
		Name:           &name,
		Email:          &email,
		Phone:          &phone,
		IsVerified:     &verified,
		AdditionalData: additional,
	}, warnings
}

func (s *Service) observe(result string, matched int) {
	if s.metrics != nil {
		s.metrics.ObserveReconciliation(result, matched)
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
