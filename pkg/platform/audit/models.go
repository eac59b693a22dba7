// Package audit defines the transport-agnostic audit event shape emitted from
// identity lifecycle operations, so stores and sinks can fan out.
package audit

import "time"

// EventCategory classifies audit events by their primary purpose, enabling
// different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance:
	// identity creation and deletion, reconciliation merges.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring:
	// credential custody changes, presentation disclosure.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for operational visibility:
	// payload parsing outcomes, remote imports.
	CategoryOperations EventCategory = "operations"
)

// Event captures a single audited action.
type Event struct {
	Category     EventCategory
	Timestamp    time.Time
	IdentityID   string
	Action       string
	Reason       string
	CredentialID string
	// MatchedCredentials is the number of credentials merged during a
	// reconciliation; zero for other actions.
	MatchedCredentials int
	RequestID          string
}

// AuditEvent enumerates the known audit actions.
type AuditEvent string

const (
	EventIdentityCreated     AuditEvent = "identity_created"
	EventIdentityDeleted     AuditEvent = "identity_deleted"
	EventIdentityReconciled  AuditEvent = "identity_reconciled"
	EventCredentialStored    AuditEvent = "credential_stored"
	EventCredentialImported  AuditEvent = "credential_imported"
	EventPresentationCreated AuditEvent = "presentation_created"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventIdentityCreated:     CategoryCompliance,
	EventIdentityDeleted:     CategoryCompliance,
	EventIdentityReconciled:  CategoryCompliance,
	EventCredentialStored:    CategorySecurity,
	EventCredentialImported:  CategoryOperations,
	EventPresentationCreated: CategorySecurity,
}

// Category returns the category for a known action, defaulting to operations
// for anything unrecognized.
func (e AuditEvent) Category() EventCategory {
	if category, ok := eventCategories[e]; ok {
		return category
	}
	return CategoryOperations
}
