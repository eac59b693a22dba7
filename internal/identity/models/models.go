// Package models defines the shapes shared across the identity pipeline:
// raw payloads come in, attribute sets come out of parsing or credential
// extraction, and identity records are what gets stored and reconciled.
package models

import "time"

// AttributeSet is the normalized intermediate produced by the payload parser
// or the credential extractor, prior to becoming a stored identity record.
//
// Named fields and AdditionalData keys are disjoint: AdditionalData holds
// exactly the keys not mapped onto a named field, and is nil (absent on the
// wire) rather than an empty map when there is no residue.
type AttributeSet struct {
	Name           string         `json:"name,omitempty"`
	Email          string         `json:"email,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Identifier     string         `json:"identifier,omitempty"`
	DateOfBirth    string         `json:"dateOfBirth,omitempty"`
	Address        string         `json:"address,omitempty"`
	AdditionalData map[string]any `json:"additionalData,omitempty"`
}

// IsEmpty reports whether no attribute was extracted at all.
func (a AttributeSet) IsEmpty() bool {
	return a.Name == "" && a.Email == "" && a.Phone == "" && a.Identifier == "" &&
		a.DateOfBirth == "" && a.Address == "" && len(a.AdditionalData) == 0
}

// CredentialTag is the type entry every verifiable credential must carry.
const CredentialTag = "VerifiableCredential"

// Credential is a third-party-issued claim bundle about a subject. Treated as
// immutable once ingested; custody belongs to the wallet.
type Credential struct {
	ID                string         `json:"id,omitempty"`
	Context           []string       `json:"@context"`
	Type              []string       `json:"type"`
	Issuer            string         `json:"issuer"`
	IssuanceDate      string         `json:"issuanceDate"`
	CredentialSubject map[string]any `json:"credentialSubject"`
	Proof             map[string]any `json:"proof,omitempty"`
}

// CredentialRef is the redacted view of a matched credential recorded on a
// reconciled identity. It deliberately excludes subject claims and proof.
type CredentialRef struct {
	ID           string   `json:"id,omitempty"`
	Issuer       string   `json:"issuer"`
	IssuanceDate string   `json:"issuanceDate"`
	Type         []string `json:"type"`
}

// IdentityRecord is the stored identity. ID is assigned once at creation and
// never reassigned. IsVerified is true only when the record originated from,
// or was reconciled against, at least one credential.
type IdentityRecord struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Email          string         `json:"email,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	DateAdded      time.Time      `json:"dateAdded"`
	QRData         string         `json:"qrData"`
	IsVerified     bool           `json:"isVerified"`
	AdditionalData map[string]any `json:"additionalData,omitempty"`
}

// DIDRef returns the decentralized identifier reference stored on the record,
// if any. Reconciliation matches credential subjects against it.
func (r IdentityRecord) DIDRef() string {
	if r.AdditionalData == nil {
		return ""
	}
	if did, ok := r.AdditionalData["did"].(string); ok {
		return did
	}
	return ""
}

// IdentityUpdate is a partial update applied by Storage.Update. Nil fields are
// left untouched.
type IdentityUpdate struct {
	Name           *string
	Email          *string
	Phone          *string
	IsVerified     *bool
	AdditionalData map[string]any
}

// ValidationResult is recomputed on demand and never persisted. Score is
// always clamped into [0,100].
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Score    int      `json:"score"`
}

// Presentation is a wallet-produced bundle over one or more credentials.
// The Token carries the wallet's proof; this engine never constructs proofs
// itself.
type Presentation struct {
	Context     []string     `json:"@context"`
	Type        []string     `json:"type"`
	Holder      string       `json:"holder"`
	Credentials []Credential `json:"verifiableCredential"`
	Token       string       `json:"token,omitempty"`
	Created     time.Time    `json:"created"`
}

// DisclosureRequest scopes a selective-disclosure presentation to a subset of
// a credential's subject attributes.
type DisclosureRequest struct {
	CredentialID string   `json:"credentialId"`
	Attributes   []string `json:"attributes"`
}
