// Package credential detects verifiable-credential envelopes in parsed
// payloads and maps their subject claims onto the shared attribute shape.
// Absence of a credential is a normal outcome, never an error.
package credential

import (
	"encoding/json"
	"fmt"
	"strings"

	"idem/internal/identity/models"
)

// Subject alias tables, in precedence order. Subject keys outside these
// tables (and outside "id") land in AdditionalData.
var (
	subjectNameAliases    = []string{"givenName", "name", "fullName"}
	subjectEmailAliases   = []string{"email", "emailAddress"}
	subjectPhoneAliases   = []string{"phone", "phoneNumber", "mobile"}
	subjectDOBAliases     = []string{"dateOfBirth", "dob"}
	subjectAddressAliases = []string{"address", "streetAddress"}
)

// IsCredential reports whether a decoded JSON object is a verifiable
// credential envelope: a context array, a type array containing the
// VerifiableCredential tag, and non-null credentialSubject, issuer, and
// issuanceDate.
func IsCredential(obj map[string]any) bool {
	if obj == nil {
		return false
	}

	context, ok := obj["@context"].([]any)
	if !ok || len(context) == 0 {
		return false
	}

	types, ok := obj["type"].([]any)
	if !ok {
		return false
	}
	tagged := false
	for _, t := range types {
		if t == models.CredentialTag {
			tagged = true
			break
		}
	}
	if !tagged {
		return false
	}

	if subject, ok := obj["credentialSubject"]; !ok || subject == nil {
		return false
	}
	if issuer, ok := obj["issuer"]; !ok || issuer == nil {
		return false
	}
	if date, ok := obj["issuanceDate"]; !ok || date == nil {
		return false
	}

	return true
}

// ParseCredential looks for a credential in a raw payload: first the whole
// payload, then one level of {"credential": {...}} envelope unwrapping.
// Anything else yields (nil, false) — no credential found, not an error.
func ParseCredential(raw string) (*models.Credential, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &obj); err != nil {
		return nil, false
	}

	if IsCredential(obj) {
		return decode(obj), true
	}

	if inner, ok := obj["credential"].(map[string]any); ok && IsCredential(inner) {
		return decode(inner), true
	}

	return nil, false
}

// Extract maps a credential's subject claims onto an AttributeSet using the
// alias precedence tables. It never panics outward: an internal fault yields
// an empty set plus a non-nil error the caller should treat as a warning.
func Extract(cred models.Credential) (attrs models.AttributeSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			attrs = models.AttributeSet{}
			err = fmt.Errorf("credential extraction failed: %v", r)
		}
	}()

	subject := cred.CredentialSubject
	if subject == nil {
		return models.AttributeSet{}, nil
	}

	attrs = models.AttributeSet{
		Name:        firstSubjectAlias(subject, subjectNameAliases),
		Email:       firstSubjectAlias(subject, subjectEmailAliases),
		Phone:       firstSubjectAlias(subject, subjectPhoneAliases),
		DateOfBirth: firstSubjectAlias(subject, subjectDOBAliases),
		Address:     firstSubjectAlias(subject, subjectAddressAliases),
	}

	mapped := map[string]struct{}{"id": {}}
	for _, aliases := range [][]string{
		subjectNameAliases, subjectEmailAliases, subjectPhoneAliases,
		subjectDOBAliases, subjectAddressAliases,
	} {
		for _, key := range aliases {
			mapped[key] = struct{}{}
		}
	}

	var extra map[string]any
	for key, value := range subject {
		if _, ok := mapped[key]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[key] = value
	}
	attrs.AdditionalData = extra

	return attrs, nil
}

// decode converts a detected envelope into the typed credential shape.
// Detection has already established the required fields exist.
func decode(obj map[string]any) *models.Credential {
	cred := &models.Credential{
		Issuer:       issuerString(obj["issuer"]),
		IssuanceDate: stringOr(obj["issuanceDate"]),
	}

	if id, ok := obj["id"].(string); ok {
		cred.ID = id
	}
	if context, ok := obj["@context"].([]any); ok {
		cred.Context = stringSlice(context)
	}
	if types, ok := obj["type"].([]any); ok {
		cred.Type = stringSlice(types)
	}
	if subject, ok := obj["credentialSubject"].(map[string]any); ok {
		cred.CredentialSubject = subject
	}
	if proof, ok := obj["proof"].(map[string]any); ok {
		cred.Proof = proof
	}

	return cred
}

// issuerString accepts both the string form and the {"id": ...} object form
// issuers appear in across real credential payloads.
func issuerString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if id, ok := t["id"].(string); ok {
			return id
		}
	}
	return ""
}

func firstSubjectAlias(subject map[string]any, aliases []string) string {
	for _, key := range aliases {
		if value, ok := subject[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func stringOr(v any) string {
	s, _ := v.(string)
	return s
}

func stringSlice(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
