package validation

import (
	"encoding/json"
	"math"
	"strings"
	"time"
	"unicode"

	"idem/internal/identity/models"
	"idem/pkg/email"
)

// Error and warning messages referenced by rules and the summarizer. Kept as
// constants so batch issue counting matches exact strings.
const (
	msgNameRequired     = "name is required"
	msgInvalidEmail     = "invalid email format"
	msgInvalidPhone     = "invalid phone format"
	msgQRDataEmpty      = "QR data is empty"
	msgQRNoMarker       = "QR data has no recognizable identity marker"
	msgNotVerified      = "identity is not verified"
	msgIncomplete       = "identity profile is incomplete"
	msgNoCredentialMeta = "no credential metadata present"
	msgRecordAging      = "record has not been refreshed in over 30 days"
	msgRecordStale      = "record has not been refreshed in over 90 days"
)

// canonicalRules builds the standard rule set in its fixed evaluation order.
// Weights are load-bearing: downstream consumers key off the same thresholds.
func canonicalRules(now func() time.Time) []Rule {
	return []Rule{
		{Name: "name_present", Evaluate: ruleNamePresent},
		{Name: "email_format", Evaluate: ruleEmailFormat},
		{Name: "phone_format", Evaluate: rulePhoneFormat},
		{Name: "qr_integrity", Evaluate: ruleQRIntegrity},
		{Name: "verification_status", Evaluate: ruleVerificationStatus},
		{Name: "completeness", Evaluate: ruleCompleteness},
		{Name: "credential_presence", Evaluate: ruleCredentialPresence},
		{Name: "freshness", Evaluate: ruleFreshness(now)},
	}
}

func ruleNamePresent(record models.IdentityRecord) Outcome {
	if strings.TrimSpace(record.Name) == "" {
		return Outcome{Valid: false, Error: msgNameRequired}
	}
	return Outcome{Valid: true, Score: 20}
}

// Email is optional: an absent email satisfies the rule outright.
func ruleEmailFormat(record models.IdentityRecord) Outcome {
	if record.Email == "" {
		return Outcome{Valid: true}
	}
	if email.Valid(record.Email) {
		return Outcome{Valid: true, Score: 15}
	}
	return Outcome{Valid: false, Error: msgInvalidEmail, Score: -10}
}

// Phone is optional; when present it needs at least ten digits and may only
// use digits plus `+ - ( )` and spaces.
func rulePhoneFormat(record models.IdentityRecord) Outcome {
	if record.Phone == "" {
		return Outcome{Valid: true}
	}
	if phoneValid(record.Phone) {
		return Outcome{Valid: true, Score: 10}
	}
	return Outcome{Valid: false, Error: msgInvalidPhone, Score: -5}
}

func phoneValid(phone string) bool {
	digits := 0
	for _, r := range phone {
		switch {
		case unicode.IsDigit(r):
			digits++
		case strings.ContainsRune("+-() ", r):
		default:
			return false
		}
	}
	return digits >= 10
}

func ruleQRIntegrity(record models.IdentityRecord) Outcome {
	source := record.QRData
	if strings.TrimSpace(source) == "" {
		return Outcome{Valid: false, Error: msgQRDataEmpty, Score: -20}
	}
	if json.Valid([]byte(source)) {
		return Outcome{Valid: true, Score: 15}
	}
	if strings.Contains(source, "@") ||
		strings.Contains(source, "identity:") ||
		strings.Contains(source, "user:") {
		return Outcome{Valid: true, Score: 10}
	}
	return Outcome{Valid: true, Score: 5, Warning: msgQRNoMarker}
}

func ruleVerificationStatus(record models.IdentityRecord) Outcome {
	if record.IsVerified {
		return Outcome{Valid: true, Score: 25}
	}
	return Outcome{Valid: true, Warning: msgNotVerified}
}

// Completeness scores up to 15 points proportionally over name, email, and
// phone, warning below two thirds populated.
func ruleCompleteness(record models.IdentityRecord) Outcome {
	populated := 0
	for _, field := range []string{record.Name, record.Email, record.Phone} {
		if strings.TrimSpace(field) != "" {
			populated++
		}
	}

	fraction := float64(populated) / 3
	outcome := Outcome{
		Valid: true,
		Score: int(math.Round(15 * fraction)),
	}
	if fraction < 0.67 {
		outcome.Warning = msgIncomplete
	}
	return outcome
}

// Credential metadata lives in AdditionalData, written by reconciliation (the
// "credentials" refs list) or carried over from extraction residue (loose
// issuer / issuanceDate keys).
func ruleCredentialPresence(record models.IdentityRecord) Outcome {
	issuer, issuanceDate, present := credentialMeta(record.AdditionalData)
	if !present {
		return Outcome{Valid: true, Warning: msgNoCredentialMeta}
	}
	if issuer != "" && issuanceDate != "" {
		return Outcome{Valid: true, Score: 20}
	}
	return Outcome{Valid: true, Score: 10}
}

func credentialMeta(data map[string]any) (issuer, issuanceDate string, present bool) {
	if len(data) == 0 {
		return "", "", false
	}

	switch refs := data["credentials"].(type) {
	case []models.CredentialRef:
		if len(refs) > 0 {
			return refs[0].Issuer, refs[0].IssuanceDate, true
		}
	case []any:
		// JSON round-tripped refs decode as generic maps.
		if len(refs) > 0 {
			if ref, ok := refs[0].(map[string]any); ok {
				i, _ := ref["issuer"].(string)
				d, _ := ref["issuanceDate"].(string)
				return i, d, true
			}
		}
	}

	i, hasIssuer := data["issuer"].(string)
	d, hasDate := data["issuanceDate"].(string)
	if hasIssuer || hasDate {
		return i, d, true
	}
	return "", "", false
}

func ruleFreshness(now func() time.Time) func(models.IdentityRecord) Outcome {
	return func(record models.IdentityRecord) Outcome {
		age := now().Sub(record.DateAdded)
		switch {
		case age <= 7*24*time.Hour:
			return Outcome{Valid: true, Score: 10}
		case age <= 30*24*time.Hour:
			return Outcome{Valid: true, Score: 5}
		case age <= 90*24*time.Hour:
			return Outcome{Valid: true, Warning: msgRecordAging}
		default:
			return Outcome{Valid: true, Score: -5, Warning: msgRecordStale}
		}
	}
}
