package validation

import (
	"strings"

	"idem/internal/identity/models"
)

// Summary is a caller-facing digest of a single record's validation.
type Summary struct {
	Tier            string   `json:"tier"`
	Score           int      `json:"score"`
	IsValid         bool     `json:"isValid"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

const maxSummaryItems = 3

// Summarize evaluates the record and condenses the result into a four-tier
// label, the top issues (errors before warnings), and up to three
// recommendations derived from missing fields, verification state, and the
// presence of errors.
func (e *Engine) Summarize(record models.IdentityRecord) Summary {
	result := e.Evaluate(record)

	summary := Summary{
		Tier:            tierFor(result.Score),
		Score:           result.Score,
		IsValid:         result.IsValid,
		Issues:          []string{},
		Recommendations: []string{},
	}

	for _, msg := range append(append([]string{}, result.Errors...), result.Warnings...) {
		if len(summary.Issues) == maxSummaryItems {
			break
		}
		summary.Issues = append(summary.Issues, msg)
	}

	summary.Recommendations = recommendations(record, result)
	return summary
}

func tierFor(score int) string {
	switch {
	case score >= 80:
		return "excellent"
	case score >= 60:
		return "good"
	case score >= 40:
		return "fair"
	default:
		return "poor"
	}
}

func recommendations(record models.IdentityRecord, result models.ValidationResult) []string {
	recs := []string{}
	add := func(r string) {
		if len(recs) < maxSummaryItems {
			recs = append(recs, r)
		}
	}

	if strings.TrimSpace(record.Name) == "" {
		add("add a name to the identity record")
	}
	if record.Email == "" {
		add("add an email address")
	}
	if record.Phone == "" {
		add("add a phone number")
	}
	if !record.IsVerified {
		add("reconcile against a stored credential to verify this identity")
	}
	if len(result.Errors) > 0 {
		add("correct the reported errors before relying on this record")
	}

	return recs
}
