// Package validation scores identity records through an ordered, runtime-
// extensible set of independent rules. The engine is read-only over records
// and its results are recomputed on demand, never persisted.
package validation

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"idem/internal/identity/models"
	dErrors "idem/pkg/domain-errors"
)

// Outcome is a single rule's verdict. Score contributions are summed and
// clamped by the engine; a warning on a valid outcome is still surfaced.
type Outcome struct {
	Valid   bool
	Error   string
	Warning string
	Score   int
}

// Rule is a named, independently evaluated check. The registry is ordered and
// mutable at runtime, which is the engine's one piece of extensibility.
type Rule struct {
	Name     string
	Evaluate func(models.IdentityRecord) Outcome
}

// Engine evaluates records against its rule registry in insertion order.
type Engine struct {
	rules  []Rule
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger injects a structured logger for rule execution faults.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source used by age-sensitive rules.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine preloaded with the canonical rule set.
func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.rules = canonicalRules(e.now)
	return e
}

// AddRule appends a rule to the registry. Duplicate names are rejected so
// RemoveRule stays unambiguous.
func (e *Engine) AddRule(rule Rule) error {
	if rule.Name == "" || rule.Evaluate == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "rule needs a name and an evaluate function")
	}
	for _, existing := range e.rules {
		if existing.Name == rule.Name {
			return dErrors.Newf(dErrors.CodeConflict, "rule %q already registered", rule.Name)
		}
	}
	e.rules = append(e.rules, rule)
	return nil
}

// RemoveRule deletes a rule by name, reporting whether it was present.
func (e *Engine) RemoveRule(name string) bool {
	for i, rule := range e.rules {
		if rule.Name == name {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Rules returns the registered rule names in evaluation order.
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, rule := range e.rules {
		names[i] = rule.Name
	}
	return names
}

// Evaluate runs every rule against the record. Errors from invalid outcomes
// and all warnings are aggregated; the summed score is clamped to [0,100].
// A rule that panics contributes a warning naming it and zero score.
func (e *Engine) Evaluate(record models.IdentityRecord) models.ValidationResult {
	result := models.ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}

	total := 0
	for _, rule := range e.rules {
		outcome := e.run(rule, record)
		if !outcome.Valid && outcome.Error != "" {
			result.Errors = append(result.Errors, outcome.Error)
		}
		if outcome.Warning != "" {
			result.Warnings = append(result.Warnings, outcome.Warning)
		}
		total += outcome.Score
	}

	result.Score = clampScore(total)
	result.IsValid = len(result.Errors) == 0
	return result
}

// BatchSummary aggregates a batch evaluation.
type BatchSummary struct {
	Total        int      `json:"total"`
	Valid        int      `json:"valid"`
	Invalid      int      `json:"invalid"`
	AverageScore int      `json:"averageScore"`
	CommonIssues []string `json:"commonIssues"`
}

// EvaluateBatch evaluates every record and summarizes the batch: rounded
// average score and issues recurring in at least max(2, ceil(0.3·N)) records,
// capped to the first five encountered.
func (e *Engine) EvaluateBatch(records []models.IdentityRecord) ([]models.ValidationResult, BatchSummary) {
	results := make([]models.ValidationResult, len(records))

	summary := BatchSummary{Total: len(records), CommonIssues: []string{}}
	scoreSum := 0

	counts := make(map[string]int)
	var order []string

	for i, record := range records {
		results[i] = e.Evaluate(record)
		scoreSum += results[i].Score
		if results[i].IsValid {
			summary.Valid++
		} else {
			summary.Invalid++
		}

		seen := make(map[string]struct{})
		for _, msg := range append(results[i].Errors, results[i].Warnings...) {
			if _, dup := seen[msg]; dup {
				continue
			}
			seen[msg] = struct{}{}
			if counts[msg] == 0 {
				order = append(order, msg)
			}
			counts[msg]++
		}
	}

	if len(records) > 0 {
		summary.AverageScore = int(math.Round(float64(scoreSum) / float64(len(records))))
	}

	threshold := int(math.Ceil(0.3 * float64(len(records))))
	if threshold < 2 {
		threshold = 2
	}
	for _, msg := range order {
		if counts[msg] >= threshold {
			summary.CommonIssues = append(summary.CommonIssues, msg)
			if len(summary.CommonIssues) == 5 {
				break
			}
		}
	}

	return results, summary
}

func (e *Engine) run(rule Rule, record models.IdentityRecord) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			if e.logger != nil {
				e.logger.Warn("validation rule panicked", "rule", rule.Name, "panic", r)
			}
			outcome = Outcome{
				Valid:   true,
				Warning: fmt.Sprintf("rule %q failed to execute", rule.Name),
			}
		}
	}()
	return rule.Evaluate(record)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
