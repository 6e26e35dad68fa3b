// Package validation runs field-level rules over a normalized estimate
// document. Every rule runs on every call; violations come back as data,
// never as errors, so the caller always sees the full error surface.
package validation

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/collisionworks/partspipe/internal/bms"
)

// Tier ranks a rule's impact on downstream processing
type Tier string

const (
	TierCritical Tier = "CRITICAL" // blocks automated sourcing
	TierWarning  Tier = "WARNING"  // surfaced, non-blocking
	TierInfo     Tier = "INFO"     // completeness hint
)

// Verdict is the per-field outcome used for diagnostic display
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
	VerdictWarn Verdict = "WARN"
	VerdictNote Verdict = "NOTE"
)

// Violation is one rule failure
type Violation struct {
	Field   string `json:"field"`
	Tier    Tier   `json:"tier"`
	Message string `json:"message"`
}

// Result is the immutable outcome of validating one document.
// IsValid holds exactly when there are no critical errors.
type Result struct {
	IsValid       bool               `json:"is_valid"`
	Errors        []Violation        `json:"errors"`
	Warnings      []Violation        `json:"warnings"`
	Infos         []Violation        `json:"infos"`
	FieldVerdicts map[string]Verdict `json:"field_verdicts"`
	Summary       string             `json:"summary"`
}

// Rule checks one independent aspect of a document. A nil return means
// the rule passed.
type Rule struct {
	Field string
	Tier  Tier
	Check func(doc *bms.EstimateDocument) *Violation
}

// Engine runs a fixed rule set over normalized documents
type Engine struct {
	rules  []Rule
	logger *zap.Logger
}

// NewEngine creates a validation engine with the default rule set
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		rules:  defaultRules(),
		logger: logger,
	}
}

// Validate runs every rule and collects all violations in one pass.
// It never aborts early and never returns an error.
func (e *Engine) Validate(doc *bms.EstimateDocument) *Result {
	result := &Result{
		Errors:        []Violation{},
		Warnings:      []Violation{},
		Infos:         []Violation{},
		FieldVerdicts: make(map[string]Verdict, len(e.rules)),
	}

	for _, rule := range e.rules {
		v := rule.Check(doc)
		if v == nil {
			// Only record a pass if a harder failure on the same field
			// hasn't already been recorded by another rule.
			if _, seen := result.FieldVerdicts[rule.Field]; !seen {
				result.FieldVerdicts[rule.Field] = VerdictPass
			}
			continue
		}

		v.Field = rule.Field
		v.Tier = rule.Tier

		switch rule.Tier {
		case TierCritical:
			result.Errors = append(result.Errors, *v)
			result.FieldVerdicts[rule.Field] = VerdictFail
		case TierWarning:
			result.Warnings = append(result.Warnings, *v)
			if result.FieldVerdicts[rule.Field] != VerdictFail {
				result.FieldVerdicts[rule.Field] = VerdictWarn
			}
		case TierInfo:
			result.Infos = append(result.Infos, *v)
			if _, seen := result.FieldVerdicts[rule.Field]; !seen {
				result.FieldVerdicts[rule.Field] = VerdictNote
			}
		}
	}

	result.IsValid = len(result.Errors) == 0
	result.Summary = fmt.Sprintf("%d errors, %d warnings, %d hints",
		len(result.Errors), len(result.Warnings), len(result.Infos))

	e.logger.Debug("Validated estimate document",
		zap.String("document_id", doc.DocumentID),
		zap.Bool("is_valid", result.IsValid),
		zap.String("summary", result.Summary))

	return result
}
