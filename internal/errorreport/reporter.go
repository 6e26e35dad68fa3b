// Package errorreport classifies pipeline failures into categorized,
// severity-ranked reports with sanitized user-facing messages. Technical
// detail stays inside the report for audit and is never shown to end
// users.
package errorreport

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/collisionworks/partspipe/internal/bms"
	"github.com/collisionworks/partspipe/pkg/utils"
)

// Category is the failure class assigned to a report
type Category string

const (
	CategoryParsing       Category = "parsing"
	CategoryValidation    Category = "validation"
	CategoryNetwork       Category = "network"
	CategoryDatabase      Category = "database"
	CategoryPermission    Category = "permission"
	CategoryResourceLimit Category = "resource-limit"
	CategoryUnknown       Category = "unknown"
)

// Severity ranks how urgent a report is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Context carries where a failure happened. All fields are optional.
type Context struct {
	Operation  string `json:"operation,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	BatchID    string `json:"batch_id,omitempty"`
	Filename   string `json:"filename,omitempty"`
}

// Report is one classified failure record
type Report struct {
	ID               string     `json:"id"`
	Category         Category   `json:"category"`
	Severity         Severity   `json:"severity"`
	UserMessage      string     `json:"user_message"`
	TechnicalMessage string     `json:"-"`
	Suggestions      []string   `json:"suggestions"`
	Retryable        bool       `json:"retryable"`
	Context          Context    `json:"context"`
	Resolved         bool       `json:"resolved"`
	ResolvedBy       string     `json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// AuditSink mirrors reports to durable storage. Sink failures are
// logged and never block reporting.
type AuditSink interface {
	SaveReport(r *Report) error
}

// Reporter classifies errors and records the resulting reports
type Reporter struct {
	store  *Store
	sink   AuditSink
	logger *zap.Logger
}

// NewReporter creates a reporter backed by the given store. sink may be
// nil when no durable mirror is configured.
func NewReporter(store *Store, sink AuditSink, logger *zap.Logger) *Reporter {
	return &Reporter{store: store, sink: sink, logger: logger}
}

// Report classifies err, records the report and returns it
func (r *Reporter) Report(err error, ctx Context) *Report {
	category, severity, retryable := classify(err)

	report := &Report{
		ID:               uuid.NewString(),
		Category:         category,
		Severity:         severity,
		UserMessage:      userMessage(category),
		TechnicalMessage: technicalMessage(err, ctx),
		Suggestions:      suggestions(category),
		Retryable:        retryable,
		Context:          ctx,
		CreatedAt:        time.Now(),
	}

	r.store.Add(report)

	if r.sink != nil {
		if sinkErr := r.sink.SaveReport(report); sinkErr != nil {
			r.logger.Warn("Failed to persist error report",
				zap.String("report_id", report.ID),
				zap.Error(sinkErr))
		}
	}

	r.logger.Error("Pipeline error reported",
		zap.String("report_id", report.ID),
		zap.String("category", string(category)),
		zap.String("severity", string(severity)),
		zap.String("operation", ctx.Operation),
		zap.String("document_id", ctx.DocumentID),
		zap.Error(err))

	return report
}

// classify maps an error to category, severity and retryability. Typed
// errors are checked first; message heuristics are the fallback for
// errors that cross library boundaries as plain strings.
func classify(err error) (Category, Severity, bool) {
	if err == nil {
		return CategoryUnknown, SeverityLow, false
	}

	var limitErr *bms.ResourceLimitError
	if errors.As(err, &limitErr) {
		return CategoryResourceLimit, SeverityHigh, false
	}

	var parseErr *bms.ParseError
	if errors.As(err, &parseErr) {
		return CategoryParsing, SeverityMedium, false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryNetwork, SeverityMedium, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryNetwork, SeverityMedium, true
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timeout", "timed out", "connection refused", "connection reset", "dial tcp", "no such host", "unreachable"):
		return CategoryNetwork, SeverityMedium, true
	case containsAny(msg, "sql", "sqlite", "database", "constraint", "transaction"):
		return CategoryDatabase, SeverityHigh, true
	case containsAny(msg, "permission denied", "access denied", "forbidden", "unauthorized"):
		return CategoryPermission, SeverityHigh, false
	case containsAny(msg, "validation", "invalid field", "missing required"):
		return CategoryValidation, SeverityLow, false
	case containsAny(msg, "xml", "malformed", "unexpected eof", "parse"):
		return CategoryParsing, SeverityMedium, false
	default:
		return CategoryUnknown, SeverityMedium, false
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// userMessage returns the sanitized message for a category. These carry
// no file paths, stack traces or internal identifiers.
func userMessage(c Category) string {
	switch c {
	case CategoryParsing:
		return "The estimate file could not be read. It may be corrupted or in an unsupported format."
	case CategoryValidation:
		return "The estimate is missing required information."
	case CategoryNetwork:
		return "A supplier or lookup service did not respond in time."
	case CategoryDatabase:
		return "The record could not be saved. Your submission was not lost; please retry."
	case CategoryPermission:
		return "You do not have permission to perform this action."
	case CategoryResourceLimit:
		return "The file is too large to process."
	default:
		return "An unexpected error occurred while processing the estimate."
	}
}

func suggestions(c Category) []string {
	switch c {
	case CategoryParsing:
		return []string{
			"Re-export the estimate from the originating system",
			"Confirm the file is BMS XML, not a PDF or spreadsheet",
		}
	case CategoryValidation:
		return []string{
			"Review the validation messages and complete the missing fields",
			"Resubmit the corrected estimate",
		}
	case CategoryNetwork:
		return []string{
			"Retry the request",
			"Check vendor endpoint availability if the problem persists",
		}
	case CategoryDatabase:
		return []string{"Retry the request", "Contact support if retries keep failing"}
	case CategoryPermission:
		return []string{"Contact an administrator to request access"}
	case CategoryResourceLimit:
		return []string{
			"Split the submission into smaller files",
			"Remove embedded attachments from the estimate export",
		}
	default:
		return []string{"Retry the request", "Contact support with the report id"}
	}
}

func technicalMessage(err error, ctx Context) string {
	var b strings.Builder
	if ctx.Operation != "" {
		b.WriteString(ctx.Operation)
		b.WriteString(": ")
	}
	b.WriteString(err.Error())
	return utils.SanitizeString(b.String())
}
