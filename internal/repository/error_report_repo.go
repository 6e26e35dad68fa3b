package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/collisionworks/partspipe/internal/errorreport"
)

// ErrorReportRepository mirrors classified error reports to sqlite so
// they survive a restart. It implements errorreport.AuditSink.
type ErrorReportRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewErrorReportRepository creates a new error report repository
func NewErrorReportRepository(db *sql.DB, logger *zap.Logger) *ErrorReportRepository {
	return &ErrorReportRepository{
		db:     db,
		logger: logger,
	}
}

// SaveReport inserts one report row
func (r *ErrorReportRepository) SaveReport(report *errorreport.Report) error {
	query := `
		INSERT INTO error_reports (
			report_id, category, severity, user_message, technical_message,
			suggestions, retryable, operation, document_id, batch_id,
			filename, resolved, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		report.ID,
		string(report.Category),
		string(report.Severity),
		report.UserMessage,
		report.TechnicalMessage,
		strings.Join(report.Suggestions, "\n"),
		report.Retryable,
		report.Context.Operation,
		report.Context.DocumentID,
		report.Context.BatchID,
		report.Context.Filename,
		report.Resolved,
		report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save error report: %w", err)
	}

	return nil
}

// MarkResolved records a resolution on the mirrored row
func (r *ErrorReportRepository) MarkResolved(reportID, resolvedBy string, resolvedAt time.Time) error {
	query := `
		UPDATE error_reports
		SET resolved = 1, resolved_by = ?, resolved_at = ?
		WHERE report_id = ? AND resolved = 0
	`

	result, err := r.db.Exec(query, resolvedBy, resolvedAt, reportID)
	if err != nil {
		return fmt.Errorf("failed to mark report resolved: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		r.logger.Debug("Resolution update matched no rows",
			zap.String("report_id", reportID))
	}

	return nil
}

// CountByCategory returns report counts grouped by category
func (r *ErrorReportRepository) CountByCategory() (map[string]int, error) {
	rows, err := r.db.Query("SELECT category, COUNT(*) FROM error_reports GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("failed to count reports: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("failed to scan report count: %w", err)
		}
		counts[category] = n
	}

	return counts, rows.Err()
}
