// Package repository persists processed-estimate summaries and error
// reports to sqlite. Pipeline decisions never depend on these reads;
// the tables are the downstream record of what happened.
package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// EstimateRecord is the summary row written after a document finishes
// the pipeline, whatever the outcome.
type EstimateRecord struct {
	ID               int64     `json:"id"`
	DocumentID       string    `json:"document_id"`
	Filename         string    `json:"filename"`
	ClaimNumber      string    `json:"claim_number"`
	VIN              string    `json:"vin"`
	ParseStatus      string    `json:"parse_status"`
	IsValid          bool      `json:"is_valid"`
	CriticalErrors   int       `json:"critical_errors"`
	Warnings         int       `json:"warnings"`
	LinesTotal       int       `json:"lines_total"`
	LinesRecommended int       `json:"lines_recommended"`
	LinesManual      int       `json:"lines_manual"`
	LinesTimeout     int       `json:"lines_timeout"`
	POCount          int       `json:"po_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// EstimateRepository handles estimate summary database operations
type EstimateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEstimateRepository creates a new estimate repository
func NewEstimateRepository(db *sql.DB, logger *zap.Logger) *EstimateRepository {
	return &EstimateRepository{
		db:     db,
		logger: logger,
	}
}

// Save inserts a summary row. Pass a transaction to join one, or nil to
// run standalone.
func (r *EstimateRepository) Save(tx *sql.Tx, record *EstimateRecord) error {
	query := `
		INSERT INTO estimates (
			document_id, filename, claim_number, vin, parse_status,
			is_valid, critical_errors, warnings, lines_total,
			lines_recommended, lines_manual, lines_timeout, po_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	args := []interface{}{
		record.DocumentID,
		record.Filename,
		record.ClaimNumber,
		record.VIN,
		record.ParseStatus,
		record.IsValid,
		record.CriticalErrors,
		record.Warnings,
		record.LinesTotal,
		record.LinesRecommended,
		record.LinesManual,
		record.LinesTimeout,
		record.POCount,
	}

	var result sql.Result
	var err error
	if tx != nil {
		result, err = tx.Exec(query, args...)
	} else {
		result, err = r.db.Exec(query, args...)
	}
	if err != nil {
		r.logger.Error("Failed to save estimate record",
			zap.String("document_id", record.DocumentID),
			zap.Error(err))
		return fmt.Errorf("failed to save estimate record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	record.ID = id

	r.logger.Debug("Estimate record saved",
		zap.Int64("id", id),
		zap.String("document_id", record.DocumentID))

	return nil
}

// GetByDocumentID returns the most recent summary for a document id
func (r *EstimateRepository) GetByDocumentID(documentID string) (*EstimateRecord, error) {
	query := `
		SELECT id, document_id, filename, claim_number, vin, parse_status,
		       is_valid, critical_errors, warnings, lines_total,
		       lines_recommended, lines_manual, lines_timeout, po_count,
		       created_at
		FROM estimates
		WHERE document_id = ?
		ORDER BY id DESC
		LIMIT 1
	`

	record := &EstimateRecord{}
	err := r.db.QueryRow(query, documentID).Scan(
		&record.ID,
		&record.DocumentID,
		&record.Filename,
		&record.ClaimNumber,
		&record.VIN,
		&record.ParseStatus,
		&record.IsValid,
		&record.CriticalErrors,
		&record.Warnings,
		&record.LinesTotal,
		&record.LinesRecommended,
		&record.LinesManual,
		&record.LinesTimeout,
		&record.POCount,
		&record.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get estimate record: %w", err)
	}

	return record, nil
}

// ListRecent returns the latest summaries, newest first
func (r *EstimateRepository) ListRecent(limit int) ([]*EstimateRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, document_id, filename, claim_number, vin, parse_status,
		       is_valid, critical_errors, warnings, lines_total,
		       lines_recommended, lines_manual, lines_timeout, po_count,
		       created_at
		FROM estimates
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list estimate records: %w", err)
	}
	defer rows.Close()

	var records []*EstimateRecord
	for rows.Next() {
		record := &EstimateRecord{}
		if err := rows.Scan(
			&record.ID,
			&record.DocumentID,
			&record.Filename,
			&record.ClaimNumber,
			&record.VIN,
			&record.ParseStatus,
			&record.IsValid,
			&record.CriticalErrors,
			&record.Warnings,
			&record.LinesTotal,
			&record.LinesRecommended,
			&record.LinesManual,
			&record.LinesTimeout,
			&record.POCount,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan estimate record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}
