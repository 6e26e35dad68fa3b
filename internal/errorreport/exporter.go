package errorreport

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const exportSheet = "Error Reports"

// Exporter writes report sets as xlsx workbooks
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates an xlsx exporter
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// ExportXLSX renders the reports to a workbook and returns its bytes.
// User messages are exported; technical detail stays internal.
func (e *Exporter) ExportXLSX(reports []Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		e.logger.Warn("Failed to remove default sheet", zap.Error(err))
	}

	headers := []string{
		"Report ID", "Created At", "Category", "Severity", "Message",
		"Retryable", "Operation", "Document ID", "Batch ID", "Filename",
		"Resolved", "Resolved By", "Resolved At",
	}
	for col, h := range headers {
		e.setCell(f, col+1, 1, h)
	}

	for row, r := range reports {
		resolvedAt := ""
		if r.ResolvedAt != nil {
			resolvedAt = r.ResolvedAt.Format("2006-01-02 15:04:05")
		}
		values := []interface{}{
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			string(r.Category),
			string(r.Severity),
			r.UserMessage,
			r.Retryable,
			r.Context.Operation,
			r.Context.DocumentID,
			r.Context.BatchID,
			r.Context.Filename,
			r.Resolved,
			r.ResolvedBy,
			resolvedAt,
		}
		for col, v := range values {
			e.setCell(f, col+1, row+2, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Error reports exported",
		zap.Int("reports", len(reports)),
		zap.Int("bytes", buf.Len()))

	return buf.Bytes(), nil
}

// setCell writes one cell, logging rather than failing on cell errors
func (e *Exporter) setCell(f *excelize.File, col, row int, value interface{}) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		e.logger.Warn("Invalid cell coordinates",
			zap.Int("col", col),
			zap.Int("row", row),
			zap.Error(err))
		return
	}
	if err := f.SetCellValue(exportSheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
