// Package pipeline runs one estimate document through the full chain:
// parse, validate, decode the VIN, source parts and draft purchase
// orders, then record the outcome.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/collisionworks/partspipe/internal/batch"
	"github.com/collisionworks/partspipe/internal/bms"
	"github.com/collisionworks/partspipe/internal/errorreport"
	"github.com/collisionworks/partspipe/internal/repository"
	"github.com/collisionworks/partspipe/internal/sourcing"
	"github.com/collisionworks/partspipe/internal/validation"
	"github.com/collisionworks/partspipe/internal/vin"
)

// Options controls which pipeline stages run
type Options struct {
	EnableAutomatedSourcing bool
	EnhanceWithVINDecoding  bool
	GenerateAutoPO          bool
	ApprovalThreshold       float64
	BaseMarkupFraction      float64
}

// Result is the full outcome for one processed document
type Result struct {
	DocumentID string                     `json:"document_id"`
	Filename   string                     `json:"filename,omitempty"`
	ParseStatus bms.ParseStatus           `json:"parse_status"`
	Validation *validation.Result         `json:"validation,omitempty"`
	Vehicle    *vin.Descriptor            `json:"vehicle,omitempty"`
	Sourcing   *sourcing.Report           `json:"sourcing,omitempty"`
	POs        []sourcing.PORecommendation `json:"po_recommendations,omitempty"`
}

// Service wires the pipeline stages. It implements batch.FileProcessor
// so batches reuse the exact single-file path.
type Service struct {
	parser    *bms.Parser
	validator *validation.Engine
	decoder   *vin.Decoder
	sourcer   *sourcing.Engine
	estimates *repository.EstimateRepository
	reporter  *errorreport.Reporter
	opts      Options
	logger    *zap.Logger
}

// NewService creates the pipeline service. decoder, sourcer and
// estimates may be nil when the corresponding stage is disabled or no
// database is configured.
func NewService(
	parser *bms.Parser,
	validator *validation.Engine,
	decoder *vin.Decoder,
	sourcer *sourcing.Engine,
	estimates *repository.EstimateRepository,
	reporter *errorreport.Reporter,
	opts Options,
	logger *zap.Logger,
) *Service {
	return &Service{
		parser:    parser,
		validator: validator,
		decoder:   decoder,
		sourcer:   sourcer,
		estimates: estimates,
		reporter:  reporter,
		opts:      opts,
		logger:    logger,
	}
}

// ProcessEstimate runs the pipeline for one document and returns the
// combined result. Parse and resource-limit failures are the only hard
// errors; validation failures come back as data.
func (s *Service) ProcessEstimate(ctx context.Context, filename string, data []byte) (*Result, error) {
	doc, err := s.parser.Parse(data)
	if err != nil {
		s.reporter.Report(err, errorreport.Context{
			Operation: "parse",
			Filename:  filename,
		})
		s.saveRecord(&repository.EstimateRecord{
			DocumentID:  uuid.NewString(),
			Filename:    filename,
			ParseStatus: string(bms.ParseStatusFailed),
		})
		return nil, fmt.Errorf("processing %s: %w", filename, err)
	}

	documentID := doc.DocumentID
	if documentID == "" {
		documentID = uuid.NewString()
	}

	result := &Result{
		DocumentID:  documentID,
		Filename:    filename,
		ParseStatus: doc.ParseStatus,
	}

	result.Validation = s.validator.Validate(doc)

	var vehicle *vin.Descriptor
	if s.opts.EnhanceWithVINDecoding && s.decoder != nil && doc.Vehicle.VIN != "" {
		vehicle = s.decoder.Decode(ctx, doc.Vehicle.VIN)
		result.Vehicle = vehicle
	}

	// Critical validation failures block automated sourcing and PO
	// generation; the caller still gets the full validation detail.
	if s.opts.EnableAutomatedSourcing && s.sourcer != nil && result.Validation.IsValid {
		report := s.sourcer.SourceDocument(ctx, doc, vehicle)
		report.DocumentID = documentID
		result.Sourcing = report

		if s.opts.GenerateAutoPO {
			result.POs = sourcing.GeneratePORecommendations(report, sourcing.POOptions{
				BaseMarkupFraction: s.opts.BaseMarkupFraction,
				ApprovalThreshold:  s.opts.ApprovalThreshold,
			})
		}
	}

	s.saveRecord(summaryRecord(result, doc, filename))

	s.logger.Info("Document processed",
		zap.String("document_id", documentID),
		zap.String("filename", filename),
		zap.Bool("valid", result.Validation.IsValid),
		zap.Int("damage_lines", len(doc.DamageLines)))

	return result, nil
}

// ProcessFile adapts ProcessEstimate to the batch worker contract
func (s *Service) ProcessFile(ctx context.Context, spec batch.FileSpec) error {
	_, err := s.ProcessEstimate(ctx, spec.Filename, spec.Data)
	return err
}

// saveRecord persists the summary row. Storage failures are reported
// and swallowed: the pipeline result stands on its own.
func (s *Service) saveRecord(record *repository.EstimateRecord) {
	if s.estimates == nil {
		return
	}
	if err := s.estimates.Save(nil, record); err != nil {
		s.reporter.Report(err, errorreport.Context{
			Operation:  "save estimate record",
			DocumentID: record.DocumentID,
			Filename:   record.Filename,
		})
	}
}

func summaryRecord(result *Result, doc *bms.EstimateDocument, filename string) *repository.EstimateRecord {
	record := &repository.EstimateRecord{
		DocumentID:  result.DocumentID,
		Filename:    filename,
		ClaimNumber: doc.Claim.ClaimNumber,
		VIN:         doc.Vehicle.VIN,
		ParseStatus: string(doc.ParseStatus),
		IsValid:     result.Validation.IsValid,
		LinesTotal:  len(doc.DamageLines),
		POCount:     len(result.POs),
	}
	record.CriticalErrors = len(result.Validation.Errors)
	record.Warnings = len(result.Validation.Warnings)

	if result.Sourcing != nil {
		for _, d := range result.Sourcing.Decisions {
			switch d.Status {
			case sourcing.DecisionRecommended:
				record.LinesRecommended++
			case sourcing.DecisionManualSourcing:
				record.LinesManual++
			case sourcing.DecisionTimeout:
				record.LinesTimeout++
			}
		}
	}

	return record
}
