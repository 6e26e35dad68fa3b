// Package sourcing implements the automated parts-sourcing decision
// engine: part classification, concurrent vendor quoting, weighted
// scoring and purchase-order recommendation drafting.
package sourcing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/collisionworks/partspipe/internal/bms"
	"github.com/collisionworks/partspipe/internal/vin"
)

// DecisionStatus is the per-line sourcing outcome
type DecisionStatus string

const (
	DecisionRecommended    DecisionStatus = "RECOMMENDED"
	DecisionManualSourcing DecisionStatus = "MANUAL_SOURCING"
	DecisionTimeout        DecisionStatus = "NOT_SOURCED_TIMEOUT"
)

// Decision is the sourcing outcome for one damage line
type Decision struct {
	LineNumber         int                 `json:"line_number"`
	Description        string              `json:"description"`
	PartNumber         string              `json:"part_number,omitempty"`
	Quantity           int                 `json:"quantity"`
	Classification     Classification      `json:"classification"`
	Status             DecisionStatus      `json:"status"`
	Quotes             []VendorQuoteResult `json:"quotes"`
	RecommendedVendor  *VendorQuoteResult  `json:"recommended_vendor,omitempty"`
	RankedAlternatives []VendorQuoteResult `json:"ranked_alternatives,omitempty"`
	ReasoningFactors   []string            `json:"reasoning_factors,omitempty"`
	RequiresApproval   bool                `json:"requires_approval"`
}

// Report is the sourcing outcome for one document
type Report struct {
	DocumentID    string        `json:"document_id"`
	Vehicle       *vin.Descriptor `json:"vehicle,omitempty"`
	Decisions     []Decision    `json:"decisions"`
	ManualLines   int           `json:"manual_lines"`
	TimedOutLines int           `json:"timed_out_lines"`
	Elapsed       time.Duration `json:"elapsed_ns"`
}

// Options holds the per-run sourcing configuration
type Options struct {
	VendorAllowList    []string
	PerVendorTimeout   time.Duration
	DocumentBudget     time.Duration
	ApprovalThreshold  float64
	LowConfidenceFloor float64
	LineConcurrency    int
	Weights            ScoreWeights
	QuoteCacheTTL      time.Duration
}

// normalized fills defaults for zero-valued options
func (o Options) normalized() Options {
	if o.PerVendorTimeout <= 0 {
		o.PerVendorTimeout = 5 * time.Second
	}
	if o.DocumentBudget <= 0 {
		o.DocumentBudget = 60 * time.Second
	}
	if o.ApprovalThreshold <= 0 {
		o.ApprovalThreshold = 1500
	}
	if o.LowConfidenceFloor <= 0 {
		o.LowConfidenceFloor = 0.5
	}
	if o.LineConcurrency <= 0 {
		o.LineConcurrency = 4
	}
	o.Weights = o.Weights.Normalize()
	return o
}

// Engine runs the sourcing pass over a document's damage lines
type Engine struct {
	registry    *VendorRegistry
	reliability ReliabilityStore
	cache       *quoteCache
	opts        Options
	logger      *zap.Logger
}

// NewEngine creates a sourcing engine
func NewEngine(registry *VendorRegistry, reliability ReliabilityStore, opts Options, logger *zap.Logger) *Engine {
	opts = opts.normalized()
	return &Engine{
		registry:    registry,
		reliability: reliability,
		cache:       newQuoteCache(opts.QuoteCacheTTL),
		opts:        opts,
		logger:      logger,
	}
}

// SourceDocument sources every damage line of a document. Lines run under
// a bounded worker pool; vendor queries for one line run in parallel. The
// document budget bounds total time: lines not finished within it come
// back as NOT_SOURCED_TIMEOUT. Output preserves original line order.
func (e *Engine) SourceDocument(ctx context.Context, doc *bms.EstimateDocument, vehicle *vin.Descriptor) *Report {
	started := time.Now()

	budgetCtx, cancel := context.WithTimeout(ctx, e.opts.DocumentBudget)
	defer cancel()

	providers := e.registry.Allowed(e.opts.VendorAllowList)

	decisions := make([]Decision, len(doc.DamageLines))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < e.opts.LineConcurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				decisions[i] = e.sourceLine(budgetCtx, doc.DamageLines[i], vehicle, providers)
			}
		}()
	}

dispatch:
	for i := range doc.DamageLines {
		select {
		case indexes <- i:
		case <-budgetCtx.Done():
			// Budget exhausted before this line was picked up.
			decisions[i] = timeoutDecision(doc.DamageLines[i])
			break dispatch
		}
	}
	close(indexes)
	wg.Wait()

	report := &Report{
		DocumentID: doc.DocumentID,
		Vehicle:    vehicle,
		Decisions:  decisions,
		Elapsed:    time.Since(started),
	}
	for i := range decisions {
		// Lines dispatched but interrupted mid-flight also surface as
		// timeouts rather than staying pending.
		if decisions[i].Status == "" {
			decisions[i] = timeoutDecision(doc.DamageLines[i])
		}
		switch decisions[i].Status {
		case DecisionManualSourcing:
			report.ManualLines++
		case DecisionTimeout:
			report.TimedOutLines++
		}
	}

	e.logger.Info("Sourcing pass complete",
		zap.String("document_id", doc.DocumentID),
		zap.Int("lines", len(decisions)),
		zap.Int("manual", report.ManualLines),
		zap.Int("timed_out", report.TimedOutLines),
		zap.Duration("elapsed", report.Elapsed))

	return report
}

// sourceLine classifies one line, fans out quotes and selects a vendor
func (e *Engine) sourceLine(ctx context.Context, line bms.DamageLine, vehicle *vin.Descriptor, providers []VendorProvider) Decision {
	if ctx.Err() != nil {
		return timeoutDecision(line)
	}

	classification := ClassifyPart(line)

	req := QuoteRequest{
		LineNumber:    line.LineNumber,
		PartNumber:    line.PartNumber,
		OEMPartNumber: line.OEMPartNumber,
		Description:   line.Description,
		Quantity:      line.Quantity,
		Category:      classification.Category,
		SourceHint:    classification.SourceHint,
		Vehicle:       vehicle,
	}

	quotes := e.fanOut(ctx, req, providers)

	decision := Decision{
		LineNumber:     line.LineNumber,
		Description:    line.Description,
		PartNumber:     line.PartNumber,
		Quantity:       line.Quantity,
		Classification: classification,
		Quotes:         make([]VendorQuoteResult, 0, len(quotes)),
	}
	for _, q := range quotes {
		decision.Quotes = append(decision.Quotes, *q)
	}

	ranked := rankQuotes(quotes, classification.SourceHint, e.opts.Weights)
	if len(ranked) == 0 {
		decision.Status = DecisionManualSourcing
		decision.RequiresApproval = true
		decision.ReasoningFactors = append(decision.ReasoningFactors,
			"no vendor responded within timeout; manual sourcing required")
		if ctx.Err() != nil {
			decision.Status = DecisionTimeout
			decision.ReasoningFactors = []string{"not sourced: timeout"}
		}
		return decision
	}

	winner := *ranked[0].quote
	decision.Status = DecisionRecommended
	decision.RecommendedVendor = &winner
	for _, alt := range ranked[1:] {
		decision.RankedAlternatives = append(decision.RankedAlternatives, *alt.quote)
	}

	decision.ReasoningFactors = append(decision.ReasoningFactors,
		fmt.Sprintf("selected %s at %.2f (score %.3f) from %d responding vendors",
			winner.VendorID, winner.Price, ranked[0].score, len(ranked)))

	extended := winner.Price * float64(line.Quantity)
	if extended > e.opts.ApprovalThreshold {
		decision.RequiresApproval = true
		decision.ReasoningFactors = append(decision.ReasoningFactors,
			fmt.Sprintf("extended price %.2f exceeds approval threshold %.2f", extended, e.opts.ApprovalThreshold))
	}
	if classification.Confidence < e.opts.LowConfidenceFloor {
		decision.RequiresApproval = true
		decision.ReasoningFactors = append(decision.ReasoningFactors,
			fmt.Sprintf("classification confidence %.2f below floor %.2f", classification.Confidence, e.opts.LowConfidenceFloor))
	}

	return decision
}

// fanOut queries every provider concurrently, each under its own
// timeout. A vendor failure or panic becomes a quote-level error and
// never aborts the line.
func (e *Engine) fanOut(ctx context.Context, req QuoteRequest, providers []VendorProvider) []*VendorQuoteResult {
	results := make([]*VendorQuoteResult, len(providers))

	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p VendorProvider) {
			defer wg.Done()
			results[i] = e.quoteOne(ctx, p, req)
		}(i, p)
	}
	wg.Wait()

	return results
}

func (e *Engine) quoteOne(ctx context.Context, p VendorProvider, req QuoteRequest) (result *VendorQuoteResult) {
	key := quoteKey(p.ID(), req)
	if cached, ok := e.cache.get(key); ok {
		hit := *cached
		hit.LineNumber = req.LineNumber
		return &hit
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Vendor provider panicked",
				zap.String("vendor_id", p.ID()),
				zap.Any("panic", r))
			result = &VendorQuoteResult{
				VendorID:     p.ID(),
				LineNumber:   req.LineNumber,
				Availability: AvailabilityUnavailable,
				Error:        fmt.Sprintf("vendor provider panic: %v", r),
			}
		}
	}()

	quoteCtx, cancel := context.WithTimeout(ctx, e.opts.PerVendorTimeout)
	defer cancel()

	started := time.Now()
	quote, err := p.Quote(quoteCtx, req)
	latency := time.Since(started).Milliseconds()

	if err != nil {
		e.logger.Warn("Vendor quote failed",
			zap.String("vendor_id", p.ID()),
			zap.Int("line_number", req.LineNumber),
			zap.Error(err))
		return &VendorQuoteResult{
			VendorID:     p.ID(),
			LineNumber:   req.LineNumber,
			Availability: AvailabilityUnavailable,
			LatencyMs:    latency,
			Error:        err.Error(),
		}
	}

	quote.VendorID = p.ID()
	quote.LineNumber = req.LineNumber
	quote.LatencyMs = latency
	quote.ReliabilityScore = e.reliability.Score(p.ID())

	e.cache.put(key, quote)
	return quote
}

func timeoutDecision(line bms.DamageLine) Decision {
	return Decision{
		LineNumber:       line.LineNumber,
		Description:      line.Description,
		PartNumber:       line.PartNumber,
		Quantity:         line.Quantity,
		Status:           DecisionTimeout,
		RequiresApproval: true,
		ReasoningFactors: []string{"not sourced: timeout"},
	}
}
