package sourcing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/collisionworks/partspipe/internal/bms"
	"github.com/collisionworks/partspipe/internal/vin"
)

// Availability states reported per vendor quote
const (
	AvailabilityInStock     = "IN_STOCK"
	AvailabilityBackordered = "BACKORDERED"
	AvailabilityUnavailable = "UNAVAILABLE"
)

// QuoteRequest asks one vendor to price one part for one vehicle
type QuoteRequest struct {
	LineNumber    int
	PartNumber    string
	OEMPartNumber string
	Description   string
	Quantity      int
	Category      PartCategory
	SourceHint    bms.PartSourceType
	Vehicle       *vin.Descriptor
}

// VendorQuoteResult is one vendor's answer (or failure) for one line
type VendorQuoteResult struct {
	VendorID         string  `json:"vendor_id"`
	LineNumber       int     `json:"line_number"`
	Price            float64 `json:"price"`
	LeadTimeDays     int     `json:"lead_time_days"`
	Availability     string  `json:"availability"`
	SourceType       bms.PartSourceType `json:"source_type"`
	ReliabilityScore float64 `json:"reliability_score"`
	LatencyMs        int64   `json:"latency_ms"`
	Error            string  `json:"error,omitempty"`
}

// Responded reports whether this result carries a usable quote
func (r *VendorQuoteResult) Responded() bool {
	return r.Error == "" && r.Availability != AvailabilityUnavailable && r.Price > 0
}

// VendorProvider is the per-vendor quote capability. Vendors register
// implementations of this interface; adding or removing a vendor never
// touches the scoring algorithm.
type VendorProvider interface {
	ID() string
	Quote(ctx context.Context, req QuoteRequest) (*VendorQuoteResult, error)
}

// VendorRegistry is the registered set of vendor providers
type VendorRegistry struct {
	mu        sync.RWMutex
	providers map[string]VendorProvider
}

// NewVendorRegistry creates an empty registry
func NewVendorRegistry() *VendorRegistry {
	return &VendorRegistry{providers: make(map[string]VendorProvider)}
}

// Register adds a provider, replacing any previous provider with the same id
func (r *VendorRegistry) Register(p VendorProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// Allowed returns the providers matching the allow-list, in allow-list
// order. An empty allow-list means every registered vendor.
func (r *VendorRegistry) Allowed(allowList []string) []VendorProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(allowList) == 0 {
		out := make([]VendorProvider, 0, len(r.providers))
		for _, p := range r.providers {
			out = append(out, p)
		}
		return out
	}

	out := make([]VendorProvider, 0, len(allowList))
	for _, id := range allowList {
		if p, ok := r.providers[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// ReliabilityStore supplies per-vendor reliability history scores in [0,1]
type ReliabilityStore interface {
	Score(vendorID string) float64
}

// StaticReliabilityStore is a config-seeded reliability source
type StaticReliabilityStore struct {
	scores       map[string]float64
	defaultScore float64
}

// NewStaticReliabilityStore builds a store from config seeds. Unknown
// vendors get the default score.
func NewStaticReliabilityStore(seeds map[string]float64, defaultScore float64) *StaticReliabilityStore {
	if defaultScore <= 0 {
		defaultScore = 0.5
	}
	return &StaticReliabilityStore{scores: seeds, defaultScore: defaultScore}
}

// Score returns the seeded reliability for a vendor
func (s *StaticReliabilityStore) Score(vendorID string) float64 {
	if v, ok := s.scores[vendorID]; ok {
		return v
	}
	return s.defaultScore
}

// HTTPVendorProvider quotes against a vendor's JSON pricing endpoint
type HTTPVendorProvider struct {
	id         string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPVendorProvider creates a provider for one vendor backend. The
// per-call deadline is the caller's context; no client-level timeout.
func NewHTTPVendorProvider(id, endpoint string, logger *zap.Logger) *HTTPVendorProvider {
	return &HTTPVendorProvider{
		id:         id,
		endpoint:   endpoint,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// ID returns the vendor identifier
func (p *HTTPVendorProvider) ID() string { return p.id }

type vendorQuoteWire struct {
	Price        float64 `json:"price"`
	LeadTimeDays int     `json:"lead_time_days"`
	Availability string  `json:"availability"`
	SourceType   string  `json:"source_type"`
}

// Quote requests a price for the part from the vendor backend
func (p *HTTPVendorProvider) Quote(ctx context.Context, req QuoteRequest) (*VendorQuoteResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"part_number":     req.PartNumber,
		"oem_part_number": req.OEMPartNumber,
		"description":     req.Description,
		"quantity":        req.Quantity,
		"vin":             vehicleVIN(req.Vehicle),
		"make":            vehicleMake(req.Vehicle),
		"year":            vehicleYear(req.Vehicle),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quote request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("vendor %s quote failed: %w", p.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vendor %s returned status %d", p.id, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read vendor %s response: %w", p.id, err)
	}

	var wire vendorQuoteWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode vendor %s response: %w", p.id, err)
	}

	return &VendorQuoteResult{
		VendorID:     p.id,
		LineNumber:   req.LineNumber,
		Price:        wire.Price,
		LeadTimeDays: wire.LeadTimeDays,
		Availability: normalizeAvailability(wire.Availability),
		SourceType:   wireSourceType(wire.SourceType),
	}, nil
}

func vehicleVIN(d *vin.Descriptor) string {
	if d == nil {
		return ""
	}
	return d.VIN
}

func vehicleMake(d *vin.Descriptor) string {
	if d == nil {
		return ""
	}
	return d.Make
}

func vehicleYear(d *vin.Descriptor) int {
	if d == nil {
		return 0
	}
	return d.Year
}

func normalizeAvailability(s string) string {
	switch s {
	case AvailabilityInStock, AvailabilityBackordered, AvailabilityUnavailable:
		return s
	case "in_stock", "available":
		return AvailabilityInStock
	case "backordered":
		return AvailabilityBackordered
	default:
		return AvailabilityUnavailable
	}
}

func wireSourceType(s string) bms.PartSourceType {
	switch s {
	case string(bms.SourceOEM):
		return bms.SourceOEM
	case string(bms.SourceAftermarket):
		return bms.SourceAftermarket
	case string(bms.SourceRecycled):
		return bms.SourceRecycled
	default:
		return bms.SourceUnknown
	}
}
