package bms

import "time"

// ParseStatus indicates the outcome of parsing one uploaded document
type ParseStatus string

const (
	ParseStatusParsed ParseStatus = "PARSED"
	ParseStatusFailed ParseStatus = "FAILED"
)

// PartSourceType classifies where a replacement part comes from
type PartSourceType string

const (
	SourceOEM         PartSourceType = "OEM"
	SourceAftermarket PartSourceType = "AFTERMARKET"
	SourceRecycled    PartSourceType = "RECYCLED"
	SourceUnknown     PartSourceType = "UNKNOWN"
)

// EstimateDocument is the normalized form of one BMS estimate upload.
// All fields are plain typed values; no XML attribute or namespace
// artifacts survive past the parser.
type EstimateDocument struct {
	DocumentID   string
	ClaimNumber  string
	VendorCode   string
	CreatedAt    time.Time
	ParseStatus  ParseStatus
	Vehicle      VehicleInfo
	Customer     CustomerInfo
	Claim        ClaimInfo
	DamageLines  []DamageLine
	TotalAmount  float64
	EstimatorID  string
}

// VehicleInfo is the minimal vehicle projection needed for sourcing
type VehicleInfo struct {
	VIN          string
	Year         int
	Make         string
	Model        string
	Odometer     int
	ExteriorColor string
}

// CustomerInfo holds the claimant contact fields extracted from the document
type CustomerInfo struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// ClaimInfo holds claim-level metadata
type ClaimInfo struct {
	ClaimNumber      string
	PolicyNumber     string
	InsuranceCompany string
	LossDate         time.Time
	DeductibleAmount float64
}

// DamageLine is one itemized part or labor entry in an estimate
type DamageLine struct {
	LineNumber    int
	Description   string
	PartNumber    string
	OEMPartNumber string
	Quantity      int
	UnitCost      float64
	LaborHours    float64
	Category      string
	SourceType    PartSourceType

	// UnitCostRaw keeps the original money text when it could not be
	// parsed, so the validation engine can report it.
	UnitCostRaw string
}
