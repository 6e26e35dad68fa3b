package bms

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Expected root element of a BMS estimate interchange document
const estimateRootElement = "VehicleDamageEstimateAddRq"

// DefaultMaxDocumentBytes caps input size when no limit is configured
const DefaultMaxDocumentBytes = 10 << 20 // 10 MiB

// Config holds parser configuration
type Config struct {
	MaxDocumentBytes int64
}

// Parser turns raw BMS document bytes into a normalized EstimateDocument
type Parser struct {
	maxBytes int64
	logger   *zap.Logger
}

// NewParser creates a new parser
func NewParser(cfg Config, logger *zap.Logger) *Parser {
	maxBytes := cfg.MaxDocumentBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDocumentBytes
	}
	return &Parser{
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Wire types mirror the interchange layout. They never leave this file;
// normalization copies their content into the plain exported model.

type wireEstimate struct {
	XMLName      xml.Name        `xml:"VehicleDamageEstimateAddRq"`
	DocumentInfo wireDocInfo     `xml:"DocumentInfo"`
	ClaimInfo    wireClaimInfo   `xml:"ClaimInfo"`
	AdminInfo    wireAdminInfo   `xml:"AdminInfo"`
	VehicleInfo  wireVehicleInfo `xml:"VehicleInfo"`
	DamageLines  []wireLine      `xml:"DamageLineInfo>DamageLine"`
	TotalsInfo   wireTotals      `xml:"TotalsInfo"`
}

type wireDocInfo struct {
	DocumentID     string `xml:"DocumentID"`
	VendorCode     string `xml:"VendorCode"`
	CreateDateTime string `xml:"CreateDateTime"`
	EstimatorID    string `xml:"EstimatorID"`
}

type wireClaimInfo struct {
	ClaimNum         string `xml:"ClaimNum"`
	PolicyNum        string `xml:"PolicyNum"`
	InsuranceCompany string `xml:"InsuranceCompany"`
	LossDate         string `xml:"LossDate"`
	Deductible       string `xml:"DeductibleAmt"`
}

type wireAdminInfo struct {
	Owner struct {
		FirstName string `xml:"Party>PersonInfo>PersonName>FirstName"`
		LastName  string `xml:"Party>PersonInfo>PersonName>LastName"`
		Email     string `xml:"Party>ContactInfo>Communications>CommEmail"`
		Phone     string `xml:"Party>ContactInfo>Communications>CommPhoneNum"`
	} `xml:"Owner"`
}

type wireVehicleInfo struct {
	VIN      string `xml:"VINInfo>VIN>VINNum"`
	Year     string `xml:"VehicleDesc>ModelYear"`
	Make     string `xml:"VehicleDesc>MakeDesc"`
	Model    string `xml:"VehicleDesc>ModelName"`
	Odometer string `xml:"VehicleDesc>OdometerReading"`
	Color    string `xml:"Body>ExteriorColor"`
}

type wireLine struct {
	LineNum       string `xml:"LineNum"`
	LineDesc      string `xml:"LineDesc"`
	PartNum       string `xml:"PartInfo>PartNum"`
	OEMPartNum    string `xml:"PartInfo>OEMPartNum"`
	PartType      string `xml:"PartInfo>PartType"`
	Quantity      string `xml:"PartInfo>Quantity"`
	UnitPrice     string `xml:"PartInfo>PartPrice"`
	LaborHours    string `xml:"LaborInfo>LaborHours"`
	LaborCategory string `xml:"LaborInfo>LaborType"`
}

type wireTotals struct {
	TotalAmt string `xml:"TotalAmt"`
}

// Parse validates size, decodes the XML and returns the normalized
// document. It fails only on oversized or structurally broken input;
// unusual but well-formed content parses without error.
func (p *Parser) Parse(data []byte) (*EstimateDocument, error) {
	if int64(len(data)) > p.maxBytes {
		return nil, &ResourceLimitError{Limit: p.maxBytes, Actual: int64(len(data))}
	}

	root, err := rootElementName(data)
	if err != nil {
		return nil, &ParseError{Reason: "malformed XML", Err: err}
	}
	if root != estimateRootElement {
		return nil, &ParseError{
			Reason: fmt.Sprintf("unexpected root element %q, want %q", root, estimateRootElement),
		}
	}

	var wire wireEstimate
	if err := xml.Unmarshal(data, &wire); err != nil {
		return nil, &ParseError{Reason: "malformed XML", Err: err}
	}

	doc := p.normalize(&wire)

	p.logger.Debug("Parsed estimate document",
		zap.String("document_id", doc.DocumentID),
		zap.String("claim_number", doc.ClaimNumber),
		zap.Int("damage_lines", len(doc.DamageLines)))

	return doc, nil
}

// rootElementName scans to the first start element without fully
// materializing the document tree.
func rootElementName(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", fmt.Errorf("no root element found")
		}
		if err != nil {
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

func (p *Parser) normalize(wire *wireEstimate) *EstimateDocument {
	doc := &EstimateDocument{
		DocumentID:  strings.TrimSpace(wire.DocumentInfo.DocumentID),
		ClaimNumber: strings.TrimSpace(wire.ClaimInfo.ClaimNum),
		VendorCode:  strings.TrimSpace(wire.DocumentInfo.VendorCode),
		EstimatorID: strings.TrimSpace(wire.DocumentInfo.EstimatorID),
		ParseStatus: ParseStatusParsed,
		Vehicle: VehicleInfo{
			VIN:           strings.ToUpper(strings.TrimSpace(wire.VehicleInfo.VIN)),
			Year:          parseIntField(wire.VehicleInfo.Year),
			Make:          strings.TrimSpace(wire.VehicleInfo.Make),
			Model:         strings.TrimSpace(wire.VehicleInfo.Model),
			Odometer:      parseIntField(wire.VehicleInfo.Odometer),
			ExteriorColor: strings.TrimSpace(wire.VehicleInfo.Color),
		},
		Customer: CustomerInfo{
			FirstName: strings.TrimSpace(wire.AdminInfo.Owner.FirstName),
			LastName:  strings.TrimSpace(wire.AdminInfo.Owner.LastName),
			Email:     strings.TrimSpace(wire.AdminInfo.Owner.Email),
			Phone:     strings.TrimSpace(wire.AdminInfo.Owner.Phone),
		},
		Claim: ClaimInfo{
			ClaimNumber:      strings.TrimSpace(wire.ClaimInfo.ClaimNum),
			PolicyNumber:     strings.TrimSpace(wire.ClaimInfo.PolicyNum),
			InsuranceCompany: strings.TrimSpace(wire.ClaimInfo.InsuranceCompany),
			LossDate:         parseTimeField(wire.ClaimInfo.LossDate),
		},
	}

	// A missing DocumentID stays empty here so identical bytes always
	// normalize identically; intake assigns the stable upload id.
	doc.CreatedAt = parseTimeField(wire.DocumentInfo.CreateDateTime)

	if amt, ok := parseMoney(wire.ClaimInfo.Deductible); ok {
		doc.Claim.DeductibleAmount = amt
	}
	if amt, ok := parseMoney(wire.TotalsInfo.TotalAmt); ok {
		doc.TotalAmount = amt
	}

	doc.DamageLines = make([]DamageLine, 0, len(wire.DamageLines))
	for i, wl := range wire.DamageLines {
		line := DamageLine{
			LineNumber:    parseIntField(wl.LineNum),
			Description:   strings.TrimSpace(wl.LineDesc),
			PartNumber:    strings.TrimSpace(wl.PartNum),
			OEMPartNumber: strings.TrimSpace(wl.OEMPartNum),
			Quantity:      parseIntField(wl.Quantity),
			LaborHours:    parseFloatField(wl.LaborHours),
			Category:      strings.TrimSpace(wl.LaborCategory),
			SourceType:    normalizeSourceType(wl.PartType),
		}
		if line.LineNumber == 0 {
			line.LineNumber = i + 1
		}
		if line.Quantity == 0 {
			line.Quantity = 1
		}
		if cost, ok := parseMoney(wl.UnitPrice); ok {
			line.UnitCost = cost
		} else {
			line.UnitCostRaw = strings.TrimSpace(wl.UnitPrice)
		}
		doc.DamageLines = append(doc.DamageLines, line)
	}

	return doc
}

// normalizeSourceType maps BMS part-type codes onto the canonical set
func normalizeSourceType(code string) PartSourceType {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "OEM", "PAN", "NEW":
		return SourceOEM
	case "AFT", "AM", "AFTERMARKET", "PAA":
		return SourceAftermarket
	case "REC", "LKQ", "RECYCLED", "USED", "PAR":
		return SourceRecycled
	default:
		return SourceUnknown
	}
}

// parseMoney tolerates currency symbols and thousands separators.
// Returns false for text it cannot interpret; the validator decides
// whether that matters.
func parseMoney(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', ' ':
			return -1
		}
		return r
	}, s)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func parseIntField(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

func parseFloatField(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

func parseTimeField(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
