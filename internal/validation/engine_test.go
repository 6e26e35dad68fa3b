package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/collisionworks/partspipe/internal/bms"
)

func validDocument() *bms.EstimateDocument {
	return &bms.EstimateDocument{
		DocumentID:  "DOC-1",
		ClaimNumber: "CLM-1",
		EstimatorID: "EST-1",
		Vehicle: bms.VehicleInfo{
			VIN:      "1HGCM82633A123456",
			Year:     2003,
			Make:     "Honda",
			Model:    "Accord",
			Odometer: 80000,
		},
		Customer: bms.CustomerInfo{Email: "owner@example.com"},
		Claim:    bms.ClaimInfo{ClaimNumber: "CLM-1", InsuranceCompany: "Acme Mutual"},
		DamageLines: []bms.DamageLine{
			{LineNumber: 1, Description: "Front Bumper Cover", PartNumber: "71101", Quantity: 1, UnitCost: 312.50},
		},
	}
}

func TestEngine_ValidDocument(t *testing.T) {
	engine := NewEngine(zap.NewNop())

	result := engine.Validate(validDocument())

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, VerdictPass, result.FieldVerdicts["vehicle.vin"])
}

func TestEngine_MissingVIN(t *testing.T) {
	doc := validDocument()
	doc.Vehicle.VIN = ""

	result := NewEngine(zap.NewNop()).Validate(doc)

	require.False(t, result.IsValid)
	found := false
	for _, v := range result.Errors {
		if strings.Contains(v.Field, "vin") {
			found = true
			assert.Equal(t, TierCritical, v.Tier)
		}
	}
	assert.True(t, found, "expected a critical error referencing the vin field")
	assert.Equal(t, VerdictFail, result.FieldVerdicts["vehicle.vin"])
}

func TestEngine_CollectsAllViolationsInOnePass(t *testing.T) {
	doc := validDocument()
	doc.Vehicle.VIN = ""
	doc.ClaimNumber = ""
	doc.Customer.Email = "not-an-email"
	doc.Vehicle.Odometer = 0

	result := NewEngine(zap.NewNop()).Validate(doc)

	assert.False(t, result.IsValid)
	assert.Len(t, result.Errors, 2)
	assert.NotEmpty(t, result.Warnings)
	assert.NotEmpty(t, result.Infos)
}

func TestEngine_UnparseableMoneyIsCritical(t *testing.T) {
	doc := validDocument()
	doc.DamageLines[0].UnitCost = 0
	doc.DamageLines[0].UnitCostRaw = "CALL"

	result := NewEngine(zap.NewNop()).Validate(doc)

	require.False(t, result.IsValid)
	assert.Equal(t, VerdictFail, result.FieldVerdicts["damageLines.unitCost"])
}

func TestEngine_WarningsDoNotBlockValidity(t *testing.T) {
	doc := validDocument()
	doc.Customer.Email = "broken@"
	doc.EstimatorID = ""

	result := NewEngine(zap.NewNop()).Validate(doc)

	assert.True(t, result.IsValid)
	assert.Len(t, result.Warnings, 2)
}

func TestEngine_ZeroDamageLines(t *testing.T) {
	doc := validDocument()
	doc.DamageLines = nil

	result := NewEngine(zap.NewNop()).Validate(doc)

	assert.False(t, result.IsValid)
}

func TestEngine_ShortVIN(t *testing.T) {
	doc := validDocument()
	doc.Vehicle.VIN = "1HGCM"

	result := NewEngine(zap.NewNop()).Validate(doc)

	require.False(t, result.IsValid)
	assert.Contains(t, result.Errors[0].Message, "17")
}
