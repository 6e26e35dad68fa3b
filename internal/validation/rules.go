package validation

import (
	"fmt"
	"strings"

	"github.com/collisionworks/partspipe/internal/bms"
	"github.com/collisionworks/partspipe/pkg/utils"
)

// defaultRules returns the standard rule set. Rules are independent;
// order only affects presentation.
func defaultRules() []Rule {
	return []Rule{
		{
			Field: "vehicle.vin",
			Tier:  TierCritical,
			Check: func(doc *bms.EstimateDocument) *Violation {
				if strings.TrimSpace(doc.Vehicle.VIN) == "" {
					return &Violation{Message: "vehicle VIN is missing"}
				}
				if len(doc.Vehicle.VIN) != 17 {
					return &Violation{Message: fmt.Sprintf("vehicle VIN must be 17 characters, got %d", len(doc.Vehicle.VIN))}
				}
				return nil
			},
		},
		{
			Field: "claim.claimNumber",
			Tier:  TierCritical,
			Check: func(doc *bms.EstimateDocument) *Violation {
				if strings.TrimSpace(doc.ClaimNumber) == "" {
					return &Violation{Message: "claim number is missing"}
				}
				if err := utils.ValidateClaimNumber(doc.ClaimNumber); err != nil {
					return &Violation{Message: err.Error()}
				}
				return nil
			},
		},
		{
			Field: "damageLines",
			Tier:  TierCritical,
			Check: func(doc *bms.EstimateDocument) *Violation {
				if len(doc.DamageLines) == 0 {
					return &Violation{Message: "estimate contains no damage lines"}
				}
				return nil
			},
		},
		{
			Field: "damageLines.unitCost",
			Tier:  TierCritical,
			Check: func(doc *bms.EstimateDocument) *Violation {
				var bad []string
				for _, line := range doc.DamageLines {
					if line.UnitCostRaw != "" {
						bad = append(bad, fmt.Sprintf("line %d (%q)", line.LineNumber, line.UnitCostRaw))
					}
				}
				if len(bad) > 0 {
					return &Violation{Message: "unparseable part price on " + strings.Join(bad, ", ")}
				}
				return nil
			},
		},
		{
			Field: "customer.email",
			Tier:  TierWarning,
			Check: func(doc *bms.EstimateDocument) *Violation {
				email := strings.TrimSpace(doc.Customer.Email)
				if email != "" {
					if err := utils.ValidateEmail(email); err != nil {
						return &Violation{Message: fmt.Sprintf("customer email %q is malformed", email)}
					}
				}
				return nil
			},
		},
		{
			Field: "document.estimatorId",
			Tier:  TierWarning,
			Check: func(doc *bms.EstimateDocument) *Violation {
				if strings.TrimSpace(doc.EstimatorID) == "" {
					return &Violation{Message: "estimator id is missing"}
				}
				return nil
			},
		},
		{
			Field: "damageLines.partNumber",
			Tier:  TierWarning,
			Check: func(doc *bms.EstimateDocument) *Violation {
				var missing []int
				for _, line := range doc.DamageLines {
					if line.PartNumber == "" && line.OEMPartNumber == "" && line.UnitCost > 0 {
						missing = append(missing, line.LineNumber)
					}
				}
				if len(missing) > 0 {
					return &Violation{Message: fmt.Sprintf("priced lines without a part number: %v", missing)}
				}
				return nil
			},
		},
		{
			Field: "vehicle.odometer",
			Tier:  TierInfo,
			Check: func(doc *bms.EstimateDocument) *Violation {
				if doc.Vehicle.Odometer == 0 {
					return &Violation{Message: "odometer reading not provided"}
				}
				return nil
			},
		},
		{
			Field: "claim.insuranceCompany",
			Tier:  TierInfo,
			Check: func(doc *bms.EstimateDocument) *Violation {
				if strings.TrimSpace(doc.Claim.InsuranceCompany) == "" {
					return &Violation{Message: "insurance company not provided"}
				}
				return nil
			},
		},
	}
}
