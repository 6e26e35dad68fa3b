package sourcing

import (
	"math"
	"sort"
)

// POLine is one line inside a draft purchase order
type POLine struct {
	LineNumber  int     `json:"line_number"`
	Description string  `json:"description"`
	PartNumber  string  `json:"part_number,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Extended    float64 `json:"extended"`
}

// PORecommendation is a draft purchase order for one vendor. It is a
// recommendation only; issuing the order is an external concern.
type PORecommendation struct {
	VendorID         string   `json:"vendor_id"`
	Lines            []POLine `json:"lines"`
	Subtotal         float64  `json:"subtotal"`
	MarkupApplied    float64  `json:"markup_applied"`
	TotalAmount      float64  `json:"total_amount"`
	ApprovalRequired bool     `json:"approval_required"`
}

// POOptions configures recommendation generation
type POOptions struct {
	BaseMarkupFraction float64
	ApprovalThreshold  float64
}

// GeneratePORecommendations groups recommended decisions by vendor into
// one draft purchase order per vendor. A PO requires approval when any
// contained line does, or when its marked-up total crosses the
// threshold. Lines without a recommendation are omitted; they remain
// visible on the sourcing report as manual or timed-out lines.
func GeneratePORecommendations(report *Report, opts POOptions) []PORecommendation {
	byVendor := make(map[string]*PORecommendation)

	for _, d := range report.Decisions {
		if d.Status != DecisionRecommended || d.RecommendedVendor == nil {
			continue
		}
		q := d.RecommendedVendor

		po, ok := byVendor[q.VendorID]
		if !ok {
			po = &PORecommendation{VendorID: q.VendorID}
			byVendor[q.VendorID] = po
		}

		extended := round2(q.Price * float64(d.Quantity))
		po.Lines = append(po.Lines, POLine{
			LineNumber:  d.LineNumber,
			Description: d.Description,
			PartNumber:  d.PartNumber,
			Quantity:    d.Quantity,
			UnitPrice:   q.Price,
			Extended:    extended,
		})
		po.Subtotal = round2(po.Subtotal + extended)
		if d.RequiresApproval {
			po.ApprovalRequired = true
		}
	}

	out := make([]PORecommendation, 0, len(byVendor))
	for _, po := range byVendor {
		po.MarkupApplied = opts.BaseMarkupFraction
		po.TotalAmount = round2(po.Subtotal * (1 + opts.BaseMarkupFraction))
		if opts.ApprovalThreshold > 0 && po.TotalAmount > opts.ApprovalThreshold {
			po.ApprovalRequired = true
		}
		sort.Slice(po.Lines, func(i, j int) bool {
			return po.Lines[i].LineNumber < po.Lines[j].LineNumber
		})
		out = append(out, *po)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].VendorID < out[j].VendorID })
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
