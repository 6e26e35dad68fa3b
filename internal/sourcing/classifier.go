package sourcing

import (
	"strings"

	"github.com/collisionworks/partspipe/internal/bms"
)

// PartCategory is the classifier's coarse part grouping
type PartCategory string

const (
	CategoryBodyPanel  PartCategory = "BODY_PANEL"
	CategoryLighting   PartCategory = "LIGHTING"
	CategoryGlass      PartCategory = "GLASS"
	CategoryMechanical PartCategory = "MECHANICAL"
	CategoryTrim       PartCategory = "TRIM"
	CategorySafety     PartCategory = "SAFETY"
	CategoryStructural PartCategory = "STRUCTURAL"
	CategoryGeneral    PartCategory = "GENERAL"
)

// Classification is the classifier's verdict for one damage line
type Classification struct {
	Category       PartCategory       `json:"category"`
	SourceHint     bms.PartSourceType `json:"source_hint"`
	Confidence     float64            `json:"confidence"`
	SafetyCritical bool               `json:"safety_critical"`
	MatchedKeyword string             `json:"matched_keyword,omitempty"`
}

// categoryRule maps description keywords onto a category. First match in
// table order wins; safety rules come first so a cheaper hint can never
// displace them.
type categoryRule struct {
	keywords       []string
	category       PartCategory
	safetyCritical bool
}

var categoryRules = []categoryRule{
	{[]string{"airbag", "air bag", "srs"}, CategorySafety, true},
	{[]string{"seat belt", "seatbelt", "restraint", "pretensioner"}, CategorySafety, true},
	{[]string{"brake", "caliper", "rotor", "abs "}, CategorySafety, true},
	{[]string{"steering", "tie rod", "rack and pinion"}, CategorySafety, true},
	{[]string{"frame", "rail", "pillar", "rocker panel", "crossmember", "apron"}, CategoryStructural, true},
	{[]string{"bumper", "fender", "hood", "quarter panel", "door shell", "tailgate", "liftgate", "deck lid"}, CategoryBodyPanel, false},
	{[]string{"headlamp", "headlight", "tail lamp", "taillight", "fog lamp", "marker lamp"}, CategoryLighting, false},
	{[]string{"windshield", "window", "glass", "mirror"}, CategoryGlass, false},
	{[]string{"radiator", "condenser", "compressor", "alternator", "suspension", "strut", "control arm", "axle"}, CategoryMechanical, false},
	{[]string{"molding", "moulding", "emblem", "trim", "grille", "applique", "weatherstrip"}, CategoryTrim, false},
}

// ClassifyPart is a pure table-driven classifier: description and part
// number heuristics map a damage line onto a category and a sourcing
// hint. Safety-relevant categories always hint OEM and that hint is
// never overridden by a cheaper classification.
func ClassifyPart(line bms.DamageLine) Classification {
	text := strings.ToLower(line.Description + " " + line.Category)

	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				c := Classification{
					Category:       rule.category,
					Confidence:     0.9,
					SafetyCritical: rule.safetyCritical,
					MatchedKeyword: kw,
				}
				if rule.safetyCritical {
					c.SourceHint = bms.SourceOEM
				} else {
					c.SourceHint = documentHint(line)
				}
				return c
			}
		}
	}

	// No keyword matched: fall back to the document's own part type with
	// low confidence so the approval gate catches it.
	return Classification{
		Category:   CategoryGeneral,
		SourceHint: documentHint(line),
		Confidence: 0.4,
	}
}

// documentHint uses the estimate's declared source type, defaulting to
// OEM when the document is silent.
func documentHint(line bms.DamageLine) bms.PartSourceType {
	if line.SourceType == bms.SourceUnknown || line.SourceType == "" {
		return bms.SourceOEM
	}
	return line.SourceType
}
