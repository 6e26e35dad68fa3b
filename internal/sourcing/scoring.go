package sourcing

import (
	"sort"

	"github.com/collisionworks/partspipe/internal/bms"
)

// ScoreWeights holds the configurable scoring weights. They should sum
// to roughly 1.0; Normalize rescales them if they do not.
type ScoreWeights struct {
	Price       float64 `mapstructure:"price"`
	Reliability float64 `mapstructure:"reliability"`
	LeadTime    float64 `mapstructure:"lead_time"`
	Preference  float64 `mapstructure:"preference"`
}

// DefaultScoreWeights returns the standard weighting: price 40%,
// reliability 30%, lead time 20%, preference match 10%.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Price: 0.4, Reliability: 0.3, LeadTime: 0.2, Preference: 0.1}
}

// Normalize rescales the weights to sum to 1.0, falling back to the
// defaults when they sum to zero.
func (w ScoreWeights) Normalize() ScoreWeights {
	sum := w.Price + w.Reliability + w.LeadTime + w.Preference
	if sum <= 0 {
		return DefaultScoreWeights()
	}
	return ScoreWeights{
		Price:       w.Price / sum,
		Reliability: w.Reliability / sum,
		LeadTime:    w.LeadTime / sum,
		Preference:  w.Preference / sum,
	}
}

// scoredQuote pairs a quote with its computed score
type scoredQuote struct {
	quote *VendorQuoteResult
	score float64
}

// maxLeadTimeDays caps the lead-time normalization; anything slower
// scores zero on that axis.
const maxLeadTimeDays = 14

// rankQuotes scores responding quotes and sorts them best-first with a
// deterministic tie-break: higher score, then lower price, then shorter
// lead time, then vendor id.
func rankQuotes(quotes []*VendorQuoteResult, hint bms.PartSourceType, weights ScoreWeights) []scoredQuote {
	responded := make([]*VendorQuoteResult, 0, len(quotes))
	var minPrice, maxPrice float64
	for _, q := range quotes {
		if !q.Responded() {
			continue
		}
		if len(responded) == 0 || q.Price < minPrice {
			minPrice = q.Price
		}
		if len(responded) == 0 || q.Price > maxPrice {
			maxPrice = q.Price
		}
		responded = append(responded, q)
	}
	if len(responded) == 0 {
		return nil
	}

	scored := make([]scoredQuote, 0, len(responded))
	for _, q := range responded {
		scored = append(scored, scoredQuote{
			quote: q,
			score: scoreQuote(q, hint, weights, minPrice, maxPrice),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.quote.Price != b.quote.Price {
			return a.quote.Price < b.quote.Price
		}
		if a.quote.LeadTimeDays != b.quote.LeadTimeDays {
			return a.quote.LeadTimeDays < b.quote.LeadTimeDays
		}
		return a.quote.VendorID < b.quote.VendorID
	})

	return scored
}

// scoreQuote computes the weighted score for one quote.
// Each axis is normalized into [0,1].
func scoreQuote(q *VendorQuoteResult, hint bms.PartSourceType, w ScoreWeights, minPrice, maxPrice float64) float64 {
	// Price competitiveness: cheapest responder scores 1.
	priceScore := 1.0
	if maxPrice > minPrice {
		priceScore = 1 - (q.Price-minPrice)/(maxPrice-minPrice)
	}

	leadScore := 1 - float64(q.LeadTimeDays)/maxLeadTimeDays
	if leadScore < 0 {
		leadScore = 0
	}

	prefScore := 0.5
	if q.SourceType != bms.SourceUnknown && hint != bms.SourceUnknown {
		if q.SourceType == hint {
			prefScore = 1.0
		} else {
			prefScore = 0.0
		}
	}

	return w.Price*priceScore +
		w.Reliability*q.ReliabilityScore +
		w.LeadTime*leadScore +
		w.Preference*prefScore
}
