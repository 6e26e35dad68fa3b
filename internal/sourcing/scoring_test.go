package sourcing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collisionworks/partspipe/internal/bms"
)

func quote(id string, price float64, lead int, reliability float64) *VendorQuoteResult {
	return &VendorQuoteResult{
		VendorID:         id,
		Price:            price,
		LeadTimeDays:     lead,
		Availability:     AvailabilityInStock,
		SourceType:       bms.SourceOEM,
		ReliabilityScore: reliability,
	}
}

func TestScoreWeights_Normalize(t *testing.T) {
	w := ScoreWeights{Price: 2, Reliability: 1, LeadTime: 1, Preference: 0}.Normalize()
	assert.InDelta(t, 0.5, w.Price, 0.001)
	assert.InDelta(t, 0.25, w.Reliability, 0.001)

	zero := ScoreWeights{}.Normalize()
	assert.Equal(t, DefaultScoreWeights(), zero)
}

func TestRankQuotes_CheapestFastWins(t *testing.T) {
	quotes := []*VendorQuoteResult{
		quote("vendor-a", 500, 10, 0.5),
		quote("vendor-b", 300, 2, 0.5),
	}

	ranked := rankQuotes(quotes, bms.SourceOEM, DefaultScoreWeights())

	require.Len(t, ranked, 2)
	assert.Equal(t, "vendor-b", ranked[0].quote.VendorID)
}

func TestRankQuotes_ExcludesFailuresAndUnavailable(t *testing.T) {
	quotes := []*VendorQuoteResult{
		quote("vendor-a", 300, 2, 0.5),
		{VendorID: "vendor-b", Error: "context deadline exceeded", Availability: AvailabilityUnavailable},
		{VendorID: "vendor-c", Availability: AvailabilityUnavailable},
	}

	ranked := rankQuotes(quotes, bms.SourceOEM, DefaultScoreWeights())

	require.Len(t, ranked, 1)
	assert.Equal(t, "vendor-a", ranked[0].quote.VendorID)
}

func TestRankQuotes_ZeroResponders(t *testing.T) {
	quotes := []*VendorQuoteResult{
		{VendorID: "vendor-a", Error: "boom"},
	}

	assert.Nil(t, rankQuotes(quotes, bms.SourceOEM, DefaultScoreWeights()))
}

func TestRankQuotes_DeterministicTieBreak(t *testing.T) {
	// Identical quotes except vendor id: tie broken by id.
	a := quote("vendor-b", 300, 2, 0.5)
	b := quote("vendor-a", 300, 2, 0.5)

	ranked := rankQuotes([]*VendorQuoteResult{a, b}, bms.SourceOEM, DefaultScoreWeights())

	require.Len(t, ranked, 2)
	assert.Equal(t, "vendor-a", ranked[0].quote.VendorID)

	// Same score by construction, different price: price wins first.
	c := quote("vendor-z", 300, 2, 0.5)
	d := quote("vendor-y", 300, 1, 0.5)
	ranked = rankQuotes([]*VendorQuoteResult{c, d}, bms.SourceOEM, DefaultScoreWeights())
	assert.Equal(t, "vendor-y", ranked[0].quote.VendorID)
}

func TestScoreQuote_PreferenceMatch(t *testing.T) {
	match := quote("vendor-a", 300, 2, 0.5)
	match.SourceType = bms.SourceOEM
	miss := quote("vendor-b", 300, 2, 0.5)
	miss.SourceType = bms.SourceRecycled

	ranked := rankQuotes([]*VendorQuoteResult{miss, match}, bms.SourceOEM, DefaultScoreWeights())

	require.Len(t, ranked, 2)
	assert.Equal(t, "vendor-a", ranked[0].quote.VendorID)
	assert.Greater(t, ranked[0].score, ranked[1].score)
}

func TestScoreQuote_ReliabilityMatters(t *testing.T) {
	reliable := quote("vendor-a", 300, 3, 0.95)
	flaky := quote("vendor-b", 300, 3, 0.10)

	// Same price and lead time: reliability history decides.
	ranked := rankQuotes([]*VendorQuoteResult{flaky, reliable}, bms.SourceOEM, DefaultScoreWeights())

	assert.Equal(t, "vendor-a", ranked[0].quote.VendorID)
}
