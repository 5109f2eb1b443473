package intel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"houstonintel/types"
)

func TestRegulatory_PermitTrends(t *testing.T) {
	a := NewRegulatoryAnalyzer()

	surge := a.Analyze(RegulatoryData{
		Geography:        types.Geography{City: "Houston", District: "EaDo"},
		PermitsThisYear:  520,
		PermitsPriorYear: 380,
	})
	f := findByCategory(t, surge.Findings, "permits")
	assert.Equal(t, types.SeverityHigh, f.Severity)
	assert.Contains(t, f.Evidence, "520")
	require.NotEmpty(t, surge.Risks)
	assert.Contains(t, surge.Risks[0].Statement, "supply")

	contraction := a.Analyze(RegulatoryData{
		Geography:        types.Geography{City: "Houston"},
		PermitsThisYear:  200,
		PermitsPriorYear: 400,
	})
	f = findByCategory(t, contraction.Findings, "permits")
	assert.Equal(t, types.SeverityMedium, f.Severity)
	require.NotEmpty(t, contraction.Recommendations)

	stable := a.Analyze(RegulatoryData{
		Geography:        types.Geography{City: "Houston"},
		PermitsThisYear:  410,
		PermitsPriorYear: 400,
	})
	assert.Equal(t, types.SeverityInfo, findByCategory(t, stable.Findings, "permits").Severity)
}

func TestRegulatory_MissingPriorYearLowersConfidence(t *testing.T) {
	a := NewRegulatoryAnalyzer()

	insight := a.Analyze(RegulatoryData{
		Geography:       types.Geography{City: "Houston"},
		PermitsThisYear: 300,
	})

	assert.InDelta(t, 0.8, insight.Confidence, 0.001)
}

func TestRegulatory_DeedRestrictions(t *testing.T) {
	a := NewRegulatoryAnalyzer()

	restricted := a.Analyze(RegulatoryData{DeedRestricted: true})
	f := findByCategory(t, restricted.Findings, "land_use")
	assert.Equal(t, types.SeverityMedium, f.Severity)
	require.NotEmpty(t, restricted.Recommendations)
	assert.Contains(t, restricted.Recommendations[0], "deed restrictions")

	open := a.Analyze(RegulatoryData{})
	f = findByCategory(t, open.Findings, "land_use")
	assert.Equal(t, types.SeverityLow, f.Severity)
	assert.Contains(t, f.Statement, "No deed restrictions")
}

func TestRegulatory_ETJCarriesUtilityRisk(t *testing.T) {
	a := NewRegulatoryAnalyzer()

	insight := a.Analyze(RegulatoryData{
		Geography: types.Geography{City: "Houston", County: "Harris"},
		InETJ:     true,
	})

	f := findByCategory(t, insight.Findings, "jurisdiction")
	assert.Equal(t, types.SeverityMedium, f.Severity)
	require.NotEmpty(t, insight.Risks)
	assert.InDelta(t, 0.18, insight.Risks[0].Score, 0.001)
}

func TestRegulatory_IncentiveDistricts(t *testing.T) {
	a := NewRegulatoryAnalyzer()

	known := a.Analyze(RegulatoryData{TIRZNumber: 17, OpportunityZone: true})

	var incentives []types.Finding
	for _, f := range known.Findings {
		if f.Category == "incentives" {
			incentives = append(incentives, f)
		}
	}
	require.Len(t, incentives, 2)
	assert.Contains(t, incentives[0].Statement, "Memorial City")
	assert.Contains(t, incentives[1].Statement, "Opportunity Zone")
	assert.Len(t, known.Recommendations, 2)

	unknown := a.Analyze(RegulatoryData{TIRZNumber: 99})
	f := findByCategory(t, unknown.Findings, "incentives")
	assert.Equal(t, types.SeverityLow, f.Severity)
}

func TestRegulatory_Platting(t *testing.T) {
	a := NewRegulatoryAnalyzer()

	insight := a.Analyze(RegulatoryData{
		PermitsThisYear:    100,
		PermitsPriorYear:   100,
		PlattingInProgress: true,
	})

	var plat types.Finding
	for _, f := range insight.Findings {
		if f.Category == "permits" && f.Severity == types.SeverityMedium {
			plat = f
		}
	}
	assert.Contains(t, plat.Statement, "Replat")
}
