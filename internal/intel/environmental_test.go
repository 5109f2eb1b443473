package intel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"houstonintel/types"
)

func TestEnvironmental_FloodZoneRatings(t *testing.T) {
	a := NewEnvironmentalAnalyzer()

	tests := []struct {
		zone      string
		severity  types.Severity
		wantRisks bool
	}{
		{"VE", types.SeverityCritical, true},
		{"AE", types.SeverityHigh, true},
		{"X500", types.SeverityMedium, false},
		{"X", types.SeverityLow, false},
	}

	for _, tc := range tests {
		t.Run(tc.zone, func(t *testing.T) {
			insight := a.Analyze(EnvironmentalData{
				Geography: types.Geography{City: "Houston", ZipCode: "77012"},
				FloodZone: tc.zone,
			})

			f := findByCategory(t, insight.Findings, "flood")
			assert.Equal(t, tc.severity, f.Severity)
			assert.Contains(t, f.Evidence, tc.zone)
			if tc.wantRisks {
				assert.NotEmpty(t, insight.Risks)
				assert.NotEmpty(t, insight.Recommendations)
			} else {
				assert.Empty(t, insight.Risks)
			}
		})
	}
}

func TestEnvironmental_UnknownFloodZoneLowersConfidence(t *testing.T) {
	a := NewEnvironmentalAnalyzer()

	insight := a.Analyze(EnvironmentalData{
		Geography: types.Geography{City: "Houston"},
		FloodZone: "ZZ",
	})

	f := findByCategory(t, insight.Findings, "flood")
	assert.Equal(t, types.SeverityMedium, f.Severity)
	assert.Contains(t, f.Statement, "Unrecognized flood zone")
	assert.InDelta(t, 0.7, insight.Confidence, 0.001)
}

func TestEnvironmental_SuperfundProximity(t *testing.T) {
	a := NewEnvironmentalAnalyzer()

	near := a.Analyze(EnvironmentalData{
		Geography:              types.Geography{City: "Houston"},
		SuperfundDistanceMiles: 0.4,
	})
	f := findByCategory(t, near.Findings, "contamination")
	assert.Equal(t, types.SeverityCritical, f.Severity)
	require.NotEmpty(t, near.Recommendations)
	assert.Contains(t, near.Recommendations[0], "Phase I ESA")

	moderate := a.Analyze(EnvironmentalData{
		Geography:              types.Geography{City: "Houston"},
		SuperfundDistanceMiles: 2.5,
	})
	f = findByCategory(t, moderate.Findings, "contamination")
	assert.Equal(t, types.SeverityMedium, f.Severity)

	far := a.Analyze(EnvironmentalData{
		Geography:              types.Geography{City: "Houston"},
		SuperfundDistanceMiles: 8,
	})
	for _, finding := range far.Findings {
		assert.NotEqual(t, "contamination", finding.Category)
	}
}

func TestEnvironmental_AirQualityBands(t *testing.T) {
	a := NewEnvironmentalAnalyzer()

	unhealthy := a.Analyze(EnvironmentalData{AirQualityIndex: 165})
	assert.Equal(t, types.SeverityHigh, findByCategory(t, unhealthy.Findings, "air_quality").Severity)
	assert.NotEmpty(t, unhealthy.Risks)

	sensitive := a.Analyze(EnvironmentalData{AirQualityIndex: 120})
	assert.Equal(t, types.SeverityMedium, findByCategory(t, sensitive.Findings, "air_quality").Severity)

	clean := a.Analyze(EnvironmentalData{AirQualityIndex: 45})
	assert.Equal(t, types.SeverityInfo, findByCategory(t, clean.Findings, "air_quality").Severity)
}

func TestEnvironmental_DrainageAndSubsidence(t *testing.T) {
	a := NewEnvironmentalAnalyzer()

	insight := a.Analyze(EnvironmentalData{
		Geography:              types.Geography{City: "Houston", County: "Harris"},
		DrainageProjectsActive: 3,
		SubsidenceInchesPerYr:  0.8,
	})

	drainage := findByCategory(t, insight.Findings, "flood")
	assert.Contains(t, drainage.Statement, "Flood Control District")

	sub := findByCategory(t, insight.Findings, "subsidence")
	assert.Equal(t, types.SeverityHigh, sub.Severity)
	assert.InDelta(t, 0.85, insight.Confidence, 0.001)
}

func TestEnvironmental_SummaryAndLatest(t *testing.T) {
	a := NewEnvironmentalAnalyzer()
	assert.Nil(t, a.LatestInsight())

	insight, err := a.AnalyzeJSON([]byte(`{"geography":{"city":"Houston","district":"East End"},"flood_zone":"AE","air_quality_index":50}`))
	require.NoError(t, err)

	assert.NotEmpty(t, insight.ID)
	assert.Equal(t, types.DomainEnvironmental, insight.Domain)
	assert.Contains(t, insight.Title, "East End")
	assert.Contains(t, insight.Summary, "findings")
	// The flood finding outranks the air-quality one in the summary.
	assert.Contains(t, insight.Summary, "floodplain")

	assert.Equal(t, insight, a.LatestInsight())

	empty := a.Analyze(EnvironmentalData{})
	assert.Equal(t, "No findings for the supplied input", empty.Summary)
}
