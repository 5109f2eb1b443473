package intel

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"houstonintel/types"
)

// EnvironmentalData is the input to the environmental analyzer.
type EnvironmentalData struct {
	Geography              types.Geography `json:"geography"`
	FloodZone              string          `json:"flood_zone"` // FEMA designation
	AirQualityIndex        float64         `json:"air_quality_index"`
	SuperfundDistanceMiles float64         `json:"superfund_distance_miles"`
	DrainageProjectsActive int             `json:"drainage_projects_active"`
	SubsidenceInchesPerYr  float64         `json:"subsidence_inches_per_year"`
}

// floodZoneRatings maps FEMA flood zone designations to a hazard rating and
// the canned statement used in findings. Houston-area zones only.
var floodZoneRatings = map[string]struct {
	Severity  types.Severity
	Statement string
}{
	"VE":   {types.SeverityCritical, "Coastal high-hazard zone with wave action; development requires elevated foundations and carries the highest insurance burden"},
	"AE":   {types.SeverityHigh, "1% annual-chance floodplain; flood insurance is mandatory for financed purchases"},
	"AO":   {types.SeverityHigh, "Sheet-flow flooding zone with 1-3 ft expected depths"},
	"X500": {types.SeverityMedium, "0.2% annual-chance floodplain; insurance optional but increasingly priced in by lenders"},
	"X":    {types.SeverityLow, "Outside the mapped floodplain; minimal regulatory flood burden"},
}

// EnvironmentalAnalyzer applies flood, air-quality and contamination rules.
type EnvironmentalAnalyzer struct {
	latest *types.Insight
	mutex  sync.RWMutex
}

// NewEnvironmentalAnalyzer creates a new environmental analyzer
func NewEnvironmentalAnalyzer() *EnvironmentalAnalyzer {
	return &EnvironmentalAnalyzer{}
}

// Domain returns the analyzer's domain.
func (a *EnvironmentalAnalyzer) Domain() types.Domain {
	return types.DomainEnvironmental
}

// LatestInsight returns the most recent result, or nil.
func (a *EnvironmentalAnalyzer) LatestInsight() *types.Insight {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.latest
}

// AnalyzeJSON decodes the input and runs the rules.
func (a *EnvironmentalAnalyzer) AnalyzeJSON(raw []byte) (*types.Insight, error) {
	var data EnvironmentalData
	if err := decodeInput(raw, &data); err != nil {
		return nil, err
	}
	return a.Analyze(data), nil
}

// Analyze runs the environmental rules over the input.
func (a *EnvironmentalAnalyzer) Analyze(data EnvironmentalData) *types.Insight {
	insight := &types.Insight{
		ID:          uuid.New().String(),
		Domain:      types.DomainEnvironmental,
		Title:       fmt.Sprintf("Environmental assessment: %s", data.Geography.Scope()),
		Geography:   data.Geography,
		GeneratedAt: time.Now(),
	}

	conf := 0.9

	// Flood zone lookup.
	if rating, ok := floodZoneRatings[data.FloodZone]; ok {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "flood",
			Statement: rating.Statement,
			Evidence:  fmt.Sprintf("FEMA zone %s", data.FloodZone),
			Severity:  rating.Severity,
		})
		if rating.Severity == types.SeverityCritical || rating.Severity == types.SeverityHigh {
			insight.Risks = append(insight.Risks, types.Risk{
				Statement:  "Flood insurance premiums under Risk Rating 2.0 may rise faster than rents, compressing net yield",
				Likelihood: "high",
				Impact:     "high",
				Score:      riskScore("high", "high"),
			})
			insight.Recommendations = append(insight.Recommendations,
				"Obtain an elevation certificate before closing and price insurance at the post-renewal rate, not the seller's legacy rate")
		}
	} else if data.FloodZone != "" {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "flood",
			Statement: "Unrecognized flood zone designation; treat as unmapped risk pending a FEMA map lookup",
			Evidence:  fmt.Sprintf("reported zone %q", data.FloodZone),
			Severity:  types.SeverityMedium,
		})
		conf -= 0.2
	}

	// Drainage investment offsets flood severity.
	if data.DrainageProjectsActive >= 2 {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "flood",
			Statement: "Active Harris County Flood Control District projects are reducing effective flood exposure in this watershed",
			Evidence:  fmt.Sprintf("%d active drainage projects", data.DrainageProjectsActive),
			Severity:  types.SeverityInfo,
		})
		insight.Recommendations = append(insight.Recommendations,
			"Track HCFCD project completion dates; remapped parcels often see insurance relief 12-18 months after completion")
	}

	// Air quality bands (EPA AQI).
	switch {
	case data.AirQualityIndex > 150:
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "air_quality",
			Statement: "Air quality regularly unhealthy; a material concern for residential marketing near the Ship Channel corridor",
			Evidence:  fmt.Sprintf("AQI %.0f", data.AirQualityIndex),
			Severity:  types.SeverityHigh,
		})
		insight.Risks = append(insight.Risks, types.Risk{
			Statement:  "Tightening ozone non-attainment rules may constrain nearby industrial expansion and associated jobs",
			Likelihood: "medium",
			Impact:     "medium",
			Score:      riskScore("medium", "medium"),
		})
	case data.AirQualityIndex > 100:
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "air_quality",
			Statement: "Air quality unhealthy for sensitive groups on peak ozone days",
			Evidence:  fmt.Sprintf("AQI %.0f", data.AirQualityIndex),
			Severity:  types.SeverityMedium,
		})
	case data.AirQualityIndex > 0:
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "air_quality",
			Statement: "Air quality within acceptable bands for residential positioning",
			Evidence:  fmt.Sprintf("AQI %.0f", data.AirQualityIndex),
			Severity:  types.SeverityInfo,
		})
	}

	// Superfund proximity thresholds.
	if data.SuperfundDistanceMiles > 0 {
		switch {
		case data.SuperfundDistanceMiles < 1:
			insight.Findings = append(insight.Findings, types.Finding{
				Category:  "contamination",
				Statement: "Parcel lies within one mile of an EPA Superfund site; Phase I environmental assessment is effectively mandatory",
				Evidence:  fmt.Sprintf("%.1f miles to nearest NPL site", data.SuperfundDistanceMiles),
				Severity:  types.SeverityCritical,
			})
			insight.Risks = append(insight.Risks, types.Risk{
				Statement:  "Groundwater contamination plumes can trigger disclosure obligations and lender refusal",
				Likelihood: "medium",
				Impact:     "high",
				Score:      riskScore("medium", "high"),
			})
			insight.Recommendations = append(insight.Recommendations,
				"Commission Phase I ESA and review the site's EPA five-year review before any offer")
		case data.SuperfundDistanceMiles < 3:
			insight.Findings = append(insight.Findings, types.Finding{
				Category:  "contamination",
				Statement: "Superfund site within three miles; expect buyer diligence questions and marginal value drag",
				Evidence:  fmt.Sprintf("%.1f miles to nearest NPL site", data.SuperfundDistanceMiles),
				Severity:  types.SeverityMedium,
			})
		}
	}

	// Subsidence, a Houston-specific hazard in groundwater-regulated areas.
	if data.SubsidenceInchesPerYr > 0.5 {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "subsidence",
			Statement: "Land subsidence above half an inch per year; foundation and drainage engineering should be budgeted",
			Evidence:  fmt.Sprintf("%.2f in/yr measured subsidence", data.SubsidenceInchesPerYr),
			Severity:  types.SeverityHigh,
		})
		conf -= 0.05
	}

	insight.Summary = summarize(insight)
	insight.Confidence = confidence(conf)

	a.mutex.Lock()
	a.latest = insight
	a.mutex.Unlock()

	return insight
}

// summarize produces the one-line summary from the highest-severity finding.
func summarize(insight *types.Insight) string {
	if len(insight.Findings) == 0 {
		return "No findings for the supplied input"
	}

	top := insight.Findings[0]
	for _, f := range insight.Findings[1:] {
		if f.Severity.Weight() > top.Severity.Weight() {
			top = f
		}
	}
	return fmt.Sprintf("%d findings, %d risks; most significant: %s",
		len(insight.Findings), len(insight.Risks), top.Statement)
}
