package intel

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"houstonintel/types"
)

// FinancialData is the input to the financial analyzer.
type FinancialData struct {
	Geography               types.Geography `json:"geography"`
	Submarket               string          `json:"submarket"`
	CapRatePct              float64         `json:"cap_rate_pct"`
	InterestRatePct         float64         `json:"interest_rate_pct"`
	PropertyTaxRatePer100   float64         `json:"property_tax_rate_per_100"` // 0 means look up by county
	ConstructionCostYoYPct  float64         `json:"construction_cost_yoy_pct"`
	MedianPriceYoYPct       float64         `json:"median_price_yoy_pct"`
	OccupancyPct            float64         `json:"occupancy_pct"`
	MUDDistrict             bool            `json:"mud_district"`
}

// submarketCapRateBands holds the cap-rate bands treated as normal per
// submarket. Values from recurring Houston market surveys.
var submarketCapRateBands = map[string]struct{ Low, High float64 }{
	"inner_loop":    {4.5, 5.5},
	"galleria":      {5.0, 6.0},
	"energy_corridor": {6.0, 7.5},
	"woodlands":     {5.0, 6.0},
	"katy":          {5.5, 6.5},
	"pearland":      {5.5, 6.8},
	"east_end":      {6.5, 8.0},
}

// countyTaxRates is the default combined property tax rate per $100 of
// assessed value when the input does not carry one.
var countyTaxRates = map[string]float64{
	"Harris":     2.13,
	"Fort Bend":  2.23,
	"Montgomery": 1.97,
	"Brazoria":   2.08,
	"Galveston":  2.01,
}

// FinancialAnalyzer applies yield, rate-sensitivity and tax rules.
type FinancialAnalyzer struct {
	latest *types.Insight
	mutex  sync.RWMutex
}

// NewFinancialAnalyzer creates a new financial analyzer
func NewFinancialAnalyzer() *FinancialAnalyzer {
	return &FinancialAnalyzer{}
}

// Domain returns the analyzer's domain.
func (a *FinancialAnalyzer) Domain() types.Domain {
	return types.DomainFinancial
}

// LatestInsight returns the most recent result, or nil.
func (a *FinancialAnalyzer) LatestInsight() *types.Insight {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.latest
}

// AnalyzeJSON decodes the input and runs the rules.
func (a *FinancialAnalyzer) AnalyzeJSON(raw []byte) (*types.Insight, error) {
	var data FinancialData
	if err := decodeInput(raw, &data); err != nil {
		return nil, err
	}
	return a.Analyze(data), nil
}

// Analyze runs the financial rules over the input.
func (a *FinancialAnalyzer) Analyze(data FinancialData) *types.Insight {
	insight := &types.Insight{
		ID:          uuid.New().String(),
		Domain:      types.DomainFinancial,
		Title:       fmt.Sprintf("Financial assessment: %s", data.Geography.Scope()),
		Geography:   data.Geography,
		GeneratedAt: time.Now(),
	}

	conf := 0.85

	// Cap rate vs. submarket band.
	submarket := strings.ToLower(strings.ReplaceAll(data.Submarket, " ", "_"))
	if band, ok := submarketCapRateBands[submarket]; ok && data.CapRatePct > 0 {
		switch {
		case data.CapRatePct > band.High+0.5:
			insight.Findings = append(insight.Findings, types.Finding{
				Category:  "yield",
				Statement: "Cap rate well above the submarket band; either mispriced or carrying unpriced risk worth diligencing",
				Evidence:  fmt.Sprintf("%.2f%% vs %s band %.1f-%.1f%%", data.CapRatePct, data.Submarket, band.Low, band.High),
				Severity:  types.SeverityMedium,
			})
			insight.Recommendations = append(insight.Recommendations,
				"Treat the excess yield as a diligence flag: verify rent roll quality and deferred maintenance before underwriting it as upside")
		case data.CapRatePct < band.Low-0.5:
			insight.Findings = append(insight.Findings, types.Finding{
				Category:  "yield",
				Statement: "Cap rate compressed below the submarket band; pricing assumes rent growth that recent absorption does not support",
				Evidence:  fmt.Sprintf("%.2f%% vs %s band %.1f-%.1f%%", data.CapRatePct, data.Submarket, band.Low, band.High),
				Severity:  types.SeverityHigh,
			})
			insight.Risks = append(insight.Risks, types.Risk{
				Statement:  "Exit cap expansion of 50bps would erase the levered return at current pricing",
				Likelihood: "medium",
				Impact:     "high",
				Score:      riskScore("medium", "high"),
			})
		default:
			insight.Findings = append(insight.Findings, types.Finding{
				Category:  "yield",
				Statement: "Cap rate within the normal band for the submarket",
				Evidence:  fmt.Sprintf("%.2f%% vs %s band %.1f-%.1f%%", data.CapRatePct, data.Submarket, band.Low, band.High),
				Severity:  types.SeverityInfo,
			})
		}
	} else if data.Submarket != "" {
		conf -= 0.15
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "yield",
			Statement: "No cap-rate band on file for this submarket; comparisons fall back to metro-wide averages",
			Evidence:  fmt.Sprintf("submarket %q", data.Submarket),
			Severity:  types.SeverityLow,
		})
	}

	// Interest rate sensitivity.
	if data.InterestRatePct > 0 && data.CapRatePct > 0 {
		spread := data.CapRatePct - data.InterestRatePct
		switch {
		case spread < 0:
			insight.Findings = append(insight.Findings, types.Finding{
				Category:  "leverage",
				Statement: "Negative leverage: debt costs more than the asset yields; deal only works with aggressive growth assumptions",
				Evidence:  fmt.Sprintf("cap %.2f%% minus rate %.2f%% = %.2f%%", data.CapRatePct, data.InterestRatePct, spread),
				Severity:  types.SeverityCritical,
			})
			insight.Risks = append(insight.Risks, types.Risk{
				Statement:  "Refinancing at maturity into a higher-rate environment forces a capital call or sale",
				Likelihood: "high",
				Impact:     "high",
				Score:      riskScore("high", "high"),
			})
		case spread < 1:
			insight.Findings = append(insight.Findings, types.Finding{
				Category:  "leverage",
				Statement: "Thin spread between cap rate and debt cost leaves little room for operating surprises",
				Evidence:  fmt.Sprintf("spread %.2f%%", spread),
				Severity:  types.SeverityMedium,
			})
		default:
			insight.Findings = append(insight.Findings, types.Finding{
				Category:  "leverage",
				Statement: "Positive leverage at current debt pricing",
				Evidence:  fmt.Sprintf("spread %.2f%%", spread),
				Severity:  types.SeverityInfo,
			})
		}
	}

	// Property tax burden; fall back to the county lookup.
	taxRate := data.PropertyTaxRatePer100
	if taxRate == 0 {
		if countyRate, ok := countyTaxRates[data.Geography.County]; ok {
			taxRate = countyRate
			conf -= 0.05
		}
	}
	if taxRate > 2.5 || (taxRate > 2.2 && data.MUDDistrict) {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "tax",
			Statement: "Combined property tax burden in the top band for the metro; MUD assessments compound the carry cost",
			Evidence:  fmt.Sprintf("%.2f per $100 assessed", taxRate),
			Severity:  types.SeverityHigh,
		})
		insight.Recommendations = append(insight.Recommendations,
			"Model MUD bond maturity schedules; districts late in their bond life often see rate step-downs that improve hold-period economics")
	} else if taxRate > 0 {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "tax",
			Statement: "Property tax burden within metro norms",
			Evidence:  fmt.Sprintf("%.2f per $100 assessed", taxRate),
			Severity:  types.SeverityInfo,
		})
	}

	// Construction cost pressure.
	if data.ConstructionCostYoYPct > 8 {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "cost",
			Statement: "Construction cost inflation running hot; replacement cost supports existing-asset pricing but squeezes development margins",
			Evidence:  fmt.Sprintf("%.1f%% YoY cost index growth", data.ConstructionCostYoYPct),
			Severity:  types.SeverityMedium,
		})
	}

	// Price momentum vs occupancy.
	if data.MedianPriceYoYPct > 10 && data.OccupancyPct > 0 && data.OccupancyPct < 90 {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "momentum",
			Statement: "Price growth outrunning occupancy; appreciation is speculative rather than income-driven",
			Evidence:  fmt.Sprintf("prices +%.1f%% YoY at %.1f%% occupancy", data.MedianPriceYoYPct, data.OccupancyPct),
			Severity:  types.SeverityHigh,
		})
		insight.Risks = append(insight.Risks, types.Risk{
			Statement:  "Speculative premium unwinds quickly when supply deliveries catch up",
			Likelihood: "medium",
			Impact:     "medium",
			Score:      riskScore("medium", "medium"),
		})
	}

	insight.Summary = summarize(insight)
	insight.Confidence = confidence(conf)

	a.mutex.Lock()
	a.latest = insight
	a.mutex.Unlock()

	return insight
}
