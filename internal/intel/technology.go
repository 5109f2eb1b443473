package intel

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"houstonintel/types"
)

// TechnologyData is the input to the technology analyzer.
type TechnologyData struct {
	Geography          types.Geography `json:"geography"`
	FiberCoveragePct   float64         `json:"fiber_coverage_pct"`
	MedianDownloadMbps float64         `json:"median_download_mbps"`
	SmartInfraScore    float64         `json:"smart_infra_score"` // 0-100 composite
	DataCenterPowerMW  float64         `json:"data_center_power_mw"`
	FiveGNodes         int             `json:"five_g_nodes"`
	Providers          []string        `json:"providers"`
}

// TechnologyAnalyzer applies connectivity and digital-infrastructure rules.
type TechnologyAnalyzer struct {
	latest *types.Insight
	mutex  sync.RWMutex
}

// NewTechnologyAnalyzer creates a new technology analyzer
func NewTechnologyAnalyzer() *TechnologyAnalyzer {
	return &TechnologyAnalyzer{}
}

// Domain returns the analyzer's domain.
func (a *TechnologyAnalyzer) Domain() types.Domain {
	return types.DomainTechnology
}

// LatestInsight returns the most recent result, or nil.
func (a *TechnologyAnalyzer) LatestInsight() *types.Insight {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.latest
}

// AnalyzeJSON decodes the input and runs the rules.
func (a *TechnologyAnalyzer) AnalyzeJSON(raw []byte) (*types.Insight, error) {
	var data TechnologyData
	if err := decodeInput(raw, &data); err != nil {
		return nil, err
	}
	return a.Analyze(data), nil
}

// Analyze runs the technology rules over the input.
func (a *TechnologyAnalyzer) Analyze(data TechnologyData) *types.Insight {
	insight := &types.Insight{
		ID:          uuid.New().String(),
		Domain:      types.DomainTechnology,
		Title:       fmt.Sprintf("Technology assessment: %s", data.Geography.Scope()),
		Geography:   data.Geography,
		GeneratedAt: time.Now(),
	}

	conf := 0.85

	// Fiber coverage bands.
	switch {
	case data.FiberCoveragePct >= 80:
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "connectivity",
			Statement: "Fiber coverage is near-universal; connectivity is a leasing amenity, not a cost item",
			Evidence:  fmt.Sprintf("%.0f%% of addresses fiber-served", data.FiberCoveragePct),
			Severity:  types.SeverityInfo,
		})
	case data.FiberCoveragePct >= 40:
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "connectivity",
			Statement: "Partial fiber coverage; confirm the subject parcel is on a served route before underwriting tech tenants",
			Evidence:  fmt.Sprintf("%.0f%% of addresses fiber-served", data.FiberCoveragePct),
			Severity:  types.SeverityLow,
		})
	case data.FiberCoveragePct > 0:
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "connectivity",
			Statement: "Fiber coverage is thin; lateral construction costs land on the owner",
			Evidence:  fmt.Sprintf("%.0f%% of addresses fiber-served", data.FiberCoveragePct),
			Severity:  types.SeverityMedium,
		})
		insight.Recommendations = append(insight.Recommendations,
			"Price a fiber lateral build into capex; quotes run $15-40 per linear foot inside the loop")
	default:
		conf -= 0.1
	}

	// Measured throughput cross-checks the coverage claim.
	if data.MedianDownloadMbps > 0 && data.MedianDownloadMbps < 100 && data.FiberCoveragePct >= 80 {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "connectivity",
			Statement: "Measured speeds lag the reported fiber footprint; coverage data is likely overstated",
			Evidence:  fmt.Sprintf("median %.0f Mbps against %.0f%% claimed coverage", data.MedianDownloadMbps, data.FiberCoveragePct),
			Severity:  types.SeverityMedium,
		})
		conf -= 0.1
	}

	// Smart-infrastructure composite.
	switch {
	case data.SmartInfraScore >= 70:
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "smart_infrastructure",
			Statement: "Strong smart-infrastructure footprint (adaptive signals, flood sensors, connected transit)",
			Evidence:  fmt.Sprintf("composite score %.0f/100", data.SmartInfraScore),
			Severity:  types.SeverityInfo,
		})
	case data.SmartInfraScore > 0 && data.SmartInfraScore < 30:
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "smart_infrastructure",
			Statement: "Minimal smart-infrastructure deployment; area is behind on the city's resilience sensor rollout",
			Evidence:  fmt.Sprintf("composite score %.0f/100", data.SmartInfraScore),
			Severity:  types.SeverityLow,
		})
	}

	// Data-center siting hinges on committed power.
	switch {
	case data.DataCenterPowerMW >= 100:
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "data_center",
			Statement: "Utility-scale power availability supports hyperscale data-center siting",
			Evidence:  fmt.Sprintf("%.0f MW interconnect capacity reported", data.DataCenterPowerMW),
			Severity:  types.SeverityInfo,
		})
		insight.Recommendations = append(insight.Recommendations,
			"Hold industrial-zoned parcels near the interconnect; data-center land comps price power, not dirt")
	case data.DataCenterPowerMW >= 20:
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "data_center",
			Statement: "Power availability supports edge and enterprise data-center use, below hyperscale thresholds",
			Evidence:  fmt.Sprintf("%.0f MW interconnect capacity reported", data.DataCenterPowerMW),
			Severity:  types.SeverityInfo,
		})
	case data.DataCenterPowerMW > 0:
		insight.Risks = append(insight.Risks, types.Risk{
			Statement:  "CenterPoint interconnect queues for new large loads run multi-year; power-dependent uses face delay",
			Likelihood: "medium",
			Impact:     "medium",
			Score:      riskScore("medium", "medium"),
		})
	}

	// Provider redundancy.
	if n := len(data.Providers); n >= 3 {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "connectivity",
			Statement: "Multiple competing providers give tenants carrier redundancy",
			Evidence:  fmt.Sprintf("%d providers: %s", n, strings.Join(data.Providers, ", ")),
			Severity:  types.SeverityInfo,
		})
	} else if n == 1 {
		insight.Risks = append(insight.Risks, types.Risk{
			Statement:  "Single-provider dependency; an outage or rate action has no competitive check",
			Likelihood: "medium",
			Impact:     "low",
			Score:      riskScore("medium", "low"),
		})
	}

	if data.FiveGNodes > 50 {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "connectivity",
			Statement: "Dense small-cell deployment; 5G capacity is established rather than promised",
			Evidence:  fmt.Sprintf("%d nodes in the area", data.FiveGNodes),
			Severity:  types.SeverityInfo,
		})
	}

	insight.Summary = summarize(insight)
	insight.Confidence = confidence(conf)

	a.mutex.Lock()
	a.latest = insight
	a.mutex.Unlock()

	return insight
}
