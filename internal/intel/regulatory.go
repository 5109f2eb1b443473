package intel

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"houstonintel/types"
)

// RegulatoryData is the input to the regulatory analyzer.
type RegulatoryData struct {
	Geography          types.Geography `json:"geography"`
	PermitsThisYear    int             `json:"permits_this_year"`
	PermitsPriorYear   int             `json:"permits_prior_year"`
	DeedRestricted     bool            `json:"deed_restricted"`
	InETJ              bool            `json:"in_etj"` // extraterritorial jurisdiction
	TIRZNumber         int             `json:"tirz_number"`
	OpportunityZone    bool            `json:"opportunity_zone"`
	PlattingInProgress bool            `json:"platting_in_progress"`
}

// tirzNotes carries canned context for the TIRZ districts that recur in
// Houston acquisition screens.
var tirzNotes = map[int]string{
	1:  "St. George Place: mature district, increment largely committed",
	2:  "Midtown: active affordable-housing set-aside obligations",
	3:  "Market Square: downtown conversion incentives available",
	10: "Lake Houston: drainage-focused capital plan post-Harvey",
	17: "Memorial City: mobility projects dominate the increment",
	24: "Greater Houston Zone: active commercial incentive agreements",
}

// RegulatoryAnalyzer applies permitting-trend and incentive-district rules.
type RegulatoryAnalyzer struct {
	latest *types.Insight
	mutex  sync.RWMutex
}

// NewRegulatoryAnalyzer creates a new regulatory analyzer
func NewRegulatoryAnalyzer() *RegulatoryAnalyzer {
	return &RegulatoryAnalyzer{}
}

// Domain returns the analyzer's domain.
func (a *RegulatoryAnalyzer) Domain() types.Domain {
	return types.DomainRegulatory
}

// LatestInsight returns the most recent result, or nil.
func (a *RegulatoryAnalyzer) LatestInsight() *types.Insight {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.latest
}

// AnalyzeJSON decodes the input and runs the rules.
func (a *RegulatoryAnalyzer) AnalyzeJSON(raw []byte) (*types.Insight, error) {
	var data RegulatoryData
	if err := decodeInput(raw, &data); err != nil {
		return nil, err
	}
	return a.Analyze(data), nil
}

// Analyze runs the regulatory rules over the input.
func (a *RegulatoryAnalyzer) Analyze(data RegulatoryData) *types.Insight {
	insight := &types.Insight{
		ID:          uuid.New().String(),
		Domain:      types.DomainRegulatory,
		Title:       fmt.Sprintf("Regulatory assessment: %s", data.Geography.Scope()),
		Geography:   data.Geography,
		GeneratedAt: time.Now(),
	}

	conf := 0.9

	// Permit volume trend.
	if data.PermitsPriorYear > 0 {
		changePct := float64(data.PermitsThisYear-data.PermitsPriorYear) / float64(data.PermitsPriorYear) * 100
		switch {
		case changePct > 25:
			insight.Findings = append(insight.Findings, types.Finding{
				Category:  "permits",
				Statement: "Permit volume accelerating sharply; supply wave will hit the submarket in 18-24 months",
				Evidence:  fmt.Sprintf("%d vs %d permits (+%.0f%%)", data.PermitsThisYear, data.PermitsPriorYear, changePct),
				Severity:  types.SeverityHigh,
			})
			insight.Risks = append(insight.Risks, types.Risk{
				Statement:  "Incoming supply pressures rents just as current deliveries stabilize",
				Likelihood: "high",
				Impact:     "medium",
				Score:      riskScore("high", "medium"),
			})
		case changePct < -25:
			insight.Findings = append(insight.Findings, types.Finding{
				Category:  "permits",
				Statement: "Permit volume contracting sharply; constrained pipeline favors existing-asset rent growth",
				Evidence:  fmt.Sprintf("%d vs %d permits (%.0f%%)", data.PermitsThisYear, data.PermitsPriorYear, changePct),
				Severity:  types.SeverityMedium,
			})
			insight.Recommendations = append(insight.Recommendations,
				"Underwrite above-trend rent growth for 2-3 years while the pipeline stays thin")
		default:
			insight.Findings = append(insight.Findings, types.Finding{
				Category:  "permits",
				Statement: "Permit volume stable year over year",
				Evidence:  fmt.Sprintf("%d vs %d permits (%.0f%%)", data.PermitsThisYear, data.PermitsPriorYear, changePct),
				Severity:  types.SeverityInfo,
			})
		}
	} else {
		conf -= 0.1
	}

	// Houston has no formal zoning; deed restrictions are the binding layer.
	if data.DeedRestricted {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "land_use",
			Statement: "Deed restrictions in force; in the absence of zoning these are the binding land-use constraint and are privately enforceable",
			Severity:  types.SeverityMedium,
		})
		insight.Recommendations = append(insight.Recommendations,
			"Pull the recorded deed restrictions and confirm the intended use is permitted; city non-zoning does not waive them")
	} else {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "land_use",
			Statement: "No deed restrictions reported; land use flexibility is high but so is exposure to incompatible neighboring development",
			Severity:  types.SeverityLow,
		})
	}

	// ETJ status affects annexation and utility service.
	if data.InETJ {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "jurisdiction",
			Statement: "Parcel sits in the extraterritorial jurisdiction; city services are not guaranteed and SB 2038 release petitions are reshaping ETJ boundaries",
			Severity:  types.SeverityMedium,
		})
		insight.Risks = append(insight.Risks, types.Risk{
			Statement:  "Utility capacity commitments may lapse if the parcel is released from the ETJ mid-development",
			Likelihood: "low",
			Impact:     "high",
			Score:      riskScore("low", "high"),
		})
	}

	// Incentive districts.
	if note, ok := tirzNotes[data.TIRZNumber]; ok {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "incentives",
			Statement: fmt.Sprintf("Parcel lies in TIRZ %d: %s", data.TIRZNumber, note),
			Severity:  types.SeverityInfo,
		})
		insight.Recommendations = append(insight.Recommendations,
			"Engage the TIRZ board early; reimbursement agreements are negotiated before site work, not after")
	} else if data.TIRZNumber > 0 {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "incentives",
			Statement: fmt.Sprintf("Parcel reports TIRZ %d, which is not in the tracked district set", data.TIRZNumber),
			Severity:  types.SeverityLow,
		})
		conf -= 0.05
	}

	if data.OpportunityZone {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "incentives",
			Statement: "Located in a federal Opportunity Zone; capital-gains deferral is available for qualified fund structures",
			Severity:  types.SeverityInfo,
		})
		insight.Recommendations = append(insight.Recommendations,
			"Structure the acquisition through a Qualified Opportunity Fund if the hold horizon exceeds ten years")
	}

	if data.PlattingInProgress {
		insight.Findings = append(insight.Findings, types.Finding{
			Category:  "permits",
			Statement: "Replat in progress; closing before recordation leaves the buyer carrying entitlement risk",
			Severity:  types.SeverityMedium,
		})
	}

	insight.Summary = summarize(insight)
	insight.Confidence = confidence(conf)

	a.mutex.Lock()
	a.latest = insight
	a.mutex.Unlock()

	return insight
}
