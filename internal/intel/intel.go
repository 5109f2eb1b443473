// Package intel implements the market intelligence analyzers: fixed
// threshold rules and Houston lookup tables applied to structured inputs,
// producing insight records with findings, recommendations and risks.
// Analyzers are pure rule evaluation; they do no I/O.
package intel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"houstonintel/types"
)

// Analyzer is one domain's rule engine.
type Analyzer interface {
	Domain() types.Domain
	// AnalyzeJSON decodes the domain input and runs the rules.
	AnalyzeJSON(raw []byte) (*types.Insight, error)
	// LatestInsight returns the most recent result, or nil.
	LatestInsight() *types.Insight
}

// Registry holds the configured analyzers keyed by domain.
type Registry struct {
	analyzers map[types.Domain]Analyzer
	mutex     sync.RWMutex
}

// NewRegistry creates a registry with all four analyzers installed.
func NewRegistry() *Registry {
	r := &Registry{analyzers: make(map[types.Domain]Analyzer)}
	r.Register(NewEnvironmentalAnalyzer())
	r.Register(NewFinancialAnalyzer())
	r.Register(NewRegulatoryAnalyzer())
	r.Register(NewTechnologyAnalyzer())
	return r
}

// Register adds an analyzer to the registry.
func (r *Registry) Register(a Analyzer) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.analyzers[a.Domain()] = a
}

// Get returns the analyzer for a domain.
func (r *Registry) Get(domain types.Domain) (Analyzer, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	a, ok := r.analyzers[domain]
	if !ok {
		return nil, fmt.Errorf("unknown analysis domain: %s", domain)
	}
	return a, nil
}

// Domains returns the registered domains in stable order.
func (r *Registry) Domains() []types.Domain {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	domains := make([]types.Domain, 0, len(r.analyzers))
	for d := range r.analyzers {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })
	return domains
}

// LatestInsights returns the most recent insight per domain, skipping
// analyzers that have not run.
func (r *Registry) LatestInsights() []*types.Insight {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var insights []*types.Insight
	for _, a := range r.analyzers {
		if insight := a.LatestInsight(); insight != nil {
			insights = append(insights, insight)
		}
	}
	sort.Slice(insights, func(i, j int) bool { return insights[i].Domain < insights[j].Domain })
	return insights
}

// RunAll feeds the same raw input to every analyzer whose domain appears in
// the inputs map and collects the results. Domains without input are skipped;
// the first analyzer error aborts the run.
func (r *Registry) RunAll(inputs map[types.Domain][]byte) ([]*types.Insight, error) {
	var insights []*types.Insight
	for _, domain := range r.Domains() {
		raw, ok := inputs[domain]
		if !ok {
			continue
		}
		analyzer, err := r.Get(domain)
		if err != nil {
			return nil, err
		}
		insight, err := analyzer.AnalyzeJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("%s analysis failed: %w", domain, err)
		}
		insights = append(insights, insight)
	}
	return insights, nil
}

// decodeInput unmarshals strictly so typos in field names surface as errors
// instead of zero values feeding the threshold rules.
func decodeInput(raw []byte, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty analysis input")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid analysis input: %w", err)
	}
	return nil
}

// confidence clamps a computed confidence into [0.1, 0.99].
func confidence(c float64) float64 {
	if c < 0.1 {
		return 0.1
	}
	if c > 0.99 {
		return 0.99
	}
	return c
}

// riskScore maps likelihood/impact labels onto a 0-1 score.
func riskScore(likelihood, impact string) float64 {
	scale := map[string]float64{"low": 0.2, "medium": 0.5, "high": 0.9}
	return scale[likelihood] * scale[impact]
}
