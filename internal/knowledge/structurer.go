// Package knowledge implements the T2 to T3 batch restructuring job: it
// reads raw insight JSON files, validates and tags them, scores priority,
// deduplicates, and writes a domain/geography tree with an ordered manifest
// and a JSON Schema for downstream validation.
package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"houstonintel/types"
)

// =============================================================================
// STRUCTURER
// =============================================================================

// StructurerConfig configures one batch run.
type StructurerConfig struct {
	InputDir  string // directory of raw insight JSON files
	OutputDir string // root of the structured tree
}

// Result summarizes a batch run.
type Result struct {
	Read       int       `json:"read"`
	Written    int       `json:"written"`
	Skipped    int       `json:"skipped"` // invalid inputs
	Duplicates int       `json:"duplicates"`
	Domains    []string  `json:"domains"`
	FinishedAt time.Time `json:"finished_at"`
}

// ManifestEntry is one insight's row in the manifest, ordered by priority.
type ManifestEntry struct {
	Title     string       `json:"title"`
	Domain    types.Domain `json:"domain"`
	Geography string       `json:"geography"`
	Priority  float64      `json:"priority"`
	Tags      []string     `json:"tags,omitempty"`
	Path      string       `json:"path"`
}

// Manifest indexes the structured tree. Entries keep insertion order through
// JSON round-trips so priority ranking survives serialization.
type Manifest struct {
	GeneratedAt time.Time                                      `json:"generated_at"`
	Count       int                                            `json:"count"`
	Entries     *orderedmap.OrderedMap[string, ManifestEntry] `json:"entries"`
}

// Structurer runs the T2 to T3 restructuring batch.
type Structurer struct {
	config StructurerConfig
}

// NewStructurer creates a structurer for the given directories.
func NewStructurer(config StructurerConfig) *Structurer {
	return &Structurer{config: config}
}

// Run executes the batch: read, validate, tag, score, dedupe, write.
// Re-running over the same input produces the same tree apart from timestamps.
func (s *Structurer) Run(ctx context.Context) (*Result, error) {
	log.Printf("📚 Structuring insights from %s", s.config.InputDir)

	insights, skipped, err := s.readInputs(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{Read: len(insights) + skipped, Skipped: skipped}

	for i := range insights {
		enrich(&insights[i])
	}

	insights, dupes := dedupe(insights)
	result.Duplicates = dupes

	// Priority descending; title breaks ties so output order is stable.
	sort.Slice(insights, func(i, j int) bool {
		if insights[i].Priority != insights[j].Priority {
			return insights[i].Priority > insights[j].Priority
		}
		return insights[i].Title < insights[j].Title
	})

	manifest := &Manifest{
		GeneratedAt: time.Now(),
		Count:       len(insights),
		Entries:     orderedmap.New[string, ManifestEntry](),
	}

	domains := make(map[string]bool)
	for _, insight := range insights {
		relPath, err := s.writeInsight(insight)
		if err != nil {
			return nil, err
		}
		result.Written++
		domains[string(insight.Domain)] = true

		manifest.Entries.Set(titleHash(insight.Title), ManifestEntry{
			Title:     insight.Title,
			Domain:    insight.Domain,
			Geography: geographySlug(insight.Geography),
			Priority:  insight.Priority,
			Tags:      insight.Tags,
			Path:      relPath,
		})
	}

	for d := range domains {
		result.Domains = append(result.Domains, d)
	}
	sort.Strings(result.Domains)

	if err := s.writeManifest(manifest); err != nil {
		return nil, err
	}
	if err := s.writeSchema(); err != nil {
		return nil, err
	}

	result.FinishedAt = time.Now()
	log.Printf("✅ Structured %d insights (%d skipped, %d duplicates) into %s",
		result.Written, result.Skipped, result.Duplicates, s.config.OutputDir)
	return result, nil
}

// readInputs loads every .json file under InputDir, skipping records that
// fail validation. File order is sorted so runs are deterministic.
func (s *Structurer) readInputs(ctx context.Context) ([]types.Insight, int, error) {
	var paths []string
	err := filepath.WalkDir(s.config.InputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan input directory: %w", err)
	}
	sort.Strings(paths)

	var insights []types.Insight
	skipped := 0
	for _, path := range paths {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
		}

		var insight types.Insight
		if err := json.Unmarshal(raw, &insight); err != nil {
			log.Printf("⚠️ Skipping %s: %v", filepath.Base(path), err)
			skipped++
			continue
		}
		if err := validate(insight); err != nil {
			log.Printf("⚠️ Skipping %s: %v", filepath.Base(path), err)
			skipped++
			continue
		}
		insights = append(insights, insight)
	}
	return insights, skipped, nil
}

func (s *Structurer) writeInsight(insight types.Insight) (string, error) {
	relDir := filepath.Join(string(insight.Domain), geographySlug(insight.Geography))
	dir := filepath.Join(s.config.OutputDir, relDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	name := titleSlug(insight.Title) + ".json"
	data, err := json.MarshalIndent(insight, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal insight %s: %w", insight.ID, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return filepath.Join(relDir, name), nil
}

func (s *Structurer) writeManifest(manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	path := filepath.Join(s.config.OutputDir, "manifest.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// writeSchema emits the insight JSON Schema next to the tree so consumers
// can validate records without importing this module.
func (s *Structurer) writeSchema() error {
	reflector := jsonschema.Reflector{}
	schema := reflector.Reflect(&types.Insight{})
	if schema == nil {
		return fmt.Errorf("failed to reflect insight schema")
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal insight schema: %w", err)
	}
	path := filepath.Join(s.config.OutputDir, "insight.schema.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION / TAGGING / SCORING
// =============================================================================

var knownDomains = map[types.Domain]bool{
	types.DomainEnvironmental: true,
	types.DomainFinancial:     true,
	types.DomainRegulatory:    true,
	types.DomainTechnology:    true,
}

// domainKeywords infer a domain for untagged records from title and finding
// text. First match wins in the order below.
var domainKeywords = []struct {
	domain   types.Domain
	keywords []string
}{
	{types.DomainEnvironmental, []string{"flood", "drainage", "air quality", "superfund", "subsidence", "environmental"}},
	{types.DomainFinancial, []string{"cap rate", "interest", "tax", "occupancy", "leverage", "financial"}},
	{types.DomainRegulatory, []string{"permit", "zoning", "deed", "tirz", "annexation", "etj", "regulatory"}},
	{types.DomainTechnology, []string{"fiber", "broadband", "data center", "5g", "smart", "technology"}},
}

// tagKeywords add topical tags from the same text scan.
var tagKeywords = map[string][]string{
	"flooding":     {"flood", "drainage", "hcfcd"},
	"insurance":    {"insurance", "premium"},
	"tax":          {"tax", "mud"},
	"debt":         {"leverage", "interest", "refinanc"},
	"supply":       {"permit", "pipeline", "deliveries"},
	"incentives":   {"tirz", "opportunity zone", "incentive"},
	"connectivity": {"fiber", "broadband", "5g", "provider"},
	"power":        {"data center", "interconnect", "mw"},
}

func validate(insight types.Insight) error {
	if insight.Title == "" {
		return fmt.Errorf("insight %q has no title", insight.ID)
	}
	if len(insight.Findings) == 0 {
		return fmt.Errorf("insight %q has no findings", insight.Title)
	}
	return nil
}

// enrich fills in domain, tags, normalized geography and priority.
func enrich(insight *types.Insight) {
	text := searchText(insight)

	if !knownDomains[insight.Domain] {
		insight.Domain = inferDomain(text)
	}

	normalizeGeography(&insight.Geography)
	insight.Tags = mergeTags(insight.Tags, inferTags(text))
	insight.Priority = scorePriority(insight)
}

// normalizeGeography trims stray whitespace so equal geographies slug to the
// same directory regardless of how the input was authored.
func normalizeGeography(g *types.Geography) {
	g.City = strings.TrimSpace(g.City)
	g.County = strings.TrimSpace(g.County)
	g.District = strings.TrimSpace(g.District)
	g.ZipCode = strings.TrimSpace(g.ZipCode)
}

func searchText(insight *types.Insight) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(insight.Title))
	for _, f := range insight.Findings {
		b.WriteString(" ")
		b.WriteString(strings.ToLower(f.Category))
		b.WriteString(" ")
		b.WriteString(strings.ToLower(f.Statement))
	}
	return b.String()
}

func inferDomain(text string) types.Domain {
	for _, entry := range domainKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				return entry.domain
			}
		}
	}
	return types.Domain("general")
}

func inferTags(text string) []string {
	var tags []string
	for tag, keywords := range tagKeywords {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				tags = append(tags, tag)
				break
			}
		}
	}
	sort.Strings(tags)
	return tags
}

func mergeTags(existing, inferred []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(inferred))
	for _, t := range existing {
		if !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	for _, t := range inferred {
		if !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	return merged
}

// scorePriority weights the highest finding severity most, with smaller
// contributions from risk scores and the analyzer's own confidence.
func scorePriority(insight *types.Insight) float64 {
	var maxWeight float64
	for _, f := range insight.Findings {
		if w := f.Severity.Weight(); w > maxWeight {
			maxWeight = w
		}
	}

	var riskSum float64
	for _, r := range insight.Risks {
		riskSum += r.Score
	}
	if riskSum > 1 {
		riskSum = 1
	}

	conf := insight.Confidence
	if conf == 0 {
		conf = 0.5
	}

	return 0.6*maxWeight + 0.25*riskSum + 0.15*conf
}

// dedupe drops records whose title hash has already been seen, keeping the
// higher-priority copy.
func dedupe(insights []types.Insight) ([]types.Insight, int) {
	best := make(map[string]types.Insight)
	order := make([]string, 0, len(insights))
	dupes := 0

	for _, insight := range insights {
		key := titleHash(insight.Title)
		existing, ok := best[key]
		if !ok {
			best[key] = insight
			order = append(order, key)
			continue
		}
		dupes++
		if insight.Priority > existing.Priority {
			best[key] = insight
		}
	}

	out := make([]types.Insight, 0, len(best))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out, dupes
}

func titleHash(title string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(title))))
	return hex.EncodeToString(sum[:8])
}

func titleSlug(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	lastDash := false
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// geographySlug maps a geography onto its directory name. Anything scoped no
// tighter than the city collapses into "citywide" so city-level insights from
// different inputs land together.
func geographySlug(g types.Geography) string {
	if g.ZipCode == "" && g.District == "" && g.County == "" {
		return "citywide"
	}
	return strings.ReplaceAll(strings.ToLower(g.Scope()), " ", "_")
}
