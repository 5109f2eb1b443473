package knowledge

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"houstonintel/types"
)

func writeInput(t *testing.T, dir, name string, insight types.Insight) {
	t.Helper()
	data, err := json.Marshal(insight)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func testInsight(title string, domain types.Domain, severity types.Severity) types.Insight {
	return types.Insight{
		ID:     "test-" + title,
		Domain: domain,
		Title:  title,
		Findings: []types.Finding{
			{Category: "flood", Statement: "AE floodplain with mandatory insurance", Severity: severity},
		},
		Confidence: 0.9,
		Geography:  types.Geography{City: "Houston", District: "East End"},
	}
}

func TestStructurer_Run(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()

	writeInput(t, inDir, "a.json", testInsight("Flood exposure East End", types.DomainEnvironmental, types.SeverityHigh))
	writeInput(t, inDir, "b.json", testInsight("Cap rate compression Galleria", types.DomainFinancial, types.SeverityMedium))
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "bad.json"), []byte("{not json"), 0o644))

	s := NewStructurer(StructurerConfig{InputDir: inDir, OutputDir: outDir})
	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Read)
	assert.Equal(t, 2, result.Written)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Duplicates)
	assert.Equal(t, []string{"environmental", "financial"}, result.Domains)

	// Tree layout is domain/geography/slug.json.
	envPath := filepath.Join(outDir, "environmental", "east_end", "flood-exposure-east-end.json")
	assert.FileExists(t, envPath)
	assert.FileExists(t, filepath.Join(outDir, "manifest.json"))
	assert.FileExists(t, filepath.Join(outDir, "insight.schema.json"))

	raw, err := os.ReadFile(envPath)
	require.NoError(t, err)
	var stored types.Insight
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Contains(t, stored.Tags, "flooding")
	assert.Greater(t, stored.Priority, 0.0)
}

func TestStructurer_ManifestOrderedByPriority(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()

	writeInput(t, inDir, "low.json", testInsight("Minor drainage note", types.DomainEnvironmental, types.SeverityInfo))
	writeInput(t, inDir, "high.json", testInsight("Critical flood hazard", types.DomainEnvironmental, types.SeverityCritical))

	s := NewStructurer(StructurerConfig{InputDir: inDir, OutputDir: outDir})
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(outDir, "manifest.json"))
	require.NoError(t, err)

	var manifest Manifest
	require.NoError(t, json.Unmarshal(raw, &manifest))
	assert.Equal(t, 2, manifest.Count)

	// Highest-priority entry comes back first after a round-trip.
	first := manifest.Entries.Oldest()
	require.NotNil(t, first)
	assert.Equal(t, "Critical flood hazard", first.Value.Title)
}

func TestStructurer_DedupeKeepsHigherPriority(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()

	weak := testInsight("Flood exposure East End", types.DomainEnvironmental, types.SeverityLow)
	strong := testInsight("flood exposure east end", types.DomainEnvironmental, types.SeverityCritical)
	writeInput(t, inDir, "a.json", weak)
	writeInput(t, inDir, "b.json", strong)

	s := NewStructurer(StructurerConfig{InputDir: inDir, OutputDir: outDir})
	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Written)
	assert.Equal(t, 1, result.Duplicates)

	raw, err := os.ReadFile(filepath.Join(outDir, "environmental", "east_end", "flood-exposure-east-end.json"))
	require.NoError(t, err)
	var stored types.Insight
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, types.SeverityCritical, stored.Findings[0].Severity)
}

func TestStructurer_Idempotent(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()

	writeInput(t, inDir, "a.json", testInsight("Permit surge EaDo", types.DomainRegulatory, types.SeverityHigh))

	s := NewStructurer(StructurerConfig{InputDir: inDir, OutputDir: outDir})
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	path := filepath.Join(outDir, "regulatory", "east_end", "permit-surge-eado.json")
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStructurer_InfersDomainFromKeywords(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()

	untagged := types.Insight{
		Title: "Fiber buildout along Westheimer",
		Findings: []types.Finding{
			{Category: "connectivity", Statement: "broadband coverage expanding", Severity: types.SeverityInfo},
		},
		Geography: types.Geography{City: "Houston"},
	}
	writeInput(t, inDir, "a.json", untagged)

	s := NewStructurer(StructurerConfig{InputDir: inDir, OutputDir: outDir})
	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"technology"}, result.Domains)
	assert.FileExists(t, filepath.Join(outDir, "technology", "citywide", "fiber-buildout-along-westheimer.json"))
}

func TestStructurer_SkipsInvalidRecords(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()

	writeInput(t, inDir, "notitle.json", types.Insight{
		Findings: []types.Finding{{Statement: "x", Severity: types.SeverityInfo}},
	})
	writeInput(t, inDir, "nofindings.json", types.Insight{Title: "Empty"})

	s := NewStructurer(StructurerConfig{InputDir: inDir, OutputDir: outDir})
	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Written)
	assert.Equal(t, 2, result.Skipped)
}

func TestScorePriority(t *testing.T) {
	insight := types.Insight{
		Findings: []types.Finding{
			{Severity: types.SeverityCritical},
			{Severity: types.SeverityLow},
		},
		Risks:      []types.Risk{{Score: 0.45}, {Score: 0.81}},
		Confidence: 0.9,
	}

	// 0.6*1.0 + 0.25*1.0 (capped) + 0.15*0.9
	assert.InDelta(t, 0.985, scorePriority(&insight), 0.001)
}

func TestTitleSlug(t *testing.T) {
	assert.Equal(t, "flood-exposure-east-end", titleSlug("Flood exposure: East End!"))
	assert.Equal(t, "cap-rate-4-5", titleSlug("Cap rate 4.5%"))
}

func TestGeographySlug(t *testing.T) {
	assert.Equal(t, "citywide", geographySlug(types.Geography{City: "Houston"}))
	assert.Equal(t, "citywide", geographySlug(types.Geography{}))
	assert.Equal(t, "east_end", geographySlug(types.Geography{City: "Houston", District: "East End"}))
	assert.Equal(t, "77003", geographySlug(types.Geography{District: "East End", ZipCode: "77003"}))
	assert.Equal(t, "fort_bend", geographySlug(types.Geography{City: "Houston", County: "Fort Bend"}))
}

func TestNormalizeGeography(t *testing.T) {
	g := types.Geography{City: " Houston ", District: " East End "}
	normalizeGeography(&g)
	assert.Equal(t, "Houston", g.City)
	assert.Equal(t, "East End", g.District)
	assert.Equal(t, "east_end", geographySlug(g))
}
