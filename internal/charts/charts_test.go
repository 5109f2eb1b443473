package charts

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestGroupAndAggregate_Sum(t *testing.T) {
	ds := AbsorptionBySubmarket()

	groups := GroupAndAggregate(ds, "submarket", "units", "sum", "value_desc", 0)
	require.Len(t, groups, 4)

	assert.Equal(t, "Inner Loop", groups[0].Key)
	assert.Equal(t, 1580.0, groups[0].Value)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, "East End", groups[3].Key)
}

func TestGroupAndAggregate_Aggregations(t *testing.T) {
	ds := MedianPriceByDistrict()

	tests := []struct {
		aggregation string
		innerLoop   float64
	}{
		{"sum", 987000},
		{"avg", 493500},
		{"max", 502000},
		{"min", 485000},
		{"count", 2},
	}

	for _, tc := range tests {
		t.Run(tc.aggregation, func(t *testing.T) {
			groups := GroupAndAggregate(ds, "district", "median_price", tc.aggregation, "", 0)
			require.NotEmpty(t, groups)
			// Grouping preserves first-seen order; Inner Loop is first.
			assert.Equal(t, "Inner Loop", groups[0].Key)
			assert.Equal(t, tc.innerLoop, groups[0].Value)
		})
	}
}

func TestGroupAndAggregate_SortAndLimit(t *testing.T) {
	ds := CapRatesBySubmarket()

	groups := GroupAndAggregate(ds, "submarket", "cap_rate", "avg", "value_asc", 3)
	require.Len(t, groups, 3)
	assert.Equal(t, "Inner Loop", groups[0].Key)
	assert.Equal(t, "The Woodlands", groups[1].Key)
	assert.Equal(t, "Galleria", groups[2].Key)

	alpha := GroupAndAggregate(ds, "submarket", "cap_rate", "avg", "label_asc", 0)
	assert.Equal(t, "East End", alpha[0].Key)
}

func TestGroupAndAggregate_Empty(t *testing.T) {
	assert.Nil(t, GroupAndAggregate(nil, "x", "y", "sum", "", 0))
	assert.Nil(t, GroupAndAggregate(&Dataset{}, "x", "y", "sum", "", 0))
}

func TestParseCSV(t *testing.T) {
	csv := strings.Join([]string{
		"district,median_price",
		"Inner Loop,502000",
		"Katy,374000",
		"bad-row-no-price,",
	}, "\n")

	ds, err := ParseCSV(strings.NewReader(csv), "prices", []string{"median_price"})
	require.NoError(t, err)

	assert.Equal(t, []string{"district"}, ds.Dimensions)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, "Inner Loop", ds.Dimension(0, "district"))
	assert.Equal(t, 502000.0, ds.Measure(0, "median_price"))
	// Unparseable measures default to zero rather than failing the load.
	assert.Equal(t, 0.0, ds.Measure(2, "median_price"))
}

func TestParseCSV_Errors(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""), "empty", nil)
	assert.Error(t, err)

	_, err = ParseCSV(strings.NewReader("a,b\n"), "headeronly", []string{"b"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no usable rows")
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Permits.csv")
	require.NoError(t, os.WriteFile(path, []byte("year,permits\n2025,49500\n"), 0o644))

	ds, err := LoadCSV(path, []string{"permits"})
	require.NoError(t, err)
	assert.Equal(t, "permits", ds.Name)
	assert.Equal(t, 49500.0, ds.Measure(0, "permits"))
}

func TestRender_ChartTypes(t *testing.T) {
	specs := BuiltinSpecs()

	tests := []struct {
		name string
		ds   *Dataset
	}{
		{"bar", CapRatesBySubmarket()},
		{"line", PermitVolumeByYear()},
		{"pie", FloodClaimsByWatershed()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := RenderDataset(tc.ds, specs[tc.ds.Name], &buf)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
}

func TestRender_NoData(t *testing.T) {
	var buf bytes.Buffer
	err := Render(Spec{Type: ChartBar, Title: "empty"}, nil, &buf)
	assert.Error(t, err)
}

func TestRenderBuiltins(t *testing.T) {
	dir := t.TempDir()

	paths, err := RenderBuiltins(dir, 0, 0)
	require.NoError(t, err)
	require.Len(t, paths, 5)

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestSpecDimensions(t *testing.T) {
	w, h := Spec{}.dimensions()
	assert.Equal(t, 900, w)
	assert.Equal(t, 500, h)

	w, h = Spec{Width: 1024, Height: 576}.dimensions()
	assert.Equal(t, 1024, w)
	assert.Equal(t, 576, h)
}
