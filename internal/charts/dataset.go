// Package charts turns tabular market data into PNG charts: datasets of
// dimension/measure records, a grouping and aggregation pipeline, and a
// renderer over github.com/wcharczuk/go-chart/v2.
package charts

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Record is one row: string dimensions plus numeric measures.
type Record struct {
	Dimensions map[string]string
	Measures   map[string]float64
}

// Dataset is an ordered table of records with declared columns.
type Dataset struct {
	Name       string
	Dimensions []string
	Measures   []string
	Records    []Record
}

// Dimension returns the named dimension for row i, empty if absent.
func (d *Dataset) Dimension(i int, key string) string {
	return d.Records[i].Dimensions[key]
}

// Measure returns the named measure for row i, zero if absent.
func (d *Dataset) Measure(i int, key string) float64 {
	return d.Records[i].Measures[key]
}

// Len returns the row count.
func (d *Dataset) Len() int {
	return len(d.Records)
}

// =============================================================================
// BUILT-IN MARKET TABLES
// =============================================================================

func record(dims map[string]string, measures map[string]float64) Record {
	return Record{Dimensions: dims, Measures: measures}
}

// MedianPriceByDistrict holds median sale prices per district and year.
func MedianPriceByDistrict() *Dataset {
	return &Dataset{
		Name:       "median_price_by_district",
		Dimensions: []string{"district", "year"},
		Measures:   []string{"median_price"},
		Records: []Record{
			record(map[string]string{"district": "Inner Loop", "year": "2024"}, map[string]float64{"median_price": 485000}),
			record(map[string]string{"district": "Inner Loop", "year": "2025"}, map[string]float64{"median_price": 502000}),
			record(map[string]string{"district": "Galleria", "year": "2024"}, map[string]float64{"median_price": 415000}),
			record(map[string]string{"district": "Galleria", "year": "2025"}, map[string]float64{"median_price": 428000}),
			record(map[string]string{"district": "Energy Corridor", "year": "2024"}, map[string]float64{"median_price": 342000}),
			record(map[string]string{"district": "Energy Corridor", "year": "2025"}, map[string]float64{"median_price": 351000}),
			record(map[string]string{"district": "East End", "year": "2024"}, map[string]float64{"median_price": 298000}),
			record(map[string]string{"district": "East End", "year": "2025"}, map[string]float64{"median_price": 321000}),
			record(map[string]string{"district": "The Woodlands", "year": "2024"}, map[string]float64{"median_price": 455000}),
			record(map[string]string{"district": "The Woodlands", "year": "2025"}, map[string]float64{"median_price": 472000}),
			record(map[string]string{"district": "Katy", "year": "2024"}, map[string]float64{"median_price": 365000}),
			record(map[string]string{"district": "Katy", "year": "2025"}, map[string]float64{"median_price": 374000}),
		},
	}
}

// PermitVolumeByYear holds residential permit counts citywide.
func PermitVolumeByYear() *Dataset {
	return &Dataset{
		Name:       "permit_volume_by_year",
		Dimensions: []string{"year"},
		Measures:   []string{"permits"},
		Records: []Record{
			record(map[string]string{"year": "2020"}, map[string]float64{"permits": 41200}),
			record(map[string]string{"year": "2021"}, map[string]float64{"permits": 48900}),
			record(map[string]string{"year": "2022"}, map[string]float64{"permits": 52300}),
			record(map[string]string{"year": "2023"}, map[string]float64{"permits": 44100}),
			record(map[string]string{"year": "2024"}, map[string]float64{"permits": 46800}),
			record(map[string]string{"year": "2025"}, map[string]float64{"permits": 49500}),
		},
	}
}

// CapRatesBySubmarket holds going-in cap rates for multifamily.
func CapRatesBySubmarket() *Dataset {
	return &Dataset{
		Name:       "cap_rates_by_submarket",
		Dimensions: []string{"submarket"},
		Measures:   []string{"cap_rate"},
		Records: []Record{
			record(map[string]string{"submarket": "Inner Loop"}, map[string]float64{"cap_rate": 5.0}),
			record(map[string]string{"submarket": "Galleria"}, map[string]float64{"cap_rate": 5.5}),
			record(map[string]string{"submarket": "Energy Corridor"}, map[string]float64{"cap_rate": 6.7}),
			record(map[string]string{"submarket": "The Woodlands"}, map[string]float64{"cap_rate": 5.3}),
			record(map[string]string{"submarket": "Katy"}, map[string]float64{"cap_rate": 5.9}),
			record(map[string]string{"submarket": "Pearland"}, map[string]float64{"cap_rate": 6.1}),
			record(map[string]string{"submarket": "East End"}, map[string]float64{"cap_rate": 6.4}),
		},
	}
}

// FloodClaimsByWatershed holds NFIP claim counts per watershed.
func FloodClaimsByWatershed() *Dataset {
	return &Dataset{
		Name:       "flood_claims_by_watershed",
		Dimensions: []string{"watershed"},
		Measures:   []string{"claims"},
		Records: []Record{
			record(map[string]string{"watershed": "Brays Bayou"}, map[string]float64{"claims": 8200}),
			record(map[string]string{"watershed": "White Oak Bayou"}, map[string]float64{"claims": 4100}),
			record(map[string]string{"watershed": "Greens Bayou"}, map[string]float64{"claims": 5600}),
			record(map[string]string{"watershed": "Buffalo Bayou"}, map[string]float64{"claims": 6900}),
			record(map[string]string{"watershed": "Sims Bayou"}, map[string]float64{"claims": 3300}),
			record(map[string]string{"watershed": "Cypress Creek"}, map[string]float64{"claims": 4800}),
		},
	}
}

// AbsorptionBySubmarket holds quarterly net absorption in units.
func AbsorptionBySubmarket() *Dataset {
	return &Dataset{
		Name:       "absorption_by_submarket",
		Dimensions: []string{"submarket", "quarter"},
		Measures:   []string{"units"},
		Records: []Record{
			record(map[string]string{"submarket": "Inner Loop", "quarter": "2025Q1"}, map[string]float64{"units": 820}),
			record(map[string]string{"submarket": "Inner Loop", "quarter": "2025Q2"}, map[string]float64{"units": 760}),
			record(map[string]string{"submarket": "Katy", "quarter": "2025Q1"}, map[string]float64{"units": 540}),
			record(map[string]string{"submarket": "Katy", "quarter": "2025Q2"}, map[string]float64{"units": 610}),
			record(map[string]string{"submarket": "The Woodlands", "quarter": "2025Q1"}, map[string]float64{"units": 390}),
			record(map[string]string{"submarket": "The Woodlands", "quarter": "2025Q2"}, map[string]float64{"units": 430}),
			record(map[string]string{"submarket": "East End", "quarter": "2025Q1"}, map[string]float64{"units": 280}),
			record(map[string]string{"submarket": "East End", "quarter": "2025Q2"}, map[string]float64{"units": 350}),
		},
	}
}

// BuiltinDatasets returns every hand-authored table.
func BuiltinDatasets() []*Dataset {
	return []*Dataset{
		MedianPriceByDistrict(),
		PermitVolumeByYear(),
		CapRatesBySubmarket(),
		FloodClaimsByWatershed(),
		AbsorptionBySubmarket(),
	}
}

// =============================================================================
// CSV LOADING
// =============================================================================

// ParseCSV reads CSV bytes into a dataset. Columns named in measures become
// numeric; everything else is a dimension. Malformed rows are skipped.
func ParseCSV(r io.Reader, name string, measures []string) (*Dataset, error) {
	reader := csv.NewReader(r)

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	measSet := make(map[string]bool, len(measures))
	for _, m := range measures {
		measSet[m] = true
	}

	ds := &Dataset{Name: name, Measures: measures}
	for _, h := range headers {
		h = strings.TrimSpace(h)
		if !measSet[h] {
			ds.Dimensions = append(ds.Dimensions, h)
		}
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		rec := Record{
			Dimensions: make(map[string]string),
			Measures:   make(map[string]float64),
		}
		for i, val := range row {
			if i >= len(headers) {
				break
			}
			key := strings.TrimSpace(headers[i])
			val = strings.TrimSpace(val)
			if measSet[key] {
				f, err := strconv.ParseFloat(val, 64)
				if err != nil {
					continue
				}
				rec.Measures[key] = f
			} else {
				rec.Dimensions[key] = val
			}
		}
		ds.Records = append(ds.Records, rec)
	}

	if len(ds.Records) == 0 {
		return nil, fmt.Errorf("CSV %s contains no usable rows", name)
	}
	return ds, nil
}

// LoadCSV reads a CSV file into a dataset named after the file.
func LoadCSV(path string, measures []string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(strings.ToLower(filepath.Base(path)), ".csv")
	return ParseCSV(f, name, measures)
}
