package chemistry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	pkgerrors "github.com/pkg/errors"
)

// VoltageClass is one predefined nominal voltage of a chemistry and the
// pack-level limits for it.
type VoltageClass struct {
	Nominal float64 `json:"nominalVoltage"`
	Max     float64 `json:"maxVoltage"`
	Min     float64 `json:"minVoltage"`
}

// ScaleFactors derive the voltage limits of an arbitrary nominal voltage.
type ScaleFactors struct {
	MaxVoltageFactor float64 `json:"maxVoltageFactor"`
	MinVoltageFactor float64 `json:"minVoltageFactor"`
}

// Profile holds the limits of one chemistry.
type Profile struct {
	MinTemperature float64        `json:"minTemperature"`
	MaxTemperature float64        `json:"maxTemperature"`
	Classes        []VoltageClass `json:"classes,omitempty"`
	Factors        *ScaleFactors  `json:"factors,omitempty"`
}

// Table maps each chemistry to its profile.
type Table map[Chemistry]Profile

// DefaultTable returns the built-in chemistry table.
func DefaultTable() Table {
	return Table{
		LiIon: {
			MinTemperature: 0,
			MaxTemperature: 45,
			Classes: []VoltageClass{
				{Nominal: 11.1, Max: 12.6, Min: 8.25},
				{Nominal: 14.8, Max: 16.8, Min: 10.0},
				{Nominal: 24.0, Max: 29.4, Min: 19.2},
				{Nominal: 36.0, Max: 42.0, Min: 27.5},
				{Nominal: 48.0, Max: 54.6, Min: 35.7},
				{Nominal: 51.8, Max: 58.8, Min: 38.5},
				{Nominal: 59.2, Max: 67.2, Min: 44.0},
				{Nominal: 62.9, Max: 71.4, Min: 46.7},
				{Nominal: 72.0, Max: 84.0, Min: 55.0},
			},
		},
		LFP: {
			MinTemperature: -20,
			MaxTemperature: 55,
			Classes: []VoltageClass{
				{Nominal: 12.8, Max: 14.6, Min: 10.0},
				{Nominal: 24.0, Max: 29.2, Min: 20.0},
				{Nominal: 36.0, Max: 43.8, Min: 30.0},
				{Nominal: 48.0, Max: 54.6, Min: 37.5},
				{Nominal: 51.2, Max: 58.4, Min: 40.0},
				{Nominal: 60.0, Max: 69.3, Min: 47.5},
				{Nominal: 64.0, Max: 73.0, Min: 50.0},
				{Nominal: 72.0, Max: 87.6, Min: 60.0},
				{Nominal: 102.4, Max: 116.8, Min: 80.0},
				// 38s and 40s packs, charged to 3.65 V/cell.
				{Nominal: 121.6, Max: 138.7, Min: 95.0},
				{Nominal: 128.0, Max: 146.0, Min: 100.0},
			},
		},
		LeadAcid: {
			MinTemperature: -15,
			MaxTemperature: 40,
			Classes: []VoltageClass{
				{Nominal: 6.0, Max: 7.2, Min: 4.2},
				{Nominal: 12.0, Max: 14.4, Min: 8.4},
				{Nominal: 24.0, Max: 28.8, Min: 16.8},
				{Nominal: 36.0, Max: 43.2, Min: 25.2},
				{Nominal: 48.0, Max: 57.6, Min: 33.6},
				{Nominal: 72.0, Max: 86.4, Min: 50.4},
			},
		},
		LiPo: {
			MinTemperature: -10,
			MaxTemperature: 60,
			Factors: &ScaleFactors{
				MaxVoltageFactor: 4.2 / 3.7,
				MinVoltageFactor: 3.0 / 3.7,
			},
		},
		NiMH: {
			MinTemperature: -20,
			MaxTemperature: 50,
			Factors: &ScaleFactors{
				MaxVoltageFactor: 1.45 / 1.2,
				MinVoltageFactor: 1.0 / 1.2,
			},
		},
	}
}

// Validate checks the physical invariants of every entry.
func (t Table) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("chemistry table is empty")
	}

	for c, p := range t {
		if p.MinTemperature >= p.MaxTemperature {
			return fmt.Errorf("%s: minimum temperature %v must be below maximum %v", c, p.MinTemperature, p.MaxTemperature)
		}
		if len(p.Classes) == 0 && p.Factors == nil {
			return fmt.Errorf("%s: needs voltage classes or scale factors", c)
		}
		if f := p.Factors; f != nil {
			if f.MinVoltageFactor <= 0 || f.MinVoltageFactor >= 1 || f.MaxVoltageFactor <= 1 {
				return fmt.Errorf("%s: scale factors must satisfy 0 < min < 1 < max, got min=%v max=%v", c, f.MinVoltageFactor, f.MaxVoltageFactor)
			}
		}
		seen := make(map[float64]bool, len(p.Classes))
		for _, vc := range p.Classes {
			if !(vc.Min < vc.Nominal && vc.Nominal < vc.Max) {
				return fmt.Errorf("%s %vV: limits must satisfy min < nominal < max, got min=%v max=%v", c, vc.Nominal, vc.Min, vc.Max)
			}
			if seen[vc.Nominal] {
				return fmt.Errorf("%s: duplicate voltage class %vV", c, vc.Nominal)
			}
			seen[vc.Nominal] = true
		}
	}

	return nil
}

// clone deep-copies the table so the registry never shares slices with its caller.
func (t Table) clone() Table {
	out := make(Table, len(t))
	for c, p := range t {
		cp := p
		cp.Classes = append([]VoltageClass(nil), p.Classes...)
		sort.Slice(cp.Classes, func(i, j int) bool { return cp.Classes[i].Nominal < cp.Classes[j].Nominal })
		if p.Factors != nil {
			f := *p.Factors
			cp.Factors = &f
		}
		out[c] = cp
	}
	return out
}

// LoadTable reads a table from a JSON file. Keys are chemistry names and may
// use any alias accepted by Parse.
func LoadTable(path string) (Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read chemistry table %s", path)
	}

	t := Table{}
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal chemistry table from %s", path)
	}

	if err := t.Validate(); err != nil {
		return nil, pkgerrors.Wrapf(err, "invalid chemistry table %s", path)
	}

	return t, nil
}
