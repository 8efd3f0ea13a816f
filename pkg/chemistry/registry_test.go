package chemistry

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/battos/battdiag/pkg/diagerr"
)

func TestDefaultTableIsValid(t *testing.T) {
	if err := DefaultTable().Validate(); err != nil {
		t.Fatalf("default table is invalid: %v", err)
	}
}

func TestResolveEnvelope(t *testing.T) {
	r := Default()

	tests := []struct {
		name     string
		chem     Chemistry
		nominal  float64
		want     Envelope
		wantKind diagerr.Kind
	}{
		{
			name:    "li-ion 48V class",
			chem:    LiIon,
			nominal: 48,
			want: Envelope{
				Chemistry: LiIon, NominalVoltage: 48, MaxVoltage: 54.6, MinVoltage: 35.7,
				MaxTemperature: 45, MinTemperature: 0,
			},
		},
		{
			name:    "lfp 12.8V class",
			chem:    LFP,
			nominal: 12.8,
			want: Envelope{
				Chemistry: LFP, NominalVoltage: 12.8, MaxVoltage: 14.6, MinVoltage: 10.0,
				MaxTemperature: 55, MinTemperature: -20,
			},
		},
		{
			name:     "li-ion between classes",
			chem:     LiIon,
			nominal:  10.5,
			wantKind: diagerr.UnknownVoltageClass,
		},
		{
			name:     "lead-acid 12.5V",
			chem:     LeadAcid,
			nominal:  12.5,
			wantKind: diagerr.UnknownVoltageClass,
		},
		{
			name:     "unknown chemistry",
			chem:     Chemistry("NiCd"),
			nominal:  12,
			wantKind: diagerr.UnknownChemistry,
		},
		{
			name:     "nominal omitted with many classes",
			chem:     LFP,
			nominal:  0,
			wantKind: diagerr.InvalidVoltage,
		},
		{
			name:    "generic family scales the nominal",
			chem:    LiPo,
			nominal: 11.1,
			want: Envelope{
				Chemistry: LiPo, NominalVoltage: 11.1, MaxVoltage: 12.6, MinVoltage: 9.0,
				MaxTemperature: 60, MinTemperature: -10,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveEnvelope(tt.chem, tt.nominal)
			if tt.wantKind != "" {
				if !errors.Is(err, tt.wantKind) {
					t.Fatalf("ResolveEnvelope() error = %v, want kind %s", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveEnvelope() unexpected error: %v", err)
			}
			if !envelopeAlmostEqual(got, tt.want) {
				t.Errorf("ResolveEnvelope() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolveEnvelopeListsValidClasses(t *testing.T) {
	_, err := Default().ResolveEnvelope(LiIon, 10.5)
	e, ok := diagerr.As(err)
	if !ok {
		t.Fatalf("expected domain error, got %v", err)
	}
	want := []float64{11.1, 14.8, 24, 36, 48, 51.8, 59.2, 62.9, 72}
	if !reflect.DeepEqual(e.Bound, want) {
		t.Errorf("Bound = %v, want %v", e.Bound, want)
	}
	if !strings.Contains(e.Msg, "51.8") {
		t.Errorf("message should list the valid classes, got %q", e.Msg)
	}
}

func TestResolveEnvelopeSingleImplicitClass(t *testing.T) {
	r := MustNewRegistry(Table{
		LeadAcid: {
			MinTemperature: -15,
			MaxTemperature: 40,
			Classes:        []VoltageClass{{Nominal: 12, Max: 14.4, Min: 8.4}},
		},
	})

	env, err := r.ResolveEnvelope(LeadAcid, 0)
	if err != nil {
		t.Fatalf("ResolveEnvelope() unexpected error: %v", err)
	}
	if env.NominalVoltage != 12 || env.MaxVoltage != 14.4 {
		t.Errorf("ResolveEnvelope() = %+v, want the only class", env)
	}

	if _, err := r.ResolveEnvelope(LiIon, 48); !errors.Is(err, diagerr.UnknownChemistry) {
		t.Errorf("custom table should not know %s, got %v", LiIon, err)
	}
}

func TestTemperatureCompensationFactor(t *testing.T) {
	r := Default()

	tests := []struct {
		temp     float64
		chem     Chemistry
		want     float64
		wantKind diagerr.Kind
	}{
		{temp: -5, chem: LFP, want: 0.8},
		{temp: 0, chem: LiIon, want: 0.9},
		{temp: 9.99, chem: LiIon, want: 0.9},
		{temp: 10, chem: LiIon, want: 0.95},
		{temp: 25, chem: LiIon, want: 1.0},
		{temp: 30, chem: LiIon, want: 1.0},
		{temp: 35, chem: LiIon, want: 0.95},
		{temp: 40, chem: LiIon, want: 0.9},
		{temp: 45, chem: LiIon, want: 0.9},
		{temp: 50, chem: LiIon, wantKind: diagerr.TemperatureOutOfRange},
		{temp: -5, chem: LiIon, wantKind: diagerr.TemperatureOutOfRange},
		{temp: -5, chem: LeadAcid, want: 0.8},
		{temp: -16, chem: LeadAcid, wantKind: diagerr.TemperatureOutOfRange},
		{temp: 20, chem: Chemistry("NiCd"), wantKind: diagerr.UnknownChemistry},
	}
	for _, tt := range tests {
		got, err := r.TemperatureCompensationFactor(tt.temp, tt.chem)
		if tt.wantKind != "" {
			if !errors.Is(err, tt.wantKind) {
				t.Errorf("TemperatureCompensationFactor(%v, %s) error = %v, want %s", tt.temp, tt.chem, err, tt.wantKind)
			}
			continue
		}
		if err != nil {
			t.Errorf("TemperatureCompensationFactor(%v, %s) unexpected error: %v", tt.temp, tt.chem, err)
			continue
		}
		if got != tt.want {
			t.Errorf("TemperatureCompensationFactor(%v, %s) = %v, want %v", tt.temp, tt.chem, got, tt.want)
		}
	}
}

func TestTemperatureOutOfRangeNamesBound(t *testing.T) {
	_, err := Default().TemperatureCompensationFactor(50, LiIon)
	e, ok := diagerr.As(err)
	if !ok {
		t.Fatalf("expected domain error, got %v", err)
	}
	if e.Actual != 50.0 || e.Bound != 45.0 {
		t.Errorf("Actual/Bound = %v/%v, want 50/45", e.Actual, e.Bound)
	}
	if !strings.Contains(e.Msg, "50") || !strings.Contains(e.Msg, "45") {
		t.Errorf("message should name measured value and bound, got %q", e.Msg)
	}
}

func TestRegistryIsolatedFromCaller(t *testing.T) {
	table := DefaultTable()
	r := MustNewRegistry(table)

	p := table[LiIon]
	p.Classes[0].Max = 999
	table[LiIon] = p

	env, err := r.ResolveEnvelope(LiIon, 11.1)
	if err != nil {
		t.Fatalf("ResolveEnvelope() unexpected error: %v", err)
	}
	if env.MaxVoltage != 12.6 {
		t.Errorf("registry was mutated through the caller's table: max = %v", env.MaxVoltage)
	}
}

func TestNewRegistryRejectsBadTable(t *testing.T) {
	tests := []struct {
		name  string
		table Table
	}{
		{name: "empty", table: Table{}},
		{name: "inverted temperatures", table: Table{LiIon: {MinTemperature: 50, MaxTemperature: 0, Classes: []VoltageClass{{Nominal: 12, Max: 13, Min: 10}}}}},
		{name: "nominal above max", table: Table{LiIon: {MinTemperature: 0, MaxTemperature: 45, Classes: []VoltageClass{{Nominal: 12, Max: 12, Min: 10}}}}},
		{name: "no classes or factors", table: Table{LiIon: {MinTemperature: 0, MaxTemperature: 45}}},
		{name: "bad factors", table: Table{LiPo: {MinTemperature: 0, MaxTemperature: 45, Factors: &ScaleFactors{MaxVoltageFactor: 0.9, MinVoltageFactor: 0.8}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.table); err == nil {
				t.Errorf("NewRegistry() expected error")
			}
		})
	}
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.json")
	content := `{
  "lifepo4": {
    "minTemperature": -20,
    "maxTemperature": 55,
    "classes": [{"nominalVoltage": 12.8, "maxVoltage": 14.6, "minVoltage": 10.0}]
  }
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable() unexpected error: %v", err)
	}
	if _, ok := table[LFP]; !ok {
		t.Fatalf("LoadTable() should map the lifepo4 alias to %s, got %v", LFP, table)
	}

	if _, err := LoadTable(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("LoadTable() expected error for a missing file")
	}
}

func TestParseBatteryType(t *testing.T) {
	tests := []struct {
		in          string
		wantChem    Chemistry
		wantNominal float64
		wantErr     bool
	}{
		{in: "Li-ion", wantChem: LiIon},
		{in: "LiFePO₄", wantChem: LFP},
		{in: "lead-acid", wantChem: LeadAcid},
		{in: "Li-ion_24V", wantChem: LiIon, wantNominal: 24},
		{in: "LFP_51.2V", wantChem: LFP, wantNominal: 51.2},
		{in: "Zinc", wantErr: true},
		{in: "Zinc_12V", wantErr: true},
	}
	for _, tt := range tests {
		c, n, err := ParseBatteryType(tt.in)
		if tt.wantErr {
			if !errors.Is(err, diagerr.UnknownChemistry) {
				t.Errorf("ParseBatteryType(%q) error = %v, want UnknownChemistry", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseBatteryType(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if c != tt.wantChem || n != tt.wantNominal {
			t.Errorf("ParseBatteryType(%q) = %s, %v; want %s, %v", tt.in, c, n, tt.wantChem, tt.wantNominal)
		}
	}
}

func envelopeAlmostEqual(a, b Envelope) bool {
	const eps = 1e-9
	return a.Chemistry == b.Chemistry &&
		math.Abs(a.NominalVoltage-b.NominalVoltage) < eps &&
		math.Abs(a.MaxVoltage-b.MaxVoltage) < eps &&
		math.Abs(a.MinVoltage-b.MinVoltage) < eps &&
		a.MaxTemperature == b.MaxTemperature &&
		a.MinTemperature == b.MinTemperature
}
