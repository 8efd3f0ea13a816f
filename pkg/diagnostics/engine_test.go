package diagnostics

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/battos/battdiag/pkg/chemistry"
	"github.com/battos/battdiag/pkg/diagerr"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func wantKind(t *testing.T, err error, kind diagerr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected %s error, got %v (kind %q)", kind, err, diagerr.KindOf(err))
	}
}

func TestStateOfCharge(t *testing.T) {
	e := New(nil)

	res, err := e.StateOfCharge(SOCInput{
		Chemistry:      chemistry.LiIon,
		NominalVoltage: 48,
		Voltage:        53.7,
		Temperature:    35,
		Current:        1.0,
	})
	if err != nil {
		t.Fatalf("StateOfCharge returned error: %v", err)
	}
	if !almostEqual(res.StateOfCharge, 18.0/18.9*100) {
		t.Errorf("StateOfCharge = %v, want ~95.24", res.StateOfCharge)
	}
	if res.ChargingStatus != Charging {
		t.Errorf("ChargingStatus = %q, want %q", res.ChargingStatus, Charging)
	}
	if res.TemperatureCompensation != 0.95 {
		t.Errorf("TemperatureCompensation = %v, want 0.95", res.TemperatureCompensation)
	}
	if res.EstimatedRange != "76 km" {
		t.Errorf("EstimatedRange = %q, want %q", res.EstimatedRange, "76 km")
	}
}

func TestStateOfChargeEnvelopeEdges(t *testing.T) {
	e := New(nil)

	tests := []struct {
		name       string
		voltage    float64
		current    float64
		wantSOC    float64
		wantStatus ChargingStatus
	}{
		{"empty and discharging", 35.7, -1, 0, Discharging},
		{"full at rest", 54.6, 0, 100, Full},
		{"mid at rest", 45.15, 0, 50, Idle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.StateOfCharge(SOCInput{
				Chemistry:      chemistry.LiIon,
				NominalVoltage: 48,
				Voltage:        tt.voltage,
				Temperature:    25,
				Current:        tt.current,
			})
			if err != nil {
				t.Fatalf("StateOfCharge returned error: %v", err)
			}
			if !almostEqual(res.StateOfCharge, tt.wantSOC) {
				t.Errorf("StateOfCharge = %v, want %v", res.StateOfCharge, tt.wantSOC)
			}
			if res.ChargingStatus != tt.wantStatus {
				t.Errorf("ChargingStatus = %q, want %q", res.ChargingStatus, tt.wantStatus)
			}
		})
	}
}

func TestStateOfChargeMonotonic(t *testing.T) {
	e := New(nil)

	prev := -1.0
	for v := 35.7; v <= 54.6; v += 0.25 {
		res, err := e.StateOfCharge(SOCInput{
			Chemistry:      chemistry.LiIon,
			NominalVoltage: 48,
			Voltage:        v,
			Temperature:    25,
		})
		if err != nil {
			t.Fatalf("StateOfCharge(%v) returned error: %v", v, err)
		}
		if res.StateOfCharge < 0 || res.StateOfCharge > 100 {
			t.Fatalf("StateOfCharge(%v) = %v, out of [0, 100]", v, res.StateOfCharge)
		}
		if res.StateOfCharge < prev {
			t.Fatalf("StateOfCharge not monotonic at %vV: %v < %v", v, res.StateOfCharge, prev)
		}
		prev = res.StateOfCharge
	}
}

func TestStateOfChargeRejects(t *testing.T) {
	e := New(nil)

	tests := []struct {
		name string
		in   SOCInput
		kind diagerr.Kind
	}{
		{
			name: "above max voltage",
			in:   SOCInput{Chemistry: chemistry.LiIon, NominalVoltage: 48, Voltage: 55, Temperature: 25},
			kind: diagerr.InvalidVoltage,
		},
		{
			name: "below min voltage",
			in:   SOCInput{Chemistry: chemistry.LiIon, NominalVoltage: 48, Voltage: 30, Temperature: 25},
			kind: diagerr.InvalidVoltage,
		},
		{
			name: "too hot",
			in:   SOCInput{Chemistry: chemistry.LiIon, NominalVoltage: 48, Voltage: 48, Temperature: 50},
			kind: diagerr.TemperatureOutOfRange,
		},
		{
			name: "unknown class",
			in:   SOCInput{Chemistry: chemistry.LiIon, NominalVoltage: 10.5, Voltage: 10, Temperature: 25},
			kind: diagerr.UnknownVoltageClass,
		},
		{
			name: "unknown chemistry",
			in:   SOCInput{Chemistry: "Sodium-ion", NominalVoltage: 48, Voltage: 48, Temperature: 25},
			kind: diagerr.UnknownChemistry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.StateOfCharge(tt.in)
			wantKind(t, err, tt.kind)
		})
	}
}

func TestStateOfHealth(t *testing.T) {
	e := New(nil)

	tests := []struct {
		name       string
		in         SOHInput
		wantSOH    float64
		wantLoss   float64
		wantAging  float64
		wantStatus HealthStatus
		wantAction string
	}{
		{
			name:       "new battery",
			in:         SOHInput{CurrentCapacity: 100, RatedCapacity: 100},
			wantSOH:    100,
			wantStatus: HealthGood,
			wantAction: "Regular maintenance sufficient",
		},
		{
			name:       "half-way aged",
			in:         SOHInput{CurrentCapacity: 85, RatedCapacity: 100, CycleCount: 500},
			wantSOH:    80.75,
			wantLoss:   15,
			wantAging:  50,
			wantStatus: HealthModerate,
			wantAction: "Monitor battery health closely",
		},
		{
			name:       "aging saturates",
			in:         SOHInput{CurrentCapacity: 70, RatedCapacity: 100, CycleCount: 3000},
			wantSOH:    63,
			wantLoss:   30,
			wantAging:  100,
			wantStatus: HealthPoor,
			wantAction: "Consider battery replacement",
		},
		{
			name:       "above rated capacity",
			in:         SOHInput{CurrentCapacity: 110, RatedCapacity: 100},
			wantSOH:    110,
			wantStatus: HealthGood,
			wantAction: "Regular maintenance sufficient",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.StateOfHealth(tt.in)
			if err != nil {
				t.Fatalf("StateOfHealth returned error: %v", err)
			}
			if !almostEqual(res.StateOfHealth, tt.wantSOH) {
				t.Errorf("StateOfHealth = %v, want %v", res.StateOfHealth, tt.wantSOH)
			}
			if !almostEqual(res.CapacityLoss, tt.wantLoss) {
				t.Errorf("CapacityLoss = %v, want %v", res.CapacityLoss, tt.wantLoss)
			}
			if !almostEqual(res.CycleAging, tt.wantAging) {
				t.Errorf("CycleAging = %v, want %v", res.CycleAging, tt.wantAging)
			}
			if res.HealthStatus != tt.wantStatus {
				t.Errorf("HealthStatus = %q, want %q", res.HealthStatus, tt.wantStatus)
			}
			if res.RecommendedAction != tt.wantAction {
				t.Errorf("RecommendedAction = %q, want %q", res.RecommendedAction, tt.wantAction)
			}
		})
	}
}

func TestStateOfHealthRejects(t *testing.T) {
	e := New(nil)

	_, err := e.StateOfHealth(SOHInput{CurrentCapacity: 0, RatedCapacity: 100})
	wantKind(t, err, diagerr.InvalidCapacity)

	_, err = e.StateOfHealth(SOHInput{CurrentCapacity: 90, RatedCapacity: -1})
	wantKind(t, err, diagerr.InvalidCapacity)
	if de, ok := diagerr.As(err); !ok || de.Field != "ratedCapacity" {
		t.Errorf("expected field ratedCapacity, got %+v", de)
	}

	_, err = e.StateOfHealth(SOHInput{CurrentCapacity: 90, RatedCapacity: 100, CycleCount: -1})
	wantKind(t, err, diagerr.InvalidCycleCount)
}

func TestInternalResistance(t *testing.T) {
	e := New(nil)

	tests := []struct {
		name       string
		in         ResistanceInput
		wantR      float64
		wantStatus ResistanceStatus
		wantLoss   string
	}{
		{"room temperature", ResistanceInput{Voltage: 0.05, Current: 1, Temperature: 30}, 50, ResistanceExcellent, "Minimal"},
		{"cold and discharging", ResistanceInput{Voltage: 0.1, Current: -1, Temperature: 20}, 120, ResistanceGood, "Normal"},
		{"hot", ResistanceInput{Voltage: 0.2, Current: 1, Temperature: 45}, 180, ResistanceHigh, "Significant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.InternalResistance(tt.in)
			if err != nil {
				t.Fatalf("InternalResistance returned error: %v", err)
			}
			if !almostEqual(res.InternalResistance, tt.wantR) {
				t.Errorf("InternalResistance = %v, want %v", res.InternalResistance, tt.wantR)
			}
			if res.ResistanceStatus != tt.wantStatus {
				t.Errorf("ResistanceStatus = %q, want %q", res.ResistanceStatus, tt.wantStatus)
			}
			if res.PowerLoss != tt.wantLoss {
				t.Errorf("PowerLoss = %q, want %q", res.PowerLoss, tt.wantLoss)
			}
		})
	}
}

func TestInternalResistanceZeroCurrent(t *testing.T) {
	_, err := New(nil).InternalResistance(ResistanceInput{Voltage: 12, Current: 0, Temperature: 25})
	wantKind(t, err, diagerr.InvalidCurrent)
}

func TestCapacityFade(t *testing.T) {
	e := New(nil)

	tests := []struct {
		name       string
		in         FadeInput
		wantFade   float64
		wantRate   float64
		wantCycles int
		wantDays   int
		wantAction string
	}{
		{
			name:       "projected",
			in:         FadeInput{InitialCapacity: 64, CurrentCapacity: 56, CycleCount: 64, TimeInService: 128},
			wantFade:   12.5,
			wantRate:   0.1953125,
			wantCycles: 38,
			wantDays:   76,
			wantAction: "Optimize charging patterns",
		},
		{
			name:       "no cycles yet",
			in:         FadeInput{InitialCapacity: 100, CurrentCapacity: 100},
			wantCycles: 1000,
			wantDays:   730,
			wantAction: "Continue normal usage",
		},
		{
			name:       "past end of life",
			in:         FadeInput{InitialCapacity: 64, CurrentCapacity: 48, CycleCount: 64, TimeInService: 128},
			wantFade:   25,
			wantRate:   0.390625,
			wantCycles: 0,
			wantDays:   0,
			wantAction: "Optimize charging patterns",
		},
		{
			name:       "barely faded",
			in:         FadeInput{InitialCapacity: 100, CurrentCapacity: 99.99999999999999, CycleCount: 10000, TimeInService: 365},
			wantCycles: math.MaxInt32,
			wantDays:   78383153,
			wantAction: "Continue normal usage",
		},
		{
			name:       "long service",
			in:         FadeInput{InitialCapacity: 100, CurrentCapacity: 99, CycleCount: 1, TimeInService: 1e11},
			wantFade:   1,
			wantRate:   1,
			wantCycles: 19,
			wantDays:   math.MaxInt32,
			wantAction: "Optimize charging patterns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.CapacityFade(tt.in)
			if err != nil {
				t.Fatalf("CapacityFade returned error: %v", err)
			}
			if !almostEqual(res.CapacityFade, tt.wantFade) {
				t.Errorf("CapacityFade = %v, want %v", res.CapacityFade, tt.wantFade)
			}
			if !almostEqual(res.FadeRate, tt.wantRate) {
				t.Errorf("FadeRate = %v, want %v", res.FadeRate, tt.wantRate)
			}
			if res.CyclesToEOL != tt.wantCycles {
				t.Errorf("CyclesToEOL = %d, want %d", res.CyclesToEOL, tt.wantCycles)
			}
			if res.DaysRemaining != tt.wantDays {
				t.Errorf("DaysRemaining = %d, want %d", res.DaysRemaining, tt.wantDays)
			}
			if res.RecommendedAction != tt.wantAction {
				t.Errorf("RecommendedAction = %q, want %q", res.RecommendedAction, tt.wantAction)
			}
		})
	}
}

func TestCapacityFadeRejectsNegativeService(t *testing.T) {
	_, err := New(nil).CapacityFade(FadeInput{InitialCapacity: 100, CurrentCapacity: 90, CycleCount: 10, TimeInService: -1})
	wantKind(t, err, diagerr.InvalidDuration)
}

func TestCellBalance(t *testing.T) {
	e := New(nil)

	tests := []struct {
		name         string
		cells        []float64
		wantStatus   BalanceStatus
		wantProblems []int
	}{
		{"identical cells", []float64{3.7, 3.7, 3.7}, WellBalanced, nil},
		{"small spread", []float64{3.70, 3.80}, Acceptable, nil},
		{"one weak cell", []float64{3.70, 3.72, 3.40, 3.71}, Imbalanced, []int{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.CellBalance(CellBalanceInput{CellVoltages: tt.cells, Temperature: 25})
			if err != nil {
				t.Fatalf("CellBalance returned error: %v", err)
			}
			if res.BalanceStatus != tt.wantStatus {
				t.Errorf("BalanceStatus = %q, want %q", res.BalanceStatus, tt.wantStatus)
			}
			if !reflect.DeepEqual(res.ProblematicCells, tt.wantProblems) {
				t.Errorf("ProblematicCells = %v, want %v", res.ProblematicCells, tt.wantProblems)
			}
		})
	}

	res, err := e.CellBalance(CellBalanceInput{CellVoltages: []float64{3.7, 3.7, 3.7}})
	if err != nil {
		t.Fatalf("CellBalance returned error: %v", err)
	}
	if res.MaxImbalance != 0 || !almostEqual(res.AverageVoltage, 3.7) {
		t.Errorf("identical cells: imbalance=%v average=%v", res.MaxImbalance, res.AverageVoltage)
	}
}

func TestCellBalanceRejects(t *testing.T) {
	e := New(nil)

	for _, cells := range [][]float64{nil, {3.7}, {3.7, 0, 3.7}, {3.7, -3.7}} {
		_, err := e.CellBalance(CellBalanceInput{CellVoltages: cells})
		wantKind(t, err, diagerr.InvalidCellVoltages)
	}
}

func TestCycleLife(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := New(nil, WithClock(func() time.Time { return now }))

	tests := []struct {
		name           string
		in             CycleLifeInput
		wantRemaining  int
		wantConfidence float64
		wantEOL        string
	}{
		{
			name:           "baseline",
			in:             CycleLifeInput{DepthOfDischarge: 60, AverageTemperature: 25, CurrentSOH: 100},
			wantRemaining:  2000,
			wantConfidence: 90,
			wantEOL:        "2026-09-27",
		},
		{
			name:           "shallow and cold",
			in:             CycleLifeInput{DepthOfDischarge: 30, AverageTemperature: 10, CurrentSOH: 50},
			wantRemaining:  1170,
			wantConfidence: 90,
		},
		{
			name:           "deep, hot and worn",
			in:             CycleLifeInput{CycleCount: 5000, DepthOfDischarge: 90, AverageTemperature: 40, CurrentSOH: 80},
			wantRemaining:  896,
			wantConfidence: 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.CycleLife(tt.in)
			if err != nil {
				t.Fatalf("CycleLife returned error: %v", err)
			}
			if res.RemainingCycles != tt.wantRemaining {
				t.Errorf("RemainingCycles = %d, want %d", res.RemainingCycles, tt.wantRemaining)
			}
			if res.ConfidenceLevel != tt.wantConfidence {
				t.Errorf("ConfidenceLevel = %v, want %v", res.ConfidenceLevel, tt.wantConfidence)
			}
			if tt.wantEOL != "" && res.EstimatedEOL != tt.wantEOL {
				t.Errorf("EstimatedEOL = %q, want %q", res.EstimatedEOL, tt.wantEOL)
			}
		})
	}
}

func TestCycleLifeRejects(t *testing.T) {
	e := New(nil)

	_, err := e.CycleLife(CycleLifeInput{DepthOfDischarge: 120, CurrentSOH: 90})
	wantKind(t, err, diagerr.InvalidPercentage)

	_, err = e.CycleLife(CycleLifeInput{DepthOfDischarge: 50, CurrentSOH: -5})
	wantKind(t, err, diagerr.InvalidPercentage)

	_, err = e.CycleLife(CycleLifeInput{CycleCount: -1, DepthOfDischarge: 50, CurrentSOH: 90})
	wantKind(t, err, diagerr.InvalidCycleCount)
}

func TestVoltageAnalysis(t *testing.T) {
	e := New(nil)

	tests := []struct {
		voltage float64
		want    VoltageStatus
	}{
		{45, VoltageNormal},
		{53.7, VoltageHigh},
		{36, VoltageLow},
		{56, VoltageOvervoltage},
		{30, VoltageUndervoltage},
	}

	for _, tt := range tests {
		res, err := e.VoltageAnalysis(VoltageInput{
			Chemistry:      chemistry.LiIon,
			NominalVoltage: 48,
			Voltage:        tt.voltage,
			Temperature:    30,
		})
		if err != nil {
			t.Fatalf("VoltageAnalysis(%v) returned error: %v", tt.voltage, err)
		}
		if res.VoltageStatus != tt.want {
			t.Errorf("VoltageAnalysis(%v) status = %q, want %q", tt.voltage, res.VoltageStatus, tt.want)
		}
		if !almostEqual(res.DeviationFromNominal, tt.voltage-48) {
			t.Errorf("VoltageAnalysis(%v) deviation = %v", tt.voltage, res.DeviationFromNominal)
		}
		if len(res.Recommendations) == 0 {
			t.Errorf("VoltageAnalysis(%v) returned no recommendations", tt.voltage)
		}
	}
}
