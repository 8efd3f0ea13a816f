package diagnostics

import (
	"reflect"
	"testing"

	"github.com/battos/battdiag/pkg/chemistry"
	"github.com/battos/battdiag/pkg/diagerr"
)

func TestSafety(t *testing.T) {
	e := New(nil)

	base := SafetyInput{
		Chemistry:      chemistry.LiIon,
		NominalVoltage: 48,
		Voltage:        48,
		Current:        1,
		Temperature:    25,
		Pressure:       1.0,
	}

	tests := []struct {
		name        string
		mutate      func(*SafetyInput)
		wantStatus  SafetyStatus
		wantRisk    RiskLevel
		wantFlags   []string
		wantActions []string
	}{
		{
			name:        "nominal",
			mutate:      func(*SafetyInput) {},
			wantStatus:  SafetyNormal,
			wantRisk:    RiskLow,
			wantFlags:   []string{},
			wantActions: []string{"Continue normal operation"},
		},
		{
			name:        "high current only",
			mutate:      func(in *SafetyInput) { in.Current = -3 },
			wantStatus:  SafetyWarning,
			wantRisk:    RiskMedium,
			wantFlags:   []string{"High current flow"},
			wantActions: []string{"Monitor closely"},
		},
		{
			name:        "overvoltage",
			mutate:      func(in *SafetyInput) { in.Voltage = 56 },
			wantStatus:  SafetyCritical,
			wantRisk:    RiskHigh,
			wantFlags:   []string{"Overvoltage detected"},
			wantActions: []string{"Discontinue use immediately"},
		},
		{
			name:        "low temperature",
			mutate:      func(in *SafetyInput) { in.Temperature = -5 },
			wantStatus:  SafetyCritical,
			wantRisk:    RiskHigh,
			wantFlags:   []string{"Low temperature operation"},
			wantActions: []string{"Discontinue use immediately"},
		},
		{
			name:        "elevated pressure",
			mutate:      func(in *SafetyInput) { in.Pressure = 1.5 },
			wantStatus:  SafetyCritical,
			wantRisk:    RiskHigh,
			wantFlags:   []string{"Elevated internal pressure"},
			wantActions: []string{"Discontinue use immediately"},
		},
		{
			name: "several at once",
			mutate: func(in *SafetyInput) {
				in.Voltage = 30
				in.Temperature = 50
				in.Current = 5
			},
			wantStatus:  SafetyCritical,
			wantRisk:    RiskHigh,
			wantFlags:   []string{"Undervoltage detected", "Overtemperature condition", "High current flow"},
			wantActions: []string{"Discontinue use immediately"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			res, err := e.Safety(in)
			if err != nil {
				t.Fatalf("Safety returned error: %v", err)
			}
			if res.SafetyStatus != tt.wantStatus {
				t.Errorf("SafetyStatus = %q, want %q", res.SafetyStatus, tt.wantStatus)
			}
			if res.RiskLevel != tt.wantRisk {
				t.Errorf("RiskLevel = %q, want %q", res.RiskLevel, tt.wantRisk)
			}
			if !reflect.DeepEqual(res.WarningFlags, tt.wantFlags) {
				t.Errorf("WarningFlags = %v, want %v", res.WarningFlags, tt.wantFlags)
			}
			if !reflect.DeepEqual(res.RecommendedActions, tt.wantActions) {
				t.Errorf("RecommendedActions = %v, want %v", res.RecommendedActions, tt.wantActions)
			}
		})
	}
}

func TestSafetyRejectsPressure(t *testing.T) {
	e := New(nil)

	for _, p := range []float64{0, -1, 2.5} {
		_, err := e.Safety(SafetyInput{
			Chemistry:      chemistry.LiIon,
			NominalVoltage: 48,
			Voltage:        48,
			Temperature:    25,
			Pressure:       p,
		})
		wantKind(t, err, diagerr.InvalidPressure)
	}
}

func TestSafetyUsesResolvedEnvelope(t *testing.T) {
	e := New(nil)

	// 14V is fine for a 12.8V LFP pack but far above a 11.1V Li-ion pack.
	res, err := e.Safety(SafetyInput{Chemistry: chemistry.LFP, NominalVoltage: 12.8, Voltage: 14, Temperature: 25, Pressure: 1})
	if err != nil {
		t.Fatalf("Safety returned error: %v", err)
	}
	if res.RiskLevel != RiskLow {
		t.Errorf("LFP 12.8V at 14V: RiskLevel = %q, want %q", res.RiskLevel, RiskLow)
	}

	res, err = e.Safety(SafetyInput{Chemistry: chemistry.LiIon, NominalVoltage: 11.1, Voltage: 14, Temperature: 25, Pressure: 1})
	if err != nil {
		t.Fatalf("Safety returned error: %v", err)
	}
	if res.RiskLevel != RiskHigh {
		t.Errorf("Li-ion 11.1V at 14V: RiskLevel = %q, want %q", res.RiskLevel, RiskHigh)
	}
}

func TestThermal(t *testing.T) {
	e := New(nil)

	tests := []struct {
		name       string
		in         ThermalInput
		wantStatus ThermalStatus
		wantRisk   float64
		wantMargin float64
		wantCool   string
	}{
		{
			name:       "room temperature",
			in:         ThermalInput{Temperature: 27, RateOfChange: 0.5, LoadProfile: LoadLow},
			wantStatus: ThermalNormal,
			wantRisk:   15,
			wantMargin: 33,
			wantCool:   "Normal cooling sufficient",
		},
		{
			name:       "freezing",
			in:         ThermalInput{Temperature: -10, LoadProfile: LoadLow},
			wantStatus: ThermalNormal,
			wantRisk:   0,
			wantMargin: 70,
			wantCool:   "Normal cooling sufficient",
		},
		{
			name:       "warm",
			in:         ThermalInput{Temperature: 50, LoadProfile: LoadMedium},
			wantStatus: ThermalWarning,
			wantRisk:   50,
			wantMargin: 10,
			wantCool:   "Increase cooling",
		},
		{
			name:       "heating quickly",
			in:         ThermalInput{Temperature: 27, RateOfChange: 3, LoadProfile: LoadHigh},
			wantStatus: ThermalWarning,
			wantRisk:   40,
			wantMargin: 33,
			wantCool:   "Increase cooling",
		},
		{
			name:       "severe",
			in:         ThermalInput{Temperature: 65, LoadProfile: LoadHigh},
			wantStatus: ThermalSevere,
			wantRisk:   75,
			wantMargin: -5,
			wantCool:   "Active cooling needed",
		},
		{
			name:       "runaway capped",
			in:         ThermalInput{Temperature: 75, RateOfChange: 5, LoadProfile: "HIGH"},
			wantStatus: ThermalCritical,
			wantRisk:   100,
			wantMargin: -15,
			wantCool:   "Emergency cooling required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Thermal(tt.in)
			if err != nil {
				t.Fatalf("Thermal returned error: %v", err)
			}
			if res.ThermalStatus != tt.wantStatus {
				t.Errorf("ThermalStatus = %q, want %q", res.ThermalStatus, tt.wantStatus)
			}
			if !almostEqual(res.RunawayRisk, tt.wantRisk) {
				t.Errorf("RunawayRisk = %v, want %v", res.RunawayRisk, tt.wantRisk)
			}
			if !almostEqual(res.TemperatureMargin, tt.wantMargin) {
				t.Errorf("TemperatureMargin = %v, want %v", res.TemperatureMargin, tt.wantMargin)
			}
			if res.CoolingNeeded != tt.wantCool {
				t.Errorf("CoolingNeeded = %q, want %q", res.CoolingNeeded, tt.wantCool)
			}
		})
	}
}

func TestThermalRejectsLoadProfile(t *testing.T) {
	_, err := New(nil).Thermal(ThermalInput{Temperature: 25, LoadProfile: "extreme"})
	wantKind(t, err, diagerr.InvalidLoadProfile)
}

func TestFaults(t *testing.T) {
	e := New(nil)

	base := FaultInput{
		Chemistry:      chemistry.LiIon,
		NominalVoltage: 48,
		Voltage:        48,
		Current:        1,
		Temperature:    25,
		Impedance:      50,
	}

	tests := []struct {
		name         string
		mutate       func(*FaultInput)
		wantStatus   string
		wantTypes    []string
		wantSeverity Severity
		wantActions  []string
	}{
		{
			name:         "healthy",
			mutate:       func(*FaultInput) {},
			wantStatus:   "Normal",
			wantTypes:    nil,
			wantSeverity: SeverityNormal,
			wantActions:  []string{"Monitor battery parameters"},
		},
		{
			name:         "high impedance",
			mutate:       func(in *FaultInput) { in.Impedance = 250 },
			wantStatus:   "Fault detected",
			wantTypes:    []string{"High internal impedance - possible damage"},
			wantSeverity: SeverityHigh,
			wantActions:  []string{"Reduce load", "Schedule maintenance"},
		},
		{
			name: "high impedance and hot",
			mutate: func(in *FaultInput) {
				in.Impedance = 250
				in.Temperature = 65
			},
			wantStatus: "Fault detected",
			wantTypes: []string{
				"High internal impedance - possible damage",
				"Critical temperature - possible thermal event",
			},
			wantSeverity: SeverityCritical,
			wantActions:  []string{"Disconnect battery immediately", "Inspect for damage"},
		},
		{
			name:         "short circuit",
			mutate:       func(in *FaultInput) { in.Voltage = 10 },
			wantStatus:   "Fault detected",
			wantTypes:    []string{"Possible short circuit"},
			wantSeverity: SeverityCritical,
			wantActions:  []string{"Disconnect battery immediately", "Inspect for damage"},
		},
		{
			name:         "reverse current",
			mutate:       func(in *FaultInput) { in.Current = -1 },
			wantStatus:   "Fault detected",
			wantTypes:    []string{"Reverse current detected"},
			wantSeverity: SeverityHigh,
			wantActions:  []string{"Reduce load", "Schedule maintenance"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			res, err := e.Faults(in)
			if err != nil {
				t.Fatalf("Faults returned error: %v", err)
			}
			if res.FaultStatus != tt.wantStatus {
				t.Errorf("FaultStatus = %q, want %q", res.FaultStatus, tt.wantStatus)
			}
			if !reflect.DeepEqual(res.FaultTypes, tt.wantTypes) {
				t.Errorf("FaultTypes = %v, want %v", res.FaultTypes, tt.wantTypes)
			}
			if res.Severity != tt.wantSeverity {
				t.Errorf("Severity = %q, want %q", res.Severity, tt.wantSeverity)
			}
			if !reflect.DeepEqual(res.RecommendedActions, tt.wantActions) {
				t.Errorf("RecommendedActions = %v, want %v", res.RecommendedActions, tt.wantActions)
			}
		})
	}
}

func TestFaultsUnknownChemistry(t *testing.T) {
	_, err := New(nil).Faults(FaultInput{Chemistry: "Zinc-air", NominalVoltage: 12})
	wantKind(t, err, diagerr.UnknownChemistry)
}
