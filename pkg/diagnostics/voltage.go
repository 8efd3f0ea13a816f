package diagnostics

import (
	"github.com/battos/battdiag/pkg/chemistry"
)

// Percent-of-range bounds for the Low and High bands.
const (
	lowVoltageBand  = 10.0
	highVoltageBand = 90.0
)

type VoltageInput struct {
	Chemistry      chemistry.Chemistry `json:"batteryType"`
	NominalVoltage float64             `json:"nominalVoltage"`
	Voltage        float64             `json:"voltage"`
	Temperature    float64             `json:"temperature"`
}

type VoltageResult struct {
	Envelope      chemistry.Envelope `json:"envelope"`
	VoltageStatus VoltageStatus      `json:"voltageStatus"`
	// PercentOfRange is where the voltage sits between min (0) and max (100).
	// It is not clamped.
	PercentOfRange          float64  `json:"percentOfRange"`
	DeviationFromNominal    float64  `json:"deviationFromNominal"`
	TemperatureCompensation float64  `json:"temperatureCompensation"`
	Recommendations         []string `json:"recommendations"`
}

// VoltageAnalysis places a terminal voltage within its envelope. Unlike
// StateOfCharge it accepts voltages outside the envelope and classifies them.
func (e *Engine) VoltageAnalysis(in VoltageInput) (*VoltageResult, error) {
	env, err := e.registry.ResolveEnvelope(in.Chemistry, in.NominalVoltage)
	if err != nil {
		return nil, err
	}

	factor, err := e.registry.TemperatureCompensationFactor(in.Temperature, in.Chemistry)
	if err != nil {
		return nil, err
	}

	pct := (in.Voltage - env.MinVoltage) / env.Span() * 100

	var (
		status VoltageStatus
		recs   []string
	)
	switch {
	case in.Voltage > env.MaxVoltage:
		status = VoltageOvervoltage
		recs = []string{"Stop charging immediately", "Check charger voltage regulation"}
	case in.Voltage < env.MinVoltage:
		status = VoltageUndervoltage
		recs = []string{"Disconnect load", "Recharge before further use"}
	case pct >= highVoltageBand:
		status = VoltageHigh
		recs = []string{"Avoid prolonged storage at full charge"}
	case pct <= lowVoltageBand:
		status = VoltageLow
		recs = []string{"Recharge soon"}
	default:
		status = VoltageNormal
		recs = []string{"No action required"}
	}

	return &VoltageResult{
		Envelope:                env,
		VoltageStatus:           status,
		PercentOfRange:          pct,
		DeviationFromNominal:    in.Voltage - env.NominalVoltage,
		TemperatureCompensation: factor,
		Recommendations:         recs,
	}, nil
}
