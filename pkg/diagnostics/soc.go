package diagnostics

import (
	"fmt"
	"math"

	"github.com/battos/battdiag/pkg/chemistry"
	"github.com/battos/battdiag/pkg/diagerr"
)

type SOCInput struct {
	Chemistry      chemistry.Chemistry `json:"batteryType"`
	NominalVoltage float64             `json:"nominalVoltage"`
	Voltage        float64             `json:"voltage"`
	Temperature    float64             `json:"temperature"`
	Current        float64             `json:"current"`
}

type SOCResult struct {
	StateOfCharge float64 `json:"stateOfCharge"`
	// EstimatedRange is a proportional placeholder (0.8 km per percent of
	// charge), not a physical range model.
	EstimatedRange          string         `json:"estimatedRange"`
	ChargingStatus          ChargingStatus `json:"chargingStatus"`
	TemperatureCompensation float64        `json:"temperatureCompensation"`
}

// StateOfCharge estimates the state of charge from the terminal voltage,
// linearly across the envelope of the battery.
func (e *Engine) StateOfCharge(in SOCInput) (*SOCResult, error) {
	env, err := e.registry.ResolveEnvelope(in.Chemistry, in.NominalVoltage)
	if err != nil {
		return nil, err
	}

	if err := checkVoltageInEnvelope(in.Voltage, env); err != nil {
		return nil, err
	}

	factor, err := e.registry.TemperatureCompensationFactor(in.Temperature, in.Chemistry)
	if err != nil {
		return nil, err
	}

	soc := clamp((in.Voltage-env.MinVoltage)/env.Span()*100, 0, 100)

	status := Idle
	switch {
	case in.Current > 0:
		status = Charging
	case in.Current < 0:
		status = Discharging
	case in.Voltage == env.MaxVoltage:
		status = Full
	}

	return &SOCResult{
		StateOfCharge:           soc,
		EstimatedRange:          fmt.Sprintf("%d km", int(math.Floor(soc*0.8))),
		ChargingStatus:          status,
		TemperatureCompensation: factor,
	}, nil
}

func checkVoltageInEnvelope(v float64, env chemistry.Envelope) error {
	if v > env.MaxVoltage {
		return diagerr.New(diagerr.InvalidVoltage, "voltage", v, env.MaxVoltage,
			"voltage %vV exceeds maximum allowed %vV", v, env.MaxVoltage)
	}
	if v < env.MinVoltage {
		return diagerr.New(diagerr.InvalidVoltage, "voltage", v, env.MinVoltage,
			"voltage %vV below minimum allowed %vV", v, env.MinVoltage)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
