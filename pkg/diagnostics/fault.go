package diagnostics

import (
	"github.com/battos/battdiag/pkg/chemistry"
)

const (
	// shortCircuitRatio of the minimum envelope voltage marks a likely short.
	shortCircuitRatio = 0.5
	// maxImpedance is in ohms.
	maxImpedance = 200
	// reverseCurrent is in amperes.
	reverseCurrent = -0.1
	// thermalEventTemperature is in °C.
	thermalEventTemperature = 60
)

type FaultInput struct {
	Chemistry      chemistry.Chemistry `json:"batteryType"`
	NominalVoltage float64             `json:"nominalVoltage"`
	Voltage        float64             `json:"voltage"`
	Current        float64             `json:"current"`
	Temperature    float64             `json:"temperature"`
	// Impedance is in ohms.
	Impedance float64 `json:"impedance"`
}

type FaultResult struct {
	FaultStatus string `json:"faultStatus"`
	// FaultTypes is nil when no fault was found.
	FaultTypes         []string `json:"faultType"`
	Severity           Severity `json:"severity"`
	RecommendedActions []string `json:"recommendedActions"`
}

// Faults looks for short circuits, internal damage, reverse current and
// thermal events. The severity is the worst one found.
func (e *Engine) Faults(in FaultInput) (*FaultResult, error) {
	env, err := e.registry.ResolveEnvelope(in.Chemistry, in.NominalVoltage)
	if err != nil {
		return nil, err
	}

	var faults []string
	severity := SeverityNormal
	raise := func(fault string, s Severity) {
		faults = append(faults, fault)
		if s.rank() > severity.rank() {
			severity = s
		}
	}

	if in.Voltage < env.MinVoltage*shortCircuitRatio {
		raise("Possible short circuit", SeverityCritical)
	}
	if in.Impedance > maxImpedance {
		raise("High internal impedance - possible damage", SeverityHigh)
	}
	if in.Current < reverseCurrent {
		raise("Reverse current detected", SeverityHigh)
	}
	if in.Temperature > thermalEventTemperature {
		raise("Critical temperature - possible thermal event", SeverityCritical)
	}

	res := &FaultResult{
		FaultStatus: "Normal",
		FaultTypes:  faults,
		Severity:    severity,
	}
	if len(faults) > 0 {
		res.FaultStatus = "Fault detected"
	}

	switch severity {
	case SeverityCritical:
		res.RecommendedActions = []string{"Disconnect battery immediately", "Inspect for damage"}
	case SeverityHigh:
		res.RecommendedActions = []string{"Reduce load", "Schedule maintenance"}
	default:
		res.RecommendedActions = []string{"Monitor battery parameters"}
	}

	return res, nil
}
