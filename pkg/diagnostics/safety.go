package diagnostics

import (
	"math"

	"github.com/battos/battdiag/pkg/chemistry"
	"github.com/battos/battdiag/pkg/diagerr"
)

const (
	// maxCurrent is the absolute current, in amperes, above which flow is flagged.
	maxCurrent = 2.0
	// maxPressure is the internal pressure, in atm, above which pressure is flagged.
	maxPressure = 1.2
	// pressureCeiling is the largest pressure reading accepted as valid input.
	pressureCeiling = 2.0
)

type SafetyInput struct {
	Chemistry      chemistry.Chemistry `json:"batteryType"`
	NominalVoltage float64             `json:"nominalVoltage"`
	Voltage        float64             `json:"voltage"`
	Current        float64             `json:"current"`
	Temperature    float64             `json:"temperature"`
	// Pressure is the internal pressure in atm.
	Pressure float64 `json:"pressure"`
}

type SafetyResult struct {
	SafetyStatus       SafetyStatus `json:"safetyStatus"`
	RiskLevel          RiskLevel    `json:"riskLevel"`
	WarningFlags       []string     `json:"warningFlags"`
	RecommendedActions []string     `json:"recommendedActions"`
}

// Safety checks voltage, temperature, current and pressure against the
// battery's envelope. The risk level is the highest one any check raises.
func (e *Engine) Safety(in SafetyInput) (*SafetyResult, error) {
	if in.Pressure <= 0 {
		return nil, diagerr.New(diagerr.InvalidPressure, "pressure", in.Pressure, 0,
			"pressure must be positive, got %v atm", in.Pressure)
	}
	if in.Pressure > pressureCeiling {
		return nil, diagerr.New(diagerr.InvalidPressure, "pressure", in.Pressure, pressureCeiling,
			"pressure %v atm exceeds safety threshold %v atm", in.Pressure, pressureCeiling)
	}

	env, err := e.registry.ResolveEnvelope(in.Chemistry, in.NominalVoltage)
	if err != nil {
		return nil, err
	}

	warnings := []string{}
	risk := RiskLow
	raise := func(flag string, level RiskLevel) {
		warnings = append(warnings, flag)
		if level.rank() > risk.rank() {
			risk = level
		}
	}

	switch {
	case in.Voltage > env.MaxVoltage:
		raise("Overvoltage detected", RiskHigh)
	case in.Voltage < env.MinVoltage:
		raise("Undervoltage detected", RiskHigh)
	}

	switch {
	case in.Temperature > env.MaxTemperature:
		raise("Overtemperature condition", RiskHigh)
	case in.Temperature < env.MinTemperature:
		raise("Low temperature operation", RiskHigh)
	}

	if math.Abs(in.Current) > maxCurrent {
		raise("High current flow", RiskMedium)
	}

	if in.Pressure > maxPressure {
		raise("Elevated internal pressure", RiskHigh)
	}

	res := &SafetyResult{
		RiskLevel:    risk,
		WarningFlags: warnings,
	}

	switch {
	case risk == RiskHigh:
		res.SafetyStatus = SafetyCritical
	case len(warnings) > 0:
		res.SafetyStatus = SafetyWarning
	default:
		res.SafetyStatus = SafetyNormal
	}

	switch risk {
	case RiskHigh:
		res.RecommendedActions = []string{"Discontinue use immediately"}
	case RiskMedium:
		res.RecommendedActions = []string{"Monitor closely"}
	default:
		res.RecommendedActions = []string{"Continue normal operation"}
	}

	return res, nil
}
