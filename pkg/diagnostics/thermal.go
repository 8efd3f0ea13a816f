package diagnostics

import (
	"math"
	"strings"

	"github.com/battos/battdiag/pkg/diagerr"
)

// Thermal thresholds in °C.
const (
	thermalWarning  = 45
	thermalCritical = 60
	thermalRunaway  = 70

	// fastHeatingRate is the temperature rise, in °C/min, treated as a warning sign.
	fastHeatingRate = 2.0
)

type ThermalInput struct {
	Temperature float64 `json:"temperature"`
	// RateOfChange is in °C per minute.
	RateOfChange       float64     `json:"rateOfChange"`
	AmbientTemperature float64     `json:"ambientTemperature"`
	LoadProfile        LoadProfile `json:"loadProfile"`
}

type ThermalResult struct {
	ThermalStatus ThermalStatus `json:"thermalStatus"`
	RunawayRisk   float64       `json:"runawayRisk"`
	CoolingNeeded string        `json:"coolingNeeded"`
	// TemperatureMargin is the distance to the critical threshold. It is
	// negative once the threshold is crossed.
	TemperatureMargin float64 `json:"temperatureMargin"`
}

// ParseLoadProfile accepts low, medium or high in any case.
func ParseLoadProfile(s string) (LoadProfile, error) {
	switch p := LoadProfile(strings.ToLower(strings.TrimSpace(s))); p {
	case LoadLow, LoadMedium, LoadHigh:
		return p, nil
	}
	valid := []LoadProfile{LoadLow, LoadMedium, LoadHigh}
	return "", diagerr.New(diagerr.InvalidLoadProfile, "loadProfile", s, valid,
		"load profile must be one of %v, got %q", valid, s)
}

// Thermal assesses thermal runaway risk from the temperature and how fast it
// is rising.
func (e *Engine) Thermal(in ThermalInput) (*ThermalResult, error) {
	if _, err := ParseLoadProfile(string(in.LoadProfile)); err != nil {
		return nil, err
	}

	var (
		status ThermalStatus
		risk   float64
	)
	switch {
	case in.Temperature > thermalRunaway:
		status, risk = ThermalCritical, 100
	case in.Temperature > thermalCritical:
		status, risk = ThermalSevere, 75
	case in.Temperature > thermalWarning:
		status, risk = ThermalWarning, 50
	default:
		status, risk = ThermalNormal, math.Max(0, in.Temperature/thermalWarning*25)
	}

	if in.RateOfChange > fastHeatingRate {
		risk += 25
		if status == ThermalNormal {
			status = ThermalWarning
		}
	}

	var cooling string
	switch status {
	case ThermalCritical:
		cooling = "Emergency cooling required"
	case ThermalSevere:
		cooling = "Active cooling needed"
	case ThermalWarning:
		cooling = "Increase cooling"
	default:
		cooling = "Normal cooling sufficient"
	}

	return &ThermalResult{
		ThermalStatus:     status,
		RunawayRisk:       math.Min(risk, 100),
		CoolingNeeded:     cooling,
		TemperatureMargin: thermalCritical - in.Temperature,
	}, nil
}
