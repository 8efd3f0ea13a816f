package diagnostics

import (
	"math"

	"github.com/battos/battdiag/pkg/diagerr"
)

type ResistanceInput struct {
	Voltage     float64 `json:"voltage"`
	Current     float64 `json:"current"`
	Temperature float64 `json:"temperature"`
}

type ResistanceResult struct {
	// InternalResistance is in milliohms.
	InternalResistance float64          `json:"internalResistance"`
	ResistanceStatus   ResistanceStatus `json:"resistanceStatus"`
	PowerLoss          string           `json:"powerLoss"`
}

// InternalResistance computes |V/I| in mΩ, corrected for temperature.
func (e *Engine) InternalResistance(in ResistanceInput) (*ResistanceResult, error) {
	if in.Current == 0 {
		return nil, diagerr.New(diagerr.InvalidCurrent, "current", in.Current, 0,
			"current must be non-zero to measure internal resistance")
	}

	r := math.Abs(in.Voltage/in.Current) * 1000

	switch {
	case in.Temperature < 25:
		r *= 1.2
	case in.Temperature > 40:
		r *= 0.9
	}

	res := &ResistanceResult{InternalResistance: r}
	switch {
	case r < 100:
		res.ResistanceStatus, res.PowerLoss = ResistanceExcellent, "Minimal"
	case r < 150:
		res.ResistanceStatus, res.PowerLoss = ResistanceGood, "Normal"
	default:
		res.ResistanceStatus, res.PowerLoss = ResistanceHigh, "Significant"
	}

	return res, nil
}
