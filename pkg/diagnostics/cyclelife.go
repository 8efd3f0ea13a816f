package diagnostics

import (
	"time"

	"github.com/battos/battdiag/pkg/diagerr"
)

const baseCycleLife = 2000

type CycleLifeInput struct {
	CycleCount         int     `json:"cycleCount"`
	DepthOfDischarge   float64 `json:"depthOfDischarge"`
	AverageTemperature float64 `json:"averageTemperature"`
	CurrentSOH         float64 `json:"currentSOH"`
}

type CycleLifeResult struct {
	RemainingCycles int `json:"remainingCycles"`
	// EstimatedEOL is a YYYY-MM-DD date assuming two cycles per day.
	EstimatedEOL    string  `json:"estimatedEOL"`
	ConfidenceLevel float64 `json:"confidenceLevel"`
}

// CycleLife estimates the remaining cycle life from usage patterns.
func (e *Engine) CycleLife(in CycleLifeInput) (*CycleLifeResult, error) {
	if err := checkCycleCount(in.CycleCount); err != nil {
		return nil, err
	}
	if err := checkPercentage("depthOfDischarge", in.DepthOfDischarge); err != nil {
		return nil, err
	}
	if err := checkPercentage("currentSOH", in.CurrentSOH); err != nil {
		return nil, err
	}

	cycles := float64(baseCycleLife)

	switch {
	case in.DepthOfDischarge > 80:
		cycles *= 0.7
	case in.DepthOfDischarge < 50:
		cycles *= 1.3
	}

	switch {
	case in.AverageTemperature > 35:
		cycles *= 0.8
	case in.AverageTemperature < 15:
		cycles *= 0.9
	}

	remaining := int(cycles * in.CurrentSOH / 100)
	confidence := clamp(90-float64(in.CycleCount)/100, 60, 95)

	days := time.Duration(float64(remaining) / 2 * float64(24*time.Hour))
	eol := e.now().Add(days)

	return &CycleLifeResult{
		RemainingCycles: remaining,
		EstimatedEOL:    eol.Format(time.DateOnly),
		ConfidenceLevel: confidence,
	}, nil
}

func checkPercentage(field string, v float64) error {
	if v < 0 || v > 100 {
		return diagerr.New(diagerr.InvalidPercentage, field, v, []float64{0, 100},
			"%s must be between 0 and 100, got %v", field, v)
	}
	return nil
}
