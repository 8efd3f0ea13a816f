package diagnostics

import (
	"fmt"
	"math"

	"github.com/battos/battdiag/pkg/diagerr"
)

const (
	// eolFade is the capacity fade, in percent, at which a battery reaches end of life.
	eolFade = 20

	defaultCyclesToEOL   = 1000
	defaultDaysRemaining = 730

	// maxProjection caps projected cycles and days; slower fade than this
	// cannot be told apart from none.
	maxProjection = math.MaxInt32
)

type FadeInput struct {
	InitialCapacity float64 `json:"initialCapacity"`
	CurrentCapacity float64 `json:"currentCapacity"`
	CycleCount      int     `json:"cycleCount"`
	// TimeInService is in days.
	TimeInService int `json:"timeInService"`
}

type FadeResult struct {
	CapacityFade      float64 `json:"capacityFade"`
	FadeRate          float64 `json:"fadeRate"`
	CyclesToEOL       int     `json:"cyclesToEOL"`
	DaysRemaining     int     `json:"daysRemaining"`
	ProjectedLifetime string  `json:"projectedLifetime"`
	RecommendedAction string  `json:"recommendedAction"`
}

// CapacityFade measures capacity lost since new and projects the cycles and
// days left until 80% of the initial capacity remains.
func (e *Engine) CapacityFade(in FadeInput) (*FadeResult, error) {
	if err := checkPositiveCapacity("initialCapacity", in.InitialCapacity); err != nil {
		return nil, err
	}
	if err := checkPositiveCapacity("currentCapacity", in.CurrentCapacity); err != nil {
		return nil, err
	}
	if err := checkCycleCount(in.CycleCount); err != nil {
		return nil, err
	}
	if in.TimeInService < 0 {
		return nil, diagerr.New(diagerr.InvalidDuration, "timeInService", in.TimeInService, 0,
			"time in service cannot be negative, got %d days", in.TimeInService)
	}

	fade := (in.InitialCapacity - in.CurrentCapacity) / in.InitialCapacity * 100

	var rate float64
	if in.CycleCount > 0 {
		rate = fade / float64(in.CycleCount)
	}

	cycles, days := defaultCyclesToEOL, defaultDaysRemaining
	if rate > 0 {
		// Past end of life already: nothing left to project.
		cycles = projection((eolFade - fade) / rate)
		days = projection(float64(cycles) * (float64(in.TimeInService) / float64(in.CycleCount)))
	}

	action := "Continue normal usage"
	if rate > 0.1 {
		action = "Optimize charging patterns"
	}

	return &FadeResult{
		CapacityFade:      fade,
		FadeRate:          rate,
		CyclesToEOL:       cycles,
		DaysRemaining:     days,
		ProjectedLifetime: fmt.Sprintf("%d days", days),
		RecommendedAction: action,
	}, nil
}

// projection truncates x to a count in [0, maxProjection].
func projection(x float64) int {
	return int(math.Max(0, math.Min(x, maxProjection)))
}
