package diagnostics

import (
	"math"

	"github.com/battos/battdiag/pkg/diagerr"
)

type SOHInput struct {
	CurrentCapacity float64 `json:"currentCapacity"`
	RatedCapacity   float64 `json:"ratedCapacity"`
	CycleCount      int     `json:"cycleCount"`
}

type SOHResult struct {
	StateOfHealth     float64      `json:"stateOfHealth"`
	CapacityLoss      float64      `json:"capacityLoss"`
	HealthStatus      HealthStatus `json:"healthStatus"`
	RecommendedAction string       `json:"recommendedAction"`
	CycleAging        float64      `json:"cycleAging"`
}

// StateOfHealth compares measured to rated capacity and discounts up to 10%
// for cycle aging, which saturates at 1000 cycles.
func (e *Engine) StateOfHealth(in SOHInput) (*SOHResult, error) {
	if err := checkPositiveCapacity("currentCapacity", in.CurrentCapacity); err != nil {
		return nil, err
	}
	if err := checkPositiveCapacity("ratedCapacity", in.RatedCapacity); err != nil {
		return nil, err
	}
	if err := checkCycleCount(in.CycleCount); err != nil {
		return nil, err
	}

	soh := in.CurrentCapacity / in.RatedCapacity * 100
	loss := math.Max(0, 100-soh)

	cycleFactor := math.Min(float64(in.CycleCount)/1000, 1)
	soh *= 1 - cycleFactor*0.1

	res := &SOHResult{
		StateOfHealth: soh,
		CapacityLoss:  loss,
		CycleAging:    cycleFactor * 100,
	}

	switch {
	case soh >= 90:
		res.HealthStatus = HealthGood
		res.RecommendedAction = "Regular maintenance sufficient"
	case soh >= 80:
		res.HealthStatus = HealthModerate
		res.RecommendedAction = "Monitor battery health closely"
	default:
		res.HealthStatus = HealthPoor
		res.RecommendedAction = "Consider battery replacement"
	}

	return res, nil
}

func checkPositiveCapacity(field string, v float64) error {
	if v <= 0 {
		return diagerr.New(diagerr.InvalidCapacity, field, v, 0,
			"%s must be positive, got %v", field, v)
	}
	return nil
}

func checkCycleCount(n int) error {
	if n < 0 {
		return diagerr.New(diagerr.InvalidCycleCount, "cycleCount", n, 0,
			"cycle count cannot be negative, got %d", n)
	}
	return nil
}
