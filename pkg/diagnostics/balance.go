package diagnostics

import (
	"math"

	"github.com/battos/battdiag/pkg/diagerr"
)

// cellDeviationLimit is how far, in volts, a cell may sit from the pack mean.
const cellDeviationLimit = 0.1

type CellBalanceInput struct {
	CellVoltages []float64 `json:"cellVoltages"`
	Temperature  float64   `json:"temperature"`
}

type CellBalanceResult struct {
	MaxImbalance   float64       `json:"maxImbalance"`
	AverageVoltage float64       `json:"averageVoltage"`
	BalanceStatus  BalanceStatus `json:"balanceStatus"`
	// ProblematicCells holds 1-based cell indices, nil when every cell is fine.
	ProblematicCells []int `json:"problematicCells"`
}

// CellBalance reports the spread of cell voltages and flags outlier cells.
func (e *Engine) CellBalance(in CellBalanceInput) (*CellBalanceResult, error) {
	cells := in.CellVoltages
	if len(cells) < 2 {
		return nil, diagerr.New(diagerr.InvalidCellVoltages, "cellVoltages", len(cells), 2,
			"must provide at least 2 cell voltages, got %d", len(cells))
	}

	hi, lo, sum := math.Inf(-1), math.Inf(1), 0.0
	for i, v := range cells {
		if v <= 0 {
			return nil, diagerr.New(diagerr.InvalidCellVoltages, "cellVoltages", v, 0,
				"all cell voltages must be positive, cell %d is %vV", i+1, v)
		}
		hi = math.Max(hi, v)
		lo = math.Min(lo, v)
		sum += v
	}
	avg := sum / float64(len(cells))

	var problems []int
	for i, v := range cells {
		if math.Abs(v-avg) > cellDeviationLimit {
			problems = append(problems, i+1)
		}
	}

	diff := hi - lo
	status := Imbalanced
	switch {
	case diff < 0.05:
		status = WellBalanced
	case diff < 0.2:
		status = Acceptable
	}

	return &CellBalanceResult{
		MaxImbalance:     diff,
		AverageVoltage:   avg,
		BalanceStatus:    status,
		ProblematicCells: problems,
	}, nil
}
