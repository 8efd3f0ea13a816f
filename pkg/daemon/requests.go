package daemon

import (
	"github.com/battos/battdiag/pkg/chemistry"
	"github.com/battos/battdiag/pkg/diagnostics"
	"github.com/battos/battdiag/pkg/utils/ptr"
)

// Request bodies use pointers so that a missing field fails binding instead
// of silently becoming zero.

// diagnoseRequest is the body of one POST /battery/diagnose/<kind> route.
type diagnoseRequest interface {
	// run resolves the battery type and runs the diagnostic.
	run(e *diagnostics.Engine) (chemistry.Chemistry, any, error)
}

// batteryType resolves the chemistry and the nominal voltage of a request.
// An explicit nominalVoltage wins over the one carried by a compound type
// such as "LFP_48V".
func batteryType(s string, nominal *float64) (chemistry.Chemistry, float64, error) {
	c, v, err := chemistry.ParseBatteryType(s)
	if err != nil {
		return "", 0, err
	}
	if nominal != nil {
		v = *nominal
	}
	return c, v, nil
}

type socRequest struct {
	BatteryType    *string  `json:"batteryType" binding:"required"`
	NominalVoltage *float64 `json:"nominalVoltage"`
	Voltage        *float64 `json:"voltage" binding:"required"`
	Temperature    *float64 `json:"temperature" binding:"required"`
	Current        *float64 `json:"current" binding:"required"`
}

func (r *socRequest) run(e *diagnostics.Engine) (chemistry.Chemistry, any, error) {
	c, nominal, err := batteryType(*r.BatteryType, r.NominalVoltage)
	if err != nil {
		return "", nil, err
	}
	res, err := e.StateOfCharge(diagnostics.SOCInput{
		Chemistry:      c,
		NominalVoltage: nominal,
		Voltage:        *r.Voltage,
		Temperature:    *r.Temperature,
		Current:        *r.Current,
	})
	if err != nil {
		return c, nil, err
	}
	return c, res, nil
}

type sohRequest struct {
	BatteryType     *string  `json:"batteryType" binding:"required"`
	CurrentCapacity *float64 `json:"currentCapacity" binding:"required"`
	RatedCapacity   *float64 `json:"ratedCapacity" binding:"required"`
	CycleCount      *int     `json:"cycleCount" binding:"required"`
}

func (r *sohRequest) run(e *diagnostics.Engine) (chemistry.Chemistry, any, error) {
	c, _, err := batteryType(*r.BatteryType, nil)
	if err != nil {
		return "", nil, err
	}
	res, err := e.StateOfHealth(diagnostics.SOHInput{
		CurrentCapacity: *r.CurrentCapacity,
		RatedCapacity:   *r.RatedCapacity,
		CycleCount:      *r.CycleCount,
	})
	if err != nil {
		return c, nil, err
	}
	return c, res, nil
}

type resistanceRequest struct {
	BatteryType *string  `json:"batteryType" binding:"required"`
	Voltage     *float64 `json:"voltage" binding:"required"`
	Current     *float64 `json:"current" binding:"required"`
	Temperature *float64 `json:"temperature" binding:"required"`
}

func (r *resistanceRequest) run(e *diagnostics.Engine) (chemistry.Chemistry, any, error) {
	c, _, err := batteryType(*r.BatteryType, nil)
	if err != nil {
		return "", nil, err
	}
	res, err := e.InternalResistance(diagnostics.ResistanceInput{
		Voltage:     *r.Voltage,
		Current:     *r.Current,
		Temperature: *r.Temperature,
	})
	if err != nil {
		return c, nil, err
	}
	return c, res, nil
}

type fadeRequest struct {
	BatteryType     *string  `json:"batteryType" binding:"required"`
	InitialCapacity *float64 `json:"initialCapacity" binding:"required"`
	CurrentCapacity *float64 `json:"currentCapacity" binding:"required"`
	CycleCount      *int     `json:"cycleCount" binding:"required"`
	TimeInService   *int     `json:"timeInService" binding:"required"`
}

func (r *fadeRequest) run(e *diagnostics.Engine) (chemistry.Chemistry, any, error) {
	c, _, err := batteryType(*r.BatteryType, nil)
	if err != nil {
		return "", nil, err
	}
	res, err := e.CapacityFade(diagnostics.FadeInput{
		InitialCapacity: *r.InitialCapacity,
		CurrentCapacity: *r.CurrentCapacity,
		CycleCount:      *r.CycleCount,
		TimeInService:   *r.TimeInService,
	})
	if err != nil {
		return c, nil, err
	}
	return c, res, nil
}

type cellBalanceRequest struct {
	BatteryType  *string   `json:"batteryType" binding:"required"`
	CellVoltages []float64 `json:"cellVoltages" binding:"required"`
	Temperature  *float64  `json:"temperature" binding:"required"`
}

func (r *cellBalanceRequest) run(e *diagnostics.Engine) (chemistry.Chemistry, any, error) {
	c, _, err := batteryType(*r.BatteryType, nil)
	if err != nil {
		return "", nil, err
	}
	res, err := e.CellBalance(diagnostics.CellBalanceInput{
		CellVoltages: r.CellVoltages,
		Temperature:  *r.Temperature,
	})
	if err != nil {
		return c, nil, err
	}
	return c, res, nil
}

type cycleLifeRequest struct {
	BatteryType        *string  `json:"batteryType" binding:"required"`
	CycleCount         *int     `json:"cycleCount" binding:"required"`
	DepthOfDischarge   *float64 `json:"depthOfDischarge" binding:"required"`
	AverageTemperature *float64 `json:"averageTemperature" binding:"required"`
	CurrentSOH         *float64 `json:"currentSOH" binding:"required"`
}

func (r *cycleLifeRequest) run(e *diagnostics.Engine) (chemistry.Chemistry, any, error) {
	c, _, err := batteryType(*r.BatteryType, nil)
	if err != nil {
		return "", nil, err
	}
	res, err := e.CycleLife(diagnostics.CycleLifeInput{
		CycleCount:         *r.CycleCount,
		DepthOfDischarge:   *r.DepthOfDischarge,
		AverageTemperature: *r.AverageTemperature,
		CurrentSOH:         *r.CurrentSOH,
	})
	if err != nil {
		return c, nil, err
	}
	return c, res, nil
}

type safetyRequest struct {
	BatteryType    *string  `json:"batteryType" binding:"required"`
	NominalVoltage *float64 `json:"nominalVoltage"`
	Voltage        *float64 `json:"voltage" binding:"required"`
	Current        *float64 `json:"current" binding:"required"`
	Temperature    *float64 `json:"temperature" binding:"required"`
	Pressure       *float64 `json:"pressure" binding:"required"`
}

func (r *safetyRequest) run(e *diagnostics.Engine) (chemistry.Chemistry, any, error) {
	c, nominal, err := batteryType(*r.BatteryType, r.NominalVoltage)
	if err != nil {
		return "", nil, err
	}
	res, err := e.Safety(diagnostics.SafetyInput{
		Chemistry:      c,
		NominalVoltage: nominal,
		Voltage:        *r.Voltage,
		Current:        *r.Current,
		Temperature:    *r.Temperature,
		Pressure:       *r.Pressure,
	})
	if err != nil {
		return c, nil, err
	}
	return c, res, nil
}

type thermalRequest struct {
	BatteryType        *string  `json:"batteryType" binding:"required"`
	Temperature        *float64 `json:"temperature" binding:"required"`
	RateOfChange       *float64 `json:"rateOfChange" binding:"required"`
	AmbientTemperature *float64 `json:"ambientTemperature" binding:"required"`
	LoadProfile        *string  `json:"loadProfile" binding:"required"`
}

func (r *thermalRequest) run(e *diagnostics.Engine) (chemistry.Chemistry, any, error) {
	c, _, err := batteryType(*r.BatteryType, nil)
	if err != nil {
		return "", nil, err
	}
	profile, err := diagnostics.ParseLoadProfile(*r.LoadProfile)
	if err != nil {
		return c, nil, err
	}
	res, err := e.Thermal(diagnostics.ThermalInput{
		Temperature:        *r.Temperature,
		RateOfChange:       *r.RateOfChange,
		AmbientTemperature: *r.AmbientTemperature,
		LoadProfile:        profile,
	})
	if err != nil {
		return c, nil, err
	}
	return c, res, nil
}

type faultRequest struct {
	BatteryType    *string  `json:"batteryType" binding:"required"`
	NominalVoltage *float64 `json:"nominalVoltage"`
	Voltage        *float64 `json:"voltage" binding:"required"`
	Current        *float64 `json:"current" binding:"required"`
	Temperature    *float64 `json:"temperature" binding:"required"`
	Impedance      *float64 `json:"impedance" binding:"required"`
}

func (r *faultRequest) run(e *diagnostics.Engine) (chemistry.Chemistry, any, error) {
	c, nominal, err := batteryType(*r.BatteryType, r.NominalVoltage)
	if err != nil {
		return "", nil, err
	}
	res, err := e.Faults(diagnostics.FaultInput{
		Chemistry:      c,
		NominalVoltage: nominal,
		Voltage:        *r.Voltage,
		Current:        *r.Current,
		Temperature:    *r.Temperature,
		Impedance:      *r.Impedance,
	})
	if err != nil {
		return c, nil, err
	}
	return c, res, nil
}

type voltageRequest struct {
	BatteryType    *string  `json:"batteryType" binding:"required"`
	NominalVoltage *float64 `json:"nominalVoltage"`
	Voltage        *float64 `json:"voltage" binding:"required"`
	// Temperature is optional here; 25°C sits in the neutral band.
	Temperature *float64 `json:"temperature"`
}

func (r *voltageRequest) run(e *diagnostics.Engine) (chemistry.Chemistry, any, error) {
	c, nominal, err := batteryType(*r.BatteryType, r.NominalVoltage)
	if err != nil {
		return "", nil, err
	}
	res, err := e.VoltageAnalysis(diagnostics.VoltageInput{
		Chemistry:      c,
		NominalVoltage: nominal,
		Voltage:        *r.Voltage,
		Temperature:    ptr.Deref(r.Temperature, 25),
	})
	if err != nil {
		return c, nil, err
	}
	return c, res, nil
}
