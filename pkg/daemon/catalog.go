package daemon

// apiParam documents one request or response field.
type apiParam struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description"`
}

// apiDoc describes one diagnostic endpoint for /api-list and /api-detail.
type apiDoc struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Endpoint    string     `json:"endpoint"`
	Parameters  []apiParam `json:"parameters,omitempty"`
	Responses   []apiParam `json:"responses,omitempty"`

	newRequest func() diagnoseRequest
}

var batteryTypeParam = apiParam{Name: "batteryType", Type: "string", Description: "Battery chemistry, optionally with its voltage class (LFP_48V)"}

func nominalParam() apiParam {
	return apiParam{Name: "nominalVoltage", Type: "number", Description: "Nominal pack voltage (V); optional when batteryType carries it"}
}

// catalog lists the diagnostics in the order they are documented.
var catalog = []apiDoc{
	{
		ID:          "voltage",
		Name:        "Voltage Analysis",
		Description: "Monitor and analyze battery voltage levels",
		Parameters: []apiParam{
			batteryTypeParam, nominalParam(),
			{Name: "voltage", Type: "number", Description: "Current voltage (V)"},
			{Name: "temperature", Type: "number", Description: "Battery temperature (°C), defaults to 25"},
		},
		Responses: []apiParam{
			{Name: "voltageStatus", Description: "Voltage status assessment"},
			{Name: "percentOfRange", Description: "Position within the operating envelope (%)"},
			{Name: "recommendations", Description: "Recommended actions"},
		},
		newRequest: func() diagnoseRequest { return &voltageRequest{} },
	},
	{
		ID:          "soc",
		Name:        "State of Charge",
		Description: "Calculate real-time battery charge levels",
		Parameters: []apiParam{
			batteryTypeParam, nominalParam(),
			{Name: "voltage", Type: "number", Description: "Current voltage (V)"},
			{Name: "temperature", Type: "number", Description: "Battery temperature (°C)"},
			{Name: "current", Type: "number", Description: "Current flow (A), positive while charging"},
		},
		Responses: []apiParam{
			{Name: "stateOfCharge", Description: "Charge level (%)"},
			{Name: "estimatedRange", Description: "Estimated range"},
			{Name: "chargingStatus", Description: "Charging, Discharging or Idle"},
			{Name: "temperatureCompensation", Description: "Applied temperature factor"},
		},
		newRequest: func() diagnoseRequest { return &socRequest{} },
	},
	{
		ID:          "soh",
		Name:        "State of Health",
		Description: "Determine battery health status",
		Parameters: []apiParam{
			batteryTypeParam,
			{Name: "currentCapacity", Type: "number", Description: "Measured capacity (Ah)"},
			{Name: "ratedCapacity", Type: "number", Description: "Rated capacity (Ah)"},
			{Name: "cycleCount", Type: "integer", Description: "Charge cycles so far"},
		},
		Responses: []apiParam{
			{Name: "stateOfHealth", Description: "Health (%)"},
			{Name: "capacityLoss", Description: "Lost capacity (%)"},
			{Name: "healthStatus", Description: "Good, Moderate or Poor"},
			{Name: "recommendedAction", Description: "Recommended action"},
			{Name: "cycleAging", Description: "Aging attributable to cycling (%)"},
		},
		newRequest: func() diagnoseRequest { return &sohRequest{} },
	},
	{
		ID:          "resistance",
		Name:        "Internal Resistance",
		Description: "Estimate internal resistance and power loss",
		Parameters: []apiParam{
			batteryTypeParam,
			{Name: "voltage", Type: "number", Description: "Voltage under load (V)"},
			{Name: "current", Type: "number", Description: "Load current (A)"},
			{Name: "temperature", Type: "number", Description: "Battery temperature (°C)"},
		},
		Responses: []apiParam{
			{Name: "internalResistance", Description: "Resistance (mΩ)"},
			{Name: "resistanceStatus", Description: "Excellent, Good or High"},
			{Name: "powerLoss", Description: "Minimal, Normal or Significant"},
		},
		newRequest: func() diagnoseRequest { return &resistanceRequest{} },
	},
	{
		ID:          "capacity_fade",
		Name:        "Capacity Fade",
		Description: "Track capacity loss and project the remaining lifetime",
		Parameters: []apiParam{
			batteryTypeParam,
			{Name: "initialCapacity", Type: "number", Description: "Capacity when new (Ah)"},
			{Name: "currentCapacity", Type: "number", Description: "Measured capacity (Ah)"},
			{Name: "cycleCount", Type: "integer", Description: "Charge cycles so far"},
			{Name: "timeInService", Type: "integer", Description: "Days in service"},
		},
		Responses: []apiParam{
			{Name: "capacityFade", Description: "Capacity lost (%)"},
			{Name: "fadeRate", Description: "Fade per cycle (%)"},
			{Name: "cyclesToEOL", Description: "Cycles until 80% capacity"},
			{Name: "daysRemaining", Description: "Days until 80% capacity"},
		},
		newRequest: func() diagnoseRequest { return &fadeRequest{} },
	},
	{
		ID:          "cell_balance",
		Name:        "Cell Balance",
		Description: "Measure the voltage spread between cells",
		Parameters: []apiParam{
			batteryTypeParam,
			{Name: "cellVoltages", Type: "number[]", Description: "Voltage of each cell (V)"},
			{Name: "temperature", Type: "number", Description: "Battery temperature (°C)"},
		},
		Responses: []apiParam{
			{Name: "maxImbalance", Description: "Spread between highest and lowest cell (V)"},
			{Name: "balanceStatus", Description: "Well Balanced, Acceptable or Imbalanced"},
			{Name: "problematicCells", Description: "1-based indexes of cells out of balance"},
		},
		newRequest: func() diagnoseRequest { return &cellBalanceRequest{} },
	},
	{
		ID:          "cycle_life",
		Name:        "Cycle Life",
		Description: "Predict remaining cycles and end-of-life date",
		Parameters: []apiParam{
			batteryTypeParam,
			{Name: "cycleCount", Type: "integer", Description: "Charge cycles so far"},
			{Name: "depthOfDischarge", Type: "number", Description: "Typical depth of discharge (%)"},
			{Name: "averageTemperature", Type: "number", Description: "Average operating temperature (°C)"},
			{Name: "currentSOH", Type: "number", Description: "Current state of health (%)"},
		},
		Responses: []apiParam{
			{Name: "remainingCycles", Description: "Cycles left"},
			{Name: "estimatedEOL", Description: "Projected end-of-life date"},
			{Name: "confidenceLevel", Description: "Prediction confidence (%)"},
		},
		newRequest: func() diagnoseRequest { return &cycleLifeRequest{} },
	},
	{
		ID:          "safety",
		Name:        "Safety Monitor",
		Description: "Check operating conditions against safety limits",
		Parameters: []apiParam{
			batteryTypeParam, nominalParam(),
			{Name: "voltage", Type: "number", Description: "Current voltage (V)"},
			{Name: "current", Type: "number", Description: "Current flow (A)"},
			{Name: "temperature", Type: "number", Description: "Battery temperature (°C)"},
			{Name: "pressure", Type: "number", Description: "Internal pressure (atm)"},
		},
		Responses: []apiParam{
			{Name: "safetyStatus", Description: "Normal, Warning or Critical"},
			{Name: "riskLevel", Description: "Low, Medium or High"},
			{Name: "warningFlags", Description: "Conditions that were violated"},
			{Name: "recommendedActions", Description: "Recommended actions"},
		},
		newRequest: func() diagnoseRequest { return &safetyRequest{} },
	},
	{
		ID:          "thermal",
		Name:        "Thermal Analysis",
		Description: "Assess thermal state and runaway risk",
		Parameters: []apiParam{
			batteryTypeParam,
			{Name: "temperature", Type: "number", Description: "Battery temperature (°C)"},
			{Name: "rateOfChange", Type: "number", Description: "Temperature change (°C/min)"},
			{Name: "ambientTemperature", Type: "number", Description: "Ambient temperature (°C)"},
			{Name: "loadProfile", Type: "string", Description: "low, medium or high"},
		},
		Responses: []apiParam{
			{Name: "thermalStatus", Description: "Normal, Warning, Severe or Critical"},
			{Name: "runawayRisk", Description: "Thermal runaway risk (%)"},
			{Name: "coolingNeeded", Description: "Required cooling"},
			{Name: "temperatureMargin", Description: "Degrees left before the severe threshold"},
		},
		newRequest: func() diagnoseRequest { return &thermalRequest{} },
	},
	{
		ID:          "fault",
		Name:        "Fault Detection",
		Description: "Detect shorts, damage and thermal events",
		Parameters: []apiParam{
			batteryTypeParam, nominalParam(),
			{Name: "voltage", Type: "number", Description: "Current voltage (V)"},
			{Name: "current", Type: "number", Description: "Current flow (A)"},
			{Name: "temperature", Type: "number", Description: "Battery temperature (°C)"},
			{Name: "impedance", Type: "number", Description: "Measured impedance (mΩ)"},
		},
		Responses: []apiParam{
			{Name: "faultStatus", Description: "Normal or Fault detected"},
			{Name: "faultType", Description: "Detected faults"},
			{Name: "severity", Description: "Normal, High or Critical"},
			{Name: "recommendedActions", Description: "Recommended actions"},
		},
		newRequest: func() diagnoseRequest { return &faultRequest{} },
	},
}

func init() {
	for i := range catalog {
		catalog[i].Endpoint = "/battery/diagnose/" + catalog[i].ID
	}
}

func lookupDoc(id string) (apiDoc, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return apiDoc{}, false
}

// summary drops the field documentation, for /api-list.
func (d apiDoc) summary() apiDoc {
	return apiDoc{ID: d.ID, Name: d.Name, Description: d.Description, Endpoint: d.Endpoint}
}
