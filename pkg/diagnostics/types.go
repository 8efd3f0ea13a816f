package diagnostics

// ChargingStatus is derived from the direction of the current.
type ChargingStatus string

const (
	Charging    ChargingStatus = "Charging"
	Discharging ChargingStatus = "Discharging"
	Idle        ChargingStatus = "Idle"
	Full        ChargingStatus = "Full"
)

// HealthStatus classifies state of health.
type HealthStatus string

const (
	HealthGood     HealthStatus = "Good"
	HealthModerate HealthStatus = "Moderate"
	HealthPoor     HealthStatus = "Poor"
)

// ResistanceStatus classifies internal resistance.
type ResistanceStatus string

const (
	ResistanceExcellent ResistanceStatus = "Excellent"
	ResistanceGood      ResistanceStatus = "Good"
	ResistanceHigh      ResistanceStatus = "High"
)

// BalanceStatus classifies the spread of cell voltages.
type BalanceStatus string

const (
	WellBalanced BalanceStatus = "Well Balanced"
	Acceptable   BalanceStatus = "Acceptable"
	Imbalanced   BalanceStatus = "Imbalanced"
)

// RiskLevel is the safety risk tier. Levels are ordered.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

func (r RiskLevel) rank() int {
	switch r {
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return 0
	}
}

// SafetyStatus is the overall verdict of the safety monitor.
type SafetyStatus string

const (
	SafetyNormal   SafetyStatus = "Normal"
	SafetyWarning  SafetyStatus = "Warning"
	SafetyCritical SafetyStatus = "Critical"
)

// ThermalStatus classifies the thermal state.
type ThermalStatus string

const (
	ThermalNormal   ThermalStatus = "Normal"
	ThermalWarning  ThermalStatus = "Warning"
	ThermalSevere   ThermalStatus = "Severe"
	ThermalCritical ThermalStatus = "Critical"
)

// Severity is the fault severity. Levels are ordered.
type Severity string

const (
	SeverityNormal   Severity = "Normal"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 1
	case SeverityCritical:
		return 2
	default:
		return 0
	}
}

// LoadProfile is the load a battery is under during thermal analysis.
type LoadProfile string

const (
	LoadLow    LoadProfile = "low"
	LoadMedium LoadProfile = "medium"
	LoadHigh   LoadProfile = "high"
)

// VoltageStatus classifies a voltage against its envelope.
type VoltageStatus string

const (
	VoltageNormal       VoltageStatus = "Normal"
	VoltageLow          VoltageStatus = "Low"
	VoltageHigh         VoltageStatus = "High"
	VoltageOvervoltage  VoltageStatus = "Overvoltage"
	VoltageUndervoltage VoltageStatus = "Undervoltage"
)
