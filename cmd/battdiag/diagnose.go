package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/battos/battdiag/pkg/client"
	"github.com/battos/battdiag/pkg/diagnostics"
)

type flagType int

const (
	fFloat flagType = iota
	fInt
	fFloats
	fString
)

// flagField binds one command line flag to one request body field.
type flagField struct {
	json     string
	flag     string
	typ      flagType
	usage    string
	required bool
}

type diagnoseCommand struct {
	kind   string
	use    string
	short  string
	fields []flagField
	print  func(cmd *cobra.Command, raw json.RawMessage) error
}

var (
	fieldType    = flagField{"batteryType", "type", fString, `battery type, e.g. "Li-ion" or "LFP_48V"`, true}
	fieldNominal = flagField{"nominalVoltage", "nominal", fFloat, "nominal pack voltage (V), overrides the one in --type", false}
	fieldVoltage = flagField{"voltage", "voltage", fFloat, "measured voltage (V)", true}
	fieldCurrent = flagField{"current", "current", fFloat, "current (A), positive when charging", true}
	fieldTemp    = flagField{"temperature", "temperature", fFloat, "temperature (°C)", true}
	fieldCycles  = flagField{"cycleCount", "cycles", fInt, "number of charge cycles", true}
)

var diagnoseCommands = []diagnoseCommand{
	{
		kind:   client.KindVoltage,
		use:    "voltage",
		short:  "Check a voltage against the chemistry envelope",
		fields: []flagField{fieldType, fieldNominal, fieldVoltage, {"temperature", "temperature", fFloat, "temperature (°C, default 25)", false}},
		print:  printAs(printVoltage),
	},
	{
		kind:   client.KindSOC,
		use:    "soc",
		short:  "Estimate state of charge",
		fields: []flagField{fieldType, fieldNominal, fieldVoltage, fieldTemp, fieldCurrent},
		print:  printAs(printSOC),
	},
	{
		kind:  client.KindSOH,
		use:   "soh",
		short: "Estimate state of health",
		fields: []flagField{
			fieldType,
			{"currentCapacity", "capacity", fFloat, "current full capacity (Ah)", true},
			{"ratedCapacity", "rated", fFloat, "rated capacity (Ah)", true},
			fieldCycles,
		},
		print: printAs(printSOH),
	},
	{
		kind:   client.KindResistance,
		use:    "resistance",
		short:  "Estimate internal resistance",
		fields: []flagField{fieldType, fieldVoltage, fieldCurrent, fieldTemp},
		print:  printAs(printResistance),
	},
	{
		kind:  client.KindCapacityFade,
		use:   "fade",
		short: "Analyze capacity fade and project end of life",
		fields: []flagField{
			fieldType,
			{"initialCapacity", "initial", fFloat, "capacity when new (Ah)", true},
			{"currentCapacity", "capacity", fFloat, "current full capacity (Ah)", true},
			fieldCycles,
			{"timeInService", "days", fInt, "days in service", true},
		},
		print: printAs(printFade),
	},
	{
		kind:  client.KindCellBalance,
		use:   "balance",
		short: "Check the balance of cell voltages",
		fields: []flagField{
			fieldType,
			{"cellVoltages", "cells", fFloats, "cell voltages (V), comma separated", true},
			fieldTemp,
		},
		print: printAs(printBalance),
	},
	{
		kind:  client.KindCycleLife,
		use:   "cycle-life",
		short: "Predict remaining cycle life",
		fields: []flagField{
			fieldType,
			fieldCycles,
			{"depthOfDischarge", "dod", fFloat, "average depth of discharge (%)", true},
			{"averageTemperature", "avg-temperature", fFloat, "average temperature (°C)", true},
			{"currentSOH", "soh", fFloat, "current state of health (%)", true},
		},
		print: printAs(printCycleLife),
	},
	{
		kind:  client.KindSafety,
		use:   "safety",
		short: "Check voltage, current, temperature and pressure against safety limits",
		fields: []flagField{
			fieldType, fieldNominal, fieldVoltage, fieldCurrent, fieldTemp,
			{"pressure", "pressure", fFloat, "internal pressure (atm)", true},
		},
		print: printAs(printSafety),
	},
	{
		kind:  client.KindThermal,
		use:   "thermal",
		short: "Assess thermal runaway risk",
		fields: []flagField{
			fieldType, fieldTemp,
			{"rateOfChange", "rate", fFloat, "temperature rate of change (°C/min)", true},
			{"ambientTemperature", "ambient", fFloat, "ambient temperature (°C)", true},
			{"loadProfile", "load", fString, "load profile (low, medium, high)", true},
		},
		print: printAs(printThermal),
	},
	{
		kind:  client.KindFault,
		use:   "fault",
		short: "Detect faults from voltage, current, temperature and impedance",
		fields: []flagField{
			fieldType, fieldNominal, fieldVoltage, fieldCurrent, fieldTemp,
			{"impedance", "impedance", fFloat, "impedance (ohm)", true},
		},
		print: printAs(printFault),
	},
}

func NewDiagnoseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "diagnose",
		Aliases: []string{"diag", "d"},
		Short:   "Run a diagnostic on the daemon",
		GroupID: gDiagnostics,
		Long: `Run a diagnostic on the daemon.

Every diagnostic counts against the usage of your API key.`,
		Example: `  battdiag diagnose soc --type Li-ion --nominal 48 --voltage 53.7 --temperature 35 --current 1
  battdiag diagnose balance --type LFP_12V --cells 3.31,3.30,3.36,3.29 --temperature 25
  battdiag diagnose thermal --type Li-ion --temperature 48 --rate 1.5 --ambient 30 --load high`,
	}

	for _, d := range diagnoseCommands {
		cmd.AddCommand(newDiagnoseSubcommand(d))
	}

	return cmd
}

func newDiagnoseSubcommand(d diagnoseCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   d.use,
		Short: d.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := buildBody(cmd, d.fields)
			if err != nil {
				return err
			}

			raw, err := newClient().Diagnose(cmd.Context(), d.kind, body)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd, raw)
			}
			return d.print(cmd, raw)
		},
	}

	f := cmd.Flags()
	for _, field := range d.fields {
		switch field.typ {
		case fFloat:
			f.Float64(field.flag, 0, field.usage)
		case fInt:
			f.Int(field.flag, 0, field.usage)
		case fFloats:
			f.Float64Slice(field.flag, nil, field.usage)
		case fString:
			f.String(field.flag, "", field.usage)
		}
		if field.required {
			_ = cmd.MarkFlagRequired(field.flag)
		}
	}

	return cmd
}

// buildBody collects the flags that were set. Unset optional flags are left
// out so that the daemon applies its own defaults.
func buildBody(cmd *cobra.Command, fields []flagField) (map[string]any, error) {
	f := cmd.Flags()
	body := make(map[string]any, len(fields))
	for _, field := range fields {
		if !f.Changed(field.flag) {
			continue
		}

		var (
			v   any
			err error
		)
		switch field.typ {
		case fFloat:
			v, err = f.GetFloat64(field.flag)
		case fInt:
			v, err = f.GetInt(field.flag)
		case fFloats:
			v, err = f.GetFloat64Slice(field.flag)
		case fString:
			v, err = f.GetString(field.flag)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", field.flag, err)
		}
		body[field.json] = v
	}
	return body, nil
}

func printAs[T any](p func(cmd *cobra.Command, r *T)) func(*cobra.Command, json.RawMessage) error {
	return func(cmd *cobra.Command, raw json.RawMessage) error {
		var r T
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
		p(cmd, &r)
		return nil
	}
}

func printVoltage(cmd *cobra.Command, r *diagnostics.VoltageResult) {
	cmd.Println(bold("Voltage analysis:"))
	cmd.Printf("  Status: %s\n", level(string(r.VoltageStatus), voltageLevel(r.VoltageStatus)))
	cmd.Printf("  Envelope: %s\n", bold("%.2f V - %.2f V (nominal %.2f V)", r.Envelope.MinVoltage, r.Envelope.MaxVoltage, r.Envelope.NominalVoltage))
	cmd.Printf("  Position in range: %s\n", bold("%.1f%%", r.PercentOfRange))
	cmd.Printf("  Deviation from nominal: %s\n", bold("%+.2f V", r.DeviationFromNominal))
	cmd.Printf("  Temperature compensation: %s\n", bold("%.2f", r.TemperatureCompensation))
	printList(cmd, "Recommendations", r.Recommendations)
}

func printSOC(cmd *cobra.Command, r *diagnostics.SOCResult) {
	cmd.Println(bold("State of charge:"))
	cmd.Printf("  Charge: %s\n", bold("%.1f%%", r.StateOfCharge))
	cmd.Printf("  Status: %s\n", bold("%s", r.ChargingStatus))
	cmd.Printf("  Estimated range: %s\n", bold("%s", r.EstimatedRange))
	cmd.Printf("  Temperature compensation: %s\n", bold("%.2f", r.TemperatureCompensation))
}

func printSOH(cmd *cobra.Command, r *diagnostics.SOHResult) {
	cmd.Println(bold("State of health:"))
	cmd.Printf("  Health: %s (%s)\n", bold("%.1f%%", r.StateOfHealth), level(string(r.HealthStatus), healthLevel(r.HealthStatus)))
	cmd.Printf("  Capacity loss: %s\n", bold("%.1f%%", r.CapacityLoss))
	cmd.Printf("  Cycle aging: %s\n", bold("%.1f%%", r.CycleAging))
	cmd.Printf("  Recommended action: %s\n", r.RecommendedAction)
}

func printResistance(cmd *cobra.Command, r *diagnostics.ResistanceResult) {
	l := 0
	switch r.ResistanceStatus {
	case diagnostics.ResistanceGood:
		l = 1
	case diagnostics.ResistanceHigh:
		l = 2
	}
	cmd.Println(bold("Internal resistance:"))
	cmd.Printf("  Resistance: %s (%s)\n", bold("%.2f mΩ", r.InternalResistance), level(string(r.ResistanceStatus), l))
	cmd.Printf("  Power loss: %s\n", bold("%s", r.PowerLoss))
}

func printFade(cmd *cobra.Command, r *diagnostics.FadeResult) {
	cmd.Println(bold("Capacity fade:"))
	cmd.Printf("  Fade: %s\n", bold("%.2f%%", r.CapacityFade))
	cmd.Printf("  Fade rate: %s\n", bold("%.4f%% per cycle", r.FadeRate))
	cmd.Printf("  Cycles to end of life: %s\n", bold("%d", r.CyclesToEOL))
	cmd.Printf("  Days remaining: %s\n", bold("%d", r.DaysRemaining))
	cmd.Printf("  Projected lifetime: %s\n", bold("%s", r.ProjectedLifetime))
	cmd.Printf("  Recommended action: %s\n", r.RecommendedAction)
}

func printBalance(cmd *cobra.Command, r *diagnostics.CellBalanceResult) {
	l := 0
	switch r.BalanceStatus {
	case diagnostics.Acceptable:
		l = 1
	case diagnostics.Imbalanced:
		l = 2
	}
	cmd.Println(bold("Cell balance:"))
	cmd.Printf("  Status: %s\n", level(string(r.BalanceStatus), l))
	cmd.Printf("  Max imbalance: %s\n", bold("%.1f mV", r.MaxImbalance*1000))
	cmd.Printf("  Average voltage: %s\n", bold("%.3f V", r.AverageVoltage))
	if len(r.ProblematicCells) > 0 {
		cmd.Printf("  Problematic cells: %s\n", level(joinInts(r.ProblematicCells), 2))
	}
}

func printCycleLife(cmd *cobra.Command, r *diagnostics.CycleLifeResult) {
	cmd.Println(bold("Cycle life:"))
	cmd.Printf("  Remaining cycles: %s\n", bold("%d", r.RemainingCycles))
	cmd.Printf("  Estimated end of life: %s\n", bold("%s", r.EstimatedEOL))
	cmd.Printf("  Confidence: %s\n", bold("%.0f%%", r.ConfidenceLevel))
}

func printSafety(cmd *cobra.Command, r *diagnostics.SafetyResult) {
	cmd.Println(bold("Safety:"))
	cmd.Printf("  Status: %s\n", level(string(r.SafetyStatus), riskLevel(r.RiskLevel)))
	cmd.Printf("  Risk level: %s\n", level(string(r.RiskLevel), riskLevel(r.RiskLevel)))
	printList(cmd, "Warnings", r.WarningFlags)
	printList(cmd, "Recommended actions", r.RecommendedActions)
}

func printThermal(cmd *cobra.Command, r *diagnostics.ThermalResult) {
	cmd.Println(bold("Thermal:"))
	cmd.Printf("  Status: %s\n", level(string(r.ThermalStatus), thermalLevel(r.ThermalStatus)))
	cmd.Printf("  Runaway risk: %s\n", bold("%.1f%%", r.RunawayRisk))
	cmd.Printf("  Margin to critical: %s\n", bold("%.1f °C", r.TemperatureMargin))
	cmd.Printf("  Cooling: %s\n", r.CoolingNeeded)
}

func printFault(cmd *cobra.Command, r *diagnostics.FaultResult) {
	cmd.Println(bold("Faults:"))
	cmd.Printf("  Status: %s\n", level(r.FaultStatus, severityLevel(r.Severity)))
	cmd.Printf("  Severity: %s\n", level(string(r.Severity), severityLevel(r.Severity)))
	printList(cmd, "Faults found", r.FaultTypes)
	printList(cmd, "Recommended actions", r.RecommendedActions)
}
