package main

import (
	"errors"
	"fmt"

	"github.com/distatus/battery"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/battos/battdiag/pkg/chemistry"
	"github.com/battos/battdiag/pkg/diagnostics"
)

type localOptions struct {
	batteryType string
	temperature float64
	cycles      int
}

// localReport is what can be derived from one host battery. A nil result
// means the battery did not report enough to run that diagnostic.
type localReport struct {
	Index      int                           `json:"index"`
	State      string                        `json:"state"`
	Voltage    float64                       `json:"voltage"`
	Current    float64                       `json:"current"`
	Health     *diagnostics.SOHResult        `json:"stateOfHealth,omitempty"`
	Analysis   *diagnostics.VoltageResult    `json:"voltageAnalysis,omitempty"`
	Resistance *diagnostics.ResistanceResult `json:"resistance,omitempty"`
	Skipped    map[string]string             `json:"skipped,omitempty"`
}

func NewLocalCommand() *cobra.Command {
	opts := localOptions{}

	cmd := &cobra.Command{
		Use:     "local",
		Short:   "Diagnose the batteries of this machine",
		GroupID: gDiagnostics,
		Long: `Diagnose the batteries of this machine without a daemon.

Readings come from the operating system. State of health compares the full charge capacity with the design capacity. Voltage analysis and resistance need a chemistry: pass --type, e.g. "Li-ion_11.1V", when the design voltage is not one of the known classes.`,
		Args:        cobra.NoArgs,
		Annotations: offline,
		RunE: func(cmd *cobra.Command, _ []string) error {
			batteries, err := battery.GetAll()
			if err != nil {
				// Partial errors still leave usable batteries behind.
				var partial battery.Errors
				if !errors.As(err, &partial) || len(batteries) == 0 {
					return fmt.Errorf("failed to read batteries: %w", err)
				}
				logrus.WithError(err).Warn("some batteries could not be read")
			}
			if len(batteries) == 0 {
				return errors.New("no batteries found")
			}

			engine := diagnostics.New(nil)
			reports := make([]localReport, 0, len(batteries))
			for i, bat := range batteries {
				if bat == nil {
					continue
				}
				reports = append(reports, analyzeBattery(engine, i, bat, opts))
			}

			if jsonOutput {
				return printJSON(cmd, reports)
			}
			for _, r := range reports {
				printLocalReport(cmd, r)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.batteryType, "type", "t", "Li-ion", `battery type, e.g. "Li-ion" or "Li-ion_11.1V"`)
	f.Float64Var(&opts.temperature, "temperature", 25, "battery temperature (°C)")
	f.IntVar(&opts.cycles, "cycles", 0, "cycle count, if known")

	return cmd
}

func analyzeBattery(e *diagnostics.Engine, index int, bat *battery.Battery, opts localOptions) localReport {
	r := localReport{
		Index:   index,
		State:   bat.State.String(),
		Voltage: bat.Voltage,
		Skipped: map[string]string{},
	}

	// ChargeRate is reported as a magnitude in mW.
	if bat.Voltage > 0 {
		r.Current = bat.ChargeRate / 1000 / bat.Voltage
		if bat.State == battery.Discharging {
			r.Current = -r.Current
		}
	}

	if bat.Design > 0 && bat.Full > 0 {
		res, err := e.StateOfHealth(diagnostics.SOHInput{
			CurrentCapacity: bat.Full / 1000,
			RatedCapacity:   bat.Design / 1000,
			CycleCount:      opts.cycles,
		})
		if err != nil {
			r.Skipped["stateOfHealth"] = err.Error()
		} else {
			r.Health = res
		}
	} else {
		r.Skipped["stateOfHealth"] = "full or design capacity not reported"
	}

	c, nominal, err := chemistry.ParseBatteryType(opts.batteryType)
	if err != nil {
		r.Skipped["voltageAnalysis"] = err.Error()
	} else if bat.Voltage <= 0 {
		r.Skipped["voltageAnalysis"] = "voltage not reported"
	} else {
		if nominal == 0 {
			nominal = bat.DesignVoltage
		}
		res, err := e.VoltageAnalysis(diagnostics.VoltageInput{
			Chemistry:      c,
			NominalVoltage: nominal,
			Voltage:        bat.Voltage,
			Temperature:    opts.temperature,
		})
		if err != nil {
			r.Skipped["voltageAnalysis"] = err.Error()
		} else {
			r.Analysis = res
		}
	}

	if r.Current != 0 {
		res, err := e.InternalResistance(diagnostics.ResistanceInput{
			Voltage:     bat.Voltage,
			Current:     r.Current,
			Temperature: opts.temperature,
		})
		if err != nil {
			r.Skipped["resistance"] = err.Error()
		} else {
			r.Resistance = res
		}
	} else {
		r.Skipped["resistance"] = "no current flowing"
	}

	if len(r.Skipped) == 0 {
		r.Skipped = nil
	}
	return r
}

func printLocalReport(cmd *cobra.Command, r localReport) {
	cmd.Println(bold("Battery %d:", r.Index))
	cmd.Printf("  State: %s\n", bold("%s", r.State))
	cmd.Printf("  Voltage: %s\n", bold("%.2f V", r.Voltage))
	cmd.Printf("  Current: %s\n", bold("%.2f A", r.Current))
	if r.Health != nil {
		cmd.Printf("  Health: %s (%s)\n", bold("%.1f%%", r.Health.StateOfHealth), level(string(r.Health.HealthStatus), healthLevel(r.Health.HealthStatus)))
		cmd.Printf("    %s\n", r.Health.RecommendedAction)
	}
	if r.Analysis != nil {
		cmd.Printf("  Voltage status: %s (%.1f%% of range)\n", level(string(r.Analysis.VoltageStatus), voltageLevel(r.Analysis.VoltageStatus)), r.Analysis.PercentOfRange)
	}
	if r.Resistance != nil {
		cmd.Printf("  Apparent resistance: %s (%s)\n", bold("%.1f mΩ", r.Resistance.InternalResistance), r.Resistance.ResistanceStatus)
	}
	for name, why := range r.Skipped {
		logrus.WithField("diagnostic", name).Debugf("skipped: %s", why)
	}
}
