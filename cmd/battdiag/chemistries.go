package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/battos/battdiag/pkg/chemistry"
	"github.com/battos/battdiag/pkg/client"
)

func NewChemistriesCommand() *cobra.Command {
	var (
		tablePath string
		remote    bool
	)

	cmd := &cobra.Command{
		Use:     "chemistries",
		Aliases: []string{"chem"},
		Short:   "List supported chemistries and voltage classes",
		GroupID: gDiagnostics,
		Long: `List supported chemistries and voltage classes.

By default the built-in table is shown without contacting the daemon. Use --table to check a custom table file before deploying it, or --remote to ask the daemon what it serves.`,
		Args:        cobra.NoArgs,
		Annotations: offline,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				infos []client.ChemistryInfo
				err   error
			)
			if remote {
				infos, err = newClient().Chemistries(cmd.Context())
			} else {
				infos, err = localChemistries(tablePath)
			}
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd, infos)
			}

			for _, c := range infos {
				cmd.Println(bold("%s", c.BatteryType))
				cmd.Printf("  Temperature: %.0f °C to %.0f °C\n", c.MinTemperature, c.MaxTemperature)
				for _, vc := range c.Classes {
					cmd.Printf("  %6.1f V nominal: %s\n", vc.NominalVoltage, bold("%.2f V - %.2f V", vc.MinVoltage, vc.MaxVoltage))
				}
				if c.Factors != nil {
					cmd.Printf("  Any nominal voltage: min x%.3f, max x%.3f\n", c.Factors.MinVoltageFactor, c.Factors.MaxVoltageFactor)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tablePath, "table", "", "chemistry table file (JSON) to list instead of the built-in one")
	cmd.Flags().BoolVar(&remote, "remote", false, "list the chemistries served by the daemon")
	cmd.MarkFlagsMutuallyExclusive("table", "remote")

	return cmd
}

func localChemistries(tablePath string) ([]client.ChemistryInfo, error) {
	reg := chemistry.Default()
	if tablePath != "" {
		t, err := chemistry.LoadTable(tablePath)
		if err != nil {
			return nil, err
		}
		reg, err = chemistry.NewRegistry(t)
		if err != nil {
			return nil, fmt.Errorf("invalid chemistry table %s: %w", tablePath, err)
		}
	}

	var out []client.ChemistryInfo
	for _, c := range reg.Chemistries() {
		p, err := reg.Profile(c)
		if err != nil {
			return nil, err
		}
		info := client.ChemistryInfo{
			BatteryType:    c.String(),
			MinTemperature: p.MinTemperature,
			MaxTemperature: p.MaxTemperature,
		}
		for _, vc := range p.Classes {
			info.Classes = append(info.Classes, client.VoltageClass{
				NominalVoltage: vc.Nominal,
				MaxVoltage:     vc.Max,
				MinVoltage:     vc.Min,
			})
		}
		if p.Factors != nil {
			info.Factors = &client.ScaleFactors{
				MaxVoltageFactor: p.Factors.MaxVoltageFactor,
				MinVoltageFactor: p.Factors.MinVoltageFactor,
			}
		}
		out = append(out, info)
	}
	return out, nil
}
