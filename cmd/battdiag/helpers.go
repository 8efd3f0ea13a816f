package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/battos/battdiag/pkg/diagnostics"
)

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

// level colors a status by how bad it is: 0 fine, 1 watch, 2 act now.
func level(s string, l int) string {
	switch l {
	case 0:
		return color.New(color.Bold, color.FgGreen).Sprint(s)
	case 1:
		return color.New(color.Bold, color.FgYellow).Sprint(s)
	default:
		return color.New(color.Bold, color.FgRed).Sprint(s)
	}
}

func healthLevel(s diagnostics.HealthStatus) int {
	switch s {
	case diagnostics.HealthGood:
		return 0
	case diagnostics.HealthModerate:
		return 1
	}
	return 2
}

func riskLevel(r diagnostics.RiskLevel) int {
	switch r {
	case diagnostics.RiskLow:
		return 0
	case diagnostics.RiskMedium:
		return 1
	}
	return 2
}

func severityLevel(s diagnostics.Severity) int {
	switch s {
	case diagnostics.SeverityNormal:
		return 0
	case diagnostics.SeverityHigh:
		return 1
	}
	return 2
}

func thermalLevel(s diagnostics.ThermalStatus) int {
	switch s {
	case diagnostics.ThermalNormal:
		return 0
	case diagnostics.ThermalWarning:
		return 1
	}
	return 2
}

func voltageLevel(s diagnostics.VoltageStatus) int {
	switch s {
	case diagnostics.VoltageNormal:
		return 0
	case diagnostics.VoltageLow, diagnostics.VoltageHigh:
		return 1
	}
	return 2
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	cmd.Println(string(b))
	return nil
}

func printList(cmd *cobra.Command, title string, items []string) {
	if len(items) == 0 {
		return
	}
	cmd.Println("  " + title + ":")
	for _, i := range items {
		cmd.Println("    - " + i)
	}
}

func joinInts(xs []int) string {
	s := make([]string, len(xs))
	for i, x := range xs {
		s[i] = fmt.Sprint(x)
	}
	return strings.Join(s, ", ")
}
