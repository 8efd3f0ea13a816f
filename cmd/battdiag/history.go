package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
)

func NewHistoryCommand() *cobra.Command {
	limit := 0

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"logs"},
		Short:   "Show your diagnostic history",
		GroupID: gDiagnostics,
		Long: `Show the diagnostics run with your API key, newest first.

History is kept by the daemon. Depending on its backend it may be lost on restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logs, err := newClient().Logs(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(logs) > limit {
				logs = logs[:limit]
			}

			if jsonOutput {
				return printJSON(cmd, logs)
			}

			if len(logs) == 0 {
				cmd.Println("No diagnostics yet.")
				return nil
			}
			for _, l := range logs {
				cmd.Printf("%s  %s  %s\n",
					l.Timestamp.Local().Format(time.DateTime),
					bold("%-13s", l.Type),
					l.Chemistry,
				)
				cmd.Printf("    %s\n", compact(l.Result))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n entries (0 shows everything the daemon returns)")

	return cmd
}

func compact(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(b)
}
