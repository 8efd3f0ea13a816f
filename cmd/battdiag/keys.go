package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/battos/battdiag/pkg/apikey"
	"github.com/battos/battdiag/pkg/client"
)

func NewKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "keys",
		Short:   "Manage API keys",
		GroupID: gAdmin,
		Long: `Manage the API keys accepted by the daemon.

All subcommands need the admin key (--admin-key or BATTDIAG_ADMIN_KEY). Changes are saved to the daemon config file.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List API keys and their usage",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				keys, err := newClient().ListKeys(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd, keys)
				}
				if len(keys) == 0 {
					cmd.Println("No API keys. The daemon accepts any key.")
					return nil
				}
				for _, k := range keys {
					limit := "unlimited"
					if k.Limit > 0 {
						limit = fmt.Sprint(k.Limit)
					}
					used := bold("%d", k.Usage)
					if k.Limit > 0 && k.Usage >= k.Limit {
						used = level(fmt.Sprint(k.Usage), 2)
					}
					cmd.Printf("  %s  %s / %s\n", apikey.Mask(k.Key), used, limit)
				}
				return nil
			},
		},
		newKeyCommand("add [key]", "Add an API key", func(cmd *cobra.Command, key string) error {
			return newClient().AddKey(cmd.Context(), key)
		}),
		newKeyCommand("remove [key]", "Remove an API key", func(cmd *cobra.Command, key string) error {
			return newClient().RemoveKey(cmd.Context(), key)
		}),
		newKeyCommand("reset [key]", "Reset the usage of an API key", func(cmd *cobra.Command, key string) error {
			return newClient().ResetKey(cmd.Context(), key)
		}),
		&cobra.Command{
			Use:   "reset-all",
			Short: "Reset the usage of every API key",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := newClient().ResetAllUsage(cmd.Context()); err != nil {
					return err
				}
				logrus.Info("successfully reset usage of all keys")
				return nil
			},
		},
		&cobra.Command{
			Use:   "schedule",
			Short: "Show the automatic usage reset schedule",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				sch, err := newClient().GetResetSchedule(cmd.Context())
				if err != nil {
					return err
				}
				printResetSchedule(cmd, sch)
				return nil
			},
		},
		&cobra.Command{
			Use:   "skip-reset",
			Short: "Skip the next automatic usage reset",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				sch, err := newClient().SkipReset(cmd.Context())
				if err != nil {
					return err
				}
				printResetSchedule(cmd, sch)
				return nil
			},
		},
	)

	return cmd
}

func printResetSchedule(cmd *cobra.Command, sch *client.ResetSchedule) {
	if jsonOutput {
		_ = printJSON(cmd, sch)
		return
	}
	if sch.Schedule == "" || sch.NextReset == nil {
		cmd.Println("Usage is never reset automatically.")
		return
	}
	cmd.Printf("  Schedule: %s\n", bold("%s", sch.Schedule))
	cmd.Printf("  Next reset: %s (in %s)\n", bold("%s", sch.NextReset.Local().Format(time.DateTime)),
		time.Until(*sch.NextReset).Round(time.Minute))
}

func newKeyCommand(use, short string, fn func(cmd *cobra.Command, key string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := fn(cmd, args[0]); err != nil {
				return err
			}
			logrus.WithField("key", apikey.Mask(args[0])).Infof("%s: done", short)
			return nil
		},
	}
}
