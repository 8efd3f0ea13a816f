package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/battos/battdiag/pkg/daemon"
	"github.com/battos/battdiag/pkg/version"
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "daemon",
		Short:       "Run battdiag daemon in the foreground",
		GroupID:     gInstallation,
		Annotations: offline,
		Long: `Run battdiag daemon in the foreground.

The daemon serves the diagnostic API on the address set by 'listen' in the config file.
Send SIGHUP to reload the config without a restart.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
				"config":  configPath,
			}).Info("battdiag daemon starting")
			return daemon.Run(configPath)
		},
	}

	return cmd
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version",
		Annotations: offline,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}
