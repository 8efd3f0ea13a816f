package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/battos/battdiag/pkg/client"
	"github.com/battos/battdiag/pkg/config"
	"github.com/battos/battdiag/pkg/version"
)

var (
	logLevel   = "info"
	daemonAddr = "127.0.0.1:8000"
	configPath = "/etc/battdiag.json"
	apiKey     = ""
	adminKey   = ""
	jsonOutput = false
)

var (
	gDiagnostics  = "Diagnostics:"
	gAdmin        = "Admin:"
	gInstallation = "Installation:"
	commandGroups = []string{
		gDiagnostics,
		gAdmin,
		gInstallation,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, client.ErrDaemonNotRunning):
		fmt.Fprintln(os.Stderr, "\nError: battdiag daemon is not running")
		fmt.Fprintf(os.Stderr, "Is the daemon listening on %s? Have you installed it?\n", daemonAddr)
	case errors.Is(err, client.ErrUnauthorized):
		fmt.Fprintln(os.Stderr, "\nError: the daemon rejected the key")
		fmt.Fprintln(os.Stderr, "  - Pass an API key with '--api-key' or BATTDIAG_API_KEY")
		fmt.Fprintln(os.Stderr, "  - Admin commands need '--admin-key' or BATTDIAG_ADMIN_KEY")
	case errors.Is(err, client.ErrRateLimited):
		fmt.Fprintln(os.Stderr, "\nError: the key is rate limited or has used up its quota")
	case errors.Is(err, client.ErrPermissionDenied):
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - The admin API is disabled. Set 'adminKey' in the daemon config to enable it")
	}
}

// newClient builds a daemon client from the global flags.
func newClient() *client.Client {
	return client.NewClient(daemonAddr, client.WithAPIKey(apiKey), client.WithAdminKey(adminKey))
}

func main() {
	config.LoadDotEnv(".env")

	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "battdiag",
		Short: "battdiag diagnoses batteries from electrical and thermal readings",
		Long: `battdiag diagnoses batteries from electrical and thermal readings.

It runs as an HTTP daemon (battdiag daemon) and as a client for that daemon.
Every diagnose command sends its readings to the daemon and prints the result.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}

			if apiKey == "" {
				apiKey = os.Getenv(config.EnvPrefix + "API_KEY")
			}
			if adminKey == "" {
				adminKey = os.Getenv(config.EnvPrefix + "ADMIN_KEY")
			}

			if !needsDaemon(cmd) {
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
			defer cancel()
			if daemonVersion, err := newClient().GetVersion(ctx); err == nil {
				if daemonVersion != version.Version {
					logrus.WithFields(logrus.Fields{
						"clientVersion": version.Version,
						"daemonVersion": daemonVersion,
					}).Warn("Version mismatch between client and daemon. Results may not match what this client expects.")
				}
			} else if errors.Is(err, client.ErrNotFound) {
				logrus.Error("battdiag daemon is too old to report its version.")
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVar(&daemonAddr, "daemon-addr", daemonAddr, "battdiag daemon address")
	globalFlags.StringVar(&apiKey, "api-key", "", "API key sent to the daemon (default $BATTDIAG_API_KEY)")
	globalFlags.StringVar(&adminKey, "admin-key", "", "admin key sent to the daemon (default $BATTDIAG_ADMIN_KEY)")
	globalFlags.BoolVar(&jsonOutput, "json", false, "print raw JSON instead of a summary")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewDiagnoseCommand(),
		NewHistoryCommand(),
		NewChemistriesCommand(),
		NewEventsCommand(),
		NewLocalCommand(),
		NewKeysCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
	)

	return cmd
}

// needsDaemon reports whether cmd talks to a running daemon.
func needsDaemon(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationOffline] == "true" {
			return false
		}
	}
	return true
}

const annotationOffline = "offline"

var offline = map[string]string{annotationOffline: "true"}
