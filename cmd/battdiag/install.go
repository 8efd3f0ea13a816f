package main

import (
	"fmt"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/battos/battdiag/pkg/config"
	daemonutils "github.com/battos/battdiag/pkg/utils/daemon"
)

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	listen := ""

	cmd := &cobra.Command{
		Use:         "install",
		Short:       "Install battdiag daemon (system-wide)",
		GroupID:     gInstallation,
		Annotations: offline,
		Long: `Install battdiag daemon as a systemd service (system-wide).

This makes battdiag run in the background and automatically start on boot. You must run this command as root.

The config file is created if it does not exist. Use --listen and --admin-key to set those values in it before the daemon starts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.NewFile(configPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("listen") {
				conf.SetListen(listen)
			}
			// The global --admin-key doubles as the key to install.
			if cmd.Flags().Changed("admin-key") {
				conf.SetAdminKey(adminKey)
			}
			if conf.AdminKey() == "" {
				logrus.Info("no admin key set: the admin API is disabled.")
			}

			// Save first so the daemon finds its config on the first start.
			err = conf.Save()
			if err != nil {
				return pkgerrors.Wrapf(err, "failed to save config")
			}

			err = daemonutils.Install(configPath)
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to install daemon: %v. Are you root?", err)
			}

			logrus.WithFields(conf.LogrusFields()).Infof("installation succeeded")

			exePath, _ := os.Executable()

			cmd.Printf("`systemd' will use current binary (%s) at startup so please make sure you do not move this binary. Once this binary is moved or deleted, you will need to run ``battdiag install'' again.\n", exePath)

			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "address the daemon listens on, e.g. 127.0.0.1:8000")

	return cmd
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "uninstall",
		Short:       "Uninstall battdiag daemon (system-wide)",
		GroupID:     gInstallation,
		Annotations: offline,
		Long: `Uninstall battdiag daemon from systemd (system-wide).

This stops battdiag and removes its unit.

You must run this command as root.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := daemonutils.Uninstall()
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to uninstall daemon: %v", err)
			}

			fmt.Println("successfully uninstalled")

			cmd.Printf("Your config is kept in %s, in case you want to use `battdiag' again. If you want a complete uninstall, you can remove both config file and battdiag itself manually.\n", configPath)

			return nil
		},
	}

	return cmd
}
