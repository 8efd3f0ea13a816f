// Package daemon installs battdiag as a systemd service.
package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const serviceName = "battdiag.service"

var (
	unitDir   = "/etc/systemd/system"
	systemctl = "systemctl"
)

const unitTemplate = `[Unit]
Description=battdiag battery diagnostics daemon
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=/path/to/battdiag daemon --config /path/to/config
ExecReload=/bin/kill -HUP $MAINPID
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
`

func unitPath() string {
	return filepath.Join(unitDir, serviceName)
}

// renderUnit fills the unit template for the given binary and config file.
func renderUnit(exePath, configPath string) string {
	return strings.NewReplacer(
		"/path/to/battdiag", exePath,
		"/path/to/config", configPath,
	).Replace(unitTemplate)
}

// Install writes the systemd unit for the current executable, then enables
// and starts it.
func Install(configPath string) error {
	// Get the path to the current executable
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}
	configPath, err = filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the config file: %w", err)
	}

	err = os.Chmod(exePath, 0755)
	if err != nil {
		return fmt.Errorf("failed to chmod the current executable to 0755: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)

	err = os.MkdirAll(unitDir, 0755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", unitDir, err)
	}

	// warn if the file already exists
	if _, err = os.Stat(unitPath()); err == nil {
		logrus.Warnf("%s already exists, overwriting", unitPath())
	}

	logrus.Infof("writing systemd unit to %s", unitPath())
	err = os.WriteFile(unitPath(), []byte(renderUnit(exePath, configPath)), 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", unitPath(), err)
	}

	if err := run("daemon-reload"); err != nil {
		return err
	}

	logrus.Infof("starting battdiag")

	return run("enable", "--now", serviceName)
}

func run(args ...string) error {
	out, err := exec.Command(systemctl, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
