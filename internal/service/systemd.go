package service

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

const unitName = "tasky.service"

type systemd struct{}

func unitPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "systemd", "user", unitName)
}

func systemctl(args ...string) error {
	return run("systemctl", append([]string{"--user"}, args...)...)
}

func (systemd) install(workDir string) error {
	unit, err := renderUnit(workDir)
	if err != nil {
		return fmt.Errorf("generating unit: %w", err)
	}
	if err := writeFile(unitPath(), unit); err != nil {
		return err
	}
	if err := systemctl("daemon-reload"); err != nil {
		return err
	}
	if err := systemctl("enable", "--now", unitName); err != nil {
		return fmt.Errorf("enabling unit: %w", err)
	}
	fmt.Println("service enabled and started")
	return nil
}

func (systemd) uninstall() error {
	if _, err := os.Stat(unitPath()); err != nil {
		fmt.Println("unit not found, skipping")
		return nil
	}
	if err := systemctl("disable", "--now", unitName); err != nil {
		fmt.Fprintf(os.Stderr, "warning: disable failed: %v\n", err)
	}
	if err := os.Remove(unitPath()); err != nil {
		return fmt.Errorf("removing unit: %w", err)
	}
	fmt.Printf("removed %s\n", unitPath())
	return systemctl("daemon-reload")
}

func (systemd) start() error { return systemctl("start", unitName) }

func (systemd) stop() error { return systemctl("stop", unitName) }

func (systemd) status() error {
	// systemctl status exits non-zero for stopped units.
	_ = attach("systemctl", "--user", "status", unitName)
	return nil
}

func (systemd) logs() error {
	return attach("journalctl", "--user", "-u", unitName, "-f")
}

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=tasky conversational task agent
After=network-online.target

[Service]
ExecStart={{.BinPath}} serve
WorkingDirectory={{.WorkDir}}
Restart=always
RestartSec=5

[Install]
WantedBy=default.target
`))

func renderUnit(workDir string) (string, error) {
	var buf bytes.Buffer
	if err := unitTemplate.Execute(&buf, unitData{BinPath: binDest, WorkDir: workDir}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
