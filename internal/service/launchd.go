package service

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

const (
	label     = "com.tasky.agent"
	plistName = label + ".plist"
)

type launchd struct{}

func plistPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "LaunchAgents", plistName)
}

func logDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "Logs")
}

func stdoutLogPath() string { return filepath.Join(logDir(), "tasky-stdout.log") }
func stderrLogPath() string { return filepath.Join(logDir(), "tasky-stderr.log") }

func (launchd) install(workDir string) error {
	plist, err := renderPlist(workDir)
	if err != nil {
		return fmt.Errorf("generating plist: %w", err)
	}
	// Unload existing plist if present (ignore errors)
	if _, err := os.Stat(plistPath()); err == nil {
		_ = run("launchctl", "unload", plistPath())
	}
	if err := writeFile(plistPath(), plist); err != nil {
		return err
	}
	if err := run("launchctl", "load", plistPath()); err != nil {
		return fmt.Errorf("loading plist: %w", err)
	}
	fmt.Println("service loaded and will start on login")
	return nil
}

func (launchd) uninstall() error {
	if _, err := os.Stat(plistPath()); err != nil {
		fmt.Println("plist not found, skipping")
		return nil
	}
	if err := run("launchctl", "unload", plistPath()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: unload failed: %v\n", err)
	}
	if err := os.Remove(plistPath()); err != nil {
		return fmt.Errorf("removing plist: %w", err)
	}
	fmt.Printf("removed %s\n", plistPath())
	return nil
}

func (launchd) start() error { return run("launchctl", "start", label) }

func (launchd) stop() error { return run("launchctl", "stop", label) }

func (launchd) status() error {
	if err := attach("launchctl", "list", label); err != nil {
		fmt.Println("service is not loaded")
	}
	return nil
}

// logs tails both stdout and stderr log files.
func (launchd) logs() error {
	return attach("tail", "-f", stdoutLogPath(), stderrLogPath())
}

var plistTemplate = template.Must(template.New("plist").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{.BinPath}}</string>
		<string>serve</string>
	</array>
	<key>WorkingDirectory</key>
	<string>{{.WorkDir}}</string>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
	<key>StandardOutPath</key>
	<string>{{.StdoutLog}}</string>
	<key>StandardErrorPath</key>
	<string>{{.StderrLog}}</string>
</dict>
</plist>
`))

type unitData struct {
	Label     string
	BinPath   string
	WorkDir   string
	StdoutLog string
	StderrLog string
}

func renderPlist(workDir string) (string, error) {
	var buf bytes.Buffer
	err := plistTemplate.Execute(&buf, unitData{
		Label:     label,
		BinPath:   binDest,
		WorkDir:   workDir,
		StdoutLog: stdoutLogPath(),
		StderrLog: stderrLogPath(),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
