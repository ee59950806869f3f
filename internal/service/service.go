// Package service installs tasky as a per-user background service: a
// launchd agent on macOS, a systemd user unit elsewhere.
package service

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"

	"github.com/chris/tasky/config"
)

const binDest = "/usr/local/bin/tasky"

// backend is one platform's service manager.
type backend interface {
	install(workDir string) error
	uninstall() error
	start() error
	stop() error
	status() error
	logs() error
}

func current() backend {
	if runtime.GOOS == "darwin" {
		return launchd{}
	}
	return systemd{}
}

// Install copies the binary to /usr/local/bin, seeds ~/.tasky/config from
// .env if needed, then registers and starts the service.
func Install() error {
	if err := copyBinary(); err != nil {
		return err
	}
	if err := seedConfig(); err != nil {
		return err
	}
	return current().install(resolveWorkDir())
}

// Uninstall removes the service definition and the binary.
func Uninstall() error {
	if err := current().uninstall(); err != nil {
		return err
	}
	if _, err := os.Stat(binDest); err == nil {
		if err := os.Remove(binDest); err != nil {
			return fmt.Errorf("removing binary: %w", err)
		}
		fmt.Printf("removed %s\n", binDest)
	} else {
		fmt.Println("binary not found in /usr/local/bin, skipping")
	}
	fmt.Println("uninstalled")
	return nil
}

func Start() error { return current().start() }

func Stop() error { return current().stop() }

func Restart() error {
	_ = Stop()
	return Start()
}

func Status() error { return current().status() }

func Logs() error { return current().logs() }

func copyBinary() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return fmt.Errorf("resolving symlinks: %w", err)
	}
	input, err := os.ReadFile(exe)
	if err != nil {
		return fmt.Errorf("reading binary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(binDest), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(binDest), err)
	}
	if err := os.WriteFile(binDest, input, 0755); err != nil {
		return fmt.Errorf("copying binary to %s: %w", binDest, err)
	}
	fmt.Printf("installed binary to %s\n", binDest)
	return nil
}

func seedConfig() error {
	configFile := config.ConfigFile()
	if _, err := os.Stat(configFile); err == nil {
		fmt.Printf("config already exists at %s\n", configFile)
		return nil
	}
	envData, err := os.ReadFile(".env")
	if err != nil {
		return nil
	}
	if err := os.MkdirAll(config.ConfigDir(), 0700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(configFile, envData, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Printf("seeded config from .env -> %s\n", configFile)
	return nil
}

// resolveWorkDir determines the working directory for the service. A
// relative DATABASE_PATH in the installed config is resolved against the
// directory install ran from; otherwise ~/.tasky is used.
func resolveWorkDir() string {
	envVars, _ := godotenv.Read(config.ConfigFile())
	if dbPath, ok := envVars["DATABASE_PATH"]; ok && !filepath.IsAbs(dbPath) {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
	}
	return config.ConfigDir()
}

// run executes a service manager command, folding its stderr into the error.
func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %s", name, strings.Join(args, " "), strings.TrimSpace(stderr.String()))
	}
	return nil
}

// attach runs a command wired to the terminal.
func attach(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
