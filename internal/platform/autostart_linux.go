//go:build linux

package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const desktopEntryTemplate = `[Desktop Entry]
Type=Application
Name=%s
Exec=%s
X-GNOME-Autostart-enabled=true
Terminal=false
`

func enableAutostart(appName, execPath string) error {
	dir, err := autostartDir()
	if err != nil {
		return fmt.Errorf("enable autostart: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("enable autostart: %w", err)
	}

	exec := execPath
	if strings.Contains(exec, " ") {
		exec = `"` + strings.Trim(exec, `"`) + `"`
	}
	entry := fmt.Sprintf(desktopEntryTemplate, appName, exec)

	path := filepath.Join(dir, slugForName(appName)+".desktop")
	if err := os.WriteFile(path, []byte(entry), 0o644); err != nil {
		return fmt.Errorf("enable autostart: %w", err)
	}
	return nil
}

func disableAutostart(appName string) error {
	dir, err := autostartDir()
	if err != nil {
		return fmt.Errorf("disable autostart: %w", err)
	}
	path := filepath.Join(dir, slugForName(appName)+".desktop")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("disable autostart: %w", err)
	}
	return nil
}

func autostartDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "autostart"), nil
}
