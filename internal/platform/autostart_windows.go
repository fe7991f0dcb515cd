//go:build windows

package platform

import (
	"fmt"
	"os/exec"
	"strings"
)

const runKey = `HKCU\Software\Microsoft\Windows\CurrentVersion\Run`

func enableAutostart(appName, execPath string) error {
	quoted := `"` + strings.Trim(execPath, `"`) + `"`
	out, err := exec.Command("reg", "add", runKey,
		"/v", appName, "/t", "REG_SZ", "/d", quoted, "/f").CombinedOutput()
	if err != nil {
		return fmt.Errorf("enable autostart: reg add: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func disableAutostart(appName string) error {
	out, err := exec.Command("reg", "delete", runKey,
		"/v", appName, "/f").CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "unable to find") {
			return nil
		}
		return fmt.Errorf("disable autostart: reg delete: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
