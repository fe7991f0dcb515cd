// Package platform holds the OS-specific shims: launch-at-login
// registration, user idle detection and the single-instance lock.
package platform

import (
	"errors"
	"strings"
)

var errEmptyAppName = errors.New("app name is empty")

// EnableAutostart registers execPath to launch at login under appName,
// overwriting any previous registration.
func EnableAutostart(appName, execPath string) error {
	if appName == "" {
		return errEmptyAppName
	}
	if execPath == "" {
		return errors.New("exec path is empty")
	}
	return enableAutostart(appName, execPath)
}

// DisableAutostart removes the login registration for appName. Removing a
// registration that does not exist is not an error.
func DisableAutostart(appName string) error {
	if appName == "" {
		return errEmptyAppName
	}
	return disableAutostart(appName)
}

// slugForName normalizes an app name into a filesystem-safe identifier.
func slugForName(appName string) string {
	slug := strings.ToLower(strings.TrimSpace(appName))
	slug = strings.ReplaceAll(slug, " ", "-")
	if slug == "" {
		slug = "restbell"
	}
	return slug
}
