//go:build linux

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"restbell/internal/core/session"
)

// x11Idle shells out to xprintidle. It only reads X11 idle time, so a
// wayland session reports unsupported even with the binary installed.
type x11Idle struct {
	binPath string
}

type unsupportedIdle struct{}

func newIdleProvider() IdleProvider {
	if strings.EqualFold(os.Getenv("XDG_SESSION_TYPE"), "wayland") {
		return unsupportedIdle{}
	}
	path, err := exec.LookPath("xprintidle")
	if err != nil {
		return unsupportedIdle{}
	}
	return &x11Idle{binPath: path}
}

func (provider *x11Idle) IdleDuration() (time.Duration, error) {
	output, err := exec.Command(provider.binPath).Output()
	if err != nil {
		return 0, fmt.Errorf("xprintidle: %w", err)
	}
	millis, err := strconv.ParseInt(strings.TrimSpace(string(output)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse xprintidle output: %w", err)
	}
	if millis < 0 {
		millis = 0
	}
	return time.Duration(millis) * time.Millisecond, nil
}

func (unsupportedIdle) IdleDuration() (time.Duration, error) {
	return 0, session.ErrIdleUnsupported
}
