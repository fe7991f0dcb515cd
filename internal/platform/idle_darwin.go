//go:build darwin

package platform

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"restbell/internal/core/session"
)

// ioregIdle reads HIDIdleTime from the IOKit registry, reported in
// nanoseconds.
type ioregIdle struct{}

func newIdleProvider() IdleProvider {
	return ioregIdle{}
}

func (ioregIdle) IdleDuration() (time.Duration, error) {
	output, err := exec.Command("ioreg", "-c", "IOHIDSystem", "-d", "4", "-k", "HIDIdleTime").Output()
	if err != nil {
		return 0, session.ErrIdleUnsupported
	}
	for _, line := range strings.Split(string(output), "\n") {
		if !strings.Contains(line, "HIDIdleTime") {
			continue
		}
		fields := strings.Split(line, "=")
		if len(fields) != 2 {
			continue
		}
		nanos, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse HIDIdleTime: %w", err)
		}
		return time.Duration(nanos), nil
	}
	return 0, fmt.Errorf("HIDIdleTime not present in ioreg output")
}
