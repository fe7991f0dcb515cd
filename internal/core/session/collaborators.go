package session

import (
	"errors"
	"time"
)

// ErrIdleUnsupported indicates idle detection is not available on this system.
var ErrIdleUnsupported = errors.New("idle detection unsupported")

// Notifier delivers a user-facing notification. Implementations are
// best-effort and must not block; absence of support is a silent no-op.
type Notifier interface {
	Send(title, body string)
}

// SoundPlayer plays the short completion tones. Best-effort, failures are
// swallowed by the implementation.
type SoundPlayer interface {
	PlayFocusComplete()
	PlayBreakComplete()
}

// PermissionRequester asks for notification permission. The controller asks
// once before the first session starts and never blocks on the answer.
type PermissionRequester interface {
	Request() bool
}

// IdleChecker reports the duration of user inactivity.
type IdleChecker interface {
	IdleDuration() (time.Duration, error)
}

type nopNotifier struct{}

func (nopNotifier) Send(string, string) {}

type nopSounds struct{}

func (nopSounds) PlayFocusComplete() {}
func (nopSounds) PlayBreakComplete() {}

type grantedPermissions struct{}

func (grantedPermissions) Request() bool { return true }
