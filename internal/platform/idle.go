package platform

import "time"

// IdleProvider reports how long the user has been without input. Platforms
// without a usable source return session.ErrIdleUnsupported from every call.
type IdleProvider interface {
	IdleDuration() (time.Duration, error)
}

// NewIdleProvider returns the idle source for the current platform.
func NewIdleProvider() IdleProvider {
	return newIdleProvider()
}
