// Package countdown implements a single drift-corrected countdown. The
// remaining time is always recomputed from an absolute deadline, so missed
// ticks while the process was suspended never skew the clock, and persisted
// state lets a later process resume a run in flight.
package countdown

import (
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"restbell/internal/sched"
	"restbell/internal/storage"
)

// autoRestartDelay keeps the restart outside the completing evaluation.
const autoRestartDelay = 50 * time.Millisecond

// Options configures a Countdown.
type Options struct {
	DurationSeconds int

	// Store and Key enable persistence. Leaving either unset keeps the
	// countdown in-memory only.
	Store storage.Store
	Key   string

	// Scheduler drives ticking; nil selects the runtime timer scheduler.
	Scheduler sched.Scheduler

	// AutoRestart begins a fresh run at the configured duration after each
	// completion.
	AutoRestart bool

	// TickInterval defaults to one second.
	TickInterval time.Duration

	// NoResume skips adopting persisted state on construction. Used by
	// owners that decide resume themselves from an aggregate record.
	NoResume bool
}

// State is an observable snapshot of a Countdown.
type State struct {
	DurationSeconds  int
	RemainingSeconds int
	Target           time.Time // zero when not running
	Running          bool
	LastUpdated      time.Time
}

// Countdown is a single countdown timer. All callbacks fire outside the
// internal lock, so a completion handler may call back into the countdown.
type Countdown struct {
	mu           sync.Mutex
	scheduler    sched.Scheduler
	store        storage.Store
	key          string
	autoRestart  bool
	tickInterval time.Duration

	duration    int
	remaining   int
	target      time.Time
	running     bool
	lastUpdated time.Time
	completed   bool

	cancelTick    sched.CancelFunc
	cancelRestart sched.CancelFunc

	onComplete func()
	onChange   func(State)
}

// New creates a Countdown. When persistence is configured and NoResume is
// not set, previously persisted state is adopted: a future deadline resumes
// the run live, a past deadline resumes stopped at zero, and a bare
// remaining value resumes idle capped to the configured duration.
func New(options Options) *Countdown {
	scheduler := options.Scheduler
	if scheduler == nil {
		scheduler = sched.New()
	}
	tickInterval := options.TickInterval
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	duration := options.DurationSeconds
	if duration < 0 {
		duration = 0
	}

	countdown := &Countdown{
		scheduler:    scheduler,
		store:        options.Store,
		key:          options.Key,
		autoRestart:  options.AutoRestart,
		tickInterval: tickInterval,
		duration:     duration,
		remaining:    duration,
	}

	if countdown.store != nil && countdown.key != "" && !options.NoResume {
		countdown.resume()
	}
	return countdown
}

// SetOnComplete replaces the completion callback. At most one callback is
// registered; a run already in progress is unaffected.
func (countdown *Countdown) SetOnComplete(fn func()) {
	countdown.mu.Lock()
	countdown.onComplete = fn
	countdown.mu.Unlock()
}

// SetOnChange replaces the change observer, invoked with a state snapshot
// after every evaluation or explicit mutation.
func (countdown *Countdown) SetOnChange(fn func(State)) {
	countdown.mu.Lock()
	countdown.onChange = fn
	countdown.mu.Unlock()
}

// State returns a snapshot of the current state.
func (countdown *Countdown) State() State {
	countdown.mu.Lock()
	defer countdown.mu.Unlock()
	return countdown.stateLocked()
}

// Start begins a fresh run. A positive durationSeconds reconfigures the
// countdown first; zero or negative reuses the configured duration. Any run
// in progress is cancelled. The state is evaluated once synchronously so
// observers see the correct remaining time before the first tick.
func (countdown *Countdown) Start(durationSeconds int) {
	countdown.startRun(durationSeconds, -1)
}

// Resume begins a run of remainingSeconds without reconfiguring the
// countdown, clamped to the configured duration. Used to continue a
// previously interrupted run.
func (countdown *Countdown) Resume(remainingSeconds int) {
	if remainingSeconds < 0 {
		remainingSeconds = 0
	}
	countdown.startRun(0, remainingSeconds)
}

func (countdown *Countdown) startRun(durationSeconds, remainingSeconds int) {
	countdown.mu.Lock()
	countdown.cancelRestartLocked()
	countdown.stopTickLocked()

	if durationSeconds > 0 {
		countdown.duration = durationSeconds
	}
	length := countdown.duration
	if remainingSeconds >= 0 {
		if remainingSeconds > countdown.duration {
			remainingSeconds = countdown.duration
		}
		length = remainingSeconds
	}

	now := countdown.scheduler.Now()
	countdown.target = now.Add(time.Duration(length) * time.Second)
	countdown.running = true
	countdown.completed = false
	countdown.remaining = length
	countdown.lastUpdated = now
	countdown.startTickLocked()

	completedNow := countdown.evaluateLocked(now)
	countdown.persistLocked()
	if completedNow && countdown.autoRestart {
		countdown.scheduleRestartLocked()
	}
	state := countdown.stateLocked()
	onChange := countdown.onChange
	onComplete := countdown.onComplete
	countdown.mu.Unlock()

	if onChange != nil {
		onChange(state)
	}
	if completedNow && onComplete != nil {
		onComplete()
	}
}

// Stop performs one final evaluation, cancels the periodic tick and any
// pending auto-restart, clears the deadline and persists. Idempotent.
func (countdown *Countdown) Stop() {
	countdown.mu.Lock()
	countdown.cancelRestartLocked()

	wasRunning := countdown.running
	now := countdown.scheduler.Now()
	completedNow := countdown.evaluateLocked(now)
	countdown.stopTickLocked()
	countdown.target = time.Time{}
	countdown.running = false
	if wasRunning {
		countdown.lastUpdated = now
		countdown.persistLocked()
	}
	state := countdown.stateLocked()
	onChange := countdown.onChange
	onComplete := countdown.onComplete
	countdown.mu.Unlock()

	if wasRunning && onChange != nil {
		onChange(state)
	}
	if completedNow && onComplete != nil {
		onComplete()
	}
}

// Reset is Stop plus restoring the remaining time to the full duration. A
// positive durationSeconds reconfigures the countdown first.
func (countdown *Countdown) Reset(durationSeconds int) {
	countdown.mu.Lock()
	countdown.cancelRestartLocked()
	countdown.stopTickLocked()

	if durationSeconds > 0 {
		countdown.duration = durationSeconds
	}
	countdown.target = time.Time{}
	countdown.running = false
	countdown.completed = false
	countdown.remaining = countdown.duration
	countdown.lastUpdated = countdown.scheduler.Now()
	countdown.persistLocked()
	state := countdown.stateLocked()
	onChange := countdown.onChange
	countdown.mu.Unlock()

	if onChange != nil {
		onChange(state)
	}
}

// Wake forces an immediate re-evaluation against the wall clock. Hosts call
// this when the process regains observability (window focus, resume from
// sleep) since periodic ticks are not guaranteed while suspended.
func (countdown *Countdown) Wake() {
	countdown.evaluate()
}

// Suspend cancels scheduled callbacks without touching state or storage,
// so a later process can resume from the persisted deadline. Used at
// shutdown.
func (countdown *Countdown) Suspend() {
	countdown.mu.Lock()
	countdown.cancelRestartLocked()
	countdown.stopTickLocked()
	countdown.mu.Unlock()
}

func (countdown *Countdown) tick() {
	countdown.evaluate()
}

func (countdown *Countdown) evaluate() {
	countdown.mu.Lock()
	if !countdown.running {
		countdown.mu.Unlock()
		return
	}
	now := countdown.scheduler.Now()
	completedNow := countdown.evaluateLocked(now)
	countdown.persistLocked()
	if completedNow && countdown.autoRestart {
		countdown.scheduleRestartLocked()
	}
	state := countdown.stateLocked()
	onChange := countdown.onChange
	onComplete := countdown.onComplete
	countdown.mu.Unlock()

	if onChange != nil {
		onChange(state)
	}
	if completedNow && onComplete != nil {
		onComplete()
	}
}

// evaluateLocked recomputes the remaining time from the deadline and stops
// the run when it has passed. Returns true when this evaluation completed
// the run; the completion callback fires at most once per run.
func (countdown *Countdown) evaluateLocked(now time.Time) bool {
	if !countdown.running || countdown.target.IsZero() {
		return false
	}
	countdown.remaining = remainingSeconds(countdown.target, now, countdown.duration)
	countdown.lastUpdated = now
	if countdown.remaining > 0 {
		return false
	}

	countdown.stopTickLocked()
	countdown.target = time.Time{}
	countdown.running = false
	if countdown.completed {
		return false
	}
	countdown.completed = true
	return true
}

func (countdown *Countdown) resume() {
	now := countdown.scheduler.Now()
	snapshot := ReadSnapshot(countdown.store, countdown.key, countdown.duration, now)

	countdown.mu.Lock()
	countdown.remaining = snapshot.RemainingSeconds
	countdown.lastUpdated = snapshot.LastUpdated
	if snapshot.Running {
		countdown.target = snapshot.Target
		countdown.running = true
		countdown.lastUpdated = now
		countdown.startTickLocked()
	}
	// Persisted records are left as-is; the next mutation rewrites them.
	countdown.mu.Unlock()
}

func (countdown *Countdown) scheduleRestartLocked() {
	countdown.cancelRestartLocked()
	countdown.cancelRestart = countdown.scheduler.Once(autoRestartDelay, func() {
		countdown.Start(0)
	})
}

func (countdown *Countdown) startTickLocked() {
	countdown.stopTickLocked()
	countdown.cancelTick = countdown.scheduler.Repeating(countdown.tickInterval, countdown.tick)
}

func (countdown *Countdown) stopTickLocked() {
	if countdown.cancelTick != nil {
		countdown.cancelTick()
		countdown.cancelTick = nil
	}
}

func (countdown *Countdown) cancelRestartLocked() {
	if countdown.cancelRestart != nil {
		countdown.cancelRestart()
		countdown.cancelRestart = nil
	}
}

func (countdown *Countdown) stateLocked() State {
	return State{
		DurationSeconds:  countdown.duration,
		RemainingSeconds: countdown.remaining,
		Target:           countdown.target,
		Running:          countdown.running,
		LastUpdated:      countdown.lastUpdated,
	}
}

func (countdown *Countdown) persistLocked() {
	if countdown.store == nil || countdown.key == "" {
		return
	}

	if err := countdown.store.Set(countdown.key, strconv.Itoa(countdown.remaining)); err != nil {
		log.Printf("countdown: persist %s: %v", countdown.key, err)
	}

	meta := metaRecord{
		IsRunning:   countdown.running,
		LastUpdated: countdown.lastUpdated.UnixMilli(),
	}
	if !countdown.target.IsZero() {
		targetMillis := countdown.target.UnixMilli()
		meta.TargetTimestamp = &targetMillis
	}
	serialized, err := json.Marshal(meta)
	if err != nil {
		log.Printf("countdown: marshal meta for %s: %v", countdown.key, err)
		return
	}
	if err := countdown.store.Set(countdown.key+metaSuffix, string(serialized)); err != nil {
		log.Printf("countdown: persist %s: %v", countdown.key+metaSuffix, err)
	}
}
