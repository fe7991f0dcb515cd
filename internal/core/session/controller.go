// Package session coordinates the focus/break cycle. A Controller owns one
// work countdown and one break countdown, runs the idle/work/break phase
// machine and persists a composite record so a later process can decide
// which timer to resume and at what phase.
package session

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"restbell/internal/core/countdown"
	"restbell/internal/core/model"
	"restbell/internal/sched"
	"restbell/internal/storage"
)

const defaultIdleCheckInterval = 5 * time.Second

// Options contains runtime collaborators for a Controller. Nil collaborators
// fall back to no-op implementations so the controller works headless.
type Options struct {
	Store     storage.Store
	Scheduler sched.Scheduler

	Notifier    Notifier
	Sounds      SoundPlayer
	Permissions PermissionRequester

	// IdleChecker with a positive IdlePauseAfter enables auto-pausing a
	// work phase once the user has been inactive past the threshold.
	IdleChecker       IdleChecker
	IdlePauseAfter    time.Duration
	IdleCheckInterval time.Duration

	TickInterval time.Duration
}

// Snapshot is an observable view of the controller and both countdowns.
type Snapshot struct {
	Phase    Phase
	BreakDue bool
	Exercise model.ExerciseConfig
	Work     countdown.State
	Break    countdown.State
}

// sessionRecord is the JSON shape persisted under "exercise:<id>:state".
// The seconds fields are pointers so an absent number can fall back to the
// countdown's own persisted snapshot.
type sessionRecord struct {
	Phase        string `json:"phase"`
	BreakDue     bool   `json:"breakDue"`
	WorkRunning  bool   `json:"workRunning"`
	BreakRunning bool   `json:"breakRunning"`
	WorkSeconds  *int   `json:"workSeconds"`
	BreakSeconds *int   `json:"breakSeconds"`
}

// Controller is the session state machine. Mutating methods never hold the
// controller lock across countdown calls, because countdown callbacks
// re-enter the controller.
type Controller struct {
	mu        sync.Mutex
	scheduler sched.Scheduler
	store     storage.Store
	options   Options

	cfg      model.ExerciseConfig
	phase    Phase
	breakDue bool
	work     *countdown.Countdown
	rest     *countdown.Countdown

	lastWorkRunning bool
	lastRestRunning bool

	notifier    Notifier
	sounds      SoundPlayer
	permissions PermissionRequester

	idleChecker     IdleChecker
	idlePauseAfter  time.Duration
	cancelIdle      sched.CancelFunc
	permissionAsked bool

	events []chan Event
	closed bool
}

// New creates a Controller for the given exercise and rehydrates any
// persisted session for it. The controller starts idle unless a prior
// running phase was recovered.
func New(cfg model.ExerciseConfig, options Options) *Controller {
	if options.Scheduler == nil {
		options.Scheduler = sched.New()
	}
	if options.Notifier == nil {
		options.Notifier = nopNotifier{}
	}
	if options.Sounds == nil {
		options.Sounds = nopSounds{}
	}
	if options.Permissions == nil {
		options.Permissions = grantedPermissions{}
	}

	controller := &Controller{
		scheduler:      options.Scheduler,
		store:          options.Store,
		options:        options,
		cfg:            cfg.Normalized(),
		phase:          PhaseIdle,
		notifier:       options.Notifier,
		sounds:         options.Sounds,
		permissions:    options.Permissions,
		idleChecker:    options.IdleChecker,
		idlePauseAfter: options.IdlePauseAfter,
	}

	controller.buildCountdowns(false)
	controller.rehydrate()
	controller.persist()
	controller.startIdleLoop()
	return controller
}

// Subscribe registers a new observer channel.
func (controller *Controller) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	controller.mu.Lock()
	controller.events = append(controller.events, ch)
	controller.mu.Unlock()
	return ch
}

// State returns a snapshot of the controller and both countdowns.
func (controller *Controller) State() Snapshot {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return Snapshot{
		Phase:    controller.phase,
		BreakDue: controller.breakDue,
		Exercise: controller.cfg,
		Work:     controller.work.State(),
		Break:    controller.rest.State(),
	}
}

// StartExercise begins or resumes the focus countdown. From idle it resumes
// at the paused remaining time when one exists, otherwise at the full
// duration; during a work phase it restarts from the current remaining.
// No-op during a break.
func (controller *Controller) StartExercise() {
	controller.mu.Lock()
	if controller.closed || controller.phase == PhaseBreak {
		controller.mu.Unlock()
		return
	}
	entering := controller.phase != PhaseWork
	controller.phase = PhaseWork
	work := controller.work
	permissions := controller.permissions
	askPermission := !controller.permissionAsked
	controller.permissionAsked = true
	controller.mu.Unlock()

	if askPermission {
		go func() {
			if !permissions.Request() {
				log.Printf("session: notification permission not granted")
			}
		}()
	}

	state := work.State()
	if state.RemainingSeconds > 0 && state.RemainingSeconds < state.DurationSeconds {
		work.Resume(state.RemainingSeconds)
	} else {
		work.Start(0)
	}
	controller.persist()
	if entering {
		controller.emit(Event{
			Type:  EventPhaseChange,
			Phase: PhaseWork,
			At:    controller.scheduler.Now(),
		})
	}
}

// StartBreak moves a work phase into the break phase: the work countdown is
// stopped and reset, the break countdown starts fresh. No-op outside work.
func (controller *Controller) StartBreak() {
	controller.mu.Lock()
	if controller.closed || controller.phase != PhaseWork {
		controller.mu.Unlock()
		return
	}
	controller.phase = PhaseBreak
	controller.breakDue = false
	work := controller.work
	rest := controller.rest
	controller.mu.Unlock()

	work.Stop()
	work.Reset(0)
	rest.Reset(0)
	rest.Start(0)
	controller.persist()
	controller.emit(Event{
		Type:             EventPhaseChange,
		Phase:            PhaseBreak,
		RemainingSeconds: rest.State().RemainingSeconds,
		At:               controller.scheduler.Now(),
	})
}

// Pause stops the work countdown and returns to idle, keeping the remaining
// time for a later resume. The breakDue latch is untouched. No-op outside
// work.
func (controller *Controller) Pause() {
	controller.mu.Lock()
	if controller.closed || controller.phase != PhaseWork {
		controller.mu.Unlock()
		return
	}
	controller.phase = PhaseIdle
	breakDue := controller.breakDue
	work := controller.work
	controller.mu.Unlock()

	work.Stop()
	controller.persist()
	controller.emit(Event{
		Type:     EventPhaseChange,
		Phase:    PhaseIdle,
		BreakDue: breakDue,
		At:       controller.scheduler.Now(),
	})
}

// Reset stops and resets both countdowns, clears the breakDue latch and
// returns to idle.
func (controller *Controller) Reset() {
	controller.mu.Lock()
	if controller.closed {
		controller.mu.Unlock()
		return
	}
	controller.phase = PhaseIdle
	controller.breakDue = false
	work := controller.work
	rest := controller.rest
	controller.mu.Unlock()

	work.Reset(0)
	rest.Reset(0)
	controller.persist()
	controller.emit(Event{
		Type:  EventPhaseChange,
		Phase: PhaseIdle,
		At:    controller.scheduler.Now(),
	})
}

// SetExercise switches the active exercise configuration. The controller
// force-resets to idle, clears the breakDue latch and discards in-flight
// countdowns; nothing is migrated between configurations. The old
// exercise's persisted session is reset too, so re-selecting it later
// starts clean rather than resurrecting a latched break.
func (controller *Controller) SetExercise(cfg model.ExerciseConfig) {
	controller.mu.Lock()
	if controller.closed {
		controller.mu.Unlock()
		return
	}
	controller.phase = PhaseIdle
	controller.breakDue = false
	controller.persistLocked()
	oldWork := controller.work
	oldRest := controller.rest
	controller.mu.Unlock()

	oldWork.Reset(0)
	oldRest.Reset(0)

	controller.mu.Lock()
	controller.cfg = cfg.Normalized()
	controller.lastWorkRunning = false
	controller.lastRestRunning = false
	controller.buildCountdowns(true)
	controller.persistLocked()
	controller.mu.Unlock()

	controller.emit(Event{
		Type:  EventPhaseChange,
		Phase: PhaseIdle,
		At:    controller.scheduler.Now(),
	})
}

// Wake forces both countdowns to re-evaluate against the wall clock. Hosts
// call this when the process regains observability.
func (controller *Controller) Wake() {
	controller.mu.Lock()
	work := controller.work
	rest := controller.rest
	controller.mu.Unlock()
	work.Wake()
	rest.Wake()
}

// Close detaches timers and observers without touching persisted state, so
// the next process can rehydrate the session. Idempotent.
func (controller *Controller) Close() {
	controller.mu.Lock()
	if controller.closed {
		controller.mu.Unlock()
		return
	}
	controller.closed = true
	cancelIdle := controller.cancelIdle
	controller.cancelIdle = nil
	work := controller.work
	rest := controller.rest
	events := controller.events
	controller.events = nil
	controller.mu.Unlock()

	if cancelIdle != nil {
		cancelIdle()
	}
	work.Suspend()
	rest.Suspend()
	for _, ch := range events {
		close(ch)
	}
}

// buildCountdowns creates the two owned countdowns for the current
// configuration. fresh skips the countdowns' own persisted-state resume,
// used when switching configurations.
func (controller *Controller) buildCountdowns(fresh bool) {
	controller.work = countdown.New(countdown.Options{
		DurationSeconds: controller.cfg.WorkSeconds,
		Store:           controller.store,
		Key:             controller.workKey(),
		Scheduler:       controller.scheduler,
		AutoRestart:     true,
		TickInterval:    controller.options.TickInterval,
		NoResume:        fresh,
	})
	controller.rest = countdown.New(countdown.Options{
		DurationSeconds: controller.cfg.BreakSeconds,
		Store:           controller.store,
		Key:             controller.restKey(),
		Scheduler:       controller.scheduler,
		TickInterval:    controller.options.TickInterval,
		NoResume:        fresh,
	})
	controller.work.SetOnComplete(controller.handleWorkComplete)
	controller.rest.SetOnComplete(controller.handleBreakComplete)
	controller.work.SetOnChange(func(state countdown.State) {
		controller.countdownChanged(PhaseWork, state)
	})
	controller.rest.SetOnChange(func(state countdown.State) {
		controller.countdownChanged(PhaseBreak, state)
	})
}

// handleWorkComplete latches breakDue and fires the reminder side effects.
// The work countdown restarts itself, so a fresh decision window keeps
// counting while the latch stays set until the user acts.
func (controller *Controller) handleWorkComplete() {
	controller.mu.Lock()
	if controller.closed || controller.phase != PhaseWork {
		controller.mu.Unlock()
		return
	}
	controller.breakDue = true
	cfg := controller.cfg
	notifier := controller.notifier
	sounds := controller.sounds
	controller.persistLocked()
	controller.mu.Unlock()

	controller.emit(Event{
		Type:     EventBreakDue,
		Phase:    PhaseWork,
		BreakDue: true,
		At:       controller.scheduler.Now(),
	})
	notifier.Send(cfg.NotifyTitle, cfg.NotifyBody)
	sounds.PlayFocusComplete()
}

// handleBreakComplete returns to the work phase with both countdowns back
// at their full durations.
func (controller *Controller) handleBreakComplete() {
	controller.mu.Lock()
	if controller.closed || controller.phase != PhaseBreak {
		controller.mu.Unlock()
		return
	}
	controller.phase = PhaseWork
	controller.breakDue = false
	work := controller.work
	rest := controller.rest
	sounds := controller.sounds
	controller.mu.Unlock()

	rest.Reset(0)
	work.Reset(0)
	work.Start(0)
	controller.persist()
	controller.emit(Event{
		Type:  EventPhaseChange,
		Phase: PhaseWork,
		At:    controller.scheduler.Now(),
	})
	sounds.PlayBreakComplete()
}

// countdownChanged forwards progress to observers and refreshes the
// composite record whenever a running flag flips, which covers the work
// countdown's asynchronous auto-restart.
func (controller *Controller) countdownChanged(source Phase, state countdown.State) {
	controller.mu.Lock()
	if controller.closed {
		controller.mu.Unlock()
		return
	}
	var flipped bool
	if source == PhaseWork {
		flipped = state.Running != controller.lastWorkRunning
		controller.lastWorkRunning = state.Running
	} else {
		flipped = state.Running != controller.lastRestRunning
		controller.lastRestRunning = state.Running
	}
	phase := controller.phase
	breakDue := controller.breakDue
	if flipped {
		controller.persistLocked()
	}
	controller.mu.Unlock()

	if phase == source && state.Running {
		controller.emit(Event{
			Type:             EventProgress,
			Phase:            phase,
			BreakDue:         breakDue,
			RemainingSeconds: state.RemainingSeconds,
			At:               state.LastUpdated,
		})
	}
}

// rehydrate reconciles the composite record with the countdowns' own
// resumed state. A countdown that recovered a live deadline wins, since its
// remaining time is drift-corrected; the composite numbers serve as the
// fallback when no deadline survived. Any parse failure means no prior
// session.
//
// Phase and breakDue recoveries go through setRecovered so a resumed
// countdown already ticking on a real scheduler never observes them
// mid-write, and the recovery lands before the countdown call that depends
// on it.
func (controller *Controller) rehydrate() {
	if controller.store == nil {
		return
	}

	raw, err := controller.store.Get(controller.sessionKey())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("session: read %s: %v", controller.sessionKey(), err)
		}
		controller.stopResumedCountdowns()
		return
	}
	var record sessionRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		log.Printf("session: corrupt state for exercise %s, starting fresh: %v", controller.cfg.ID, err)
		controller.stopResumedCountdowns()
		return
	}

	switch Phase(record.Phase) {
	case PhaseWork:
		if record.WorkRunning {
			controller.resumeWork(record.WorkSeconds, record.BreakDue)
			return
		}
		if record.BreakDue {
			controller.setRecovered(PhaseIdle, true)
		}
		controller.stopResumedCountdowns()
	case PhaseBreak:
		if record.BreakRunning {
			controller.resumeBreak(record.BreakSeconds)
			return
		}
		controller.stopResumedCountdowns()
	case PhaseIdle:
		if record.BreakDue {
			controller.setRecovered(PhaseIdle, true)
		}
		controller.stopResumedCountdowns()
	default:
		controller.stopResumedCountdowns()
	}
}

func (controller *Controller) setRecovered(phase Phase, breakDue bool) {
	controller.mu.Lock()
	controller.phase = phase
	controller.breakDue = breakDue
	controller.mu.Unlock()
}

// resumeWork continues a persisted work phase. A remaining time that
// already reached zero while the process was away latches breakDue and
// restarts a full interval, mirroring the live auto-restart.
func (controller *Controller) resumeWork(compositeSeconds *int, breakDue bool) {
	if controller.work.State().Running {
		controller.setRecovered(PhaseWork, breakDue)
	} else {
		remaining := controller.workResumePoint(compositeSeconds)
		if remaining <= 0 {
			controller.setRecovered(PhaseWork, true)
			controller.work.Start(0)
		} else {
			controller.setRecovered(PhaseWork, breakDue)
			controller.work.Resume(remaining)
		}
	}
	if controller.rest.State().Running {
		controller.rest.Stop()
	}
}

func (controller *Controller) workResumePoint(compositeSeconds *int) int {
	snapshot := countdown.ReadSnapshot(controller.store, controller.workKey(),
		controller.cfg.WorkSeconds, controller.scheduler.Now())
	if !snapshot.Target.IsZero() {
		// A persisted deadline wins over any stale remaining number.
		return snapshot.RemainingSeconds
	}
	if compositeSeconds != nil {
		return *compositeSeconds
	}
	return snapshot.RemainingSeconds
}

// resumeBreak continues a persisted break phase, or treats an elapsed break
// as completed: back to work at full durations.
func (controller *Controller) resumeBreak(compositeSeconds *int) {
	if controller.rest.State().Running {
		controller.setRecovered(PhaseBreak, false)
	} else {
		snapshot := countdown.ReadSnapshot(controller.store, controller.restKey(),
			controller.cfg.BreakSeconds, controller.scheduler.Now())
		remaining := snapshot.RemainingSeconds
		if snapshot.Target.IsZero() && compositeSeconds != nil {
			remaining = *compositeSeconds
		}
		if remaining <= 0 {
			controller.setRecovered(PhaseWork, false)
			controller.rest.Reset(0)
			controller.work.Reset(0)
			controller.work.Start(0)
			return
		}
		controller.setRecovered(PhaseBreak, false)
		controller.rest.Resume(remaining)
	}
	if controller.work.State().Running {
		controller.work.Stop()
	}
}

func (controller *Controller) stopResumedCountdowns() {
	if controller.work.State().Running {
		controller.work.Stop()
	}
	if controller.rest.State().Running {
		controller.rest.Stop()
	}
}

func (controller *Controller) startIdleLoop() {
	if controller.idleChecker == nil || controller.idlePauseAfter <= 0 {
		return
	}
	interval := controller.options.IdleCheckInterval
	if interval <= 0 {
		interval = defaultIdleCheckInterval
	}
	controller.cancelIdle = controller.scheduler.Repeating(interval, controller.checkIdle)
}

func (controller *Controller) checkIdle() {
	controller.mu.Lock()
	checker := controller.idleChecker
	threshold := controller.idlePauseAfter
	phase := controller.phase
	controller.mu.Unlock()
	if checker == nil || phase != PhaseWork {
		return
	}

	idleFor, err := checker.IdleDuration()
	if err != nil {
		if errors.Is(err, ErrIdleUnsupported) {
			controller.mu.Lock()
			controller.idleChecker = nil
			cancelIdle := controller.cancelIdle
			controller.cancelIdle = nil
			controller.mu.Unlock()
			if cancelIdle != nil {
				cancelIdle()
			}
		}
		controller.emit(Event{
			Type:    EventIdleError,
			Phase:   phase,
			Message: err.Error(),
			At:      controller.scheduler.Now(),
		})
		return
	}
	if idleFor < threshold {
		return
	}

	controller.Pause()
	controller.emit(Event{
		Type:    EventIdlePause,
		Phase:   PhaseIdle,
		Message: "paused after inactivity",
		At:      controller.scheduler.Now(),
	})
}

func (controller *Controller) persist() {
	controller.mu.Lock()
	controller.persistLocked()
	controller.mu.Unlock()
}

func (controller *Controller) persistLocked() {
	if controller.store == nil {
		return
	}

	workState := controller.work.State()
	restState := controller.rest.State()
	record := sessionRecord{
		Phase:        string(controller.phase),
		BreakDue:     controller.breakDue,
		WorkRunning:  workState.Running,
		BreakRunning: restState.Running,
		WorkSeconds:  &workState.RemainingSeconds,
		BreakSeconds: &restState.RemainingSeconds,
	}
	serialized, err := json.Marshal(record)
	if err != nil {
		log.Printf("session: marshal state for exercise %s: %v", controller.cfg.ID, err)
		return
	}
	if err := controller.store.Set(controller.sessionKey(), string(serialized)); err != nil {
		log.Printf("session: persist %s: %v", controller.sessionKey(), err)
	}
}

func (controller *Controller) emit(event Event) {
	controller.mu.Lock()
	for _, ch := range controller.events {
		select {
		case ch <- event:
		default:
		}
	}
	controller.mu.Unlock()
}

func (controller *Controller) sessionKey() string {
	return "exercise:" + controller.cfg.ID + ":state"
}

func (controller *Controller) workKey() string {
	return "exercise:" + controller.cfg.ID + ":work"
}

func (controller *Controller) restKey() string {
	return "exercise:" + controller.cfg.ID + ":break"
}
