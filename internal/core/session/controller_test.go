package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restbell/internal/core/model"
	"restbell/internal/sched"
	"restbell/internal/storage"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu    sync.Mutex
	sends []string
}

func (notifier *recordingNotifier) Send(title, _ string) {
	notifier.mu.Lock()
	notifier.sends = append(notifier.sends, title)
	notifier.mu.Unlock()
}

func (notifier *recordingNotifier) Request() bool { return true }

func (notifier *recordingNotifier) sendCount() int {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	return len(notifier.sends)
}

type recordingSounds struct {
	mu    sync.Mutex
	focus int
	rest  int
}

func (sounds *recordingSounds) PlayFocusComplete() {
	sounds.mu.Lock()
	sounds.focus++
	sounds.mu.Unlock()
}

func (sounds *recordingSounds) PlayBreakComplete() {
	sounds.mu.Lock()
	sounds.rest++
	sounds.mu.Unlock()
}

func (sounds *recordingSounds) counts() (int, int) {
	sounds.mu.Lock()
	defer sounds.mu.Unlock()
	return sounds.focus, sounds.rest
}

type fakeIdle struct {
	mu      sync.Mutex
	idleFor time.Duration
	err     error
}

func (idle *fakeIdle) IdleDuration() (time.Duration, error) {
	idle.mu.Lock()
	defer idle.mu.Unlock()
	return idle.idleFor, idle.err
}

func testExercise(workSeconds, breakSeconds int) model.ExerciseConfig {
	return model.ExerciseConfig{
		ID:           "test-exercise",
		Name:         "Test",
		WorkSeconds:  workSeconds,
		BreakSeconds: breakSeconds,
		NotifyTitle:  "Break due",
		NotifyBody:   "Take a break.",
	}
}

type testRig struct {
	controller *Controller
	manual     *sched.Manual
	store      *storage.MemoryStore
	notifier   *recordingNotifier
	sounds     *recordingSounds
}

func newTestRig(t *testing.T, cfg model.ExerciseConfig) *testRig {
	t.Helper()
	rig := &testRig{
		manual:   sched.NewManual(testEpoch),
		store:    storage.NewMemory(),
		notifier: &recordingNotifier{},
		sounds:   &recordingSounds{},
	}
	rig.controller = New(cfg, Options{
		Store:     rig.store,
		Scheduler: rig.manual,
		Notifier:  rig.notifier,
		Sounds:    rig.sounds,
	})
	t.Cleanup(rig.controller.Close)
	return rig
}

func TestStartsIdle(t *testing.T) {
	rig := newTestRig(t, testExercise(60, 20))

	state := rig.controller.State()
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.False(t, state.BreakDue)
	assert.False(t, state.Work.Running)
	assert.False(t, state.Break.Running)
	assert.Equal(t, 60, state.Work.RemainingSeconds)
	assert.Equal(t, 20, state.Break.RemainingSeconds)
}

func TestStartExerciseRunsWorkCountdown(t *testing.T) {
	rig := newTestRig(t, testExercise(60, 20))

	rig.controller.StartExercise()
	state := rig.controller.State()
	require.Equal(t, PhaseWork, state.Phase)
	require.True(t, state.Work.Running)

	rig.manual.Advance(10 * time.Second)
	assert.Equal(t, 50, rig.controller.State().Work.RemainingSeconds)
}

func TestWorkCompletionLatchesBreakDueAndRestarts(t *testing.T) {
	rig := newTestRig(t, testExercise(2, 20))

	rig.controller.StartExercise()
	rig.manual.Advance(2*time.Second + 200*time.Millisecond)

	state := rig.controller.State()
	assert.Equal(t, PhaseWork, state.Phase)
	assert.True(t, state.BreakDue)
	// The auto-restart already opened a fresh decision window.
	assert.True(t, state.Work.Running)
	assert.Equal(t, 2, state.Work.RemainingSeconds)

	assert.Equal(t, 1, rig.notifier.sendCount())
	focus, rest := rig.sounds.counts()
	assert.Equal(t, 1, focus)
	assert.Zero(t, rest)

	// Ignoring the reminder keeps the latch set through further cycles.
	rig.manual.Advance(2*time.Second + 200*time.Millisecond)
	state = rig.controller.State()
	assert.True(t, state.BreakDue)
	assert.Equal(t, 2, rig.notifier.sendCount())
}

func TestStartBreakStopsWorkAndRunsBreak(t *testing.T) {
	rig := newTestRig(t, testExercise(60, 20))

	rig.controller.StartExercise()
	rig.manual.Advance(10 * time.Second)
	rig.controller.StartBreak()

	state := rig.controller.State()
	assert.Equal(t, PhaseBreak, state.Phase)
	assert.False(t, state.BreakDue)
	assert.False(t, state.Work.Running)
	assert.Equal(t, 60, state.Work.RemainingSeconds)
	assert.True(t, state.Break.Running)
	assert.Equal(t, 20, state.Break.RemainingSeconds)
}

func TestStartBreakOutsideWorkIsNoOp(t *testing.T) {
	rig := newTestRig(t, testExercise(60, 20))

	rig.controller.StartBreak()
	assert.Equal(t, PhaseIdle, rig.controller.State().Phase)
}

func TestBreakCompletionReturnsToWork(t *testing.T) {
	rig := newTestRig(t, testExercise(60, 2))

	rig.controller.StartExercise()
	rig.controller.StartBreak()
	rig.manual.Advance(2*time.Second + 100*time.Millisecond)

	state := rig.controller.State()
	assert.Equal(t, PhaseWork, state.Phase)
	assert.False(t, state.BreakDue)
	assert.True(t, state.Work.Running)
	assert.Equal(t, 60, state.Work.RemainingSeconds)
	assert.False(t, state.Break.Running)
	assert.Equal(t, 2, state.Break.RemainingSeconds)

	_, rest := rig.sounds.counts()
	assert.Equal(t, 1, rest)
}

func TestPauseKeepsResumePoint(t *testing.T) {
	rig := newTestRig(t, testExercise(60, 20))

	rig.controller.StartExercise()
	rig.manual.Advance(10 * time.Second)
	rig.controller.Pause()

	state := rig.controller.State()
	require.Equal(t, PhaseIdle, state.Phase)
	require.False(t, state.Work.Running)
	require.Equal(t, 50, state.Work.RemainingSeconds)

	// Time passing while paused changes nothing.
	rig.manual.Advance(time.Minute)
	assert.Equal(t, 50, rig.controller.State().Work.RemainingSeconds)

	rig.controller.StartExercise()
	state = rig.controller.State()
	assert.True(t, state.Work.Running)
	assert.Equal(t, 50, state.Work.RemainingSeconds)
}

func TestResetClearsEverything(t *testing.T) {
	rig := newTestRig(t, testExercise(2, 20))

	rig.controller.StartExercise()
	rig.manual.Advance(2*time.Second + 200*time.Millisecond)
	require.True(t, rig.controller.State().BreakDue)

	rig.controller.Reset()
	state := rig.controller.State()
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.False(t, state.BreakDue)
	assert.False(t, state.Work.Running)
	assert.False(t, state.Break.Running)
	assert.Equal(t, 2, state.Work.RemainingSeconds)
	assert.Equal(t, 20, state.Break.RemainingSeconds)
}

func TestSetExerciseForcesIdle(t *testing.T) {
	rig := newTestRig(t, testExercise(2, 20))

	rig.controller.StartExercise()
	rig.manual.Advance(2*time.Second + 200*time.Millisecond)
	require.True(t, rig.controller.State().BreakDue)

	rig.controller.SetExercise(model.ExerciseConfig{
		ID:           "other",
		Name:         "Other",
		WorkSeconds:  1200,
		BreakSeconds: 120,
	})

	state := rig.controller.State()
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.False(t, state.BreakDue)
	assert.False(t, state.Work.Running)
	assert.False(t, state.Break.Running)
	assert.Equal(t, 1200, state.Work.RemainingSeconds)
	assert.Equal(t, 120, state.Break.RemainingSeconds)
}

func TestSwitchingExercisesClearsTheOldSession(t *testing.T) {
	rig := newTestRig(t, testExercise(2, 20))

	rig.controller.StartExercise()
	rig.manual.Advance(2*time.Second + 200*time.Millisecond)
	require.True(t, rig.controller.State().BreakDue)

	rig.controller.SetExercise(model.ExerciseConfig{
		ID:           "other",
		Name:         "Other",
		WorkSeconds:  1200,
		BreakSeconds: 120,
	})
	rig.controller.Close()

	// Coming back to the first exercise must not resurrect the latched
	// break from before the switch.
	revived := New(testExercise(2, 20), Options{Store: rig.store, Scheduler: rig.manual})
	defer revived.Close()

	state := revived.State()
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.False(t, state.BreakDue)
	assert.False(t, state.Work.Running)
	assert.False(t, state.Break.Running)
	assert.Equal(t, 2, state.Work.RemainingSeconds)
}

func TestRehydrationPausedWithBreakDueKeepsLatch(t *testing.T) {
	rig := newTestRig(t, testExercise(2, 20))

	rig.controller.StartExercise()
	rig.manual.Advance(2*time.Second + 200*time.Millisecond)
	require.True(t, rig.controller.State().BreakDue)
	rig.controller.Pause()
	rig.controller.Close()

	revived := New(testExercise(2, 20), Options{Store: rig.store, Scheduler: rig.manual})
	defer revived.Close()

	state := revived.State()
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.True(t, state.BreakDue)
	assert.False(t, state.Work.Running)
	assert.False(t, state.Break.Running)
}

func TestRehydrationResumesRunningWork(t *testing.T) {
	rig := newTestRig(t, testExercise(60, 20))

	rig.controller.StartExercise()
	rig.manual.Advance(10 * time.Second)
	rig.controller.Close()

	revived := New(testExercise(60, 20), Options{Store: rig.store, Scheduler: rig.manual})
	defer revived.Close()

	state := revived.State()
	assert.Equal(t, PhaseWork, state.Phase)
	assert.True(t, state.Work.Running)
	assert.InDelta(t, 50, state.Work.RemainingSeconds, 1)
	assert.False(t, state.BreakDue)
	assert.False(t, state.Break.Running)
}

func TestRehydrationElapsedWorkLatchesBreakDue(t *testing.T) {
	rig := newTestRig(t, testExercise(60, 20))

	rig.controller.StartExercise()
	rig.controller.Close()
	rig.manual.Jump(2 * time.Hour)

	revived := New(testExercise(60, 20), Options{Store: rig.store, Scheduler: rig.manual})
	defer revived.Close()

	state := revived.State()
	assert.Equal(t, PhaseWork, state.Phase)
	assert.True(t, state.BreakDue)
	assert.True(t, state.Work.Running)
	assert.Equal(t, 60, state.Work.RemainingSeconds)
}

func TestRehydrationResumesRunningBreak(t *testing.T) {
	rig := newTestRig(t, testExercise(60, 300))

	rig.controller.StartExercise()
	rig.controller.StartBreak()
	rig.manual.Advance(10 * time.Second)
	rig.controller.Close()

	revived := New(testExercise(60, 300), Options{Store: rig.store, Scheduler: rig.manual})
	defer revived.Close()

	state := revived.State()
	assert.Equal(t, PhaseBreak, state.Phase)
	assert.True(t, state.Break.Running)
	assert.InDelta(t, 290, state.Break.RemainingSeconds, 1)
	assert.False(t, state.Work.Running)
}

func TestRehydrationElapsedBreakReturnsToWork(t *testing.T) {
	rig := newTestRig(t, testExercise(60, 20))

	rig.controller.StartExercise()
	rig.controller.StartBreak()
	rig.controller.Close()
	rig.manual.Jump(time.Hour)

	revived := New(testExercise(60, 20), Options{Store: rig.store, Scheduler: rig.manual})
	defer revived.Close()

	state := revived.State()
	assert.Equal(t, PhaseWork, state.Phase)
	assert.False(t, state.BreakDue)
	assert.True(t, state.Work.Running)
	assert.Equal(t, 60, state.Work.RemainingSeconds)
	assert.False(t, state.Break.Running)
	assert.Equal(t, 20, state.Break.RemainingSeconds)
}

func TestRehydrationPausedWorkStaysIdle(t *testing.T) {
	rig := newTestRig(t, testExercise(60, 20))

	rig.controller.StartExercise()
	rig.manual.Advance(10 * time.Second)
	rig.controller.Pause()
	rig.controller.Close()

	revived := New(testExercise(60, 20), Options{Store: rig.store, Scheduler: rig.manual})
	defer revived.Close()

	state := revived.State()
	require.Equal(t, PhaseIdle, state.Phase)
	require.False(t, state.Work.Running)
	assert.Equal(t, 50, state.Work.RemainingSeconds)

	// Starting again resumes at the paused point.
	revived.StartExercise()
	assert.Equal(t, 50, revived.State().Work.RemainingSeconds)
}

func TestRehydrationCorruptRecordStartsFresh(t *testing.T) {
	manual := sched.NewManual(testEpoch)
	store := storage.NewMemory()
	require.NoError(t, store.Set("exercise:test-exercise:state", "{broken"))

	controller := New(testExercise(60, 20), Options{Store: store, Scheduler: manual})
	defer controller.Close()

	state := controller.State()
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.False(t, state.BreakDue)
	assert.False(t, state.Work.Running)
	assert.False(t, state.Break.Running)
}

func TestSubscribeSeesBreakDueEvent(t *testing.T) {
	rig := newTestRig(t, testExercise(2, 20))
	events := rig.controller.Subscribe(32)

	rig.controller.StartExercise()
	rig.manual.Advance(2*time.Second + 200*time.Millisecond)

	found := false
	for len(events) > 0 {
		event := <-events
		if event.Type == EventBreakDue {
			found = true
			assert.True(t, event.BreakDue)
		}
	}
	assert.True(t, found)
}

func TestIdleAutoPause(t *testing.T) {
	manual := sched.NewManual(testEpoch)
	idle := &fakeIdle{}
	controller := New(testExercise(600, 20), Options{
		Store:             storage.NewMemory(),
		Scheduler:         manual,
		IdleChecker:       idle,
		IdlePauseAfter:    10 * time.Second,
		IdleCheckInterval: time.Second,
	})
	defer controller.Close()

	controller.StartExercise()
	manual.Advance(3 * time.Second)
	require.Equal(t, PhaseWork, controller.State().Phase)

	idle.mu.Lock()
	idle.idleFor = 30 * time.Second
	idle.mu.Unlock()
	manual.Advance(2 * time.Second)

	state := controller.State()
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.False(t, state.Work.Running)
}

func TestIdleUnsupportedDisablesSilently(t *testing.T) {
	manual := sched.NewManual(testEpoch)
	idle := &fakeIdle{err: ErrIdleUnsupported}
	controller := New(testExercise(600, 20), Options{
		Store:             storage.NewMemory(),
		Scheduler:         manual,
		IdleChecker:       idle,
		IdlePauseAfter:    10 * time.Second,
		IdleCheckInterval: time.Second,
	})
	defer controller.Close()

	controller.StartExercise()
	manual.Advance(5 * time.Second)

	// Still working; the idle loop gave up without pausing.
	assert.Equal(t, PhaseWork, controller.State().Phase)
}
