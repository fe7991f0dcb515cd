package tray

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"

	"restbell/internal/core/session"
)

// Exercise is one selectable entry in the exercise submenu.
type Exercise struct {
	ID   string
	Name string
}

// Callbacks defines tray action handlers.
type Callbacks struct {
	OnStartFocus     func()
	OnStartBreak     func()
	OnPause          func()
	OnReset          func()
	OnSelectExercise func(id string)
	OnQuit           func()
}

// Manager handles system tray state.
type Manager struct {
	app         desktop.App
	callbacks   Callbacks
	exercises   []Exercise
	phase       session.Phase
	breakDue    bool
	statusLabel string
}

// New creates a tray manager with the provided callbacks and exercise
// catalog.
func New(app desktop.App, exercises []Exercise, callbacks Callbacks) *Manager {
	manager := &Manager{
		app:         app,
		callbacks:   callbacks,
		exercises:   exercises,
		phase:       session.PhaseIdle,
		statusLabel: "idle",
	}
	manager.refreshMenu()
	return manager
}

// SetStatus updates the status label.
func (manager *Manager) SetStatus(status string) {
	manager.statusLabel = status
	manager.refreshMenu()
}

// SetPhase updates the phase-dependent menu items.
func (manager *Manager) SetPhase(phase session.Phase, breakDue bool) {
	manager.phase = phase
	manager.breakDue = breakDue
	manager.refreshMenu()
}

func (manager *Manager) refreshMenu() {
	if manager.app == nil {
		return
	}

	status := fyne.NewMenuItem(fmt.Sprintf("Status: %s", manager.statusLabel), nil)
	status.Disabled = true

	focusLabel := "Start focus"
	if manager.phase == session.PhaseWork {
		focusLabel = "Restart focus"
	}
	startFocus := fyne.NewMenuItem(focusLabel, func() {
		if manager.callbacks.OnStartFocus != nil {
			manager.callbacks.OnStartFocus()
		}
	})
	startFocus.Disabled = manager.phase == session.PhaseBreak

	breakLabel := "Take a break now"
	if manager.breakDue {
		breakLabel = "Take the break (due!)"
	}
	startBreak := fyne.NewMenuItem(breakLabel, func() {
		if manager.callbacks.OnStartBreak != nil {
			manager.callbacks.OnStartBreak()
		}
	})
	startBreak.Disabled = manager.phase != session.PhaseWork

	pause := fyne.NewMenuItem("Pause", func() {
		if manager.callbacks.OnPause != nil {
			manager.callbacks.OnPause()
		}
	})
	pause.Disabled = manager.phase != session.PhaseWork

	reset := fyne.NewMenuItem("Reset", func() {
		if manager.callbacks.OnReset != nil {
			manager.callbacks.OnReset()
		}
	})

	exercise := fyne.NewMenuItem("Exercise", nil)
	var exerciseItems []*fyne.MenuItem
	for _, entry := range manager.exercises {
		id := entry.ID
		exerciseItems = append(exerciseItems, fyne.NewMenuItem(entry.Name, func() {
			if manager.callbacks.OnSelectExercise != nil {
				manager.callbacks.OnSelectExercise(id)
			}
		}))
	}
	exercise.ChildMenu = fyne.NewMenu("", exerciseItems...)

	quit := fyne.NewMenuItem("Quit", func() {
		if manager.callbacks.OnQuit != nil {
			manager.callbacks.OnQuit()
		}
	})

	manager.app.SetSystemTrayMenu(fyne.NewMenu("Restbell",
		status, startFocus, startBreak, pause, reset, exercise, quit))
}
