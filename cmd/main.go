package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"restbell/internal/core/model"
	"restbell/internal/core/session"
	"restbell/internal/notify"
	"restbell/internal/platform"
	"restbell/internal/sound"
	"restbell/internal/storage"
	"restbell/internal/ui/tray"
)

const appName = "Restbell"

func main() {
	guard, err := platform.AcquireSingleInstance(appName)
	if err != nil {
		log.Printf("single instance: %v", err)
		return
	}
	defer func() {
		_ = guard.Release()
	}()

	settings, err := storage.LoadSettings(appName)
	if err != nil {
		log.Printf("settings: %v", err)
	}
	if settings.Theme == "light" || settings.Theme == "dark" {
		_ = os.Setenv("FYNE_THEME", settings.Theme)
	}

	store, err := storage.OpenFile(appName)
	if err != nil {
		log.Printf("state store: %v", err)
	}

	fyneApp := app.NewWithID("com.restbell.app")
	desktopApp, ok := fyneApp.(desktop.App)
	if !ok {
		log.Printf("system tray unsupported on this platform")
		return
	}

	trayWindow := fyneApp.NewWindow(appName)
	trayWindow.SetContent(widget.NewLabel("Restbell is running in the system tray."))
	trayWindow.SetCloseIntercept(func() {
		trayWindow.Hide()
	})
	trayWindow.Hide()
	desktopApp.SetSystemTrayWindow(trayWindow)

	exercises := append(model.BuiltinExercises(), settings.CustomExercises...)
	active, found := model.FindExercise(settings.ActiveExercise, settings.CustomExercises)
	if !found {
		active = exercises[0]
	}

	notifier := notify.NewAppNotifier(fyneApp)
	var sounds session.SoundPlayer = sound.Nop{}
	if settings.AudioEnabled {
		sounds = sound.NewPlayer()
	}
	var idleChecker session.IdleChecker
	if settings.IdlePauseEnabled {
		idleChecker = platform.NewIdleProvider()
	}

	controller := session.New(active, session.Options{
		Store:          store,
		Notifier:       notifier,
		Sounds:         sounds,
		Permissions:    notifier,
		IdleChecker:    idleChecker,
		IdlePauseAfter: settings.IdlePauseAfter,
	})

	applyAutostart(settings.Autostart)

	var entries []tray.Exercise
	for _, exercise := range exercises {
		entries = append(entries, tray.Exercise{ID: exercise.ID, Name: exercise.Name})
	}

	trayManager := tray.New(desktopApp, entries, tray.Callbacks{
		OnStartFocus: func() {
			controller.StartExercise()
		},
		OnStartBreak: func() {
			controller.StartBreak()
		},
		OnPause: func() {
			controller.Pause()
		},
		OnReset: func() {
			controller.Reset()
		},
		OnSelectExercise: func(id string) {
			selected, ok := model.FindExercise(id, settings.CustomExercises)
			if !ok {
				return
			}
			controller.SetExercise(selected)
			settings.ActiveExercise = id
			if err := storage.SaveSettings(appName, settings); err != nil {
				log.Printf("settings: %v", err)
			}
		},
		OnQuit: func() {
			controller.Close()
			fyneApp.Quit()
		},
	})

	events := controller.Subscribe(8)
	go func() {
		for event := range events {
			handleEvent(event, trayManager)
		}
	}()

	fyneApp.Lifecycle().SetOnEnteredForeground(func() {
		controller.Wake()
	})

	snapshot := controller.State()
	trayManager.SetPhase(snapshot.Phase, snapshot.BreakDue)

	fyneApp.Run()
	controller.Close()
}

func handleEvent(event session.Event, trayManager *tray.Manager) {
	switch event.Type {
	case session.EventPhaseChange, session.EventBreakDue, session.EventIdlePause:
		trayManager.SetPhase(event.Phase, event.BreakDue)
		if event.Type == session.EventIdlePause {
			trayManager.SetStatus("paused after inactivity")
		} else if event.BreakDue {
			trayManager.SetStatus("break due")
		} else {
			trayManager.SetStatus(string(event.Phase))
		}
	case session.EventProgress:
		switch event.Phase {
		case session.PhaseWork:
			label := "focus " + formatRemaining(event.RemainingSeconds)
			if event.BreakDue {
				label += " (break due)"
			}
			trayManager.SetStatus(label)
		case session.PhaseBreak:
			trayManager.SetStatus("break " + formatRemaining(event.RemainingSeconds))
		}
	case session.EventIdleError:
		log.Printf("idle detection: %s", event.Message)
	}
}

func applyAutostart(enabled bool) {
	if !enabled {
		if err := platform.DisableAutostart(appName); err != nil {
			log.Printf("autostart: %v", err)
		}
		return
	}
	execPath, err := os.Executable()
	if err != nil {
		log.Printf("autostart: resolve executable: %v", err)
		return
	}
	if err := platform.EnableAutostart(appName, execPath); err != nil {
		log.Printf("autostart: %v", err)
	}
}

func formatRemaining(remainingSeconds int) string {
	if remainingSeconds < 0 {
		remainingSeconds = 0
	}
	remaining := time.Duration(remainingSeconds) * time.Second
	minutes := int(remaining.Minutes())
	seconds := remainingSeconds % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
