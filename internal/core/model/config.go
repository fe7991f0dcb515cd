package model

import (
	"strings"

	"github.com/google/uuid"
)

// ExerciseConfig describes one reminder routine: how long to focus, how long
// to rest, and what the break-due notification says. The core only reads it.
type ExerciseConfig struct {
	ID           string
	Name         string
	WorkSeconds  int
	BreakSeconds int
	NotifyTitle  string
	NotifyBody   string
}

// Normalized returns a copy with defensive clamping applied: negative
// durations become zero, a blank identifier gets a generated one and the
// notification title falls back to the exercise name.
func (config ExerciseConfig) Normalized() ExerciseConfig {
	if config.WorkSeconds < 0 {
		config.WorkSeconds = 0
	}
	if config.BreakSeconds < 0 {
		config.BreakSeconds = 0
	}
	if strings.TrimSpace(config.ID) == "" {
		config.ID = uuid.NewString()
	}
	if strings.TrimSpace(config.NotifyTitle) == "" {
		config.NotifyTitle = config.Name
	}
	return config
}

// NewCustom creates a user-defined exercise with a fresh identifier.
func NewCustom(name string, workSeconds, breakSeconds int) ExerciseConfig {
	return ExerciseConfig{
		ID:           uuid.NewString(),
		Name:         name,
		WorkSeconds:  workSeconds,
		BreakSeconds: breakSeconds,
		NotifyTitle:  name,
		NotifyBody:   "Time for a break.",
	}.Normalized()
}

// BuiltinExercises returns the catalog shipped with the application.
func BuiltinExercises() []ExerciseConfig {
	return []ExerciseConfig{
		{
			ID:           "eye-rest-20-20-20",
			Name:         "Eye rest (20-20-20)",
			WorkSeconds:  20 * 60,
			BreakSeconds: 20,
			NotifyTitle:  "Rest your eyes",
			NotifyBody:   "Look at something 20 feet away for 20 seconds.",
		},
		{
			ID:           "pomodoro-classic",
			Name:         "Pomodoro",
			WorkSeconds:  25 * 60,
			BreakSeconds: 5 * 60,
			NotifyTitle:  "Pomodoro complete",
			NotifyBody:   "Step away from the desk for five minutes.",
		},
	}
}

// FindExercise looks up an exercise by ID among the builtins and the given
// custom definitions. Custom definitions win on ID collision.
func FindExercise(id string, custom []ExerciseConfig) (ExerciseConfig, bool) {
	for _, config := range custom {
		if config.ID == id {
			return config.Normalized(), true
		}
	}
	for _, config := range BuiltinExercises() {
		if config.ID == id {
			return config, true
		}
	}
	return ExerciseConfig{}, false
}
