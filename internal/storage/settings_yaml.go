package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"restbell/internal/core/model"
)

const settingsFileName = "settings.yaml"

// Settings defines editable user preferences. Everything here lives outside
// the timer core, which only ever sees the resolved ExerciseConfig.
type Settings struct {
	Theme            string
	AudioEnabled     bool
	ActiveExercise   string
	IdlePauseEnabled bool
	IdlePauseAfter   time.Duration
	Autostart        bool
	CustomExercises  []model.ExerciseConfig
}

// DefaultSettings returns default settings for Restbell.
func DefaultSettings() Settings {
	return Settings{
		Theme:            "system",
		AudioEnabled:     true,
		ActiveExercise:   "eye-rest-20-20-20",
		IdlePauseEnabled: true,
		IdlePauseAfter:   5 * time.Minute,
		Autostart:        false,
	}
}

type yamlExercise struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	WorkSeconds  int    `yaml:"work_seconds"`
	BreakSeconds int    `yaml:"break_seconds"`
	NotifyTitle  string `yaml:"notify_title"`
	NotifyBody   string `yaml:"notify_body"`
}

type yamlSettings struct {
	Theme            string         `yaml:"theme"`
	AudioEnabled     bool           `yaml:"audio_enabled"`
	ActiveExercise   string         `yaml:"active_exercise"`
	IdlePauseEnabled bool           `yaml:"idle_pause_enabled"`
	IdlePauseMinutes int            `yaml:"idle_pause_minutes"`
	Autostart        bool           `yaml:"autostart"`
	CustomExercises  []yamlExercise `yaml:"custom_exercises"`
}

// LoadSettings reads user preferences from YAML.
// If the config file does not exist, default settings are returned.
func LoadSettings(appName string) (Settings, error) {
	settingsPath, err := resolveSettingsPath(appName)
	if err != nil {
		return DefaultSettings(), err
	}
	return LoadSettingsFile(settingsPath)
}

// LoadSettingsFile reads user preferences from an explicit path.
func LoadSettingsFile(path string) (Settings, error) {
	settings := DefaultSettings()

	rawData, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("read settings file: %w", err)
	}

	var fileData yamlSettings
	if err := yaml.Unmarshal(rawData, &fileData); err != nil {
		return settings, fmt.Errorf("parse settings yaml: %w", err)
	}

	applyYamlSettings(&settings, fileData)
	return settings, nil
}

// SaveSettings writes user preferences to YAML.
func SaveSettings(appName string, settings Settings) error {
	settingsPath, err := resolveSettingsPath(appName)
	if err != nil {
		return err
	}
	return SaveSettingsFile(settingsPath, settings)
}

// SaveSettingsFile writes user preferences to an explicit path.
func SaveSettingsFile(path string, settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	fileData := yamlSettings{
		Theme:            settings.Theme,
		AudioEnabled:     settings.AudioEnabled,
		ActiveExercise:   settings.ActiveExercise,
		IdlePauseEnabled: settings.IdlePauseEnabled,
		IdlePauseMinutes: int(settings.IdlePauseAfter / time.Minute),
		Autostart:        settings.Autostart,
	}
	for _, exercise := range settings.CustomExercises {
		exercise = exercise.Normalized()
		fileData.CustomExercises = append(fileData.CustomExercises, yamlExercise{
			ID:           exercise.ID,
			Name:         exercise.Name,
			WorkSeconds:  exercise.WorkSeconds,
			BreakSeconds: exercise.BreakSeconds,
			NotifyTitle:  exercise.NotifyTitle,
			NotifyBody:   exercise.NotifyBody,
		})
	}

	serialized, err := yaml.Marshal(fileData)
	if err != nil {
		return fmt.Errorf("marshal settings yaml: %w", err)
	}

	if err := os.WriteFile(path, serialized, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}

	return nil
}

func resolveSettingsPath(appName string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, appName, settingsFileName), nil
}

func applyYamlSettings(settings *Settings, fileData yamlSettings) {
	if fileData.Theme != "" {
		settings.Theme = fileData.Theme
	}
	settings.AudioEnabled = fileData.AudioEnabled
	if fileData.ActiveExercise != "" {
		settings.ActiveExercise = fileData.ActiveExercise
	}
	settings.IdlePauseEnabled = fileData.IdlePauseEnabled
	if fileData.IdlePauseMinutes > 0 {
		settings.IdlePauseAfter = time.Duration(fileData.IdlePauseMinutes) * time.Minute
	}
	settings.Autostart = fileData.Autostart

	for _, exercise := range fileData.CustomExercises {
		settings.CustomExercises = append(settings.CustomExercises, model.ExerciseConfig{
			ID:           exercise.ID,
			Name:         exercise.Name,
			WorkSeconds:  exercise.WorkSeconds,
			BreakSeconds: exercise.BreakSeconds,
			NotifyTitle:  exercise.NotifyTitle,
			NotifyBody:   exercise.NotifyBody,
		}.Normalized())
	}
}
