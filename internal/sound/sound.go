// Package sound plays the short completion tones. Everything here is
// best-effort: a system without a usable audio command stays silent.
package sound

import (
	"encoding/binary"
	"log"
	"math"
	"os"
	"os/exec"
	"path/filepath"
)

// Player plays the completion tones.
type Player interface {
	PlayFocusComplete()
	PlayBreakComplete()
}

// Nop is a silent Player.
type Nop struct{}

func (Nop) PlayFocusComplete() {}
func (Nop) PlayBreakComplete() {}

// commandPlayer shells out to a platform audio command with pre-rendered
// tone files.
type commandPlayer struct {
	playerPath string
	focusTone  string
	breakTone  string
}

var playerCandidates = []string{"paplay", "afplay", "aplay", "ffplay"}

// NewPlayer probes for a usable audio command and renders the two tone
// files. Falls back to the silent player when either step fails.
func NewPlayer() Player {
	playerPath := ""
	for _, candidate := range playerCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			playerPath = path
			break
		}
	}
	if playerPath == "" {
		return Nop{}
	}

	toneDir := filepath.Join(os.TempDir(), "restbell-tones")
	if err := os.MkdirAll(toneDir, 0o755); err != nil {
		log.Printf("sound: create tone dir: %v", err)
		return Nop{}
	}

	focusTone := filepath.Join(toneDir, "focus.wav")
	breakTone := filepath.Join(toneDir, "break.wav")
	if err := writeToneFile(focusTone, 880, 0.35); err != nil {
		log.Printf("sound: render focus tone: %v", err)
		return Nop{}
	}
	if err := writeToneFile(breakTone, 523, 0.35); err != nil {
		log.Printf("sound: render break tone: %v", err)
		return Nop{}
	}

	return &commandPlayer{
		playerPath: playerPath,
		focusTone:  focusTone,
		breakTone:  breakTone,
	}
}

func (player *commandPlayer) PlayFocusComplete() {
	player.play(player.focusTone)
}

func (player *commandPlayer) PlayBreakComplete() {
	player.play(player.breakTone)
}

func (player *commandPlayer) play(tonePath string) {
	command := exec.Command(player.playerPath, tonePath)
	go func() {
		if err := command.Run(); err != nil {
			log.Printf("sound: play %s: %v", filepath.Base(tonePath), err)
		}
	}()
}

const (
	sampleRate     = 22050
	bytesPerSample = 2
)

// writeToneFile renders a sine tone with a short fade-out as 16-bit mono
// PCM WAV.
func writeToneFile(path string, frequencyHz float64, durationSeconds float64) error {
	sampleCount := int(float64(sampleRate) * durationSeconds)
	dataSize := sampleCount * bytesPerSample

	buffer := make([]byte, 0, 44+dataSize)
	buffer = append(buffer, []byte("RIFF")...)
	buffer = binary.LittleEndian.AppendUint32(buffer, uint32(36+dataSize))
	buffer = append(buffer, []byte("WAVEfmt ")...)
	buffer = binary.LittleEndian.AppendUint32(buffer, 16)
	buffer = binary.LittleEndian.AppendUint16(buffer, 1) // PCM
	buffer = binary.LittleEndian.AppendUint16(buffer, 1) // mono
	buffer = binary.LittleEndian.AppendUint32(buffer, sampleRate)
	buffer = binary.LittleEndian.AppendUint32(buffer, sampleRate*bytesPerSample)
	buffer = binary.LittleEndian.AppendUint16(buffer, bytesPerSample)
	buffer = binary.LittleEndian.AppendUint16(buffer, 16)
	buffer = append(buffer, []byte("data")...)
	buffer = binary.LittleEndian.AppendUint32(buffer, uint32(dataSize))

	for i := 0; i < sampleCount; i++ {
		progress := float64(i) / float64(sampleCount)
		envelope := 1.0
		if progress > 0.7 {
			envelope = (1 - progress) / 0.3
		}
		sample := math.Sin(2*math.Pi*frequencyHz*float64(i)/sampleRate) * envelope * 0.4
		buffer = binary.LittleEndian.AppendUint16(buffer, uint16(int16(sample*math.MaxInt16)))
	}

	return os.WriteFile(path, buffer, 0o644)
}
