// Package speech is the optional text-to-speech capability. Absence of a
// synthesizer is not an error, only a disabled feature.
package speech

import (
	"fmt"
	"os/exec"
)

type Synthesizer interface {
	Supported() bool
	Speak(text string) error
}

// Noop is injected when no TTS capability is configured.
type Noop struct{}

func (Noop) Supported() bool         { return false }
func (Noop) Speak(text string) error { return nil }

// Command speaks through an external program (e.g. "say", "espeak")
// that takes the utterance as its last argument.
type Command struct {
	Bin  string
	Args []string
}

func (c Command) Supported() bool {
	if c.Bin == "" {
		return false
	}
	_, err := exec.LookPath(c.Bin)
	return err == nil
}

func (c Command) Speak(text string) error {
	if !c.Supported() {
		return fmt.Errorf("speech command %q not available", c.Bin)
	}
	args := append(append([]string{}, c.Args...), text)
	if err := exec.Command(c.Bin, args...).Run(); err != nil {
		return fmt.Errorf("run speech command: %w", err)
	}
	return nil
}
