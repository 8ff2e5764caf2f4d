// Package voice coordinates speech recognition and synthesis for a session.
//
// Recording and playback are mutually exclusive: starting a recording
// interrupts any playback, and playback is suppressed while recording.
package voice

import (
	"context"
	"errors"
)

var (
	// ErrUnsupported is returned when the device has no recognizer or synthesizer.
	ErrUnsupported = errors.New("speech is not supported on this device")

	// ErrNotRecording is returned when a recording is stopped but none is running.
	ErrNotRecording = errors.New("not recording")
)

// Recognizer turns speech into text.
type Recognizer interface {
	// Start begins capturing speech in the given language (e.g. "ja").
	Start(ctx context.Context, language string) error
	// Stop ends the capture and returns the transcript.
	Stop(ctx context.Context) (string, error)
	Supported() bool
}

// Utterance is one playback request.
type Utterance struct {
	Text     string
	AudioKey string // pre-recorded clip; empty means synthesize Text
	Language string
	Speed    float64
}

// Synthesizer plays utterances.
type Synthesizer interface {
	Speak(ctx context.Context, u Utterance) error
	Stop() error
	Speaking() bool
	Supported() bool
}

type noRecognizer struct{}

func (noRecognizer) Start(context.Context, string) error  { return ErrUnsupported }
func (noRecognizer) Stop(context.Context) (string, error) { return "", ErrUnsupported }
func (noRecognizer) Supported() bool                      { return false }

type noSynthesizer struct{}

func (noSynthesizer) Speak(context.Context, Utterance) error { return ErrUnsupported }
func (noSynthesizer) Stop() error                            { return nil }
func (noSynthesizer) Speaking() bool                         { return false }
func (noSynthesizer) Supported() bool                        { return false }

// NoRecognizer returns a Recognizer for devices without a microphone.
func NoRecognizer() Recognizer { return noRecognizer{} }

// NoSynthesizer returns a Synthesizer for devices without audio output.
func NoSynthesizer() Synthesizer { return noSynthesizer{} }
