// Package diarize attributes transcript segments to speakers.
//
// The speaker-identification engine itself lives outside this process; a
// Processor is the handle to one engine context built for a specific audio
// file, transcript file and tuning, and Process runs it to completion.
package diarize

import (
	"context"
	"fmt"

	"github.com/video-stream/annotator/internal/transcript"
)

// Config tunes speaker identification.
type Config struct {
	Denoise               bool    `json:"denoise"`
	DenoiseProportion     float64 `json:"denoise_prop"`
	VerificationThreshold float64 `json:"verification_threshold"`
}

// DefaultConfig returns the stock tuning: no denoising, 0.1 denoise
// proportion, 0.2 verification threshold.
func DefaultConfig() Config {
	return Config{
		Denoise:               false,
		DenoiseProportion:     0.1,
		VerificationThreshold: 0.2,
	}
}

func (c Config) Validate() error {
	if c.DenoiseProportion < 0 || c.DenoiseProportion > 1 {
		return fmt.Errorf("denoise_prop must be within [0,1], got %v", c.DenoiseProportion)
	}
	if c.VerificationThreshold < 0 || c.VerificationThreshold > 1 {
		return fmt.Errorf("verification_threshold must be within [0,1], got %v", c.VerificationThreshold)
	}
	return nil
}

// Params identify one engine context.
type Params struct {
	AudioPath      string
	TranscriptPath string
	Config         Config
}

// Processor runs speaker identification for the Params it was built with and
// returns the transcript document with a speaker on each segment.
type Processor interface {
	Process(ctx context.Context) (*transcript.Document, error)
}

// Factory builds a Processor. Building may be expensive (model loading,
// audio decoding), which is why built processors are cached.
type Factory func(Params) (Processor, error)
