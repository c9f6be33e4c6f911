package diarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/video-stream/annotator/internal/transcript"
)

// commandProcessor runs an external speaker-identification program that
// prints the labeled document as JSON on stdout.
type commandProcessor struct {
	argv []string
}

// NewCommandFactory returns a Factory that runs command (program plus leading
// arguments) with the audio, transcript and tuning flags appended.
func NewCommandFactory(command []string) Factory {
	return func(p Params) (Processor, error) {
		if len(command) == 0 {
			return nil, fmt.Errorf("no speaker identification command configured")
		}
		if _, err := exec.LookPath(command[0]); err != nil {
			return nil, fmt.Errorf("speaker identification command: %w", err)
		}
		return &commandProcessor{argv: commandArgs(command, p)}, nil
	}
}

func commandArgs(command []string, p Params) []string {
	argv := append([]string{}, command...)
	argv = append(argv,
		"--audio", p.AudioPath,
		"--transcript", p.TranscriptPath,
		"--denoise-prop", strconv.FormatFloat(p.Config.DenoiseProportion, 'f', -1, 64),
		"--threshold", strconv.FormatFloat(p.Config.VerificationThreshold, 'f', -1, 64),
	)
	if p.Config.Denoise {
		argv = append(argv, "--denoise")
	}
	return argv
}

func (c *commandProcessor) Process(ctx context.Context) (*transcript.Document, error) {
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Env = os.Environ()
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("speaker identification failed: %s", strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("run speaker identification: %w", err)
	}

	var doc transcript.Document
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("parse speaker identification output: %w", err)
	}
	return &doc, nil
}
