package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// AudioFileName is the normalized audio artifact written next to the transcript.
const AudioFileName = "audio.wav"

// ExtractAudio writes the media file's audio track as 16kHz mono WAV into outDir
// and returns the path of the written file.
func ExtractAudio(ctx context.Context, mediaPath, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", err
	}
	out := filepath.Join(outDir, AudioFileName)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-i", mediaPath,
		"-vn",           // no video
		"-acodec", "pcm_s16le",
		"-ar", "16000",  // 16kHz
		"-ac", "1",      // mono
		"-y",            // overwrite
		out,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(out)
		return "", fmt.Errorf("ffmpeg: %s: %w", string(output), err)
	}

	return out, nil
}
