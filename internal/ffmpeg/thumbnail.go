package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Thumbnail writes a 320px wide poster frame of the video to outputPath,
// reusing an existing file. The frame is taken at 10% of the duration.
func Thumbnail(ctx context.Context, inputPath, outputPath string) error {
	if _, err := os.Stat(outputPath); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return err
	}

	seek := 5.0
	if info, err := Probe(ctx, inputPath); err == nil && info.Duration > 0 {
		seek = thumbnailOffset(info.Duration)
	}

	tmp := outputPath + ".tmp.jpg"
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(seek, 'f', 2, 64),
		"-i", inputPath,
		"-vframes", "1",
		"-vf", "scale=320:-1",
		"-y",
		tmp,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ffmpeg thumbnail: %s: %w", string(output), err)
	}
	return os.Rename(tmp, outputPath)
}

// thumbnailOffset clamps 10% of duration to [1s, 5min], never past the end.
func thumbnailOffset(duration float64) float64 {
	seek := duration * 0.10
	if seek < 1 {
		seek = 1
	}
	if seek > 300 {
		seek = 300
	}
	if seek >= duration {
		seek = duration / 2
	}
	return seek
}
