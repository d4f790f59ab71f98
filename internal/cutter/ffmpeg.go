package cutter

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	probeTimeout     = 10 * time.Second
	thumbnailTimeout = 10 * time.Second
	hlsTimeout       = 60 * time.Second
	stderrTailBytes  = 400
)

// Runner executes an external media tool and returns its stdout. Non-zero
// exits and timeouts come back as errors carrying the stderr tail.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if tail := stderrTail(stderr.String()); tail != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, tail)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// stderrTail keeps the end of a tool's stderr, where ffmpeg puts the actual
// failure.
func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTailBytes {
		s = s[len(s)-stderrTailBytes:]
	}
	return s
}

// Fingerprint identifies a cut by source basename and bounds rounded to a
// tenth of a second. Recutting the same window of the same file always maps
// to the same 12-hex id.
func Fingerprint(sourcePath string, start, end float64) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%.1f|%.1f", filepath.Base(sourcePath), start, end))
	return hex.EncodeToString(sum[:])[:12]
}

// probeDuration reads the container duration in seconds via ffprobe.
func (c *Cutter) probeDuration(ctx context.Context, sourcePath string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := c.runner.Run(ctx, c.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		sourcePath,
	)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %v", sourcePath, err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("probe %s: unparseable duration %q", sourcePath, strings.TrimSpace(string(out)))
	}
	return d, nil
}

// runCut executes one strategy under its request-scoped timeout.
func (c *Cutter) runCut(ctx context.Context, strategy Strategy, sourcePath string, start, end float64, outputPath string) error {
	duration := end - start
	var (
		args    []string
		timeout time.Duration
	)
	switch strategy {
	case StrategyCopy:
		copyStart := start - c.cfg.PreRollSeconds
		if copyStart < 0 {
			copyStart = 0
		}
		args = copyArgs(sourcePath, copyStart, end-copyStart, outputPath)
		timeout = scaledTimeout(duration, 1.2, 300)
	default:
		args = reencodeArgs(sourcePath, start, duration, outputPath)
		timeout = scaledTimeout(duration, 2.0, 600)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := c.runner.Run(ctx, c.cfg.FFmpegPath, args...); err != nil {
		return err
	}
	return nil
}

func (c *Cutter) runThumbnail(ctx context.Context, clipPath, thumbPath string, duration float64) error {
	offset := duration / 2
	if offset > 5 {
		offset = 5
	}
	ctx, cancel := context.WithTimeout(ctx, thumbnailTimeout)
	defer cancel()
	_, err := c.runner.Run(ctx, c.cfg.FFmpegPath,
		"-y",
		"-ss", formatSeconds(offset),
		"-i", clipPath,
		"-vframes", "1",
		"-q:v", "2",
		thumbPath,
	)
	return err
}

func (c *Cutter) runHLS(ctx context.Context, clipPath, segmentDir, playlistPath string) error {
	ctx, cancel := context.WithTimeout(ctx, hlsTimeout)
	defer cancel()
	_, err := c.runner.Run(ctx, c.cfg.FFmpegPath,
		"-y",
		"-i", clipPath,
		"-c", "copy",
		"-hls_time", "2",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(segmentDir, "segment_%03d.ts"),
		playlistPath,
	)
	return err
}

// reencodeArgs is the accurate path: frame-exact bounds at the price of an
// H.264/AAC re-encode, faststart for streaming.
func reencodeArgs(sourcePath string, start, duration float64, outputPath string) []string {
	return []string{
		"-y",
		"-ss", formatSeconds(start),
		"-i", sourcePath,
		"-t", formatSeconds(duration),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "20",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "+faststart",
		outputPath,
	}
}

// copyArgs is the fast path: stream copy from a pre-rolled start so the
// demuxer lands on a keyframe before the window.
func copyArgs(sourcePath string, start, duration float64, outputPath string) []string {
	return []string{
		"-y",
		"-ss", formatSeconds(start),
		"-i", sourcePath,
		"-t", formatSeconds(duration),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		outputPath,
	}
}

// scaledTimeout scales with clip length inside [60s, capSeconds].
func scaledTimeout(duration, factor, capSeconds float64) time.Duration {
	v := duration * factor
	if v < 60 {
		v = 60
	}
	if v > capSeconds {
		v = capSeconds
	}
	return time.Duration(v * float64(time.Second))
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
