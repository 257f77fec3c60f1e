package filehandler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Frame extraction constants for video detection.
const (
	// FrameJPEGQuality is the ffmpeg qscale:v for extracted frames (2 = ~95% JPEG).
	FrameJPEGQuality = 2

	// DefaultDetectionFPS is the sampling rate used when the caller does not pick one.
	DefaultDetectionFPS = 1.0

	// MaxDetectionFrames caps the number of frames sampled from one video.
	MaxDetectionFrames = 600
)

// VideoInfo holds the stream properties needed to plan frame sampling.
type VideoInfo struct {
	Duration  time.Duration
	FrameRate float64
	Width     int
	Height    int
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
}

// ProbeVideo reads duration and frame rate with ffprobe.
func ProbeVideo(ctx context.Context, videoPath string) (*VideoInfo, error) {
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (*VideoInfo, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	if secs, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(secs * float64(time.Second))
	}
	for _, s := range probe.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.Width = s.Width
		info.Height = s.Height
		info.FrameRate = parseFrameRate(s.RFrameRate)
		break
	}
	return info, nil
}

// parseFrameRate parses frame rate from ffprobe format (e.g., "60/1" -> 60.0)
func parseFrameRate(value string) float64 {
	parts := strings.Split(value, "/")
	if len(parts) == 2 {
		num, _ := strconv.ParseFloat(parts[0], 64)
		den, _ := strconv.ParseFloat(parts[1], 64)
		if den != 0 {
			return num / den
		}
	}
	rate, _ := strconv.ParseFloat(value, 64)
	return rate
}

// FrameExtractionResult contains the frames sampled from a video.
type FrameExtractionResult struct {
	FrameDir      string
	FramePaths    []string
	ExtractionFPS float64

	// Cleanup removes FrameDir. Must be called when frames are no longer needed.
	Cleanup func()
}

// ExtractFrames samples frames from videoPath into a temporary directory
// under scratchDir (os.TempDir when empty) at roughly fps frames per second.
// The rate is lowered when the video is long enough to exceed MaxDetectionFrames.
// The caller MUST call Cleanup() when done with the frames.
func ExtractFrames(ctx context.Context, videoPath, scratchDir string, fps float64, info *VideoInfo) (*FrameExtractionResult, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: frame extraction requires ffmpeg: %w", err)
	}

	frameDir, err := os.MkdirTemp(scratchDir, "video-frames-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create frame directory: %w", err)
	}

	cleanup := func() {
		if err := os.RemoveAll(frameDir); err != nil {
			log.Warn().Err(err).Str("dir", frameDir).Msg("Failed to remove frame directory")
		}
	}

	duration := 0.0
	if info != nil {
		duration = info.Duration.Seconds()
	}
	extractionFPS := determineExtractionFPS(fps, duration)

	log.Info().
		Str("video", filepath.Base(videoPath)).
		Float64("extraction_fps", extractionFPS).
		Float64("duration_s", duration).
		Msg("Starting frame extraction")

	framePattern := filepath.Join(frameDir, "frame_%06d.jpg")
	args := []string{
		"-i", videoPath,
		"-qscale:v", strconv.Itoa(FrameJPEGQuality),
		"-vf", fmt.Sprintf("fps=%.3f", extractionFPS),
		"-vsync", "0",
		"-y", framePattern,
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		cleanup()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("frame extraction failed: %w\nOutput: %s", err, string(output))
	}

	framePaths, err := collectFramePaths(frameDir)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to collect frame paths: %w", err)
	}
	if len(framePaths) == 0 {
		cleanup()
		return nil, fmt.Errorf("no frames extracted from video: %s", filepath.Base(videoPath))
	}

	log.Info().
		Int("total_frames", len(framePaths)).
		Str("frame_dir", frameDir).
		Msg("Frame extraction complete")

	return &FrameExtractionResult{
		FrameDir:      frameDir,
		FramePaths:    framePaths,
		ExtractionFPS: extractionFPS,
		Cleanup:       cleanup,
	}, nil
}

// determineExtractionFPS returns requested (or DefaultDetectionFPS), lowered
// so that durationSeconds * fps stays within MaxDetectionFrames.
func determineExtractionFPS(requested, durationSeconds float64) float64 {
	fps := requested
	if fps <= 0 {
		fps = DefaultDetectionFPS
	}
	if durationSeconds > 0 && durationSeconds*fps > MaxDetectionFrames {
		fps = MaxDetectionFrames / durationSeconds
	}
	return fps
}

// collectFramePaths returns sorted paths to all frame files in a directory.
func collectFramePaths(frameDir string) ([]string, error) {
	entries, err := os.ReadDir(frameDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "frame_") && strings.HasSuffix(name, ".jpg") {
			paths = append(paths, filepath.Join(frameDir, name))
		}
	}
	sort.Strings(paths)

	return paths, nil
}
