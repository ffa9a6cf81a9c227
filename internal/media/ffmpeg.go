package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Static errors for media operations.
var (
	// ErrNoVideoPaths is returned when no video paths are provided for
	// concatenation.
	ErrNoVideoPaths = errors.New("no video paths provided")
	// ErrInvalidDuration is returned when a duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrNoAudioInputs is returned when MuxClip is called with neither a
	// voice nor a music track.
	ErrNoAudioInputs = errors.New("mux clip requires at least one audio input")
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

// FFmpegProcessor implements Processor using the ffmpeg CLI.
type FFmpegProcessor struct {
	ffmpegPath  string
	ffprobePath string

	// runCmd executes a prepared command; tests swap it to capture args.
	runCmd func(cmd *exec.Cmd) error
}

// NewFFmpegProcessor creates a new FFmpegProcessor. Empty paths default to
// "ffmpeg" and "ffprobe" resolved via PATH.
func NewFFmpegProcessor(ffmpegPath, ffprobePath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegProcessor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runCmd:      func(cmd *exec.Cmd) error { return cmd.Run() },
	}
}

// ProbeDuration returns the duration in seconds of a media file.
func (p *FFmpegProcessor) ProbeDuration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := p.runCmd(cmd); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(stdout.String()), "%f", &duration); err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}

	return duration, nil
}

// NormalizeAudio transcodes src to 44.1kHz stereo AAC at dst.
func (p *FFmpegProcessor) NormalizeAudio(ctx context.Context, src, dst string) error {
	args := []string{
		"-y",
		"-i", src,
		"-ar", "44100",
		"-ac", "2",
		"-c:a", "aac",
		"-b:a", "192k",
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// SilentTrack writes a silent 44.1kHz stereo track of the given duration.
func (p *FFmpegProcessor) SilentTrack(ctx context.Context, dst string, duration float64) error {
	if duration <= 0 {
		return fmt.Errorf("%w: got %.2f", ErrInvalidDuration, duration)
	}
	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=stereo",
		"-t", formatSeconds(duration),
		"-c:a", "aac",
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// MuxScene pairs a scene's video with its audio track, padding the audio
// to the clip duration so every scene contributes a full-length audio
// stream to the later concat.
func (p *FFmpegProcessor) MuxScene(ctx context.Context, videoPath, audioPath, dst string, duration float64) error {
	if duration <= 0 {
		return fmt.Errorf("%w: got %.2f", ErrInvalidDuration, duration)
	}
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-af", "apad",
		"-t", formatSeconds(duration),
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// Concat joins the clips in slice order into one output file. It first
// attempts a stream copy and falls back to re-encoding with libx264/aac
// when the copy fails on mismatched codecs.
func (p *FFmpegProcessor) Concat(ctx context.Context, videoPaths []string, output string) error {
	if len(videoPaths) == 0 {
		return ErrNoVideoPaths
	}

	if len(videoPaths) == 1 {
		return p.copyFile(videoPaths[0], output)
	}

	listFile, err := p.createConcatList(videoPaths)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(listFile) }()

	if err := p.concatWithCopy(ctx, listFile, output); err == nil {
		return nil
	}

	return p.concatWithReencode(ctx, listFile, output)
}

// concatWithCopy concatenates using stream copy (no re-encoding).
func (p *FFmpegProcessor) concatWithCopy(ctx context.Context, listFile, output string) error {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		output,
	}
	return p.runFFmpeg(ctx, args)
}

// concatWithReencode concatenates by re-encoding with libx264/aac.
func (p *FFmpegProcessor) concatWithReencode(ctx context.Context, listFile, output string) error {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "192k",
		output,
	}
	return p.runFFmpeg(ctx, args)
}

// DuckMix lays musicPath under videoPath's dialogue audio. The dialogue is
// split into a passthrough copy and a sidechain control signal; the music
// is normalized, attenuated and compressed keyed off that control signal,
// then mixed back with the dialogue. Output is H.264 video (stream copy)
// with AAC audio, capped at the video's duration so the music can never
// extend the program.
func (p *FFmpegProcessor) DuckMix(ctx context.Context, videoPath, musicPath, dst string, videoDuration float64, opts DuckOptions) error {
	if videoDuration <= 0 {
		return fmt.Errorf("%w: got %.2f", ErrInvalidDuration, videoDuration)
	}

	filter := fmt.Sprintf(
		"[1:a]aformat=sample_rates=44100:channel_layouts=stereo,volume=%s[bgm];"+
			"[0:a]aformat=sample_rates=44100:channel_layouts=stereo,asplit=2[dlg][sc];"+
			"[bgm][sc]sidechaincompress=threshold=%s:ratio=%s:attack=%s:release=%s[duck];"+
			"[dlg][duck]amix=inputs=2:duration=longest:dropout_transition=0[aout]",
		formatFloat(opts.MusicVolume),
		formatFloat(opts.Threshold),
		formatFloat(opts.Ratio),
		formatFloat(opts.AttackMs),
		formatFloat(opts.ReleaseMs),
	)

	args := []string{
		"-y",
		"-i", videoPath,
		"-stream_loop", "-1",
		"-i", musicPath,
		"-filter_complex", filter,
		"-map", "0:v:0",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-t", formatSeconds(videoDuration),
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// MuxClip overlays voice and/or music onto a single clip. The video stream
// is never re-encoded; only audio is. Output length is capped at
// spec.Duration in every branch.
func (p *FFmpegProcessor) MuxClip(ctx context.Context, spec MuxClipSpec) error {
	if spec.Duration <= 0 {
		return fmt.Errorf("%w: got %.2f", ErrInvalidDuration, spec.Duration)
	}

	switch {
	case spec.VoicePath != "" && spec.MusicPath != "":
		return p.muxVoiceAndMusic(ctx, spec)
	case spec.VoicePath != "":
		return p.muxVoiceOnly(ctx, spec)
	case spec.MusicPath != "":
		return p.muxMusicOnly(ctx, spec)
	default:
		return ErrNoAudioInputs
	}
}

// muxVoiceOnly maps the video stream with the dialogue track directly.
func (p *FFmpegProcessor) muxVoiceOnly(ctx context.Context, spec MuxClipSpec) error {
	args := []string{
		"-y",
		"-i", spec.VideoPath,
		"-i", spec.VoicePath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-t", formatSeconds(spec.Duration),
		spec.OutputPath,
	}
	return p.runFFmpeg(ctx, args)
}

// muxMusicOnly attenuates the music to background level and muxes it in.
func (p *FFmpegProcessor) muxMusicOnly(ctx context.Context, spec MuxClipSpec) error {
	filter := fmt.Sprintf(
		"[1:a]aformat=sample_rates=44100:channel_layouts=stereo,volume=%s[aout]",
		formatFloat(musicVolumeOrDefault(spec.MusicVolume)),
	)
	args := []string{
		"-y",
		"-i", spec.VideoPath,
		"-i", spec.MusicPath,
		"-filter_complex", filter,
		"-map", "0:v:0",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-t", formatSeconds(spec.Duration),
		spec.OutputPath,
	}
	return p.runFFmpeg(ctx, args)
}

// muxVoiceAndMusic normalizes both tracks, attenuates the music and mixes
// with dialogue priority.
func (p *FFmpegProcessor) muxVoiceAndMusic(ctx context.Context, spec MuxClipSpec) error {
	filter := fmt.Sprintf(
		"[1:a]aformat=sample_rates=44100:channel_layouts=stereo[voice];"+
			"[2:a]aformat=sample_rates=44100:channel_layouts=stereo,volume=%s[bgm];"+
			"[voice][bgm]amix=inputs=2:duration=longest:dropout_transition=0[aout]",
		formatFloat(musicVolumeOrDefault(spec.MusicVolume)),
	)
	args := []string{
		"-y",
		"-i", spec.VideoPath,
		"-i", spec.VoicePath,
		"-i", spec.MusicPath,
		"-filter_complex", filter,
		"-map", "0:v:0",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-t", formatSeconds(spec.Duration),
		spec.OutputPath,
	}
	return p.runFFmpeg(ctx, args)
}

// musicVolumeOrDefault falls back to a 25% background level.
func musicVolumeOrDefault(v float64) float64 {
	if v <= 0 || v > 1 {
		return 0.25
	}
	return v
}

// createConcatList writes the temporary file list for the concat demuxer.
func (p *FFmpegProcessor) createConcatList(videoPaths []string) (string, error) {
	f, err := os.CreateTemp("", "ffmpeg-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range videoPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return "", fmt.Errorf("write to concat list: %w", err)
		}
	}

	return f.Name(), nil
}

// copyFile copies a file from src to dst.
func (p *FFmpegProcessor) copyFile(src, dst string) error {
	input, err := os.ReadFile(src) // #nosec G304 - src is provided by trusted internal code
	if err != nil {
		return fmt.Errorf("read source file: %w", err)
	}
	if err := os.WriteFile(dst, input, 0600); err != nil {
		return fmt.Errorf("write destination file: %w", err)
	}
	return nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := p.runCmd(cmd); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// formatSeconds renders a duration argument for ffmpeg.
func formatSeconds(seconds float64) string {
	return fmt.Sprintf("%.3f", seconds)
}

// formatFloat renders a filter parameter without trailing zeros.
func formatFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// FFmpegError represents an error from running ffmpeg, including stderr.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Compile-time check that FFmpegProcessor implements Processor.
var _ Processor = (*FFmpegProcessor)(nil)
