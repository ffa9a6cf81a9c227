// Package media provides the ffmpeg-backed processing engine for scene
// assembly: audio normalization, silent placeholders, concatenation,
// sidechain ducking and single-clip muxing.
package media

import "context"

// DuckOptions tunes the sidechain compression that ducks background music
// under dialogue. Start from DefaultDuckOptions and override per
// deployment; the numbers are tunable parameters, not contracts.
type DuckOptions struct {
	// Threshold is the sidechain level above which compression engages.
	Threshold float64
	// Ratio is the compression ratio applied while engaged.
	Ratio float64
	// AttackMs is how fast the music drops once dialogue starts.
	AttackMs float64
	// ReleaseMs is how fast the music recovers once dialogue stops.
	ReleaseMs float64
	// MusicVolume attenuates the music before ducking (0..1).
	MusicVolume float64
}

// DefaultDuckOptions returns the production ducking defaults.
func DefaultDuckOptions() DuckOptions {
	return DuckOptions{
		Threshold:   0.03,
		Ratio:       10,
		AttackMs:    50,
		ReleaseMs:   500,
		MusicVolume: 0.3,
	}
}

// MuxClipSpec describes a single-clip mux: one pre-rendered video with an
// optional voice track and/or background music overlaid.
type MuxClipSpec struct {
	// VideoPath is the source clip.
	VideoPath string
	// VoicePath is the dialogue track; empty means no dialogue.
	VoicePath string
	// MusicPath is the background track; empty means no music.
	MusicPath string
	// OutputPath is where the muxed clip is written.
	OutputPath string
	// Duration caps the output length. It must be the probed duration of
	// the source clip; padding audio to open-ended lengths instead has
	// caused out-of-memory failures on constrained engines.
	Duration float64
	// MusicVolume attenuates music relative to dialogue (0..1).
	MusicVolume float64
}

// Processor defines the media-engine operations the assembly layer needs.
// Implementations shell out to ffmpeg/ffprobe.
type Processor interface {
	// ProbeDuration returns the duration in seconds of a media file using
	// a lightweight metadata read, independent of the heavy processing
	// paths.
	ProbeDuration(ctx context.Context, path string) (float64, error)

	// NormalizeAudio transcodes any audio input to 44.1kHz stereo AAC.
	// Voice providers emit inconsistent sample rates and layouts; mixing
	// unnormalized inputs is a known source of hard crashes.
	NormalizeAudio(ctx context.Context, src, dst string) error

	// SilentTrack writes a silent 44.1kHz stereo track of the given
	// duration, used as a placeholder for scenes without dialogue.
	SilentTrack(ctx context.Context, dst string, duration float64) error

	// MuxScene pairs one scene's video with its normalized audio track,
	// padding the audio out to the clip duration so timeline alignment
	// survives short dialogue.
	MuxScene(ctx context.Context, videoPath, audioPath, dst string, duration float64) error

	// Concat joins the given clips in order into one stream. Order is the
	// slice order; no reordering is permitted.
	Concat(ctx context.Context, videoPaths []string, output string) error

	// DuckMix lays the background track under the video's dialogue audio
	// with sidechain compression so music drops in level while dialogue
	// is active. Output length is capped at videoDuration.
	DuckMix(ctx context.Context, videoPath, musicPath, dst string, videoDuration float64, opts DuckOptions) error

	// MuxClip overlays voice and/or music onto a single clip. Callers
	// skip the call entirely when neither audio input is present.
	MuxClip(ctx context.Context, spec MuxClipSpec) error
}
