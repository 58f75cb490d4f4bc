package engine

import (
	"context"

	"github.com/convarr/convarr/internal/format"
	"github.com/convarr/convarr/internal/proc"
	"github.com/convarr/convarr/internal/util"
)

// audioPresets maps quality tiers onto bitrate and sample rate.
var audioPresets = map[format.Quality]struct {
	bitrate    string
	sampleRate string
}{
	format.QualityLow:    {bitrate: "128k", sampleRate: "44100"},
	format.QualityMedium: {bitrate: "192k", sampleRate: "44100"},
	format.QualityHigh:   {bitrate: "320k", sampleRate: "48000"},
}

// audioCodecs maps target formats onto their FFmpeg encoder.
var audioCodecs = map[string]string{
	"mp3":  "libmp3lame",
	"wav":  "pcm_s16le",
	"flac": "flac",
	"aac":  "aac",
	"ogg":  "libvorbis",
	"m4a":  "aac",
}

// AudioEngine converts audio files via FFmpeg.
type AudioEngine struct {
	binaryPath string
	supervisor *proc.Supervisor
}

// NewAudioEngine creates the FFmpeg-backed audio engine.
func NewAudioEngine(binaryPath string, supervisor *proc.Supervisor) *AudioEngine {
	return &AudioEngine{binaryPath: binaryPath, supervisor: supervisor}
}

// Category implements Engine.
func (e *AudioEngine) Category() format.Category { return format.Audio }

func (e *AudioEngine) IsSupported(f string, forOutput bool) bool {
	return supports(format.Audio, f, forOutput)
}

// Available implements Engine.
func (e *AudioEngine) Available() error {
	_, err := util.FindEngine("ffmpeg", e.binaryPath)
	return err
}

// Convert implements Engine.
func (e *AudioEngine) Convert(ctx context.Context, req Request) error {
	bin, err := util.FindEngine("ffmpeg", e.binaryPath)
	if err != nil {
		return err
	}

	preset := audioPresets[req.Quality]
	codec, ok := audioCodecs[req.TargetFormat]
	if !ok {
		codec = "copy"
	}

	args := []string{
		"-y", "-hide_banner",
		"-i", req.Source,
		"-acodec", codec,
		"-b:a", preset.bitrate,
		"-ar", preset.sampleRate,
	}
	if req.TargetFormat == "mp3" {
		args = append(args, "-id3v2_version", "3")
	}
	args = append(args, req.Output)

	return e.supervisor.Run(ctx, proc.Spec{
		Binary:     bin,
		Args:       args,
		OutputPath: req.Output,
		Timeout:    req.Timeout,
		Parser:     proc.NewFFmpegProgress(),
		OnProgress: req.OnProgress,
	})
}
