package engine

import (
	"context"

	"github.com/convarr/convarr/internal/format"
	"github.com/convarr/convarr/internal/proc"
	"github.com/convarr/convarr/internal/util"
)

// videoPresets maps quality tiers onto x264/vp9 rate control.
var videoPresets = map[format.Quality]struct {
	crf    string
	preset string
}{
	format.QualityLow:    {crf: "28", preset: "faster"},
	format.QualityMedium: {crf: "23", preset: "medium"},
	format.QualityHigh:   {crf: "18", preset: "slow"},
}

// videoCodecs maps target containers onto their default codec pair.
var videoCodecs = map[string]struct {
	video string
	audio string
}{
	"mp4":  {video: "libx264", audio: "aac"},
	"webm": {video: "libvpx-vp9", audio: "libopus"},
	"avi":  {video: "mpeg4", audio: "mp3"},
	"mov":  {video: "libx264", audio: "aac"},
	"mkv":  {video: "libx264", audio: "aac"},
}

// VideoEngine transcodes video containers via FFmpeg. When the target is an
// audio format it runs in extraction mode, dropping the video stream.
type VideoEngine struct {
	binaryPath string // config override, may be empty
	supervisor *proc.Supervisor
}

// NewVideoEngine creates the FFmpeg-backed video engine. binaryPath
// overrides discovery when non-empty.
func NewVideoEngine(binaryPath string, supervisor *proc.Supervisor) *VideoEngine {
	return &VideoEngine{binaryPath: binaryPath, supervisor: supervisor}
}

// Category implements Engine.
func (e *VideoEngine) Category() format.Category { return format.Video }

// IsSupported reports input/output validity, including audio extraction targets.
func (e *VideoEngine) IsSupported(f string, forOutput bool) bool {
	return supports(format.Video, f, forOutput)
}

// Available implements Engine.
func (e *VideoEngine) Available() error {
	_, err := util.FindEngine("ffmpeg", e.binaryPath)
	return err
}

// Convert implements Engine.
func (e *VideoEngine) Convert(ctx context.Context, req Request) error {
	bin, err := util.FindEngine("ffmpeg", e.binaryPath)
	if err != nil {
		return err
	}

	var args []string
	if format.Audio.IsOutput(req.TargetFormat) {
		args = extractionArgs(req)
	} else {
		args = transcodeArgs(req)
	}

	return e.supervisor.Run(ctx, proc.Spec{
		Binary:     bin,
		Args:       args,
		OutputPath: req.Output,
		Timeout:    req.Timeout,
		Parser:     proc.NewFFmpegProgress(),
		OnProgress: req.OnProgress,
	})
}

func transcodeArgs(req Request) []string {
	preset := videoPresets[req.Quality]
	codecs, ok := videoCodecs[req.TargetFormat]
	if !ok {
		codecs = videoCodecs["mp4"]
	}
	return []string{
		"-y", "-hide_banner",
		"-i", req.Source,
		"-c:v", codecs.video,
		"-crf", preset.crf,
		"-preset", preset.preset,
		"-c:a", codecs.audio,
		req.Output,
	}
}

// extractionArgs drops the video stream and re-encodes audio only.
func extractionArgs(req Request) []string {
	preset := audioPresets[req.Quality]
	codec, ok := audioCodecs[req.TargetFormat]
	if !ok {
		codec = "copy"
	}
	args := []string{
		"-y", "-hide_banner",
		"-i", req.Source,
		"-vn",
		"-acodec", codec,
		"-b:a", preset.bitrate,
		"-ar", preset.sampleRate,
	}
	if req.TargetFormat == "mp3" {
		args = append(args, "-id3v2_version", "3")
	}
	return append(args, req.Output)
}
