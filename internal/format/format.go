// Package format holds the conversion capability matrix: which file formats
// each engine category accepts and produces, and how a (source, target)
// pairing routes to a category.
package format

import (
	"sort"
	"strings"

	"github.com/convarr/convarr/internal/converr"
)

// Category identifies an engine family.
type Category string

const (
	Image Category = "image"
	Video Category = "video"
	Audio Category = "audio"
	Ebook Category = "ebook"
)

// Categories lists all engine families in display order.
var Categories = []Category{Image, Video, Audio, Ebook}

// The input set of every category is a superset of its output set. Formats
// present only in the input set are input-only: svg needs rasterisation and
// webp has no Go encoder, so neither can be produced.
var (
	imageInputs  = set("jpg", "jpeg", "png", "gif", "webp", "tiff", "tif", "bmp", "svg")
	imageOutputs = set("jpg", "jpeg", "png", "gif", "tiff", "bmp")

	videoInputs  = set("mp4", "avi", "mov", "webm", "mkv", "wmv", "flv", "m4v")
	videoOutputs = set("mp4", "avi", "mov", "webm", "mkv")

	audioInputs  = set("mp3", "wav", "flac", "aac", "ogg", "m4a", "wma", "aiff")
	audioOutputs = set("mp3", "wav", "flac", "aac", "ogg", "m4a")

	ebookInputs  = set("epub", "pdf", "mobi", "azw", "azw3", "txt", "rtf", "html", "docx")
	ebookOutputs = set("epub", "pdf", "mobi", "azw3", "txt")
)

func set(formats ...string) map[string]bool {
	m := make(map[string]bool, len(formats))
	for _, f := range formats {
		m[f] = true
	}
	return m
}

// Capability describes one category's input and output format sets.
type Capability struct {
	Inputs  []string `json:"input"`
	Outputs []string `json:"output"`
}

func capabilityFor(c Category) (map[string]bool, map[string]bool) {
	switch c {
	case Image:
		return imageInputs, imageOutputs
	case Video:
		return videoInputs, videoOutputs
	case Audio:
		return audioInputs, audioOutputs
	case Ebook:
		return ebookInputs, ebookOutputs
	}
	return nil, nil
}

// Normalize lowercases a format name and strips a leading dot so callers can
// pass either "MP4" or ".mp4".
func Normalize(format string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
}

// Route determines which engine category services a (source, target) pairing.
// A video source with an audio target routes to the video engine, which runs
// in audio-extraction mode. Unsupported pairings return a user error whose
// suggestion list carries the valid outputs for the source format.
func Route(source, target string) (Category, error) {
	src := Normalize(source)
	tgt := Normalize(target)

	switch {
	case imageInputs[src] && imageOutputs[tgt]:
		return Image, nil
	case videoInputs[src] && videoOutputs[tgt]:
		return Video, nil
	case videoInputs[src] && audioOutputs[tgt]:
		return Video, nil
	case audioInputs[src] && audioOutputs[tgt]:
		return Audio, nil
	case ebookInputs[src] && ebookOutputs[tgt]:
		return Ebook, nil
	}
	return "", converr.FormatNotSupported(src, tgt, ValidTargets(src))
}

// ValidTargets returns the sorted set of formats the given source format can
// be converted to, or nil when the source is not recognised at all.
func ValidTargets(source string) []string {
	src := Normalize(source)
	out := map[string]bool{}
	if imageInputs[src] {
		merge(out, imageOutputs)
	}
	if videoInputs[src] {
		merge(out, videoOutputs)
		merge(out, audioOutputs)
	}
	if audioInputs[src] {
		merge(out, audioOutputs)
	}
	if ebookInputs[src] {
		merge(out, ebookOutputs)
	}
	if len(out) == 0 {
		return nil
	}
	return sorted(out)
}

func merge(dst, src map[string]bool) {
	for k := range src {
		dst[k] = true
	}
}

func sorted(m map[string]bool) []string {
	s := make([]string, 0, len(m))
	for k := range m {
		s = append(s, k)
	}
	sort.Strings(s)
	return s
}

// SupportedConversions returns the full capability matrix keyed by category.
func SupportedConversions() map[Category]Capability {
	matrix := make(map[Category]Capability, len(Categories))
	for _, c := range Categories {
		in, out := capabilityFor(c)
		matrix[c] = Capability{Inputs: sorted(in), Outputs: sorted(out)}
	}
	return matrix
}

// IsInput reports whether the category accepts the format as a source.
func (c Category) IsInput(format string) bool {
	in, _ := capabilityFor(c)
	return in[Normalize(format)]
}

// IsOutput reports whether the category can produce the format.
func (c Category) IsOutput(format string) bool {
	_, out := capabilityFor(c)
	return out[Normalize(format)]
}
