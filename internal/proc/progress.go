package proc

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// ProgressParser extracts a completion percentage from one line of engine
// output. Parsers may be stateful (FFmpeg reports total duration once, then
// elapsed time per update) and are not safe for concurrent use unless noted.
type ProgressParser interface {
	// Parse returns the percentage (0-100) implied by line, and whether the
	// line carried progress information at all.
	Parse(line string) (float64, bool)
}

var (
	durationRegex = regexp.MustCompile(`Duration: (\d{2}):(\d{2}):(\d{2})\.(\d{2})`)
	timeRegex     = regexp.MustCompile(`time=(\d{2}):(\d{2}):(\d{2})\.(\d{2})`)
	percentRegex  = regexp.MustCompile(`(\d{1,3})%`)
)

// FFmpegProgress parses FFmpeg stderr: one `Duration:` header establishes
// the total, subsequent `time=` updates report elapsed encode position.
type FFmpegProgress struct {
	mu       sync.Mutex
	duration float64 // seconds, 0 until the header is seen
}

// NewFFmpegProgress creates an FFmpeg stderr progress parser.
func NewFFmpegProgress() *FFmpegProgress {
	return &FFmpegProgress{}
}

// Parse implements ProgressParser.
func (p *FFmpegProgress) Parse(line string) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if m := durationRegex.FindStringSubmatch(line); m != nil {
		p.duration = hmsToSeconds(m)
		return 0, false
	}
	if p.duration <= 0 {
		return 0, false
	}
	m := timeRegex.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	pct := hmsToSeconds(m) / p.duration * 100
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

func hmsToSeconds(m []string) float64 {
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	cs, _ := strconv.Atoi(m[4])
	return float64(h)*3600 + float64(min)*60 + float64(s) + float64(cs)/100
}

// PercentProgress parses plain `NN%` markers, the style Calibre's
// ebook-convert prints on stdout.
type PercentProgress struct{}

// NewPercentProgress creates a percent-marker progress parser.
func NewPercentProgress() *PercentProgress {
	return &PercentProgress{}
}

// Parse implements ProgressParser.
func (p *PercentProgress) Parse(line string) (float64, bool) {
	m := percentRegex.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.Atoi(m[1])
	if err != nil || pct > 100 {
		return 0, false
	}
	return float64(pct), true
}

// NoProgress ignores all output; used for engines with no usable progress
// markers.
type NoProgress struct{}

// Parse implements ProgressParser.
func (NoProgress) Parse(string) (float64, bool) { return 0, false }

// splitLines splits engine output on both \n and \r. FFmpeg rewrites its
// status line with carriage returns, so a plain line scanner would buffer
// the whole run as one line.
func splitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := strings.IndexAny(string(data), "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
