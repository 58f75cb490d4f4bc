package format

import "github.com/convarr/convarr/internal/converr"

// Quality is one of the three fixed quality tiers. Each engine maps the tier
// onto its own parameter space.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// DefaultQuality is applied when the caller does not specify a tier.
const DefaultQuality = QualityMedium

var qualityNames = []string{string(QualityLow), string(QualityMedium), string(QualityHigh)}

// QualityOptions lists the valid tier names in ascending order.
func QualityOptions() []string {
	out := make([]string, len(qualityNames))
	copy(out, qualityNames)
	return out
}

// ParseQuality validates a caller-supplied quality string. Empty means the
// default tier; anything outside the fixed set is a user error, never a
// silent fallback.
func ParseQuality(s string) (Quality, error) {
	switch Quality(Normalize(s)) {
	case "":
		return DefaultQuality, nil
	case QualityLow:
		return QualityLow, nil
	case QualityMedium:
		return QualityMedium, nil
	case QualityHigh:
		return QualityHigh, nil
	}
	return "", converr.InvalidInput("unknown quality preset %q", s).WithSuggestions(qualityNames...)
}
