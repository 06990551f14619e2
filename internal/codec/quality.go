package codec

import (
	"fmt"
	"image/png"
	"strings"

	"golang.org/x/image/tiff"
)

// Quality selects the encoder trade-off between size and fidelity.
type Quality int

const (
	QualityBest Quality = iota
	QualityHigh
	QualityMedium
	QualityLow
	QualityWorst
)

var qualityNames = map[Quality]string{
	QualityBest:   "best",
	QualityHigh:   "high",
	QualityMedium: "medium",
	QualityLow:    "low",
	QualityWorst:  "worst",
}

func (q Quality) String() string {
	if name, ok := qualityNames[q]; ok {
		return name
	}
	return fmt.Sprintf("quality(%d)", int(q))
}

// ParseQuality maps a config value to a Quality. Empty means best.
func ParseQuality(value string) (Quality, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return QualityBest, nil
	}
	for q, name := range qualityNames {
		if name == value {
			return q, nil
		}
	}
	return QualityBest, fmt.Errorf("unknown quality %q (want best, high, medium, low or worst)", value)
}

func (q Quality) jpegQuality() int {
	switch q {
	case QualityHigh:
		return 75
	case QualityMedium:
		return 50
	case QualityLow:
		return 25
	case QualityWorst:
		return 10
	default:
		return 100
	}
}

func (q Quality) pngCompression() png.CompressionLevel {
	switch q {
	case QualityBest:
		return png.BestCompression
	case QualityLow, QualityWorst:
		return png.BestSpeed
	default:
		return png.DefaultCompression
	}
}

func (q Quality) tiffCompression() tiff.CompressionType {
	switch q {
	case QualityBest, QualityHigh:
		return tiff.Deflate
	default:
		return tiff.Uncompressed
	}
}
