package domain

import "fmt"

type ConnectionQuality int

const (
	QualityUnknown ConnectionQuality = iota
	QualityExcellent
	QualityGood
	QualityPoor
	QualityLost
)

func (q ConnectionQuality) String() string {
	switch q {
	case QualityUnknown:
		return "unknown"
	case QualityExcellent:
		return "excellent"
	case QualityGood:
		return "good"
	case QualityPoor:
		return "poor"
	case QualityLost:
		return "lost"
	default:
		return fmt.Sprintf("quality(%d)", int(q))
	}
}

// Pulsing drives the blinking indicator on a tile.
func (q ConnectionQuality) Pulsing() bool { return q == QualityPoor || q == QualityLost }

func (q ConnectionQuality) MarshalText() ([]byte, error) { return []byte(q.String()), nil }
