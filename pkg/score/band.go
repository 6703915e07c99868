package score

import "fmt"

const (
	DefaultHighThreshold   = 0.95
	DefaultMediumThreshold = 0.60
)

// Band is a confidence bucket used for highlighting.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// Colors is the fill and text color of a highlighted cell.
type Colors struct {
	Fill string
	Text string
}

var bandColors = map[Band]Colors{
	BandHigh:   {Fill: "#388E3C", Text: "#FFFFFF"},
	BandMedium: {Fill: "#FBC02D", Text: "#000000"},
	BandLow:    {Fill: "#D32F2F", Text: "#FFFFFF"},
}

// MismatchColors highlights a predicted class that differs from the actual class.
var MismatchColors = Colors{Fill: "#D32F2F", Text: "#FFFFFF"}

// Thresholds are the lower bounds of the high and medium bands.
type Thresholds struct {
	High   float64 `json:"high" yaml:"high"`
	Medium float64 `json:"medium" yaml:"medium"`
}

// DefaultThresholds returns the standard 0.95 / 0.60 bands.
func DefaultThresholds() Thresholds {
	return Thresholds{High: DefaultHighThreshold, Medium: DefaultMediumThreshold}
}

// Validate checks 0 <= medium <= high <= 1.
func (t Thresholds) Validate() error {
	if t.Medium < 0 || t.High > 1 || t.Medium > t.High {
		return fmt.Errorf("invalid confidence thresholds: medium=%v high=%v", t.Medium, t.High)
	}
	return nil
}

// Band returns the confidence band of v.
func (t Thresholds) Band(v float64) Band {
	switch {
	case v >= t.High:
		return BandHigh
	case v >= t.Medium:
		return BandMedium
	default:
		return BandLow
	}
}

// Colors returns the highlight colors of the band.
func (b Band) Colors() Colors {
	return bandColors[b]
}
