package player

import "math"

const (
	volumeCurveBase  = 4.0
	volumeCurvePower = 1.0
)

// LogarithmicVolume maps a linear volume in [0, 100] to the value an engine
// without its own loudness correction should apply. The curve is monotonic
// with f(0) = 0 and f(100) = 100.
func LogarithmicVolume(volume float64) float64 {
	divisor := math.Pow(volumeCurveBase, volumeCurvePower)

	scaled := volume * volumeCurvePower * volumeCurvePower / 100
	factor := math.Pow(volumeCurveBase, scaled/volumeCurvePower)

	return (scaled * factor / divisor) * (100 / (volumeCurvePower * volumeCurvePower))
}

func clampVolume(volume float64) float64 {
	return math.Max(0, math.Min(100, volume))
}
