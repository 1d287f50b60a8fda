package assembly

import (
	"math"
	"time"
)

// Bounds of a plausible camera frame rate; measured rates outside fall back to
// the nominal target.
const (
	DefaultMinPlausibleFPS = 5
	DefaultMaxPlausibleFPS = 30
)

// SelectFrameRate picks the encoding frame rate for a batch. The observed
// arrival rate is used when it lies within [minFPS, maxFPS]; otherwise, or when
// the batch spans no time, targetFPS is used.
func SelectFrameRate(frameCount int, span time.Duration, targetFPS int, minFPS, maxFPS float64) int {
	if span <= 0 || frameCount <= 0 {
		return targetFPS
	}
	actual := float64(frameCount) / span.Seconds()
	if actual < minFPS || actual > maxFPS {
		return targetFPS
	}
	if fps := int(math.Round(actual)); fps > 0 {
		return fps
	}
	return targetFPS
}

// CorrectedDuration returns the reported duration of a recording:
// (frameCount / fps) / factor.
func CorrectedDuration(frameCount, fps int, factor float64) float64 {
	if fps <= 0 || factor <= 0 {
		return 0
	}
	return (float64(frameCount) / float64(fps)) / factor
}
