package core

import "math"

// SecondsToFrames converts a duration in seconds to a whole number of
// frames at sampleRate, rounding to the nearest frame. Negative durations
// map to zero.
func SecondsToFrames(seconds, sampleRate float64) int {
	if seconds <= 0 || sampleRate <= 0 {
		return 0
	}

	return int(math.Round(seconds * sampleRate))
}

// FramesToSeconds converts a frame count to seconds at sampleRate.
func FramesToSeconds(frames int, sampleRate float64) float64 {
	if sampleRate <= 0 {
		return 0
	}

	return float64(frames) / sampleRate
}
