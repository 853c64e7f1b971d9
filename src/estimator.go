package main

// EstimateProgress interpolates the playback position from the last sample.
// Paused or unknown playback is never extrapolated. The elapsed time is an
// unsigned difference so a wrapped monotonic counter still yields the right delta.
func EstimateProgress(sample *PlaybackSample, nowMs uint32) uint32 {
	if sample == nil {
		return 0
	}
	if sample.DurationMs == 0 || !sample.IsPlaying {
		return sample.ProgressMs
	}

	elapsed := nowMs - sample.SampledAtMs
	estimated := uint64(sample.ProgressMs) + uint64(elapsed)
	if estimated > uint64(sample.DurationMs) {
		return sample.DurationMs
	}
	return uint32(estimated)
}

// formatTime converts milliseconds to "M:SS"
func formatTime(ms uint32) string {
	totalSec := ms / 1000
	min := totalSec / 60
	sec := totalSec % 60

	// Build string directly, this runs every tick
	result := make([]byte, 0, 8)
	result = appendUint(result, min)
	result = append(result, ':')
	result = append(result, byte('0'+sec/10))
	result = append(result, byte('0'+sec%10))
	return string(result)
}

func appendUint(b []byte, v uint32) []byte {
	if v >= 10 {
		b = appendUint(b, v/10)
	}
	return append(b, byte('0'+v%10))
}

// progressPercent maps a position onto the 0..100 progress bar range.
func progressPercent(progress, duration uint32) int {
	if duration == 0 {
		return 0
	}
	if progress >= duration {
		return 100
	}
	return int(uint64(progress) * 100 / uint64(duration))
}
