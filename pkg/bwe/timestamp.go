package bwe

// UnwrapAbsSendTime computes the signed delta between two abs-send-time values,
// correctly handling wraparound at the 64-second boundary.
//
// The abs-send-time field is 24 bits and wraps every 64 seconds. This function
// uses half-range comparison to determine if the timestamp has wrapped:
//   - If the raw difference is greater than half the range (>32 seconds forward),
//     it's interpreted as a backward jump (the value wrapped).
//   - If the raw difference is less than negative half the range (<-32 seconds),
//     it's interpreted as a forward jump across the wrap boundary.
//
// Returns the signed delta in abs-send-time units (not seconds).
func UnwrapAbsSendTime(prev, curr uint32) int64 {
	// Compute raw signed difference
	diff := int32(curr) - int32(prev)

	// Half-range comparison for wraparound detection
	// AbsSendTimeMax/2 = 8388608 units = 32 seconds
	halfRange := int32(AbsSendTimeMax / 2)

	if diff > halfRange {
		// Apparent forward jump > 32s means we actually went backward across wrap
		diff -= int32(AbsSendTimeMax)
	} else if diff < -halfRange {
		// Apparent backward jump > 32s means we actually went forward across wrap
		diff += int32(AbsSendTimeMax)
	}

	return int64(diff)
}
