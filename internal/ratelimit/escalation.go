package ratelimit

import "time"

// BlockDuration computes the punitive block length for the nth violation
// within the lookback window: base × multiplier^(violations-1), capped at
// max. Deterministic in its inputs so escalation needs no mutable state
// beyond the violation counter itself.
func BlockDuration(base time.Duration, multiplier float64, violations int64, max time.Duration) time.Duration {
	if violations < 1 {
		violations = 1
	}

	d := float64(base)
	for i := int64(1); i < violations; i++ {
		d *= multiplier
		if d >= float64(max) {
			return max
		}
	}

	if d > float64(max) {
		return max
	}
	return time.Duration(d)
}
