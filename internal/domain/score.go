package domain

// scoreTiers maps response latency, as a fraction of the time limit, to the
// time-decay bonus. Evaluated in order; first strict-less-than match wins.
var scoreTiers = []struct {
	fraction float64
	bonus    float64
}{
	{0.05, 9},
	{0.10, 8},
	{0.15, 7},
	{0.20, 6},
	{0.30, 5},
	{0.40, 4},
	{0.55, 3},
	{0.70, 2},
	{0.85, 1},
}

// Score returns the points for a correct answer: a base of 1.0 plus a
// time-decay bonus. Answers slower than every tier still earn 0.5 on top of
// the base. Callers guarantee responseTimeMs >= 0.
func Score(responseTimeMs, timeLimitMs int64) float64 {
	for _, tier := range scoreTiers {
		if float64(responseTimeMs) < tier.fraction*float64(timeLimitMs) {
			return 1 + tier.bonus
		}
	}
	return 1.5
}
