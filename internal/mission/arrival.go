package mission

import "github.com/rollpitchyall/printinflight/internal/nav"

// Arrived reports whether current is within threshold meters of target,
// Euclidean over all three axes. The check is pure and idempotent: the same
// inputs always give the same answer, so an arrival cannot un-happen by
// re-checking. There is deliberately no hysteresis band; the mission loop
// latches arrival by advancing to the next waypoint.
func Arrived(target, current nav.PositionNED, threshold float64) bool {
	return current.Distance(target) <= threshold
}
