// Package nav holds the NED-frame types and geometry used for waypoint
// navigation: positions, waypoints, plan loading and the look-ahead math
// behind continuous setpoint streaming.
package nav

import (
	"math"
)

// PositionNED is a position in the North-East-Down frame, in meters.
// Down increases with decreasing altitude.
type PositionNED struct {
	North float64
	East  float64
	Down  float64
}

// Sub returns p - q component-wise.
func (p PositionNED) Sub(q PositionNED) PositionNED {
	return PositionNED{
		North: p.North - q.North,
		East:  p.East - q.East,
		Down:  p.Down - q.Down,
	}
}

// Distance returns the Euclidean distance between p and q in meters.
func (p PositionNED) Distance(q PositionNED) float64 {
	d := p.Sub(q)
	return math.Sqrt(d.North*d.North + d.East*d.East + d.Down*d.Down)
}

// Waypoint is a single target position within a plan. Index is the
// zero-based position in the loaded sequence; Row is the source CSV line
// the waypoint came from, kept so an interrupted mission can be resumed by
// planning a new mission from that row.
type Waypoint struct {
	Index    int
	Row      int
	Position PositionNED
}

// HeadingDeg returns the heading in degrees from one position to another,
// measured clockwise from North. This is the yaw the vehicle should hold to
// face its direction of travel along the leg.
func HeadingDeg(from, to PositionNED) float64 {
	d := to.Sub(from)
	return radToDeg(math.Atan2(d.East, d.North))
}

// LookAhead computes the next commanded position between cur and target: a
// point a fraction of the remaining vector ahead of cur, clamped to maxStep
// meters and never beyond target. With remaining distance d the returned
// point is exactly min(frac*d, maxStep, d) meters from cur, so its distance
// to target never exceeds d.
func LookAhead(cur, target PositionNED, frac, maxStep float64) PositionNED {
	rem := target.Sub(cur)
	d := cur.Distance(target)
	if d == 0 {
		return target
	}

	step := frac * d
	if step > maxStep {
		step = maxStep
	}
	if step > d {
		step = d
	}

	s := step / d
	return PositionNED{
		North: cur.North + rem.North*s,
		East:  cur.East + rem.East*s,
		Down:  cur.Down + rem.Down*s,
	}
}

func radToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
