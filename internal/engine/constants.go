package engine

import "math"

// Frame processing constants
const (
	// Full turn in radians; random phases are drawn from [0, twoPi).
	twoPi = 2 * math.Pi

	// Initial input queue capacity in frames. The queue grows on demand.
	queueFrames = 2
)
