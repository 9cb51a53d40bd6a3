package window

const (
	// Shortest window with distinct end points.
	minLength = 2

	// Headroom added to the analytic ripple bound for float rounding.
	toleranceSlack = 1e-9
)
