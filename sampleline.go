package crosssection

const (
	// DefaultMaxDepth is the default bisection depth, giving 129 samples.
	DefaultMaxDepth = 7

	maxMaxDepth = 16
)

// SampleLine returns 2^maxDepth+1 evenly spaced points from p1 to p2
// inclusive. Points are generated by repeated bisection rather than by
// dividing by the number of points, so every point is the exact midpoint of
// its neighbors at the depth it was created.
func SampleLine(p1, p2 PixelCoordinate, maxDepth int) []PixelCoordinate {
	maxDepth = min(max(maxDepth, 0), maxMaxDepth)
	n := 1 << maxDepth
	points := make([]PixelCoordinate, n+1)
	points[0] = p1
	points[n] = p2
	bisect(points, 0, n)
	return points
}

// bisect fills points strictly between i and j, which must already be set.
// The recursion depth is bounded by maxMaxDepth.
func bisect(points []PixelCoordinate, i, j int) {
	if j-i < 2 {
		return
	}
	m := (i + j) / 2
	points[m] = PixelCoordinate{
		X: (points[i].X + points[j].X) / 2,
		Y: (points[i].Y + points[j].Y) / 2,
	}
	bisect(points, i, m)
	bisect(points, m, j)
}
