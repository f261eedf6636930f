package crosssection

import (
	"math"
	"strconv"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestSampleLine(t *testing.T) {
	p1 := PixelCoordinate{X: 7444380.25, Y: 3313709.5}
	p2 := PixelCoordinate{X: 7444511.75, Y: 3313600.125}
	for maxDepth := range 10 {
		t.Run(strconv.Itoa(maxDepth), func(t *testing.T) {
			points := SampleLine(p1, p2, maxDepth)
			n := 1 << maxDepth
			assert.Equal(t, n+1, len(points))
			assert.Equal(t, p1, points[0])
			assert.Equal(t, p2, points[n])

			seen := make(map[PixelCoordinate]struct{}, len(points))
			for i, point := range points {
				_, duplicate := seen[point]
				assert.False(t, duplicate)
				seen[point] = struct{}{}

				// Points are evenly spaced along the segment.
				expectedX := p1.X + (p2.X-p1.X)*float64(i)/float64(n)
				expectedY := p1.Y + (p2.Y-p1.Y)*float64(i)/float64(n)
				assert.True(t, math.Abs(expectedX-point.X) < 1e-6)
				assert.True(t, math.Abs(expectedY-point.Y) < 1e-6)
			}
		})
	}
}

func TestSampleLineDefaultDepth(t *testing.T) {
	points := SampleLine(PixelCoordinate{}, PixelCoordinate{X: 256, Y: 128}, DefaultMaxDepth)
	assert.Equal(t, 129, len(points))
	assert.Equal(t, PixelCoordinate{X: 128, Y: 64}, points[64])
	assert.Equal(t, PixelCoordinate{X: 2, Y: 1}, points[1])
}

func TestSampleLineIdenticalPoints(t *testing.T) {
	p := PixelCoordinate{X: 12.5, Y: 99.25}
	points := SampleLine(p, p, DefaultMaxDepth)
	assert.Equal(t, 129, len(points))
	for _, point := range points {
		assert.Equal(t, p, point)
	}
}

func TestSampleLineMonotonic(t *testing.T) {
	p1 := PixelCoordinate{X: 100, Y: 900}
	p2 := PixelCoordinate{X: 300.5, Y: 100.25}
	points := SampleLine(p1, p2, DefaultMaxDepth)
	for i := 1; i < len(points); i++ {
		assert.True(t, points[i].X > points[i-1].X)
		assert.True(t, points[i].Y < points[i-1].Y)
	}
}

func TestSampleLineClampsDepth(t *testing.T) {
	assert.Equal(t, 2, len(SampleLine(PixelCoordinate{}, PixelCoordinate{X: 1}, -1)))
	assert.Equal(t, 1<<maxMaxDepth+1, len(SampleLine(PixelCoordinate{}, PixelCoordinate{X: 1}, 100)))
}
