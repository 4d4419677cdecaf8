package loader

import (
	"github.com/chewxy/math32"

	"github.com/Carmen-Shannon/scenestream/common"
)

// ComputeBounds scans a flat position array (x,y,z triples) and returns the
// axis-aligned bounding box. An empty array yields a zero box at the origin.
//
// Parameters:
//   - positions: flat vertex positions, three floats per vertex
//
// Returns:
//   - [3]float32: the minimum corner
//   - [3]float32: the maximum corner
func ComputeBounds(positions []float32) (minCorner, maxCorner [3]float32) {
	if len(positions) < 3 {
		return minCorner, maxCorner
	}
	minCorner = [3]float32{positions[0], positions[1], positions[2]}
	maxCorner = minCorner
	for i := 3; i+2 < len(positions); i += 3 {
		for axis := 0; axis < 3; axis++ {
			v := positions[i+axis]
			minCorner[axis] = math32.Min(minCorner[axis], v)
			maxCorner[axis] = math32.Max(maxCorner[axis], v)
		}
	}
	return minCorner, maxCorner
}

// NormalizeTransform derives a local transform that centers a model at the
// origin and uniformly scales it so its largest extent maps to unit length:
// p' = scale * (p - center) with scale = 1 / maxExtent. A degenerate box
// (maxExtent == 0) gets scale 1. The reported bounding sphere is the original
// half-extent sphere pushed through the same transform: its center is the
// transformed original center (the origin) and its radius is
// 0.5 * maxExtent * scale.
//
// Parameters:
//   - minCorner: the bounding box minimum
//   - maxCorner: the bounding box maximum
//
// Returns:
//   - [16]float32: the column-major local transform (scale then translate)
//   - common.ModelBounds: the transformed bounding sphere
func NormalizeTransform(minCorner, maxCorner [3]float32) ([16]float32, common.ModelBounds) {
	center := [3]float32{
		(minCorner[0] + maxCorner[0]) * 0.5,
		(minCorner[1] + maxCorner[1]) * 0.5,
		(minCorner[2] + maxCorner[2]) * 0.5,
	}
	extent := [3]float32{
		maxCorner[0] - minCorner[0],
		maxCorner[1] - minCorner[1],
		maxCorner[2] - minCorner[2],
	}
	maxExtent := math32.Max(math32.Max(extent[0], extent[1]), extent[2])

	scale := float32(1)
	if maxExtent > 0 {
		scale = 1 / maxExtent
	}

	var s, t, transform [16]float32
	common.ScaleUniform(s[:], scale)
	common.Translation(t[:], -center[0], -center[1], -center[2])
	// Scale first, then translate: p' = scale * (p - center).
	common.Mul4(transform[:], s[:], t[:])

	bounds := common.ModelBounds{
		Center: common.TransformPoint(transform[:], center),
		Radius: 0.5 * maxExtent * scale,
	}
	return transform, bounds
}
