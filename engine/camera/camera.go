// Package camera provides the viewer's orbit camera: a target point circled
// at a distance, driven by mouse drag for orbit and scroll for zoom.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/Carmen-Shannon/scenestream/common"
)

const (
	minPitch    = -math32.Pi/2 + 0.01
	maxPitch    = math32.Pi/2 - 0.01
	minDistance = 0.05

	// zoomBase is the per-scroll-step distance multiplier; scrolling up
	// applies it once per step, shrinking the distance.
	zoomBase = 0.9

	// frameSlack pulls the camera back a little past the exact framing
	// distance so the framed sphere does not touch the viewport edge.
	frameSlack = 1.2
)

// orbitCamera is the implementation of the OrbitCamera interface. It is not
// safe for concurrent use; only the main thread drives it.
type orbitCamera struct {
	target   [3]float32
	yaw      float32
	pitch    float32
	distance float32

	fovY float32
	near float32
	far  float32
}

// OrbitCamera orbits a target point at a distance and produces the frame's
// view-projection matrix.
type OrbitCamera interface {
	// Orbit applies a drag delta in radians to yaw and pitch. Pitch is
	// clamped short of the poles to keep the up vector stable.
	//
	// Parameters:
	//   - dYaw: the yaw delta in radians
	//   - dPitch: the pitch delta in radians
	Orbit(dYaw, dPitch float32)

	// Zoom scales the orbit distance multiplicatively, so zoom speed tracks
	// how close the camera already is.
	//
	// Parameters:
	//   - scrollDelta: scroll steps, positive zooms in
	Zoom(scrollDelta float32)

	// FrameBounds re-targets the orbit so the given bounding sphere fills
	// the view, keeping the current yaw and pitch.
	//
	// Parameters:
	//   - b: the bounding sphere to frame
	FrameBounds(b common.ModelBounds)

	// Eye returns the camera position in world space.
	//
	// Returns:
	//   - [3]float32: the camera position
	Eye() [3]float32

	// ViewProj computes the combined view-projection matrix for the given
	// viewport aspect ratio, column-major with WebGPU depth range.
	//
	// Parameters:
	//   - aspect: viewport width divided by height
	//
	// Returns:
	//   - [16]float32: the view-projection matrix
	ViewProj(aspect float32) [16]float32
}

var _ OrbitCamera = &orbitCamera{}

// NewOrbitCamera creates an OrbitCamera with the provided options applied.
//
// Parameters:
//   - options: a variadic list of OrbitCameraBuilderOption functions to configure the camera
//
// Returns:
//   - OrbitCamera: the newly created camera
func NewOrbitCamera(options ...OrbitCameraBuilderOption) OrbitCamera {
	c := &orbitCamera{
		yaw:      math32.Pi / 4,
		pitch:    math32.Pi / 8,
		distance: 3,
		fovY:     math32.Pi / 4,
		near:     0.01,
		far:      100,
	}

	for _, option := range options {
		option(c)
	}
	return c
}

func (c *orbitCamera) Orbit(dYaw, dPitch float32) {
	c.yaw += dYaw
	c.pitch += dPitch
	if c.pitch < minPitch {
		c.pitch = minPitch
	}
	if c.pitch > maxPitch {
		c.pitch = maxPitch
	}
}

func (c *orbitCamera) Zoom(scrollDelta float32) {
	c.distance *= math32.Pow(zoomBase, scrollDelta)
	if c.distance < minDistance {
		c.distance = minDistance
	}
}

func (c *orbitCamera) FrameBounds(b common.ModelBounds) {
	c.target = b.Center
	radius := b.Radius
	if radius <= 0 {
		radius = 0.5
	}
	c.distance = radius / math32.Sin(c.fovY/2) * frameSlack
}

func (c *orbitCamera) Eye() [3]float32 {
	cy, sy := math32.Cos(c.yaw), math32.Sin(c.yaw)
	cp, sp := math32.Cos(c.pitch), math32.Sin(c.pitch)
	return [3]float32{
		c.target[0] + c.distance*cp*sy,
		c.target[1] + c.distance*sp,
		c.target[2] + c.distance*cp*cy,
	}
}

func (c *orbitCamera) ViewProj(aspect float32) [16]float32 {
	var view, proj, out [16]float32
	eye := c.Eye()
	common.LookAt(view[:],
		eye[0], eye[1], eye[2],
		c.target[0], c.target[1], c.target[2],
		0, 1, 0,
	)
	common.Perspective(proj[:], c.fovY, aspect, c.near, c.far)
	common.Mul4(out[:], proj[:], view[:])
	return out
}
