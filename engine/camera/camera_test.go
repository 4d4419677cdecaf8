package camera

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"

	"github.com/Carmen-Shannon/scenestream/common"
)

func TestOrbitClampsPitch(t *testing.T) {
	c := NewOrbitCamera().(*orbitCamera)

	c.Orbit(0, 10)
	assert.InDelta(t, float64(maxPitch), float64(c.pitch), 1e-6)

	c.Orbit(0, -20)
	assert.InDelta(t, float64(minPitch), float64(c.pitch), 1e-6)
}

func TestZoomIsMultiplicativeAndClamped(t *testing.T) {
	c := NewOrbitCamera(WithInitialOrbit(0, 0, 10)).(*orbitCamera)

	c.Zoom(1)
	assert.InDelta(t, 9.0, float64(c.distance), 1e-4)
	c.Zoom(-1)
	assert.InDelta(t, 10.0, float64(c.distance), 1e-4)

	c.Zoom(1000)
	assert.InDelta(t, float64(minDistance), float64(c.distance), 1e-6)
}

func TestFrameBoundsTargetsSphere(t *testing.T) {
	c := NewOrbitCamera().(*orbitCamera)
	b := common.ModelBounds{Center: [3]float32{1, 2, 3}, Radius: 0.5}
	c.FrameBounds(b)

	assert.Equal(t, b.Center, c.target)

	// The full sphere fits the vertical field of view with the slack factor.
	want := 0.5 / math32.Sin(c.fovY/2) * frameSlack
	assert.InDelta(t, float64(want), float64(c.distance), 1e-5)

	// Zero-radius bounds get a sane fallback instead of a degenerate orbit.
	c.FrameBounds(common.ModelBounds{})
	assert.Greater(t, c.distance, float32(0))
}

func TestEyeOrbitsTarget(t *testing.T) {
	c := NewOrbitCamera(WithInitialOrbit(0, 0, 5)).(*orbitCamera)

	// Yaw 0, pitch 0 puts the eye on the +z axis from the target.
	eye := c.Eye()
	assert.InDelta(t, 0, float64(eye[0]), 1e-5)
	assert.InDelta(t, 0, float64(eye[1]), 1e-5)
	assert.InDelta(t, 5, float64(eye[2]), 1e-5)

	// A quarter-turn of yaw moves it to the +x axis at the same distance.
	c.Orbit(math32.Pi/2, 0)
	eye = c.Eye()
	assert.InDelta(t, 5, float64(eye[0]), 1e-5)
	assert.InDelta(t, 0, float64(eye[2]), 1e-5)
}

func TestViewProjPlacesTargetInFront(t *testing.T) {
	c := NewOrbitCamera(WithInitialOrbit(0.3, 0.2, 4))
	c.FrameBounds(common.ModelBounds{Center: [3]float32{1, 0, -2}, Radius: 1})

	vp := c.ViewProj(16.0 / 9.0)
	clip := [4]float32{}
	p := [3]float32{1, 0, -2}
	for row := 0; row < 4; row++ {
		clip[row] = vp[0*4+row]*p[0] + vp[1*4+row]*p[1] + vp[2*4+row]*p[2] + vp[3*4+row]
	}

	// The framed target projects to the center of the viewport with positive
	// depth inside the clip volume.
	assert.InDelta(t, 0, float64(clip[0]/clip[3]), 1e-4)
	assert.InDelta(t, 0, float64(clip[1]/clip[3]), 1e-4)
	assert.Greater(t, clip[3], float32(0))
	z := clip[2] / clip[3]
	assert.Greater(t, float64(z), 0.0)
	assert.Less(t, float64(z), 1.0)
}
