package camera

// OrbitCameraBuilderOption is a function that modifies the orbitCamera
// during construction.
type OrbitCameraBuilderOption func(*orbitCamera)

// WithFieldOfView sets the vertical field of view in radians.
//
// Parameters:
//   - fovY: the vertical field of view in radians
//
// Returns:
//   - OrbitCameraBuilderOption: the option function to apply
func WithFieldOfView(fovY float32) OrbitCameraBuilderOption {
	return func(c *orbitCamera) {
		if fovY > 0 {
			c.fovY = fovY
		}
	}
}

// WithClipPlanes sets the near and far clip plane distances.
//
// Parameters:
//   - near: the near plane distance (must be > 0)
//   - far: the far plane distance (must be > near)
//
// Returns:
//   - OrbitCameraBuilderOption: the option function to apply
func WithClipPlanes(near, far float32) OrbitCameraBuilderOption {
	return func(c *orbitCamera) {
		if near > 0 && far > near {
			c.near = near
			c.far = far
		}
	}
}

// WithInitialOrbit sets the starting yaw, pitch, and distance.
//
// Parameters:
//   - yaw: the starting yaw in radians
//   - pitch: the starting pitch in radians
//   - distance: the starting orbit distance
//
// Returns:
//   - OrbitCameraBuilderOption: the option function to apply
func WithInitialOrbit(yaw, pitch, distance float32) OrbitCameraBuilderOption {
	return func(c *orbitCamera) {
		c.yaw = yaw
		c.pitch = pitch
		if distance > minDistance {
			c.distance = distance
		}
	}
}
