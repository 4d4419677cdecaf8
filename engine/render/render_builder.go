package render

import "github.com/cogentcore/webgpu/wgpu"

// MeshRendererBuilderOption is a function that modifies the meshRenderer
// before its device is requested.
type MeshRendererBuilderOption func(*meshRenderer)

// WithPresentMode sets the swapchain present mode. The default is Fifo
// (vsync).
//
// Parameters:
//   - mode: the wgpu present mode
//
// Returns:
//   - MeshRendererBuilderOption: the option function to apply
func WithPresentMode(mode wgpu.PresentMode) MeshRendererBuilderOption {
	return func(r *meshRenderer) {
		r.presentMode = mode
	}
}

// WithClearColor sets the render pass clear color.
//
// Parameters:
//   - c: the clear color
//
// Returns:
//   - MeshRendererBuilderOption: the option function to apply
func WithClearColor(c wgpu.Color) MeshRendererBuilderOption {
	return func(r *meshRenderer) {
		r.clearColor = c
	}
}
