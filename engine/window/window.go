// Package window wraps platform windowing and input for the viewer behind a
// small interface, so the rest of the application never touches GLFW types.
package window

import "github.com/cogentcore/webgpu/wgpu"

// Key identifies the viewer's bound keys in a platform-independent way.
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeyTab
	KeyF
	KeyP
	KeyU
	KeyLeft
	KeyRight
)

// Window provides platform windowing and input event handling for the viewer.
// All methods must be called from the main OS thread.
type Window interface {
	// SetResizeCallback sets the function called when the framebuffer is
	// resized, with pixel dimensions.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the callback for key press events. Only keys
	// with a Key mapping are reported.
	//
	// Parameters:
	//   - callback: function receiving the pressed key
	SetKeyDownCallback(callback func(key Key))

	// SetScrollCallback sets the callback for mouse scroll wheel events.
	//
	// Parameters:
	//   - callback: function receiving scroll delta (positive = up)
	SetScrollCallback(callback func(delta float32))

	// SetDragCallback sets the callback for left-button mouse drags. The
	// window tracks button state and cursor deltas itself; only movement
	// while the button is held is reported.
	//
	// Parameters:
	//   - callback: function receiving the cursor delta in pixels
	SetDragCallback(callback func(dx, dy float32))

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for
	// creating a WebGPU surface for this window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// PollEvents pumps pending window and input events without blocking.
	//
	// Returns:
	//   - bool: true while the window should stay open
	PollEvents() bool

	// RequestClose asks the window to close on the next PollEvents.
	RequestClose()

	// Size returns the current framebuffer size in pixels.
	//
	// Returns:
	//   - int: width in pixels
	//   - int: height in pixels
	Size() (int, int)

	// Close destroys the window and releases platform resources.
	//
	// Returns:
	//   - error: error if the window was never initialized
	Close() error
}

// viewerWindow is the implementation of the Window interface.
type viewerWindow struct {
	title  string
	width  int
	height int

	onResize  func(width, height int)
	onKeyDown func(key Key)
	onScroll  func(delta float32)
	onDrag    func(dx, dy float32)

	internalWindow any
}

var _ Window = &viewerWindow{}

// NewWindow creates and shows the viewer window with the provided options
// applied. Must be called from the main OS thread.
//
// Parameters:
//   - options: a variadic list of WindowBuilderOption functions to configure the window
//
// Returns:
//   - Window: the newly created window
//   - error: error if platform window creation fails
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &viewerWindow{
		title:  "sceneview",
		width:  1280,
		height: 720,
	}

	for _, option := range options {
		option(w)
	}

	if err := newPlatformWindow(w); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *viewerWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *viewerWindow) SetKeyDownCallback(callback func(key Key)) {
	w.onKeyDown = callback
}

func (w *viewerWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *viewerWindow) SetDragCallback(callback func(dx, dy float32)) {
	w.onDrag = callback
}

func (w *viewerWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *viewerWindow) PollEvents() bool {
	return platformProcessMessages(w)
}

func (w *viewerWindow) RequestClose() {
	platformRequestClose(w)
}

func (w *viewerWindow) Size() (int, int) {
	return w.width, w.height
}

func (w *viewerWindow) Close() error {
	return platformCloseWindow(w)
}
