package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwWindow holds the GLFW-specific window state.
type glfwWindow struct {
	parent *viewerWindow
	window *glfw.Window

	dragging   bool
	lastCursor [2]float64
}

// keyMap translates the GLFW key codes the viewer binds to Key values.
var keyMap = map[glfw.Key]Key{
	glfw.KeyEscape: KeyEscape,
	glfw.KeyTab:    KeyTab,
	glfw.KeyF:      KeyF,
	glfw.KeyP:      KeyP,
	glfw.KeyU:      KeyU,
	glfw.KeyLeft:   KeyLeft,
	glfw.KeyRight:  KeyRight,
}

// newPlatformWindow creates the GLFW window with input callbacks and stores
// it as the internal window.
func newPlatformWindow(w *viewerWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %v", err)
	}

	// WebGPU provides its own graphics API, so disable OpenGL context creation.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create GLFW window: %v", err)
	}

	gw := &glfwWindow{
		parent: w,
		window: win,
	}
	w.internalWindow = gw

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		if mapped, ok := keyMap[key]; ok && w.onKeyDown != nil {
			w.onKeyDown(mapped)
		}
	})

	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		if w.onScroll != nil {
			w.onScroll(float32(yoff))
		}
	})

	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft {
			return
		}
		gw.dragging = action == glfw.Press
		if gw.dragging {
			gw.lastCursor[0], gw.lastCursor[1] = win.GetCursorPos()
		}
	})

	win.SetCursorPosCallback(func(_ *glfw.Window, xpos, ypos float64) {
		if !gw.dragging {
			return
		}
		dx := float32(xpos - gw.lastCursor[0])
		dy := float32(ypos - gw.lastCursor[1])
		gw.lastCursor[0], gw.lastCursor[1] = xpos, ypos
		if w.onDrag != nil {
			w.onDrag(dx, dy)
		}
	})

	// Use framebuffer size for pixel-accurate resize events; on high-DPI
	// displays the framebuffer size differs from the window size and the
	// renderer needs pixels.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		if width <= 0 || height <= 0 {
			return
		}
		w.width = width
		w.height = height
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})

	fbWidth, fbHeight := win.GetFramebufferSize()
	w.width = fbWidth
	w.height = fbHeight

	return nil
}

// platformGetSurfaceDescriptor creates a platform-appropriate
// wgpu.SurfaceDescriptor from the GLFW window via the wgpuglfw bridge.
func platformGetSurfaceDescriptor(w *viewerWindow) *wgpu.SurfaceDescriptor {
	if w.internalWindow == nil {
		return nil
	}
	gw := w.internalWindow.(*glfwWindow)
	return wgpuglfw.GetSurfaceDescriptor(gw.window)
}

// platformProcessMessages polls GLFW for pending events without blocking.
func platformProcessMessages(w *viewerWindow) bool {
	if w.internalWindow == nil {
		return false
	}
	glfw.PollEvents()
	gw := w.internalWindow.(*glfwWindow)
	return !gw.window.ShouldClose()
}

func platformRequestClose(w *viewerWindow) {
	if w.internalWindow == nil {
		return
	}
	gw := w.internalWindow.(*glfwWindow)
	gw.window.SetShouldClose(true)
}

// platformCloseWindow destroys the GLFW window and terminates the GLFW library.
func platformCloseWindow(w *viewerWindow) error {
	if w.internalWindow == nil {
		return fmt.Errorf("window is not initialized")
	}
	gw := w.internalWindow.(*glfwWindow)
	gw.window.Destroy()
	glfw.Terminate()
	w.internalWindow = nil
	return nil
}
