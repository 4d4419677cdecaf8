package window

// WindowBuilderOption is a function that modifies the viewerWindow before
// the platform window is created.
type WindowBuilderOption func(*viewerWindow)

// WithTitle sets the window title.
//
// Parameters:
//   - title: the title bar text
//
// Returns:
//   - WindowBuilderOption: the option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *viewerWindow) {
		if title != "" {
			w.title = title
		}
	}
}

// WithSize sets the initial window size in screen coordinates. Non-positive
// dimensions keep the defaults.
//
// Parameters:
//   - width: the initial width
//   - height: the initial height
//
// Returns:
//   - WindowBuilderOption: the option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(w *viewerWindow) {
		if width > 0 && height > 0 {
			w.width = width
			w.height = height
		}
	}
}
