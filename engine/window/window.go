package window

import (
	"fmt"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/Carmen-Shannon/oxy-swarm/engine/scheduler"
	"github.com/cogentcore/webgpu/wgpu"
)

// ClientAPI selects the graphics API the window's surface is created for.
type ClientAPI int

const (
	// ClientAPINone creates a bare surface for WebGPU, which brings its own graphics API.
	ClientAPINone ClientAPI = iota

	// ClientAPIOpenGL creates an OpenGL 4.1 core context with the window.
	ClientAPIOpenGL
)

func (a ClientAPI) String() string {
	switch a {
	case ClientAPINone:
		return "none"
	case ClientAPIOpenGL:
		return "opengl"
	default:
		return fmt.Sprintf("ClientAPI(%d)", int(a))
	}
}

// ClientAPIFor returns the client API the default backend of model draws with.
func ClientAPIFor(model renderer.ExecutionModel) ClientAPI {
	if model.DefaultBackend() == renderer.BackendTypeGL {
		return ClientAPIOpenGL
	}
	return ClientAPINone
}

// Window provides a platform window that paces frames at the monitor refresh and serves as the
// drawable surface of a renderer.
type Window interface {
	scheduler.Display

	// ClientAPI returns the graphics API the window was created for.
	//
	// Returns:
	//   - ClientAPI: the client API
	ClientAPI() ClientAPI

	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetKeyDownCallback sets the callback for key press events.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is platform-appropriate (Windows HWND, X11 Xlib, Wayland, macOS Metal, etc.)
	// and is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// MakeContextCurrent makes the window's OpenGL context current on the calling thread.
	// It does nothing for windows without a context.
	MakeContextCurrent()

	// SwapBuffers presents the back buffer of the OpenGL context.
	SwapBuffers()

	// IsRunning returns true if the window is still active.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if close operation fails
	Close() error

	// Poll runs one message loop iteration: it processes pending events, calls the update
	// callback, and runs the frame callbacks requested since the last iteration. It waits for
	// events instead of spinning when no frame is requested.
	//
	// Returns:
	//   - bool: true while the window is running
	Poll() bool

	// ProcessMessages runs the window message loop.
	// Blocks until the window is closed.
	ProcessMessages()

	// Width returns the current framebuffer width in pixels.
	//
	// Returns:
	//   - int: width in pixels
	Width() int

	// Height returns the current framebuffer height in pixels.
	//
	// Returns:
	//   - int: height in pixels
	Height() int
}

// engineWindow is the implementation of the Window interface.
// Holds window configuration, GLFW state, and event callbacks.
type engineWindow struct {
	// title is the window title displayed in the title bar.
	title string

	// clientAPI selects whether an OpenGL context is created.
	clientAPI ClientAPI

	// vsync makes SwapBuffers wait for the vertical blank.
	vsync bool

	// minWidth and minHeight bound the window size during resize.
	minWidth  int
	minHeight int

	// width and height are the current framebuffer size in pixels.
	width  int
	height int

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	frames  scheduler.FrameQueue
	resizes scheduler.ResizeNotifier

	// onUpdate is called each iteration of the message loop (if set).
	onUpdate func()

	// onKeyDown is called when a key is pressed.
	onKeyDown func(keyCode uint32)
}

var (
	_ Window               = &engineWindow{}
	_ renderer.WGPUSurface = &engineWindow{}
	_ renderer.GLSurface   = &engineWindow{}
)

// NewWindow creates and shows a new Window with the specified options.
// Applies default values first, then each option in order.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
//   - error: error if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "oxy swarm",
		clientAPI: ClientAPINone,
		vsync:     true,
		minWidth:  320,
		minHeight: 240,
		width:     1280,
		height:    720,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("failed to create platform window: %w", err)
	}
	return w, nil
}

func (w *engineWindow) ClientAPI() ClientAPI {
	return w.clientAPI
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) Size() (int, int) {
	return w.width, w.height
}

func (w *engineWindow) RequestFrame(fn func(timestamp time.Duration)) func() {
	return w.frames.Request(fn)
}

func (w *engineWindow) OnResize(fn func(width, height int)) func() {
	return w.resizes.Subscribe(fn)
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) MakeContextCurrent() {
	platformMakeContextCurrent(w)
}

func (w *engineWindow) SwapBuffers() {
	platformSwapBuffers(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) Poll() bool {
	if !platformProcessMessages(w, w.frames.Pending() > 0) {
		return false
	}
	if w.onUpdate != nil {
		w.onUpdate()
	}
	w.frames.Flush(platformTime())
	return w.IsRunning()
}

func (w *engineWindow) ProcessMessages() {
	for w.Poll() {
		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}
