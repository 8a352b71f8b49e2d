package common

// Key codes delivered to window key callbacks. Printable keys use their ASCII value and
// the rest use GLFW's codes, matching github.com/go-gl/glfw/v3.3/glfw Key.
const (
	KeyB   = 66  // toggles a camera's depth pre-pass in the examples
	KeyV   = 86  // freezes visibility testing in the examples
	KeyEsc = 256 // quits
)
