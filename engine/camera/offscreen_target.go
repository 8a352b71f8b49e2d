package camera

// OffscreenTarget is a fixed-size RenderTarget backed by a texture rather than a window surface.
// Cameras rendering into one do not contribute a surface to presentation.
type OffscreenTarget struct {
	Label string
	W     int
	H     int
}

var _ RenderTarget = &OffscreenTarget{}

// NewOffscreenTarget creates an offscreen target of the given size.
//
// Parameters:
//   - label: debug label of the backing texture
//   - width: width in pixels
//   - height: height in pixels
//
// Returns:
//   - *OffscreenTarget: the target
func NewOffscreenTarget(label string, width, height int) *OffscreenTarget {
	return &OffscreenTarget{Label: label, W: width, H: height}
}

func (o *OffscreenTarget) Width() int {
	return o.W
}

func (o *OffscreenTarget) Height() int {
	return o.H
}
