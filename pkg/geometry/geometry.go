// Package geometry converts normalized detector coordinates into consumer
// viewport pixels under an aspect-fill (cover) policy.
//
// Detectors report geometry normalized to [0,1] with a bottom-left origin.
// Viewports use top-left-origin pixels. Every conversion therefore flips the
// vertical axis exactly once, scales by the larger of the two axis ratios so
// the frame fully covers the viewport, and centers the scaled frame so the
// excess on each axis is cropped symmetrically.
//
// All functions are pure; nothing is cached between calls.
package geometry

// Point is a 2D point. Depending on context it holds normalized [0,1]
// coordinates or viewport pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether either dimension is missing.
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Rect is an axis-aligned rectangle anchored at its origin corner.
// For normalized detector rects the origin is the bottom-left corner;
// after FlipRect and for viewport rects it is the top-left corner.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Min returns the origin corner of the rect.
func (r Rect) Min() Point {
	return Point{X: r.X, Y: r.Y}
}

// Max returns the corner opposite the origin.
func (r Rect) Max() Point {
	return Point{X: r.X + r.W, Y: r.Y + r.H}
}

// AspectFillScale returns the scale factor that makes frame cover viewport:
// the larger of the two axis ratios, so the excess is cropped rather than
// letterboxed. Returns 0 when either size is degenerate.
func AspectFillScale(frame, viewport Size) float64 {
	if frame.IsZero() || viewport.IsZero() {
		return 0
	}
	sx := viewport.Width / frame.Width
	sy := viewport.Height / frame.Height
	if sx > sy {
		return sx
	}
	return sy
}

// FlipY converts a frame-relative normalized point from the detector's
// bottom-left origin to a top-left origin.
func FlipY(p Point) Point {
	return Point{X: p.X, Y: 1 - p.Y}
}

// FlipRect converts a normalized bottom-left-origin rect to a top-left-origin
// rect. The origin moves by the rect's full extent, not just the corner
// point, so the vertical placement stays correct.
func FlipRect(r Rect) Rect {
	return Rect{X: r.X, Y: 1 - r.Y - r.H, W: r.W, H: r.H}
}

// ToViewportPoint maps a frame-relative normalized point (top-left origin,
// already flipped) to viewport pixels under aspect-fill. A degenerate frame
// or viewport yields the zero point.
func ToViewportPoint(p Point, frame, viewport Size) Point {
	scale := AspectFillScale(frame, viewport)
	if scale == 0 {
		return Point{}
	}
	px := p.X * frame.Width
	py := p.Y * frame.Height
	offsetX := (frame.Width*scale - viewport.Width) / 2
	offsetY := (frame.Height*scale - viewport.Height) / 2
	return Point{
		X: px*scale - offsetX,
		Y: py*scale - offsetY,
	}
}

// ToViewportRect maps a frame-relative normalized rect (top-left origin,
// already flipped) to viewport pixels by transforming its two corners
// independently and rebuilding the rect from them.
func ToViewportRect(r Rect, frame, viewport Size) Rect {
	if frame.IsZero() || viewport.IsZero() {
		return Rect{}
	}
	min := ToViewportPoint(r.Min(), frame, viewport)
	max := ToViewportPoint(r.Max(), frame, viewport)
	return Rect{
		X: min.X,
		Y: min.Y,
		W: max.X - min.X,
		H: max.Y - min.Y,
	}
}

// LandmarkToFrame composes a face-box-relative landmark point into
// frame-relative normalized space. Both the landmark and faceBox must be in
// the detector's native bottom-left convention; the result stays bottom-left.
func LandmarkToFrame(local Point, faceBox Rect) Point {
	return Point{
		X: faceBox.X + local.X*faceBox.W,
		Y: faceBox.Y + local.Y*faceBox.H,
	}
}

// LandmarkToViewport maps a face-box-relative landmark point to viewport
// pixels. Composition happens in the detector's unflipped bottom-left space
// using the detector's own unflipped bounding box; the vertical flip is then
// applied once before the aspect-fill transform.
func LandmarkToViewport(local Point, faceBox Rect, frame, viewport Size) Point {
	if frame.IsZero() || viewport.IsZero() {
		return Point{}
	}
	return ToViewportPoint(FlipY(LandmarkToFrame(local, faceBox)), frame, viewport)
}
