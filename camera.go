package vista

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"gonum.org/v1/gonum/spatial/r3"
)

// Orientation limits and defaults.
const (
	MinLat = -85.0
	MaxLat = 85.0
	MinFOV = 10.0
	MaxFOV = 120.0

	DefaultLon = 0.0
	DefaultLat = 0.0
	DefaultFOV = 75.0

	// DefaultPanSensitivity converts pointer pixels to degrees.
	DefaultPanSensitivity = 0.1
	// DefaultDampening is the per-tick momentum decay factor.
	DefaultDampening = 0.92
	// DefaultMomentumEpsilon is the momentum magnitude below which it stops.
	DefaultMomentumEpsilon = 0.01

	nearPlane = 0.01
)

var worldUp = r3.Vec{Y: 1}

// orientAnim holds active orientation tweens. A nil tween leaves its
// component alone.
type orientAnim struct {
	lon, lat, fov *gween.Tween
	fovTo         float64 // end value of fov
}

// Camera is the viewer at the center of the panorama sphere. Its position is
// fixed at the origin; only the look direction (Lon, Lat) and the vertical
// field of view change.
type Camera struct {
	// Viewport is the screen-space rectangle this camera renders into.
	Viewport Rect

	// Sensitivity converts pointer pixels to degrees while panning.
	Sensitivity float64
	// Dampening multiplies momentum once per tick after a pan is released.
	Dampening float64
	// Epsilon is the momentum magnitude below which momentum is zeroed.
	Epsilon float64

	lon, lat, fov float64

	panning  bool
	momentum Vec2 // degrees per tick (lon, lat)

	anim *orientAnim

	forward, right, up r3.Vec
	dirty              bool
}

// NewCamera returns a camera at the default orientation.
func NewCamera(viewport Rect) *Camera {
	return &Camera{
		Viewport:    viewport,
		Sensitivity: DefaultPanSensitivity,
		Dampening:   DefaultDampening,
		Epsilon:     DefaultMomentumEpsilon,
		lon:         DefaultLon,
		lat:         DefaultLat,
		fov:         DefaultFOV,
		dirty:       true,
	}
}

// Lon returns the look longitude in [0, 360).
func (c *Camera) Lon() float64 { return c.lon }

// Lat returns the look latitude in [MinLat, MaxLat].
func (c *Camera) Lat() float64 { return c.lat }

// FOV returns the vertical field of view in degrees.
func (c *Camera) FOV() float64 { return c.fov }

// LookAt returns the orientation as a LonLat with Lon in (-180, 180].
func (c *Camera) LookAt() LonLat { return LonLat{Lon: wrap180(c.lon), Lat: c.lat} }

// Momentum returns the current per-tick momentum in degrees.
func (c *Camera) Momentum() Vec2 { return c.momentum }

// Panning reports whether a pan is in progress.
func (c *Camera) Panning() bool { return c.panning }

// SetOrientation sets the look direction. Longitude is wrapped into
// [0, 360) and latitude clamped to [MinLat, MaxLat].
func (c *Camera) SetOrientation(lon, lat float64) {
	lon = wrap360(lon)
	lat = clamp(lat, MinLat, MaxLat)
	if lon != c.lon || lat != c.lat {
		c.lon, c.lat = lon, lat
		c.dirty = true
	}
}

// SetFOV sets the field of view, clamped to [MinFOV, MaxFOV].
func (c *Camera) SetFOV(fov float64) {
	fov = clamp(fov, MinFOV, MaxFOV)
	if fov != c.fov {
		c.fov = fov
		c.dirty = true
	}
}

// ZoomBy changes the field of view by delta degrees. Independent of pan
// momentum.
func (c *Camera) ZoomBy(delta float64) {
	c.stopZoom()
	c.SetFOV(c.fov + delta)
}

// ZoomTarget returns the field of view a running zoom tween is heading to,
// or the current one when no zoom is animating.
func (c *Camera) ZoomTarget() float64 {
	if c.anim != nil && c.anim.fov != nil {
		return c.anim.fovTo
	}
	return c.fov
}

func (c *Camera) stopZoom() {
	if c.anim != nil {
		c.anim.fov = nil
	}
}

// BeginPan enters the panning state and zeroes momentum.
func (c *Camera) BeginPan() {
	c.panning = true
	c.momentum = Vec2{}
	c.anim = nil
}

// PanBy applies a pointer delta in pixels. Dragging right turns the view
// left, dragging down tilts it up. The applied delta becomes the momentum.
func (c *Camera) PanBy(dx, dy float64) {
	dLon := -dx * c.Sensitivity
	dLat := dy * c.Sensitivity
	c.SetOrientation(c.lon+dLon, c.lat+dLat)
	c.momentum = Vec2{X: dLon, Y: dLat}
}

// EndPan leaves the panning state. Momentum is kept and decays in update.
func (c *Camera) EndPan() {
	c.panning = false
}

// ClearMomentum stops any inertial motion.
func (c *Camera) ClearMomentum() {
	c.momentum = Vec2{}
}

// Reset jumps to an orientation, cancelling pans, momentum and tweens.
func (c *Camera) Reset(lon, lat, fov float64) {
	c.panning = false
	c.momentum = Vec2{}
	c.anim = nil
	c.SetOrientation(lon, lat)
	c.SetFOV(fov)
}

// ZoomTo animates the field of view to fov over duration seconds.
func (c *Camera) ZoomTo(fov float64, duration float32, easeFn ease.TweenFunc) {
	fov = clamp(fov, MinFOV, MaxFOV)
	if c.anim == nil {
		c.anim = &orientAnim{}
	}
	c.anim.fov = gween.New(float32(c.fov), float32(fov), duration, easeFn)
	c.anim.fovTo = fov
}

// FlyTo animates the orientation to (lon, lat, fov) along the shortest
// longitude arc. Momentum is cleared.
func (c *Camera) FlyTo(lon, lat, fov float64, duration float32, easeFn ease.TweenFunc) {
	c.momentum = Vec2{}
	to := c.lon + wrap180(lon-c.lon)
	fov = clamp(fov, MinFOV, MaxFOV)
	c.anim = &orientAnim{
		lon:   gween.New(float32(c.lon), float32(to), duration, easeFn),
		lat:   gween.New(float32(c.lat), float32(clamp(lat, MinLat, MaxLat)), duration, easeFn),
		fov:   gween.New(float32(c.fov), float32(fov), duration, easeFn),
		fovTo: fov,
	}
}

// Animating reports whether a tween is running.
func (c *Camera) Animating() bool { return c.anim != nil }

// update advances tweens and momentum by one tick.
func (c *Camera) update(dt float32) {
	if c.anim != nil {
		c.stepAnim(dt)
	}
	if c.panning {
		return
	}
	if math.Hypot(c.momentum.X, c.momentum.Y) <= c.Epsilon {
		c.momentum = Vec2{}
		return
	}
	c.SetOrientation(c.lon+c.momentum.X, c.lat+c.momentum.Y)
	c.momentum.X *= c.Dampening
	c.momentum.Y *= c.Dampening
	if math.Hypot(c.momentum.X, c.momentum.Y) < c.Epsilon {
		c.momentum = Vec2{}
	}
}

func (c *Camera) stepAnim(dt float32) {
	a := c.anim
	lon, lat, fov := c.lon, c.lat, c.fov
	done := true
	if a.lon != nil {
		v, finished := a.lon.Update(dt)
		lon = float64(v)
		if finished {
			a.lon = nil
		} else {
			done = false
		}
	}
	if a.lat != nil {
		v, finished := a.lat.Update(dt)
		lat = float64(v)
		if finished {
			a.lat = nil
		} else {
			done = false
		}
	}
	if a.fov != nil {
		v, finished := a.fov.Update(dt)
		fov = float64(v)
		if finished {
			a.fov = nil
		} else {
			done = false
		}
	}
	c.SetOrientation(lon, lat)
	c.SetFOV(fov)
	if done {
		c.anim = nil
	}
}

// computeBasis recomputes the cached view basis if dirty.
func (c *Camera) computeBasis() {
	if !c.dirty {
		return
	}
	c.dirty = false
	c.forward = LonLatToDirection(LonLat{Lon: c.lon, Lat: c.lat})
	c.right = r3.Unit(r3.Cross(c.forward, worldUp))
	c.up = r3.Cross(c.right, c.forward)
}

// focal returns the projection scale and viewport aspect ratio.
func (c *Camera) focal() (f, aspect float64) {
	f = 1 / math.Tan(deg2rad(c.fov)/2)
	aspect = 1
	if c.Viewport.Height > 0 {
		aspect = c.Viewport.Width / c.Viewport.Height
	}
	return f, aspect
}

// WorldToScreen projects a world point onto the viewport. ok is false when
// the point is behind the camera.
func (c *Camera) WorldToScreen(p r3.Vec) (sx, sy float64, ok bool) {
	c.computeBasis()
	z := r3.Dot(p, c.forward)
	if z <= nearPlane {
		return 0, 0, false
	}
	f, aspect := c.focal()
	ndcX := r3.Dot(p, c.right) / z * f / aspect
	ndcY := r3.Dot(p, c.up) / z * f
	sx = c.Viewport.X + (ndcX+1)/2*c.Viewport.Width
	sy = c.Viewport.Y + (1-ndcY)/2*c.Viewport.Height
	return sx, sy, true
}

// ScreenToRay returns the world ray through a viewport pixel. The origin is
// always the camera position (the world origin); dir is a unit vector.
func (c *Camera) ScreenToRay(sx, sy float64) (origin, dir r3.Vec) {
	c.computeBasis()
	f, aspect := c.focal()
	ndcX, ndcY := 0.0, 0.0
	if c.Viewport.Width > 0 {
		ndcX = 2*(sx-c.Viewport.X)/c.Viewport.Width - 1
	}
	if c.Viewport.Height > 0 {
		ndcY = 1 - 2*(sy-c.Viewport.Y)/c.Viewport.Height
	}
	d := r3.Add(c.forward, r3.Add(
		r3.Scale(ndcX*aspect/f, c.right),
		r3.Scale(ndcY/f, c.up),
	))
	return r3.Vec{}, r3.Unit(d)
}

// MarkDirty forces a recomputation of the view basis.
func (c *Camera) MarkDirty() {
	c.dirty = true
}
