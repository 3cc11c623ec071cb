package vista

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// SphereRadius is the radius of the textured panorama sphere.
	SphereRadius = 500.0
	// MarkerRadius places markers just inside the panorama surface so they
	// never depth-fight with the texture.
	MarkerRadius = 490.0
)

// LonLat is an angular position on the panorama sphere in degrees.
// Lon is normalized to (-180, 180] and Lat to [-90, 90] by DirectionToLonLat.
type LonLat struct {
	Lon, Lat float64
}

// Round returns ll with both components rounded to two decimals, the
// precision positions are stored with.
func (ll LonLat) Round() LonLat {
	return LonLat{Lon: round2(ll.Lon), Lat: round2(ll.Lat)}
}

// Pair returns ll as the [lon, lat] pair stored on connections.
func (ll LonLat) Pair() [2]float64 { return [2]float64{ll.Lon, ll.Lat} }

// Normalized wraps Lon into (-180, 180] and clamps Lat to [-90, 90].
func (ll LonLat) Normalized() LonLat {
	return LonLat{Lon: wrap180(ll.Lon), Lat: clamp(ll.Lat, -90, 90)}
}

// LonLatToDirection returns the unit vector pointing at ll. Latitude is
// measured from the horizon (+Y up), longitude around +Y from +X towards +Z.
func LonLatToDirection(ll LonLat) r3.Vec {
	phi := deg2rad(90 - ll.Lat)
	theta := deg2rad(ll.Lon)
	return r3.Vec{
		X: math.Sin(phi) * math.Cos(theta),
		Y: math.Cos(phi),
		Z: math.Sin(phi) * math.Sin(theta),
	}
}

// DirectionToLonLat maps any non-zero vector to its angular position.
// The zero vector maps to (0, 0).
func DirectionToLonLat(v r3.Vec) LonLat {
	n := r3.Norm(v)
	if n == 0 {
		return LonLat{}
	}
	lat := 90 - rad2deg(math.Acos(clamp(v.Y/n, -1, 1)))
	lon := rad2deg(math.Atan2(v.Z, v.X))
	if math.Abs(lat) == 90 {
		lon = 0
	}
	return LonLat{Lon: wrap180(lon), Lat: lat}
}

// MarkerWorldPosition returns the world position a marker at ll is drawn at.
func MarkerWorldPosition(ll LonLat) r3.Vec {
	return r3.Scale(MarkerRadius, LonLatToDirection(ll))
}

// ScreenToDirection unprojects a viewport pixel through cam and returns the
// unit direction of the point it hits on the panorama sphere. When the ray
// misses the sphere the ray direction itself is returned.
func ScreenToDirection(cam *Camera, px, py float64) r3.Vec {
	origin, dir := cam.ScreenToRay(px, py)
	hit, ok := intersectSphere(origin, dir, SphereRadius)
	if !ok {
		return dir
	}
	return r3.Unit(hit)
}

// ScreenToLonLat is ScreenToDirection followed by DirectionToLonLat.
func ScreenToLonLat(cam *Camera, px, py float64) LonLat {
	return DirectionToLonLat(ScreenToDirection(cam, px, py))
}

// IsAngular reports whether a stored position reads as longitude/latitude.
// Anything outside the angular range is a legacy pixel position.
func IsAngular(x, y float64) bool {
	return x >= -180 && x <= 180 && y >= -90 && y <= 90
}

// LegacyPixelToLonLat converts a position stored as canvas pixels by old
// editors into an angular position, using cam as the canvas it was placed on.
func LegacyPixelToLonLat(cam *Camera, x, y float64) LonLat {
	return ScreenToLonLat(cam, x, y)
}

// ResolvePosition reads a stored [x, y] position. Angular values pass
// through; anything else is treated as legacy pixels and converted with cam.
func ResolvePosition(cam *Camera, pos [2]float64) (ll LonLat, legacy bool) {
	if IsAngular(pos[0], pos[1]) {
		return LonLat{Lon: pos[0], Lat: pos[1]}, false
	}
	return LegacyPixelToLonLat(cam, pos[0], pos[1]), true
}

// intersectSphere returns the far intersection of the ray origin+t*dir
// (t > 0) with a sphere of radius r centered on the world origin.
func intersectSphere(origin, dir r3.Vec, r float64) (r3.Vec, bool) {
	a := r3.Dot(dir, dir)
	if a == 0 {
		return r3.Vec{}, false
	}
	b := 2 * r3.Dot(origin, dir)
	c := r3.Dot(origin, origin) - r*r
	disc := b*b - 4*a*c
	if disc < 0 {
		return r3.Vec{}, false
	}
	t := (-b + math.Sqrt(disc)) / (2 * a)
	if t <= 0 {
		return r3.Vec{}, false
	}
	return r3.Add(origin, r3.Scale(t, dir)), true
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// wrap180 maps an angle in degrees into (-180, 180].
func wrap180(d float64) float64 {
	d = math.Mod(d, 360)
	if d <= -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	return d
}

// wrap360 maps an angle in degrees into [0, 360).
func wrap360(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d -= 360
	}
	return d
}
