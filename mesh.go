package vista

import (
	"github.com/hajimehoshi/ebiten/v2"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	sphereSegmentsLon = 64
	sphereSegmentsLat = 32
)

// sphereMesh is a UV sphere at SphereRadius. Vertices are projected on the
// CPU every frame and triangles touching a vertex behind the camera are
// dropped, which is enough for an inward-facing panorama.
type sphereMesh struct {
	points  []r3.Vec
	u, v    []float32 // texture coordinates in [0, 1]
	indices []uint16

	verts   []ebiten.Vertex
	visible []bool
	drawIdx []uint16
}

// newSphereMesh builds a grid of (segLon+1) x (segLat+1) vertices. The seam
// column is duplicated so no triangle wraps around the texture.
func newSphereMesh(segLon, segLat int) sphereMesh {
	n := (segLon + 1) * (segLat + 1)
	m := sphereMesh{
		points:  make([]r3.Vec, 0, n),
		u:       make([]float32, 0, n),
		v:       make([]float32, 0, n),
		indices: make([]uint16, 0, segLon*segLat*6),
		verts:   make([]ebiten.Vertex, n),
		visible: make([]bool, n),
	}
	for j := 0; j <= segLat; j++ {
		lat := 90 - 180*float64(j)/float64(segLat)
		for i := 0; i <= segLon; i++ {
			lon := -180 + 360*float64(i)/float64(segLon)
			m.points = append(m.points, r3.Scale(SphereRadius, LonLatToDirection(LonLat{Lon: lon, Lat: lat})))
			m.u = append(m.u, float32(i)/float32(segLon))
			m.v = append(m.v, float32(j)/float32(segLat))
		}
	}
	row := uint16(segLon + 1)
	for j := 0; j < segLat; j++ {
		for i := 0; i < segLon; i++ {
			a := uint16(j)*row + uint16(i)
			b := a + 1
			c := a + row
			d := c + 1
			m.indices = append(m.indices, a, c, b, b, c, d)
		}
	}
	return m
}

// project fills the vertex buffer for cam and returns the indices of the
// triangles fully in front of it. texW and texH scale the texture
// coordinates to the source image.
func (m *sphereMesh) project(cam *Camera, texW, texH float32) ([]ebiten.Vertex, []uint16) {
	for i, p := range m.points {
		sx, sy, ok := cam.WorldToScreen(p)
		m.visible[i] = ok
		m.verts[i] = ebiten.Vertex{
			DstX:   float32(sx),
			DstY:   float32(sy),
			SrcX:   m.u[i] * texW,
			SrcY:   m.v[i] * texH,
			ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1,
		}
	}
	m.drawIdx = m.drawIdx[:0]
	for t := 0; t+2 < len(m.indices); t += 3 {
		a, b, c := m.indices[t], m.indices[t+1], m.indices[t+2]
		if m.visible[a] && m.visible[b] && m.visible[c] {
			m.drawIdx = append(m.drawIdx, a, b, c)
		}
	}
	return m.verts, m.drawIdx
}
