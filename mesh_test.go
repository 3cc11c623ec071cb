package vista

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestSphereMeshGrid(t *testing.T) {
	m := newSphereMesh(8, 4)
	if len(m.points) != 9*5 {
		t.Fatalf("points = %d, want %d", len(m.points), 9*5)
	}
	if len(m.indices) != 8*4*6 {
		t.Fatalf("indices = %d, want %d", len(m.indices), 8*4*6)
	}
	for i, p := range m.points {
		if !approxEqual(r3.Norm(p), SphereRadius, 1e-9) {
			t.Fatalf("point %d at radius %f", i, r3.Norm(p))
		}
	}
	// The seam column is duplicated: first and last vertex of a row share
	// a position but not a texture coordinate.
	row := 9
	if r3.Norm(r3.Sub(m.points[row], m.points[2*row-1])) > 1e-9 {
		t.Error("seam vertices should coincide")
	}
	if m.u[row] != 0 || m.u[2*row-1] != 1 {
		t.Errorf("seam u = %f, %f", m.u[row], m.u[2*row-1])
	}
	if m.v[0] != 0 || m.v[len(m.v)-1] != 1 {
		t.Error("v should run from the north pole (0) to the south pole (1)")
	}
}

func TestSphereMeshProjectCullsBehind(t *testing.T) {
	m := newSphereMesh(sphereSegmentsLon, sphereSegmentsLat)
	cam := testCamera()

	verts, idx := m.project(cam, 4096, 2048)
	if len(verts) != len(m.points) {
		t.Fatalf("verts = %d", len(verts))
	}
	if len(idx) == 0 || len(idx)%3 != 0 {
		t.Fatalf("drawn indices = %d", len(idx))
	}
	if len(idx) >= len(m.indices) {
		t.Error("triangles behind the camera should be dropped")
	}
	for _, i := range idx {
		if !m.visible[i] {
			t.Fatalf("index %d drawn while behind the camera", i)
		}
	}
	for i, v := range verts {
		if v.SrcX < 0 || v.SrcX > 4096 || v.SrcY < 0 || v.SrcY > 2048 {
			t.Fatalf("vertex %d source (%f, %f) outside the texture", i, v.SrcX, v.SrcY)
		}
	}
}

func TestSphereMeshProjectReusesBuffers(t *testing.T) {
	m := newSphereMesh(16, 8)
	cam := testCamera()
	_, first := m.project(cam, 1, 1)
	n := len(first)
	cam.SetOrientation(180, 0)
	_, second := m.project(cam, 1, 1)
	if len(second) != n {
		t.Errorf("symmetric views drew %d and %d indices", n, len(second))
	}
}
