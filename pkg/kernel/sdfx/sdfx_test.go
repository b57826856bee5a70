package sdfx

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/bangle/pkg/kernel"
)

func TestBox(t *testing.T) {
	k := New(24)
	box, err := k.Box(1, 0.5, 0.25)
	if err != nil {
		t.Fatalf("Box failed: %v", err)
	}
	mesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	triCount := mesh.TriangleCount()
	if triCount == 0 {
		t.Fatal("expected non-zero triangle count")
	}
	// Verify vertex and index array sizes are consistent.
	if len(mesh.Vertices) != len(mesh.Normals) {
		t.Fatalf("vertices length %d != normals length %d", len(mesh.Vertices), len(mesh.Normals))
	}
	if len(mesh.Indices) != triCount*3 {
		t.Fatalf("indices length %d != triCount*3 %d", len(mesh.Indices), triCount*3)
	}
}

func TestBoxIsCentered(t *testing.T) {
	k := New(0)
	box, err := k.Box(2, 4, 6)
	if err != nil {
		t.Fatalf("Box failed: %v", err)
	}
	min, max := box.BoundingBox()
	want := [3]float64{1, 2, 3}
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]+want[i]) > 1e-9 || math.Abs(max[i]-want[i]) > 1e-9 {
			t.Errorf("axis %d bounds = [%g, %g], want [%g, %g]", i, min[i], max[i], -want[i], want[i])
		}
	}
}

func TestCylinderAndSphere(t *testing.T) {
	k := New(24)
	cyl, err := k.Cylinder(5.5, 0.03)
	if err != nil {
		t.Fatalf("Cylinder failed: %v", err)
	}
	cmin, cmax := cyl.BoundingBox()
	if math.Abs(cmax[2]-cmin[2]-5.5) > 1e-6 {
		t.Errorf("cylinder length along Z = %g, want 5.5", cmax[2]-cmin[2])
	}

	sph, err := k.Sphere(0.1)
	if err != nil {
		t.Fatalf("Sphere failed: %v", err)
	}
	mesh, err := k.ToMesh(sph)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.TriangleCount() == 0 {
		t.Fatal("expected non-zero triangle count")
	}
	t.Logf("sphere triangle count: %d", mesh.TriangleCount())
}

func TestInvalidDimensions(t *testing.T) {
	k := New(0)
	tests := []struct {
		name string
		fn   func() error
	}{
		{"box zero width", func() error { _, err := k.Box(0, 1, 1); return err }},
		{"cylinder negative radius", func() error { _, err := k.Cylinder(1, -1); return err }},
		{"sphere zero radius", func() error { _, err := k.Sphere(0); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if !errors.Is(err, kernel.ErrInvalidDimensions) {
				t.Errorf("err = %v, want ErrInvalidDimensions", err)
			}
		})
	}
}

func TestRotateCylinderOntoX(t *testing.T) {
	k := New(0)
	cyl, err := k.Cylinder(4, 0.1)
	if err != nil {
		t.Fatalf("Cylinder failed: %v", err)
	}
	rotated := k.Rotate(cyl, 0, 90, 0)
	min, max := rotated.BoundingBox()
	if math.Abs((max[0]-min[0])-4) > 1e-6 {
		t.Errorf("rotated cylinder length along X = %g, want 4", max[0]-min[0])
	}
}

func TestUnionAndTranslate(t *testing.T) {
	k := New(24)
	a, _ := k.Sphere(0.1)
	b, _ := k.Box(0.05, 0.05, 0.3)
	u := k.Union(a, k.Translate(b, 0, -0.15, 0))
	min, max := u.BoundingBox()
	if max[2] < 0.15-1e-9 || min[1] > -0.15 {
		t.Errorf("union bounds %v %v do not cover both solids", min, max)
	}
	mesh, err := k.ToMesh(u)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("union mesh is empty")
	}
}
