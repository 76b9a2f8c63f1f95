package splat

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestDefaultCamera(t *testing.T) {
	c := DefaultCamera(2)
	// The origin projects to the image center.
	clip := c.Projection().Mul4(c.View()).Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !mgl32.FloatEqualThreshold(clip[0]/clip[3], 0, 1e-6) || !mgl32.FloatEqualThreshold(clip[1]/clip[3], 0, 1e-6) {
		t.Errorf("origin projects to %v, want center", clip)
	}
	if got := c.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})[2]; !mgl32.FloatEqualThreshold(got, -5, 1e-5) {
		t.Errorf("origin view z = %v, want -5", got)
	}

	zero := DefaultCamera(0)
	if !zero.Projection().ApproxEqual(DefaultCamera(1).Projection()) {
		t.Error("aspect 0 should project like aspect 1")
	}
}

func TestFrameBounds_KeepsBoxInView(t *testing.T) {
	boxes := []BBox{
		{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}},
		{Min: mgl32.Vec3{10, 0, -3}, Max: mgl32.Vec3{14, 0.5, 3}},
		{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{0.01, 0.01, 0.01}},
	}
	views := []struct {
		yaw, pitch, aspect float32
	}{
		{0, 0, 1},
		{0.7, 0.3, 16.0 / 9},
		{-2, -0.9, 0.5},
		{3, 2, 1}, // pitch clamped
	}
	for bi, b := range boxes {
		for _, v := range views {
			c := FrameBounds(b, v.yaw, v.pitch, v.aspect)
			view, proj := c.View(), c.Projection()
			for corner := range 8 {
				p := b.Min
				for k := range 3 {
					if corner&(1<<k) != 0 {
						p[k] = b.Max[k]
					}
				}
				vp := view.Mul4x1(p.Vec4(1))
				depth := -vp[2]
				if depth <= c.Near || depth >= c.Far {
					t.Errorf("box %d view %+v: corner %v depth %v outside (%v, %v)", bi, v, p, depth, c.Near, c.Far)
				}
				clip := proj.Mul4x1(vp)
				if x, y := clip[0]/clip[3], clip[1]/clip[3]; x < -1 || x > 1 || y < -1 || y > 1 {
					t.Errorf("box %d view %+v: corner %v at ndc (%v, %v)", bi, v, p, x, y)
				}
			}
		}
	}
}

func TestFrameBounds_Empty(t *testing.T) {
	c := FrameBounds(BBox{Min: mgl32.Vec3{1, 1, 1}}, 0, 0, 1.5)
	if c != DefaultCamera(1.5) {
		t.Errorf("FrameBounds(empty) = %+v, want default camera", c)
	}
}
