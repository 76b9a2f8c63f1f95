package splat

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a perspective camera looking from Position at Target.
type Camera struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3

	// FovY is the vertical field of view in radians.
	FovY   float32
	Aspect float32
	Near   float32
	Far    float32
}

// DefaultCamera returns a camera five units in front of the origin with a
// 60 degree field of view.
func DefaultCamera(aspect float32) Camera {
	return Camera{
		Position: mgl32.Vec3{0, 0, 5},
		Up:       mgl32.Vec3{0, 1, 0},
		FovY:     mgl32.DegToRad(60),
		Aspect:   aspect,
		Near:     0.01,
		Far:      1000,
	}
}

// View returns the world-to-camera matrix.
func (c Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Target, c.Up)
}

// Projection returns the perspective projection matrix.
func (c Camera) Projection() mgl32.Mat4 {
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	return mgl32.Perspective(c.FovY, aspect, c.Near, c.Far)
}

// FrameBounds returns a camera that orbits the center of b at the given yaw
// and pitch (radians) and keeps the whole box in view.
func FrameBounds(b BBox, yaw, pitch, aspect float32) Camera {
	cam := DefaultCamera(aspect)
	if b.Empty() {
		return cam
	}
	center := b.Center()
	radius := max(b.Diagonal()*0.5, 1e-3)

	half := cam.FovY * 0.5
	if aspect > 0 && aspect < 1 {
		// Fit the narrower horizontal extent.
		half = math32.Atan(math32.Tan(half) * aspect)
	}
	dist := radius / math32.Sin(half) * 1.05

	// Stay off the poles where the up vector degenerates.
	pitch = mgl32.Clamp(pitch, -1.5, 1.5)
	cp := math32.Cos(pitch)
	dir := mgl32.Vec3{math32.Sin(yaw) * cp, math32.Sin(pitch), math32.Cos(yaw) * cp}

	cam.Position = center.Add(dir.Mul(dist))
	cam.Target = center
	cam.Near = max(dist-radius*2, dist*1e-3)
	cam.Far = dist + radius*2
	return cam
}
