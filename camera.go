package voxelrender

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type frustumPos int

const (
	frustumInside frustumPos = iota
	frustumOutside
	frustumIntersects
)

// frustum is the radar-style view frustum: points and spheres are
// classified against the camera basis instead of extracted planes.
type frustum struct {
	sphereFactorX float32
	sphereFactorY float32
	tang          float32
	x, y, z       mgl32.Vec3
}

func newFrustum(fovDeg, aspect float32, pos, target, up mgl32.Vec3) frustum {
	angle := fovDeg * (math.Pi / 360.0)
	tang := float32(math.Tan(float64(angle)))
	angleX := float32(math.Atan(float64(tang * aspect)))
	f := frustum{
		tang:          tang,
		sphereFactorY: 1.0 / float32(math.Cos(float64(angle))),
		sphereFactorX: 1.0 / float32(math.Cos(float64(angleX))),
	}
	f.update(pos, target, up)
	return f
}

func (f *frustum) update(pos, target, up mgl32.Vec3) {
	f.z = pos.Sub(target).Normalize()
	f.x = up.Cross(f.z).Normalize()
	f.y = f.z.Cross(f.x)
}

func (f *frustum) sphere(center mgl32.Vec3, radius float32, camPos mgl32.Vec3, far, near, ratio float32) frustumPos {
	v := center.Sub(camPos)

	az := v.Dot(f.z.Mul(-1))
	if az > far+radius || az < near-radius {
		return frustumOutside
	}

	ax := v.Dot(f.x)
	zz1 := az * f.tang * ratio
	d1 := f.sphereFactorX * radius
	if ax > zz1+d1 || ax < -zz1-d1 {
		return frustumOutside
	}

	ay := v.Dot(f.y)
	zz2 := az * f.tang
	d2 := f.sphereFactorY * radius
	if ay > zz2+d2 || ay < -zz2-d2 {
		return frustumOutside
	}

	switch {
	case az > far-radius || az < near+radius:
		return frustumIntersects
	case ay > zz2-d2 || ay < -zz2+d2:
		return frustumIntersects
	case ax > zz1-d1 || ax < -zz1+d1:
		return frustumIntersects
	default:
		return frustumInside
	}
}

// Camera is the render viewpoint and the culling frustum derived from
// it. UpdateFrustum must be called after moving or turning the camera.
type Camera struct {
	Pos   mgl32.Vec3
	Front mgl32.Vec3
	Up    mgl32.Vec3

	Fov    float32
	Aspect float32
	Near   float32
	Far    float32

	frustum frustum
}

func NewCamera(pos mgl32.Vec3, aspect float32) *Camera {
	c := &Camera{
		Pos:    pos,
		Front:  mgl32.Vec3{0, 0, -1},
		Up:     mgl32.Vec3{0, 1, 0},
		Fov:    45,
		Aspect: aspect,
		Near:   0.1,
		Far:    500,
	}
	c.frustum = newFrustum(c.Fov, c.Aspect, c.Pos, c.target(), c.Up)
	return c
}

func (c *Camera) target() mgl32.Vec3 {
	return c.Pos.Add(c.Front)
}

func (c *Camera) UpdateFrustum() {
	c.frustum.update(c.Pos, c.target(), c.Up)
}

// Move translates the camera along its own basis: forward along the view
// direction, right perpendicular to it, up along the world up vector.
func (c *Camera) Move(forward, right, up float32) {
	f := c.Front.Normalize()
	r := f.Cross(c.Up).Normalize()
	c.Pos = c.Pos.Add(f.Mul(forward)).Add(r.Mul(right)).Add(c.Up.Mul(up))
}

// Rotate turns the camera by the given yaw and pitch deltas in degrees.
// Pitch is clamped short of straight up and down so the view basis stays
// well defined.
func (c *Camera) Rotate(yawDelta, pitchDelta float32) {
	yaw := float32(math.Atan2(float64(c.Front.Z()), float64(c.Front.X())))
	pitch := float32(math.Asin(float64(c.Front.Y())))
	yaw += mgl32.DegToRad(yawDelta)
	pitch += mgl32.DegToRad(pitchDelta)

	limit := float32(math.Pi/2 - 0.01)
	if pitch > limit {
		pitch = limit
	}
	if pitch < -limit {
		pitch = -limit
	}
	c.Front = mgl32.Vec3{
		float32(math.Cos(float64(pitch)) * math.Cos(float64(yaw))),
		float32(math.Sin(float64(pitch))),
		float32(math.Cos(float64(pitch)) * math.Sin(float64(yaw))),
	}.Normalize()
}

// SphereInView reports whether the sphere is at least partially inside
// the view frustum.
func (c *Camera) SphereInView(center mgl32.Vec3, radius float32) bool {
	return c.frustum.sphere(center, radius, c.Pos, c.Far, c.Near, c.Aspect) != frustumOutside
}

// CubeInView culls an axis-aligned cube by its bounding sphere.
func (c *Camera) CubeInView(center mgl32.Vec3, size float32) bool {
	return c.SphereInView(center, size/2*1.732051)
}

func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Pos, c.target(), c.Up)
}

func (c *Camera) Projection() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.Fov), c.Aspect, c.Near, c.Far)
}

func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}

// CameraModule installs the camera resource and keeps its frustum in
// sync before rendering.
type CameraModule struct {
	Pos    mgl32.Vec3
	Aspect float32
}

func (m CameraModule) Install(app *App, cmd *Commands) {
	aspect := m.Aspect
	if aspect == 0 {
		aspect = 16.0 / 9.0
	}
	cmd.AddResources(NewCamera(m.Pos, aspect))
	cmd.UseSystem(System(cameraFrustumSystem).InStage(PreRender))
}

func cameraFrustumSystem(camera *Camera) {
	camera.UpdateFrustum()
}
