package skeleton

import "math"

// Angles is the camera mounting orientation in degrees about each axis.
// Any real value is accepted; the trigonometry wraps it.
type Angles struct {
	X, Y, Z float32
}

// IsZero reports whether all three angles are zero.
func (a Angles) IsZero() bool {
	return a.X == 0 && a.Y == 0 && a.Z == 0
}

// degToRad converts single-precision degrees to radians in double precision.
func degToRad(deg float32) float64 {
	return float64(deg) * math.Pi / 180
}

// Rotate maps p into the reference frame described by a.
//
// The rotation is a sequential pipeline, not three independent single-axis
// rotations: X is applied to (y, z) first, Y then uses the input x and
// the z from the X step, and Z uses the y from the X step and the x from the
// Y step. Each step is evaluated in double precision and rounded to float32
// before it is reused, so output matches existing recordings bit for bit.
// The explicit float64 conversions around each product keep the compiler
// from fusing multiply-adds.
func Rotate(p Vec3, a Angles) Vec3 {
	ax, ay, az := degToRad(a.X), degToRad(a.Y), degToRad(a.Z)
	cosX, sinX := math.Cos(ax), math.Sin(ax)
	cosY, sinY := math.Cos(ay), math.Sin(ay)
	cosZ, sinZ := math.Cos(az), math.Sin(az)

	x, y, z := float64(p.X), float64(p.Y), float64(p.Z)

	// X axis: (y, z) -> (yRot, zRot)
	yRot := float32(float64(y*cosX) + float64(z*sinX))
	zRot := float32(float64(z*cosX) - float64(y*sinX))

	// Y axis: (x, zRot) -> (xRot, zFinal)
	xRot := float32(float64(x*cosY) + float64(float64(zRot)*sinY))
	zFinal := float32(float64(float64(zRot)*cosY) - float64(x*sinY))

	// Z axis: (xRot, yRot) -> (xFinal, yFinal)
	xFinal := float32(float64(float64(xRot)*cosZ) + float64(float64(yRot)*sinZ))
	yFinal := float32(float64(float64(yRot)*cosZ) - float64(float64(xRot)*sinZ))

	return Vec3{X: xFinal, Y: yFinal, Z: zFinal}
}
