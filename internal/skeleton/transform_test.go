package skeleton

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestRotate_IdentityAtZeroAngles(t *testing.T) {
	t.Parallel()

	points := []Vec3{
		{0, 0, 0},
		{1, 2, 3},
		{-812.5, 431.25, 2210.75},
		{1e-6, -1e6, 42},
	}
	for _, p := range points {
		assert.Equal(t, p, Rotate(p, Angles{}), "point %+v", p)
	}
}

func TestRotate_NegativeZeroBecomesPositiveAtZeroAngles(t *testing.T) {
	t.Parallel()

	// -0*cos(0) + 2000*sin(0) is +0 in IEEE arithmetic, so a raw -0 column
	// is written back as 0 even with no rotation.
	negZero := float32(math.Copysign(0, -1))
	got := Rotate(Vec3{X: negZero, Y: negZero, Z: 2000}, Angles{})

	assert.Equal(t, float32(0), got.X)
	assert.False(t, math.Signbit(float64(got.X)), "x keeps no sign")
	assert.False(t, math.Signbit(float64(got.Y)), "y keeps no sign")
	assert.Equal(t, float32(2000), got.Z)
}

func TestRotate_XStepLeavesXAxisAlone(t *testing.T) {
	t.Parallel()

	got := Rotate(Vec3{X: 1}, Angles{X: 90})
	assert.Equal(t, float32(1), got.X)
	assert.InDelta(t, 0, got.Y, 1e-6)
	assert.InDelta(t, 0, got.Z, 1e-6)
}

func TestRotate_XStepSignConvention(t *testing.T) {
	t.Parallel()

	// z' = z*cos(a) - y*sin(a): +90 degrees about X carries +y onto -z.
	got := Rotate(Vec3{Y: 1}, Angles{X: 90})
	assert.InDelta(t, 0, got.X, 1e-6)
	assert.InDelta(t, 0, got.Y, 1e-6)
	assert.InDelta(t, -1, got.Z, 1e-6)
}

func TestRotate_SingleAxisQuarterTurns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		p     Vec3
		a     Angles
		wantX float32
		wantY float32
		wantZ float32
	}{
		{"Y carries z onto x", Vec3{Z: 1}, Angles{Y: 90}, 1, 0, 0},
		{"Y carries x onto -z", Vec3{X: 1}, Angles{Y: 90}, 0, 0, -1},
		{"Z carries y onto x", Vec3{Y: 1}, Angles{Z: 90}, 1, 0, 0},
		{"Z carries x onto -y", Vec3{X: 1}, Angles{Z: 90}, 0, -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rotate(tt.p, tt.a)
			assert.InDelta(t, tt.wantX, got.X, 1e-6)
			assert.InDelta(t, tt.wantY, got.Y, 1e-6)
			assert.InDelta(t, tt.wantZ, got.Z, 1e-6)
		})
	}
}

func TestRotate_HalfTurnRoundsThroughFloat32(t *testing.T) {
	t.Parallel()

	// sin(pi) is ~1.2e-16 in double precision; rounding each step to
	// float32 absorbs it, so a half turn about X is exact.
	got := Rotate(Vec3{X: 1, Y: 2, Z: 3}, Angles{X: 180})
	assert.Equal(t, Vec3{X: 1, Y: -2, Z: -3}, got)
}

func TestRotate_SequentialOrderMatchesComposedMatrix(t *testing.T) {
	t.Parallel()

	p := Vec3{X: 120.5, Y: -340.25, Z: 2015}
	a := Angles{X: 30, Y: 45, Z: 60}

	cx, sx := math.Cos(degToRad(a.X)), math.Sin(degToRad(a.X))
	cy, sy := math.Cos(degToRad(a.Y)), math.Sin(degToRad(a.Y))
	cz, sz := math.Cos(degToRad(a.Z)), math.Sin(degToRad(a.Z))

	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, cx, sx,
		0, -sx, cx,
	})
	ry := mat.NewDense(3, 3, []float64{
		cy, 0, sy,
		0, 1, 0,
		-sy, 0, cy,
	})
	rz := mat.NewDense(3, 3, []float64{
		cz, sz, 0,
		-sz, cz, 0,
		0, 0, 1,
	})

	var r mat.Dense
	r.Product(rz, ry, rx)

	var want mat.VecDense
	want.MulVec(&r, mat.NewVecDense(3, []float64{float64(p.X), float64(p.Y), float64(p.Z)}))

	got := Rotate(p, a)
	assert.InDelta(t, want.AtVec(0), got.X, 1e-3)
	assert.InDelta(t, want.AtVec(1), got.Y, 1e-3)
	assert.InDelta(t, want.AtVec(2), got.Z, 1e-3)

	// Applying the axes in another order gives a different point.
	var other mat.Dense
	other.Product(rx, ry, rz)
	var reordered mat.VecDense
	reordered.MulVec(&other, mat.NewVecDense(3, []float64{float64(p.X), float64(p.Y), float64(p.Z)}))
	assert.Greater(t, math.Abs(reordered.AtVec(0)-float64(got.X)), 1.0)
}

func TestRotate_Continuous(t *testing.T) {
	t.Parallel()

	p := Vec3{X: 500, Y: -250, Z: 1800}
	base := Rotate(p, Angles{X: 12, Y: -7, Z: 33})
	nudged := Rotate(p, Angles{X: 12.001, Y: -7.001, Z: 33.001})

	// 0.001 degree at ~2 m moves a point well under a millimetre.
	assert.InDelta(t, base.X, nudged.X, 0.5)
	assert.InDelta(t, base.Y, nudged.Y, 0.5)
	assert.InDelta(t, base.Z, nudged.Z, 0.5)
}

func TestRotate_FullTurnsWrap(t *testing.T) {
	t.Parallel()

	p := Vec3{X: 10, Y: 20, Z: 30}
	a := Rotate(p, Angles{X: 15, Y: 25, Z: 35})
	b := Rotate(p, Angles{X: 15 + 720, Y: 25 - 360, Z: 35 + 1080})
	assert.InDelta(t, a.X, b.X, 1e-3)
	assert.InDelta(t, a.Y, b.Y, 1e-3)
	assert.InDelta(t, a.Z, b.Z, 1e-3)
}
