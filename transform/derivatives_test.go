package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestProjectionDerivs(t *testing.T) {
	cam := newTestCamera(t)

	// representative points spanning near-zero, mid-range and near the
	// validity boundary
	points := []r2.Point{
		{X: 0.02, Y: -0.015},
		{X: 0.3, Y: 0.25},
		{X: -0.7, Y: 0.4},
		{X: cam.MaxRadius() * 0.6, Y: cam.MaxRadius() * 0.35},
	}
	const step = 1e-6
	for _, p := range points {
		res := cam.Project(p)
		derivs := cam.GetProjectionDerivs(res)

		// central finite differences of the projection itself
		for col, dir := range []r2.Point{{X: step}, {Y: step}} {
			plus := cam.Project(p.Add(dir)).Image
			minus := cam.Project(p.Sub(dir)).Image
			fdX := (plus.X - minus.X) / (2 * step)
			fdY := (plus.Y - minus.Y) / (2 * step)
			test.That(t, derivs.At(0, col), test.ShouldAlmostEqual, fdX, 1e-3*absOr1(fdX))
			test.That(t, derivs.At(1, col), test.ShouldAlmostEqual, fdY, 1e-3*absOr1(fdY))
		}
	}
}

func TestProjectionDerivsNearCenter(t *testing.T) {
	cam := newTestCamera(t)

	// inside the near-center guard the fraction derivatives vanish and
	// the Jacobian reduces to the scaled focal lengths
	res := cam.Project(r2.Point{X: 0.002, Y: 0.001})
	derivs := cam.GetProjectionDerivs(res)
	test.That(t, derivs.At(0, 0), test.ShouldAlmostEqual, cam.Focal().X*res.Factor, 1e-9)
	test.That(t, derivs.At(1, 1), test.ShouldAlmostEqual, cam.Focal().Y*res.Factor, 1e-9)
	test.That(t, derivs.At(0, 1), test.ShouldEqual, 0.0)
	test.That(t, derivs.At(1, 0), test.ShouldEqual, 0.0)
}

func TestProjectionDerivsFromUnProject(t *testing.T) {
	cam := newTestCamera(t)

	// a result from UnProject carries the same intermediates and yields
	// the same Jacobian as projecting the recovered point
	res := cam.UnProject(r2.Point{X: 120, Y: 380})
	fromUnproject := cam.GetProjectionDerivs(res)
	fromProject := cam.GetProjectionDerivs(cam.Project(res.Camera))
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			test.That(t, fromUnproject.At(i, j), test.ShouldAlmostEqual, fromProject.At(i, j), 1e-9)
		}
	}
}

func TestCameraParameterDerivs(t *testing.T) {
	cam := newTestCamera(t)
	p := r2.Point{X: 0.3, Y: -0.2}
	res := cam.Project(p)

	before := cam.Params()
	derivs, err := cam.GetCameraParameterDerivs(res)
	test.That(t, err, test.ShouldBeNil)
	r, c := derivs.Dims()
	test.That(t, r, test.ShouldEqual, 2)
	test.That(t, c, test.ShouldEqual, NumParams)

	// the receiver is never perturbed
	test.That(t, cam.Params(), test.ShouldResemble, before)

	// the pixel x coordinate is center_x + fx_n*width*distorted_x, so its
	// derivative w.r.t. the normalized focal is width*distorted_x, and
	// w.r.t. the normalized center is the width
	test.That(t, derivs.At(0, 0), test.ShouldAlmostEqual, 640*res.Distorted.X, 1e-2)
	test.That(t, derivs.At(1, 1), test.ShouldAlmostEqual, 480*res.Distorted.Y, 1e-2)
	test.That(t, derivs.At(0, 2), test.ShouldAlmostEqual, 640, 1e-6)
	test.That(t, derivs.At(1, 3), test.ShouldAlmostEqual, 480, 1e-6)
	test.That(t, derivs.At(0, 1), test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, derivs.At(1, 0), test.ShouldAlmostEqual, 0, 1e-9)

	// the distortion column is a real derivative while enabled
	test.That(t, math.Abs(derivs.At(0, 4)), test.ShouldBeGreaterThan, 1e-6)
}

func TestCameraParameterDerivsDisabled(t *testing.T) {
	cam := newTestCamera(t)
	cam.DisableRadialDistortion()
	res := cam.Project(r2.Point{X: 0.3, Y: -0.2})

	derivs, err := cam.GetCameraParameterDerivs(res)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, derivs.At(0, NumParams-1), test.ShouldEqual, 0.0)
	test.That(t, derivs.At(1, NumParams-1), test.ShouldEqual, 0.0)
}

func absOr1(v float64) float64 {
	if v < 0 {
		v = -v
	}
	if v < 1 {
		return 1
	}
	return v
}
