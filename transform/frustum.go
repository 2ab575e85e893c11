package transform

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// MakeUFBLinearFrustumMatrix builds a 4x4 off-axis perspective projection
// matrix from the camera's normalized-plane bounding box scaled by the
// near clip distance. The frustum is right-handed with +z in front of the
// camera, unlike glFrustum's -z convention.
func (cam *ATANCamera) MakeUFBLinearFrustumMatrix(near, far float64) *mat.Dense {
	left := cam.implaneTL.X * near
	right := cam.implaneBR.X * near
	top := cam.implaneTL.Y * near
	bottom := cam.implaneBR.Y * near

	m := mat.NewDense(4, 4, nil)
	m.Set(0, 0, (2*near)/(right-left))
	m.Set(1, 1, (2*near)/(top-bottom))
	m.Set(0, 2, (right+left)/(left-right))
	m.Set(1, 2, (top+bottom)/(bottom-top))
	m.Set(2, 2, (far+near)/(far-near))
	m.Set(3, 2, 1)
	m.Set(2, 3, 2*near*far/(near-far))
	return m
}

// MakeUFBLinearFrustumMatrixGL returns the same frustum as an mgl64.Mat4
// for handing straight to a GL pipeline.
func (cam *ATANCamera) MakeUFBLinearFrustumMatrixGL(near, far float64) mgl64.Mat4 {
	m := cam.MakeUFBLinearFrustumMatrix(near, far)
	rows := [4]mgl64.Vec4{}
	for i := range rows {
		rows[i] = mgl64.Vec4{m.At(i, 0), m.At(i, 1), m.At(i, 2), m.At(i, 3)}
	}
	return mgl64.Mat4FromRows(rows[0], rows[1], rows[2], rows[3])
}
