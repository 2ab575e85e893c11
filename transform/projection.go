package transform

import "github.com/golang/geo/r2"

// nearCenterRadius is the distorted radius at or below which the
// undistortion factor is pinned to 1, guarding the near-center singularity
// where the radius ratio is numerically unstable. Empirical constant; the
// projection Jacobian uses the same bound.
const nearCenterRadius = 0.01

// ProjectionResult carries a projection or unprojection together with its
// intermediate quantities, so the derivative routines can reuse them
// without recomputation. Results are plain values tied to the parameter
// state they were computed under; a result is stale once the camera is
// mutated.
type ProjectionResult struct {
	// Camera is the undistorted point on the normalized z=1 plane.
	Camera r2.Point
	// Distorted is the point after radial distortion, still normalized.
	Distorted r2.Point
	// Image is the point in pixel coordinates (or on the [-1,1]^2 UFB
	// plane for the UFB routines).
	Image r2.Point
	// Radius is the undistorted radius |Camera|.
	Radius float64
	// DistRadius is the distorted radius |Distorted|.
	DistRadius float64
	// Factor is the distortion factor DistRadius/Radius.
	Factor float64
	// Valid is false when Radius exceeds the camera's maximum valid
	// radius; callers must check it and discard or penalize the result.
	Valid bool
}

// Project maps a point on the normalized Euclidean z=1 plane to pixel
// coordinates, distorting radially before the pinhole map.
func (cam *ATANCamera) Project(p r2.Point) ProjectionResult {
	res := ProjectionResult{Camera: p}
	res.Radius = p.Norm()
	res.Valid = !(res.Radius > cam.maxR)
	res.Factor = cam.dist.DistortionFactor(res.Radius)
	res.DistRadius = res.Factor * res.Radius
	res.Distorted = p.Mul(res.Factor)
	res.Image = r2.Point{
		X: cam.center.X + cam.focal.X*res.Distorted.X,
		Y: cam.center.Y + cam.focal.Y*res.Distorted.Y,
	}
	return res
}

// UnProject maps pixel coordinates back to the normalized Euclidean z=1
// plane, undoing the pinhole map and then the radial distortion.
func (cam *ATANCamera) UnProject(q r2.Point) ProjectionResult {
	res := ProjectionResult{Image: q}
	res.Distorted = r2.Point{
		X: (q.X - cam.center.X) * cam.invFocal.X,
		Y: (q.Y - cam.center.Y) * cam.invFocal.Y,
	}
	res.DistRadius = res.Distorted.Norm()
	res.Radius = cam.dist.UndistortRadius(res.DistRadius)
	factor := 1.0
	if res.DistRadius > nearCenterRadius {
		factor = res.Radius / res.DistRadius
	}
	res.Factor = 1.0 / factor
	res.Camera = res.Distorted.Mul(factor)
	res.Valid = !(res.Radius > cam.maxR)
	return res
}

// UFBProject is Project onto the undistorted frustum bounds plane: the
// same distortion pipeline but with the normalized intrinsics taking the
// place of the pixel map, landing on the canonical [-1,1]^2 near plane.
func (cam *ATANCamera) UFBProject(p r2.Point) ProjectionResult {
	res := ProjectionResult{Camera: p}
	res.Radius = p.Norm()
	res.Valid = !(res.Radius > cam.maxR)
	res.Factor = cam.dist.DistortionFactor(res.Radius)
	res.DistRadius = res.Factor * res.Radius
	res.Distorted = p.Mul(res.Factor)
	res.Image = r2.Point{
		X: cam.params[2] + cam.params[0]*res.Distorted.X,
		Y: cam.params[3] + cam.params[1]*res.Distorted.Y,
	}
	return res
}

// UFBUnProject maps a point on the UFB near plane back to the normalized
// Euclidean plane.
func (cam *ATANCamera) UFBUnProject(q r2.Point) ProjectionResult {
	res := ProjectionResult{Image: q}
	res.Distorted = r2.Point{
		X: (q.X - cam.params[2]) / cam.params[0],
		Y: (q.Y - cam.params[3]) / cam.params[1],
	}
	res.DistRadius = res.Distorted.Norm()
	res.Radius = cam.dist.UndistortRadius(res.DistRadius)
	factor := 1.0
	if res.DistRadius > nearCenterRadius {
		factor = res.Radius / res.DistRadius
	}
	res.Factor = 1.0 / factor
	res.Camera = res.Distorted.Mul(factor)
	res.Valid = !(res.Radius > cam.maxR)
	return res
}
