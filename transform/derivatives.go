package transform

import "gonum.org/v1/gonum/mat"

// paramDerivStep is the finite-difference step for the numeric parameter
// derivatives, in each parameter's own units.
const paramDerivStep = 0.001

// GetProjectionDerivs returns the analytic 2x2 Jacobian of the pixel
// projection with respect to the normalized Euclidean coordinates,
// evaluated at a previously computed ProjectionResult. Rows are pixel
// axes, columns normalized axes.
//
// The result must come from Project or UnProject on this camera in its
// current parameter state; UFB results use a different outer map.
func (cam *ATANCamera) GetProjectionDerivs(last ProjectionResult) *mat.Dense {
	x := last.Camera.X
	y := last.Camera.Y
	ru := last.Radius
	if !cam.dist.enabled {
		ru = 0.0
	}

	// Derivatives of the distortion fraction rd/ru. Near the center the
	// fraction is pinned to 1, so its derivatives vanish.
	var dFacByDx, dFacByDy float64
	if ru >= nearCenterRadius {
		k := cam.dist.twoTan
		common := (cam.dist.winv*k/(1.0+k*k*ru*ru) - last.Factor) / (ru * ru)
		dFacByDx = common * x
		dFacByDy = common * y
	}

	derivs := mat.NewDense(2, 2, nil)
	derivs.Set(0, 0, cam.focal.X*(dFacByDx*x+last.Factor))
	derivs.Set(0, 1, cam.focal.X*(dFacByDy*x))
	derivs.Set(1, 0, cam.focal.Y*(dFacByDx*y))
	derivs.Set(1, 1, cam.focal.Y*(dFacByDy*y+last.Factor))
	return derivs
}

// GetCameraParameterDerivs returns the 2xNumParams Jacobian of the pixel
// projection of last's normalized point with respect to each intrinsic
// parameter, by forward finite differences. Use for camera calibration;
// no need for this to be quick, so it is done numerically.
//
// Each column perturbs a cloned snapshot of the camera, so the receiver
// is never mutated. The distortion-angle column is forced to zero when
// distortion is disabled, where its derivative is meaningless.
func (cam *ATANCamera) GetCameraParameterDerivs(last ProjectionResult) (*mat.Dense, error) {
	p := last.Camera
	base := cam.Project(p).Image

	derivs := mat.NewDense(2, NumParams, nil)
	for i := 0; i < NumParams; i++ {
		if i == NumParams-1 && !cam.dist.enabled {
			continue
		}
		perturbed := cam.clone()
		perturbed.params[i] += paramDerivStep
		if err := perturbed.refreshParams(); err != nil {
			return nil, err
		}
		out := perturbed.Project(p).Image
		derivs.Set(0, i, (out.X-base.X)/paramDerivStep)
		derivs.Set(1, i, (out.Y-base.Y)/paramDerivStep)
	}
	return derivs, nil
}
