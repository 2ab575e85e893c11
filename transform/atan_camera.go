// Package transform provides a parametric camera intrinsic model using the
// FOV ("ATAN") radial distortion of Devernay and Faugeras, mapping between
// the normalized Euclidean z=1 camera plane and distorted pixel coordinates,
// with the Jacobians needed by pose estimation and calibration.
package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// NumParams is the length of the intrinsic parameter vector:
// fx/width, fy/height, cx/width, cy/height and the FOV distortion angle w.
const NumParams = 5

const (
	// pixelCenterOffset shifts the pixel principal point by half a pixel.
	// A GL display-alignment convention with no projective justification,
	// kept for compatibility with existing calibrations.
	pixelCenterOffset = 0.5

	// validRadiusScale bounds the model validity at 1.5x the undistorted
	// radius of the farthest image corner.
	validRadiusScale = 1.5

	paramsSuffix = ".Parameters"
)

// DefaultParams returns the fallback intrinsics, roughly a standard webcam:
// at 5m along z the frustum section is about 10m x 10m, principal point at
// the image center, mild FOV distortion.
func DefaultParams() []float64 {
	return []float64{0.5, 4.0 / 5.0, 0.5, 0.5, 0.07}
}

// A ParameterStore is a named key-value store the camera loads its parameter
// vector from at construction. Register keeps the passed slice aliased so
// later parameter updates are observable by the store.
type ParameterStore interface {
	GetVector(key string, def []float64, required bool) ([]float64, error)
	Register(key string, vals []float64)
}

// ATANCamera is an FOV-model camera. It owns the normalized parameter
// vector, the target image size and every quantity derived from them; all
// derived state is recomputed as a unit whenever either changes.
//
// The model is not safe for concurrent use: GetCameraParameterDerivs
// re-projects against perturbed snapshots and mutators rewrite derived
// state in place. Serialize access per instance.
type ATANCamera struct {
	name      string
	params    []float64 // length NumParams; aliased by a registered store
	imageSize r2.Point

	dist *FOVDistortion

	focal    r2.Point
	invFocal r2.Point
	center   r2.Point

	largestRadius float64
	maxR          float64
	onePixelDist  float64

	implaneTL r2.Point
	implaneBR r2.Point

	ufbLinearFocal    r2.Point
	ufbLinearInvFocal r2.Point
	ufbLinearCenter   r2.Point
}

// NewATANCamera builds a camera named name for the given image size in
// pixels. The parameter vector is requested from the store under
// "<name>.Parameters", falling back to DefaultParams when absent, and the
// key is registered so the store observes later parameter updates. A nil
// store uses the defaults outright.
func NewATANCamera(name string, width, height int, store ParameterStore) (*ATANCamera, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("camera %q: invalid image size (%d, %d)", name, width, height)
	}
	params := DefaultParams()
	if store != nil {
		loaded, err := store.GetVector(name+paramsSuffix, DefaultParams(), false)
		if err != nil {
			return nil, errors.Wrapf(err, "camera %q: loading parameters", name)
		}
		params = loaded
	}
	cam, err := NewATANCameraFromParams(name, params, width, height)
	if err != nil {
		return nil, err
	}
	if store != nil {
		store.Register(name+paramsSuffix, cam.params)
	}
	return cam, nil
}

// NewATANCameraFromParams builds a camera directly from a parameter vector,
// bypassing any store.
func NewATANCameraFromParams(name string, params []float64, width, height int) (*ATANCamera, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("camera %q: invalid image size (%d, %d)", name, width, height)
	}
	if len(params) != NumParams {
		return nil, errors.Errorf("camera %q: expected %d parameters, got %d", name, NumParams, len(params))
	}
	cam := &ATANCamera{
		name:      name,
		params:    append([]float64(nil), params...),
		imageSize: r2.Point{X: float64(width), Y: float64(height)},
	}
	if err := cam.refreshParams(); err != nil {
		return nil, err
	}
	return cam, nil
}

// refreshParams recomputes all derived state from the current parameter
// vector and image size.
func (cam *ATANCamera) refreshParams() error {
	dist, err := newFOVDistortion(cam.params[4])
	if err != nil {
		return err
	}
	cam.dist = dist

	cam.focal = r2.Point{X: cam.imageSize.X * cam.params[0], Y: cam.imageSize.Y * cam.params[1]}
	cam.invFocal = r2.Point{X: 1.0 / cam.focal.X, Y: 1.0 / cam.focal.Y}
	cam.center = r2.Point{
		X: cam.imageSize.X*cam.params[2] - pixelCenterOffset,
		Y: cam.imageSize.Y*cam.params[3] - pixelCenterOffset,
	}

	// Farthest image corner from the principal point, in image-fraction
	// space since the parameters are already scaled by the image size. Its
	// norm is the distorted radius of that corner; undistorting it bounds
	// the region the model is trusted over.
	corner := r2.Point{
		X: math.Max(cam.params[2], 1.0-cam.params[2]) / cam.params[0],
		Y: math.Max(cam.params[3], 1.0-cam.params[3]) / cam.params[1],
	}
	cam.largestRadius = dist.UndistortRadius(corner.Norm())
	cam.maxR = validRadiusScale * cam.largestRadius

	// World distance covered by one pixel near the image center. Only
	// really meaningful for square-ish pixels.
	half := cam.imageSize.Mul(0.5)
	ctr := cam.UnProject(half).Camera
	diag := cam.UnProject(half.Add(r2.Point{X: 1, Y: 1})).Camera
	cam.onePixelDist = ctr.Sub(diag).Norm() / math.Sqrt2

	// Normalized-plane bounding box of the image, from the four corners
	// inset by the same half-pixel display convention as the center.
	verts := [4]r2.Point{
		cam.UnProject(r2.Point{X: -pixelCenterOffset, Y: -pixelCenterOffset}).Camera,
		cam.UnProject(r2.Point{X: cam.imageSize.X - pixelCenterOffset, Y: -pixelCenterOffset}).Camera,
		cam.UnProject(r2.Point{X: cam.imageSize.X - pixelCenterOffset, Y: cam.imageSize.Y - pixelCenterOffset}).Camera,
		cam.UnProject(r2.Point{X: -pixelCenterOffset, Y: cam.imageSize.Y - pixelCenterOffset}).Camera,
	}
	vmin, vmax := verts[0], verts[0]
	for _, v := range verts[1:] {
		vmin.X = math.Min(vmin.X, v.X)
		vmin.Y = math.Min(vmin.Y, v.Y)
		vmax.X = math.Max(vmax.X, v.X)
		vmax.Y = math.Max(vmax.Y, v.Y)
	}
	cam.implaneTL = vmin
	cam.implaneBR = vmax

	// Linear focal/center mapping the bounding box onto the canonical unit
	// square, used by the UFB projections.
	cam.ufbLinearInvFocal = vmax.Sub(vmin)
	cam.ufbLinearFocal = r2.Point{X: 1.0 / cam.ufbLinearInvFocal.X, Y: 1.0 / cam.ufbLinearInvFocal.Y}
	cam.ufbLinearCenter = r2.Point{
		X: -1.0 * vmin.X * cam.ufbLinearFocal.X,
		Y: -1.0 * vmin.Y * cam.ufbLinearFocal.Y,
	}
	return nil
}

// clone returns a snapshot of the camera with its own parameter vector,
// used by the numeric parameter derivatives so the receiver is never
// perturbed.
func (cam *ATANCamera) clone() *ATANCamera {
	c2 := *cam
	c2.params = append([]float64(nil), cam.params...)
	return &c2
}

// Name returns the camera's store key.
func (cam *ATANCamera) Name() string {
	return cam.name
}

// Params returns a copy of the normalized intrinsic parameter vector.
func (cam *ATANCamera) Params() []float64 {
	return append([]float64(nil), cam.params...)
}

// ImageSize returns the target image size in pixels.
func (cam *ATANCamera) ImageSize() r2.Point {
	return cam.imageSize
}

// SetImageSize retargets the camera to a new image size and refreshes all
// derived state. The normalized parameter vector is unchanged.
func (cam *ATANCamera) SetImageSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.Errorf("camera %q: invalid image size (%d, %d)", cam.name, width, height)
	}
	cam.imageSize = r2.Point{X: float64(width), Y: float64(height)}
	return cam.refreshParams()
}

// UpdateParams adds a delta vector to the intrinsic parameters and
// refreshes. Use as part of camera calibration. The update is rolled back
// if it produces an invalid model.
func (cam *ATANCamera) UpdateParams(delta []float64) error {
	if len(delta) != NumParams {
		return errors.Errorf("camera %q: expected %d parameter deltas, got %d", cam.name, NumParams, len(delta))
	}
	for i, d := range delta {
		cam.params[i] += d
	}
	if err := cam.refreshParams(); err != nil {
		for i, d := range delta {
			cam.params[i] -= d
		}
		if rerr := cam.refreshParams(); rerr != nil {
			return errors.Wrap(err, "rolling back parameter update")
		}
		return err
	}
	return nil
}

// DisableRadialDistortion zeroes the distortion angle, reducing the model
// to a plain pinhole map and zeroing its differentials.
func (cam *ATANCamera) DisableRadialDistortion() {
	cam.params[NumParams-1] = 0.0
	// w = 0 always passes validation
	_ = cam.refreshParams()
}

// Distortion returns the camera's radial distortion model.
func (cam *ATANCamera) Distortion() *FOVDistortion {
	return cam.dist
}

// Focal returns the pixel-space focal lengths.
func (cam *ATANCamera) Focal() r2.Point {
	return cam.focal
}

// Center returns the pixel-space principal point (half-pixel offset applied).
func (cam *ATANCamera) Center() r2.Point {
	return cam.center
}

// LargestRadiusInImage returns the undistorted radius of the image corner
// farthest from the principal point.
func (cam *ATANCamera) LargestRadiusInImage() float64 {
	return cam.largestRadius
}

// MaxRadius returns the largest undistorted radius the model is valid for.
func (cam *ATANCamera) MaxRadius() float64 {
	return cam.maxR
}

// OnePixelDist returns the distance on the normalized plane covered by one
// pixel near the image center.
func (cam *ATANCamera) OnePixelDist() float64 {
	return cam.onePixelDist
}

// ImplaneTL returns the top-left corner of the normalized-plane bounding
// box visible in the image.
func (cam *ATANCamera) ImplaneTL() r2.Point {
	return cam.implaneTL
}

// ImplaneBR returns the bottom-right corner of the normalized-plane
// bounding box visible in the image.
func (cam *ATANCamera) ImplaneBR() r2.Point {
	return cam.implaneBR
}

// UFBLinearFocal returns the focal lengths of the linear map from the
// normalized bounding box onto the canonical unit square.
func (cam *ATANCamera) UFBLinearFocal() r2.Point {
	return cam.ufbLinearFocal
}

// UFBLinearCenter returns the center of the linear unit-square map.
func (cam *ATANCamera) UFBLinearCenter() r2.Point {
	return cam.ufbLinearCenter
}

// CameraMatrix returns the pixel-space camera matrix:
// [[fx 0 cx],
//
//	[0 fy cy],
//	[0 0   1]]
func (cam *ATANCamera) CameraMatrix() *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	m.Set(0, 0, cam.focal.X)
	m.Set(1, 1, cam.focal.Y)
	m.Set(0, 2, cam.center.X)
	m.Set(1, 2, cam.center.Y)
	m.Set(2, 2, 1)
	return m
}
