package transform

import (
	"math"

	"github.com/pkg/errors"
)

// minFactorRadius is the undistorted radius below which the distortion
// factor is pinned to 1, avoiding the 0/0 limit of atan(k·r)/(w·r).
// Empirical constant.
const minFactorRadius = 0.001

// FOVDistortion is the FOV ("ATAN") radial distortion model of Devernay and
// Faugeras. A single angle W relates the undistorted radius r of a point on
// the normalized z=1 plane to its distorted radius rd:
//
//	rd = atan(2·r·tan(W/2)) / W
//
// W == 0 disables the model; every transform degrades to the identity
// without evaluating 1/W.
type FOVDistortion struct {
	W float64 `json:"w"`

	// cached on construction
	twoTan     float64 // 2·tan(W/2)
	oneOverTwo float64 // 1/(2·tan(W/2))
	winv       float64 // 1/W, 0 when disabled
	enabled    bool
}

// NewFOVDistortion takes in a slice holding the single FOV angle parameter.
// An empty slice builds a disabled (identity) model.
func NewFOVDistortion(inp []float64) (*FOVDistortion, error) {
	if len(inp) > 1 {
		return nil, errors.Errorf("list of parameters too long, expected max 1, got %d", len(inp))
	}
	w := 0.0
	if len(inp) == 1 {
		w = inp[0]
	}
	return newFOVDistortion(w)
}

func newFOVDistortion(w float64) (*FOVDistortion, error) {
	fd := &FOVDistortion{W: w}
	if err := fd.CheckValid(); err != nil {
		return nil, err
	}
	if w != 0.0 {
		fd.twoTan = 2.0 * math.Tan(w/2.0)
		fd.oneOverTwo = 1.0 / fd.twoTan
		fd.winv = 1.0 / w
		fd.enabled = true
	}
	return fd, nil
}

// CheckValid checks if the fields for FOVDistortion have valid inputs.
func (fd *FOVDistortion) CheckValid() error {
	if fd == nil {
		return InvalidDistortionError("FOV shaped distortion parameters not provided")
	}
	if math.Abs(fd.W) >= math.Pi {
		return InvalidDistortionError("FOV angle must lie in (-pi, pi)")
	}
	return nil
}

// ModelType returns the type of distortion model.
func (fd *FOVDistortion) ModelType() DistortionType {
	return FOVDistortionType
}

// Parameters returns the parameters of the distortion model as a list of floats.
func (fd *FOVDistortion) Parameters() []float64 {
	if fd == nil {
		return []float64{}
	}
	return []float64{fd.W}
}

// Enabled reports whether the model actually distorts (W != 0).
func (fd *FOVDistortion) Enabled() bool {
	return fd.enabled
}

// DistortionFactor returns the scalar factor rd/r for an undistorted radius r.
// It is continuous, equals 1 at r = 0 and decreases monotonically for W > 0.
func (fd *FOVDistortion) DistortionFactor(r float64) float64 {
	if !fd.enabled || r < minFactorRadius {
		return 1.0
	}
	return fd.winv * math.Atan(r*fd.twoTan) / r
}

// UndistortRadius inverts the radial transform, returning the undistorted
// radius for a distorted radius rd.
func (fd *FOVDistortion) UndistortRadius(rd float64) float64 {
	if !fd.enabled {
		return rd
	}
	return math.Tan(rd*fd.W) * fd.oneOverTwo
}

// Transform applies the forward distortion to a point on the normalized
// plane, scaling both axes by the factor for its radius.
func (fd *FOVDistortion) Transform(x, y float64) (float64, float64) {
	factor := fd.DistortionFactor(math.Hypot(x, y))
	return factor * x, factor * y
}
