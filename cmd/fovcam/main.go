// Command fovcam inspects an FOV-model camera: it loads intrinsics from a
// parameter store file and prints camera matrices, projections and frustum
// matrices.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/urfave/cli/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/camgeom/fovcam/persist"
	"github.com/camgeom/fovcam/transform"
)

func main() {
	app := &cli.App{
		Name:            "fovcam",
		Usage:           "inspect FOV-model camera intrinsics",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "params",
				Aliases: []string{"p"},
				Usage:   "load camera parameters from `FILE`",
			},
			&cli.StringFlag{
				Name:  "name",
				Value: "Camera",
				Usage: "camera name in the parameter store",
			},
			&cli.IntFlag{
				Name:  "width",
				Value: 640,
				Usage: "image width in pixels",
			},
			&cli.IntFlag{
				Name:  "height",
				Value: 480,
				Usage: "image height in pixels",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "info",
				Usage:  "print the camera's parameters and derived state",
				Action: infoAction,
			},
			{
				Name:      "project",
				Usage:     "project a normalized Euclidean point to pixels",
				ArgsUsage: "X Y",
				Action:    projectAction,
			},
			{
				Name:      "unproject",
				Usage:     "unproject a pixel back to the normalized plane",
				ArgsUsage: "U V",
				Action:    unprojectAction,
			},
			{
				Name:   "frustum",
				Usage:  "print the UFB linear frustum matrix",
				Action: frustumAction,
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "near", Value: 0.1},
					&cli.Float64Flag{Name: "far", Value: 100},
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func cameraFromFlags(c *cli.Context) (*transform.ATANCamera, error) {
	logger := golog.NewDevelopmentLogger("fovcam")
	store, err := persist.NewStore(c.String("params"), logger)
	if err != nil {
		return nil, err
	}
	return transform.NewATANCamera(c.String("name"), c.Int("width"), c.Int("height"), store)
}

func pointArgs(c *cli.Context) (r2.Point, error) {
	if c.NArg() != 2 {
		return r2.Point{}, fmt.Errorf("expected 2 coordinates, got %d", c.NArg())
	}
	x, err := strconv.ParseFloat(c.Args().Get(0), 64)
	if err != nil {
		return r2.Point{}, err
	}
	y, err := strconv.ParseFloat(c.Args().Get(1), 64)
	if err != nil {
		return r2.Point{}, err
	}
	return r2.Point{X: x, Y: y}, nil
}

func infoAction(c *cli.Context) error {
	cam, err := cameraFromFlags(c)
	if err != nil {
		return err
	}
	fmt.Printf("camera %q %gx%g\n", cam.Name(), cam.ImageSize().X, cam.ImageSize().Y)
	fmt.Printf("params:          %v\n", cam.Params())
	fmt.Printf("focal:           %v\n", cam.Focal())
	fmt.Printf("center:          %v\n", cam.Center())
	fmt.Printf("max radius:      %g\n", cam.MaxRadius())
	fmt.Printf("one pixel dist:  %g\n", cam.OnePixelDist())
	fmt.Printf("implane TL/BR:   %v %v\n", cam.ImplaneTL(), cam.ImplaneBR())
	fmt.Printf("camera matrix:\n%v\n", mat.Formatted(cam.CameraMatrix(), mat.Prefix(""), mat.Squeeze()))
	return nil
}

func projectAction(c *cli.Context) error {
	cam, err := cameraFromFlags(c)
	if err != nil {
		return err
	}
	p, err := pointArgs(c)
	if err != nil {
		return err
	}
	res := cam.Project(p)
	fmt.Printf("pixel: (%g, %g) factor=%g valid=%t\n", res.Image.X, res.Image.Y, res.Factor, res.Valid)
	return nil
}

func unprojectAction(c *cli.Context) error {
	cam, err := cameraFromFlags(c)
	if err != nil {
		return err
	}
	q, err := pointArgs(c)
	if err != nil {
		return err
	}
	res := cam.UnProject(q)
	fmt.Printf("camera: (%g, %g) radius=%g valid=%t\n", res.Camera.X, res.Camera.Y, res.Radius, res.Valid)
	return nil
}

func frustumAction(c *cli.Context) error {
	cam, err := cameraFromFlags(c)
	if err != nil {
		return err
	}
	m := cam.MakeUFBLinearFrustumMatrix(c.Float64("near"), c.Float64("far"))
	fmt.Printf("%v\n", mat.Formatted(m, mat.Prefix(""), mat.Squeeze()))
	return nil
}
