// Package vision turns camera-relative detections of reflective-tape targets
// into field-relative candidate poses for the tracker.
package vision

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/s1"

	"github.com/ghrobotics/visiontrack/internal/config"
	"github.com/ghrobotics/visiontrack/internal/geometry"
)

// ErrInvalidDetection marks a detection whose numbers cannot describe a real
// target (negative or non-finite distance, non-finite angles).
var ErrInvalidDetection = errors.New("invalid detection")

// Detection is one target as reported by a camera.
type Detection struct {
	// Angle is the horizontal bearing from the camera's optical axis to the
	// target centre.
	Angle s1.Angle
	// Rotation is the target's skew as seen by the camera.
	Rotation s1.Angle
	// Distance from the camera to the target, in inches.
	Distance float64
}

// Frame is everything one camera reported for one captured image.
type Frame struct {
	Camera      string
	CaptureTime time.Time
	Detections  []Detection
	// Rejected counts targets dropped while parsing the frame.
	Rejected int
}

// Mount is a camera's fixed transform from the robot centre.
type Mount struct {
	Name      string
	Transform geometry.Pose2d
}

// MountsFromConfig builds camera mounts from the tuning config, falling back
// to the default front/back pair.
func MountsFromConfig(cfg *config.TuningConfig) []Mount {
	cams := cfg.GetCameras()
	mounts := make([]Mount, 0, len(cams))
	for _, c := range cams {
		mounts = append(mounts, Mount{
			Name:      c.Name,
			Transform: geometry.NewPose(c.XInches, c.YInches, c.RotationDeg),
		})
	}
	return mounts
}

// DefaultMounts returns the competition robot's front and back cameras.
func DefaultMounts() []Mount {
	return MountsFromConfig(config.EmptyTuningConfig())
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate reports ErrInvalidDetection for detections that cannot be placed
// on the field.
func (d Detection) Validate() error {
	switch {
	case !finite(d.Distance) || d.Distance < 0:
		return fmt.Errorf("%w: distance %v", ErrInvalidDetection, d.Distance)
	case !finite(d.Angle.Radians()):
		return fmt.Errorf("%w: angle %v", ErrInvalidDetection, d.Angle.Radians())
	case !finite(d.Rotation.Radians()):
		return fmt.Errorf("%w: rotation %v", ErrInvalidDetection, d.Rotation.Radians())
	}
	return nil
}

// CameraRelative returns the target pose in the camera frame. The camera
// reports skew relative to its line of sight, so the heading is flipped to
// face back along that line and offset by the bearing.
func (d Detection) CameraRelative() geometry.Pose2d {
	return geometry.Pose2d{
		Translation: geometry.FromPolar(d.Distance, d.Angle),
		Rotation:    (-d.Rotation + d.Angle + 180*s1.Degree).Normalized(),
	}
}

// ToFieldPose places a detection on the field given the camera mount and the
// robot's pose at capture time.
func ToFieldPose(d Detection, mount, robotAt geometry.Pose2d) (geometry.Pose2d, error) {
	if err := d.Validate(); err != nil {
		return geometry.Pose2d{}, err
	}
	return robotAt.Plus(mount.Plus(d.CameraRelative())), nil
}
