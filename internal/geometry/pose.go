// Package geometry provides the rigid 2D transform used to express robot,
// camera and target poses on the field.
//
// Lengths are in inches. Rotations are s1.Angle values (radians internally)
// and are normalised to (-180°, 180°] whenever poses are composed.
package geometry

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"
)

// Pose2d is a translation plus a heading. The zero value is the identity
// transform.
type Pose2d struct {
	Translation r2.Point
	Rotation    s1.Angle
}

// NewPose builds a pose from inches and degrees.
func NewPose(xInches, yInches, degrees float64) Pose2d {
	return Pose2d{
		Translation: r2.Point{X: xInches, Y: yInches},
		Rotation:    (s1.Angle(degrees) * s1.Degree).Normalized(),
	}
}

// FromPolar returns the translation at the given distance along angle.
func FromPolar(distance float64, angle s1.Angle) r2.Point {
	return r2.Point{
		X: distance * math.Cos(angle.Radians()),
		Y: distance * math.Sin(angle.Radians()),
	}
}

// Rotate rotates a translation counter-clockwise by angle.
func Rotate(t r2.Point, angle s1.Angle) r2.Point {
	c, s := math.Cos(angle.Radians()), math.Sin(angle.Radians())
	return r2.Point{X: t.X*c - t.Y*s, Y: t.X*s + t.Y*c}
}

// X returns the x translation in inches.
func (p Pose2d) X() float64 { return p.Translation.X }

// Y returns the y translation in inches.
func (p Pose2d) Y() float64 { return p.Translation.Y }

// Degrees returns the heading as a scalar in degrees.
func (p Pose2d) Degrees() float64 { return p.Rotation.Degrees() }

// Plus applies other in the frame of p. Plus is the group operation:
// a.Plus(b) first moves by a, then by b expressed in a's frame.
func (p Pose2d) Plus(other Pose2d) Pose2d {
	return Pose2d{
		Translation: p.Translation.Add(Rotate(other.Translation, p.Rotation)),
		Rotation:    (p.Rotation + other.Rotation).Normalized(),
	}
}

// Inverse returns the transform that undoes p, so p.Plus(p.Inverse()) is the
// identity.
func (p Pose2d) Inverse() Pose2d {
	back := -p.Rotation
	return Pose2d{
		Translation: Rotate(p.Translation.Mul(-1), back),
		Rotation:    back.Normalized(),
	}
}

// InFrameOfReferenceOf expresses p relative to frame.
func (p Pose2d) InFrameOfReferenceOf(frame Pose2d) Pose2d {
	return frame.Inverse().Plus(p)
}

// Distance is the Euclidean distance between the two translations.
func (p Pose2d) Distance(other Pose2d) float64 {
	return p.Translation.Sub(other.Translation).Norm()
}

// Bearing is the direction of p's translation measured from the +x axis.
func (p Pose2d) Bearing() s1.Angle {
	return s1.Angle(math.Atan2(p.Translation.Y, p.Translation.X))
}

// IsFinite reports whether every component is a finite number.
func (p Pose2d) IsFinite() bool {
	for _, v := range []float64{p.Translation.X, p.Translation.Y, float64(p.Rotation)} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Interpolate returns the pose a fraction t of the way from p to other.
// Rotation follows the shorter arc.
func (p Pose2d) Interpolate(other Pose2d, t float64) Pose2d {
	if t <= 0 {
		return p
	}
	if t >= 1 {
		return other
	}
	delta := (other.Rotation - p.Rotation).Normalized()
	return Pose2d{
		Translation: p.Translation.Add(other.Translation.Sub(p.Translation).Mul(t)),
		Rotation:    (p.Rotation + delta*s1.Angle(t)).Normalized(),
	}
}

func (p Pose2d) String() string {
	return fmt.Sprintf("Pose2d(%.2fin, %.2fin, %.2f°)", p.Translation.X, p.Translation.Y, p.Degrees())
}
