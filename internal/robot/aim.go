package robot

import (
	"github.com/golang/geo/s1"

	"github.com/ghrobotics/visiontrack/internal/geometry"
	"github.com/ghrobotics/visiontrack/internal/tracker"
)

// AimError is the heading correction that points the robot at target. Targets
// behind the robot are folded to the front so the drive can approach them in
// reverse; the result is always within [-90°, 90°].
func AimError(current, target geometry.Pose2d) s1.Angle {
	bearing := tracker.RobotRelativeBearing(target, current)
	switch {
	case bearing > 90*s1.Degree:
		bearing -= 180 * s1.Degree
	case bearing < -90*s1.Degree:
		bearing += 180 * s1.Degree
	}
	return bearing
}

// Reversed reports whether AimError folded target from behind the robot.
func Reversed(current, target geometry.Pose2d) bool {
	return tracker.RobotRelativeBearing(target, current).Abs() > 90*s1.Degree
}
