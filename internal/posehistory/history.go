// Package posehistory keeps a short, time-indexed log of robot field poses so
// that a vision frame can be evaluated against where the robot was when the
// image was captured rather than where it is now.
package posehistory

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ghrobotics/visiontrack/internal/geometry"
)

// ErrNoHistory is returned when the requested time is older than anything
// retained, later than the newest sample by more than the staleness bound, or
// nothing has been recorded yet (odometry warm-up).
var ErrNoHistory = errors.New("no pose history for timestamp")

// ErrOutOfOrder is returned by Add when a sample is older than the newest one.
var ErrOutOfOrder = errors.New("pose sample older than latest")

// DefaultCapacity holds two seconds of odometry at a 50 Hz loop.
const DefaultCapacity = 100

// DefaultMaxStaleness is how far past the newest sample PoseAt will still
// answer with that sample: five missed 50 Hz odometry updates.
const DefaultMaxStaleness = 100 * time.Millisecond

type entry struct {
	at   time.Time
	pose geometry.Pose2d
}

// Buffer is a bounded ring of timestamped poses. Writers (odometry) and
// readers (the control loop, debug handlers) may live on different
// goroutines.
type Buffer struct {
	mu           sync.RWMutex
	entries      []entry // oldest first
	capacity     int
	maxStaleness time.Duration
}

// NewBuffer creates a Buffer retaining at most capacity samples. Lookups more
// than maxStaleness after the newest sample fail with ErrNoHistory; a
// non-positive maxStaleness selects DefaultMaxStaleness.
func NewBuffer(capacity int, maxStaleness time.Duration) *Buffer {
	if capacity < 2 {
		capacity = DefaultCapacity
	}
	if maxStaleness <= 0 {
		maxStaleness = DefaultMaxStaleness
	}
	return &Buffer{
		entries:      make([]entry, 0, capacity),
		capacity:     capacity,
		maxStaleness: maxStaleness,
	}
}

// Add records the pose at t. Samples must arrive in time order; an equal
// timestamp replaces the newest sample.
func (b *Buffer) Add(t time.Time, pose geometry.Pose2d) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n := len(b.entries); n > 0 {
		last := b.entries[n-1].at
		switch {
		case t.Before(last):
			return fmt.Errorf("%w: %s < %s", ErrOutOfOrder, t.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano))
		case t.Equal(last):
			b.entries[n-1].pose = pose
			return nil
		}
	}

	if len(b.entries) == b.capacity {
		copy(b.entries, b.entries[1:])
		b.entries = b.entries[:len(b.entries)-1]
	}
	b.entries = append(b.entries, entry{at: t, pose: pose})
	return nil
}

// PoseAt returns the robot pose at t, linearly interpolated between the two
// bracketing samples. Times after the newest sample return the newest pose
// while it is within the staleness bound; odometry that has stopped is not
// extrapolated.
func (b *Buffer) PoseAt(t time.Time) (geometry.Pose2d, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.entries)
	if n == 0 || t.Before(b.entries[0].at) {
		return geometry.Pose2d{}, ErrNoHistory
	}
	if newest := b.entries[n-1]; !t.Before(newest.at) {
		if gap := t.Sub(newest.at); gap > b.maxStaleness {
			return geometry.Pose2d{}, fmt.Errorf("%w: newest sample is %s old", ErrNoHistory, gap)
		}
		return newest.pose, nil
	}

	// First sample strictly after t; i >= 1 because t >= entries[0].at.
	i := sort.Search(n, func(i int) bool { return b.entries[i].at.After(t) })
	lo, hi := b.entries[i-1], b.entries[i]
	if t.Equal(lo.at) {
		return lo.pose, nil
	}
	frac := float64(t.Sub(lo.at)) / float64(hi.at.Sub(lo.at))
	return lo.pose.Interpolate(hi.pose, frac), nil
}

// CurrentPose returns the newest pose, or the origin before the first sample.
func (b *Buffer) CurrentPose() geometry.Pose2d {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.entries) == 0 {
		return geometry.Pose2d{}
	}
	return b.entries[len(b.entries)-1].pose
}

// Latest returns the newest sample time and whether one exists.
func (b *Buffer) Latest() (time.Time, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.entries) == 0 {
		return time.Time{}, false
	}
	return b.entries[len(b.entries)-1].at, true
}

// Len returns the number of retained samples.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Reset discards all history and seeds the buffer with pose at t, as when the
// robot is placed at a known starting position.
func (b *Buffer) Reset(t time.Time, pose geometry.Pose2d) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries[:0], entry{at: t, pose: pose})
}
