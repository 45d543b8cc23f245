package posehistory

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghrobotics/visiontrack/internal/geometry"
)

var base = time.Unix(1_700_000_000, 0)

func ms(n int) time.Time { return base.Add(time.Duration(n) * time.Millisecond) }

func TestPoseAt_EmptyBuffer(t *testing.T) {
	b := NewBuffer(10, 0)
	_, err := b.PoseAt(base)
	assert.ErrorIs(t, err, ErrNoHistory)
	assert.Equal(t, geometry.Pose2d{}, b.CurrentPose())
	_, ok := b.Latest()
	assert.False(t, ok)
}

func TestPoseAt_Interpolates(t *testing.T) {
	b := NewBuffer(10, 0)
	require.NoError(t, b.Add(ms(0), geometry.NewPose(0, 0, 0)))
	require.NoError(t, b.Add(ms(20), geometry.NewPose(10, 20, 40)))

	tests := []struct {
		name  string
		at    time.Time
		wantX float64
		wantY float64
		wantD float64
	}{
		{"exact first", ms(0), 0, 0, 0},
		{"midpoint", ms(10), 5, 10, 20},
		{"quarter", ms(5), 2.5, 5, 10},
		{"exact last", ms(20), 10, 20, 40},
		{"after newest clamps", ms(60), 10, 20, 40},
		{"at staleness bound", ms(120), 10, 20, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := b.PoseAt(tt.at)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantX, p.X(), 1e-9)
			assert.InDelta(t, tt.wantY, p.Y(), 1e-9)
			assert.InDelta(t, tt.wantD, p.Degrees(), 1e-9)
		})
	}

	_, err := b.PoseAt(ms(-1))
	assert.True(t, errors.Is(err, ErrNoHistory))
}

func TestPoseAt_StaleNewestSample(t *testing.T) {
	b := NewBuffer(10, 0)
	require.NoError(t, b.Add(ms(0), geometry.NewPose(0, 0, 0)))
	require.NoError(t, b.Add(ms(20), geometry.NewPose(10, 20, 40)))

	// Newer than every sample, but odometry has been silent too long.
	_, err := b.PoseAt(ms(121))
	assert.ErrorIs(t, err, ErrNoHistory)
	_, err = b.PoseAt(ms(30_000))
	assert.ErrorIs(t, err, ErrNoHistory)

	// Fresh odometry makes the same instant answerable again.
	require.NoError(t, b.Add(ms(30_000), geometry.NewPose(1, 2, 3)))
	p, err := b.PoseAt(ms(30_000))
	require.NoError(t, err)
	assert.InDelta(t, 1, p.X(), 1e-9)
}

func TestPoseAt_StartupSeedGoesStale(t *testing.T) {
	b := NewBuffer(10, 20*time.Millisecond)
	b.Reset(ms(0), geometry.Pose2d{})

	_, err := b.PoseAt(ms(20))
	require.NoError(t, err)
	_, err = b.PoseAt(ms(21))
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestAdd_OrderingAndCapacity(t *testing.T) {
	b := NewBuffer(3, 0)
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Add(ms(i*20), geometry.NewPose(float64(i), 0, 0)))
	}
	assert.Equal(t, 3, b.Len())

	// The two oldest samples were evicted.
	_, err := b.PoseAt(ms(20))
	assert.ErrorIs(t, err, ErrNoHistory)
	p, err := b.PoseAt(ms(40))
	require.NoError(t, err)
	assert.InDelta(t, 2, p.X(), 1e-9)

	err = b.Add(ms(10), geometry.Pose2d{})
	assert.ErrorIs(t, err, ErrOutOfOrder)

	// Same timestamp overwrites.
	require.NoError(t, b.Add(ms(80), geometry.NewPose(42, 0, 0)))
	assert.InDelta(t, 42, b.CurrentPose().X(), 1e-9)
	assert.Equal(t, 3, b.Len())
}

func TestReset(t *testing.T) {
	b := NewBuffer(5, 0)
	require.NoError(t, b.Add(ms(0), geometry.NewPose(1, 1, 0)))
	require.NoError(t, b.Add(ms(20), geometry.NewPose(2, 2, 0)))

	b.Reset(ms(5), geometry.NewPose(100, 50, 90))
	assert.Equal(t, 1, b.Len())
	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, ms(5), latest)
	assert.InDelta(t, 100, b.CurrentPose().X(), 1e-9)

	// Resetting to an earlier time is allowed; subsequent adds continue from it.
	require.NoError(t, b.Add(ms(25), geometry.NewPose(101, 50, 90)))
}

func TestNewBuffer_MinimumCapacity(t *testing.T) {
	b := NewBuffer(0, 0)
	assert.Equal(t, DefaultCapacity, b.capacity)
	assert.Equal(t, DefaultMaxStaleness, b.maxStaleness)
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	b := NewBuffer(50, 0)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = b.Add(ms(i), geometry.NewPose(float64(i), 0, 0))
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_, _ = b.PoseAt(ms(i))
				_ = b.CurrentPose()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, b.Len())
}
