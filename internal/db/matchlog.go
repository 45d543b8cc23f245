package db

import (
	"fmt"
	"time"
)

// FrameRecord summarises one ingested camera frame.
type FrameRecord struct {
	Camera        string
	CaptureTime   time.Time
	ProcessedTime time.Time
	Detections    int
	Candidates    int
	Dropped       int
}

// BestTargetRecord is the best target as of one control-loop cycle.
type BestTargetRecord struct {
	ProcessedTime time.Time `json:"processed_time"`
	TargetID      string    `json:"target_id"`
	XInches       float64   `json:"x_in"`
	YInches       float64   `json:"y_in"`
	RotationDeg   float64   `json:"rotation_deg"`
	TrackedCount  int       `json:"tracked_count"`
}

// FrameStat aggregates frames per camera.
type FrameStat struct {
	Camera        string  `json:"camera"`
	Frames        int64   `json:"frames"`
	Detections    int64   `json:"detections"`
	Candidates    int64   `json:"candidates"`
	Dropped       int64   `json:"dropped"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
}

// RecordFrame inserts one processed camera frame.
func (db *DB) RecordFrame(r FrameRecord) error {
	_, err := db.Exec(
		`INSERT INTO vision_frames (
			camera, capture_unix_nanos, processed_unix_nanos, detections, candidates, dropped
		) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Camera, r.CaptureTime.UnixNano(), r.ProcessedTime.UnixNano(),
		r.Detections, r.Candidates, r.Dropped,
	)
	if err != nil {
		return fmt.Errorf("record frame from %s: %w", r.Camera, err)
	}
	return nil
}

// RecordBestTarget inserts the best target picked in one loop cycle.
func (db *DB) RecordBestTarget(r BestTargetRecord) error {
	_, err := db.Exec(
		`INSERT INTO vision_best_targets (
			processed_unix_nanos, target_id, x_in, y_in, rotation_deg, tracked_count
		) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ProcessedTime.UnixNano(), r.TargetID, r.XInches, r.YInches, r.RotationDeg, r.TrackedCount,
	)
	if err != nil {
		return fmt.Errorf("record best target %s: %w", r.TargetID, err)
	}
	return nil
}

// RecentBestTargets returns the newest limit best-target rows in time order.
// A limit of zero or less returns every row.
func (db *DB) RecentBestTargets(limit int) ([]BestTargetRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := db.Query(
		`SELECT processed_unix_nanos, target_id, x_in, y_in, rotation_deg, tracked_count
		FROM (
			SELECT * FROM vision_best_targets
			ORDER BY processed_unix_nanos DESC, id DESC
			LIMIT ?
		)
		ORDER BY processed_unix_nanos ASC, id ASC`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BestTargetRecord
	for rows.Next() {
		var (
			r     BestTargetRecord
			nanos int64
		)
		if err := rows.Scan(&nanos, &r.TargetID, &r.XInches, &r.YInches, &r.RotationDeg, &r.TrackedCount); err != nil {
			return nil, err
		}
		r.ProcessedTime = time.Unix(0, nanos)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FrameStats returns per-camera frame totals, ordered by camera name.
func (db *DB) FrameStats() ([]FrameStat, error) {
	rows, err := db.Query(
		`SELECT camera,
			COUNT(*),
			COALESCE(SUM(detections), 0),
			COALESCE(SUM(candidates), 0),
			COALESCE(SUM(dropped), 0),
			COALESCE(AVG(processed_unix_nanos - capture_unix_nanos), 0) / 1e6
		FROM vision_frames
		GROUP BY camera
		ORDER BY camera`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []FrameStat
	for rows.Next() {
		var s FrameStat
		if err := rows.Scan(&s.Camera, &s.Frames, &s.Detections, &s.Candidates, &s.Dropped, &s.MeanLatencyMs); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}
