package storage

import (
	_ "embed"
)

//go:embed schema.sql
var initSchemaSQL string

const (
	// created on close so inserts during a run stay cheap
	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_captures_session_time ON captures (session_id, captured_at);
CREATE INDEX IF NOT EXISTS idx_telemetry_session_time ON telemetry (session_id, received_at);`

	insertSessionSQL = `
INSERT INTO sessions (run_id,
                      name,
                      directory,
                      start_time,
                      config)
VALUES (?, ?, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    run_id,
    name,
    directory,
    start_time,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    run_id,
    name,
    directory,
    start_time,
    config
FROM sessions
ORDER BY start_time`

	insertCaptureSQL = `
INSERT INTO captures (session_id,
                      captured_at,
                      filename,
                      raw16_file,
                      colormap,
                      mode,
                      frame_min,
                      frame_max,
                      frame_avg,
                      roi_min,
                      roi_max,
                      roi_mean,
                      roi_x1,
                      roi_y1,
                      roi_x2,
                      roi_y2,
                      latitude,
                      longitude)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectCapturesSQL = `
SELECT
    id,
    session_id,
    captured_at,
    filename,
    raw16_file,
    colormap,
    mode,
    frame_min,
    frame_max,
    frame_avg,
    roi_min,
    roi_max,
    roi_mean,
    roi_x1,
    roi_y1,
    roi_x2,
    roi_y2,
    latitude,
    longitude
FROM captures
WHERE
    session_id = ?
    AND (? IS NULL OR captured_at >= ?)
    AND (? IS NULL OR captured_at <= ?)
    AND (? = 0 OR (latitude IS NOT NULL AND longitude IS NOT NULL))
ORDER BY captured_at, id`

	insertTelemetrySQL = `
INSERT INTO telemetry (session_id,
                       kind,
                       device_timestamp,
                       received_at,
                       latitude,
                       longitude,
                       altitude,
                       satellites)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
)
