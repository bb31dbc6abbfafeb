package retention

// Schema contains the SQL statements to create the recording metadata
// schema.
const Schema = `
-- Recordings table: completed recording segments and their retention state
CREATE TABLE IF NOT EXISTS recordings (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    stream_id        INTEGER NOT NULL,
    stream_path      TEXT NOT NULL,
    segment_type     TEXT NOT NULL DEFAULT 'continuous',
    start_time       DATETIME NOT NULL,
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    file_size        INTEGER NOT NULL DEFAULT 0,
    file_path        TEXT NOT NULL,
    is_archived      BOOLEAN NOT NULL DEFAULT FALSE,
    expires_at       DATETIME,
    created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_recordings_stream ON recordings(stream_id);
CREATE INDEX IF NOT EXISTS idx_recordings_start ON recordings(start_time);
CREATE INDEX IF NOT EXISTS idx_recordings_expiry ON recordings(expires_at);
CREATE INDEX IF NOT EXISTS idx_recordings_archived ON recordings(is_archived);
`
