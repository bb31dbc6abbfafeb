package health

// Schema contains the SQL statements to create the stream registry schema.
const Schema = `
-- Streams table: monitored media paths and their last known health
CREATE TABLE IF NOT EXISTS streams (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    node_id           INTEGER NOT NULL,
    path              TEXT NOT NULL,
    name              TEXT NOT NULL DEFAULT '',
    source_url        TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL DEFAULT 'unknown',
    fps               REAL NOT NULL DEFAULT 0,
    bitrate_kbps      REAL NOT NULL DEFAULT 0,
    latency_ms        INTEGER NOT NULL DEFAULT 0,
    auto_remediate    BOOLEAN NOT NULL DEFAULT TRUE,
    recording_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    remediation_count INTEGER NOT NULL DEFAULT 0,
    last_remediation  DATETIME,
    last_check        DATETIME,
    created_at        DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at        DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (node_id, path)
);

CREATE INDEX IF NOT EXISTS idx_streams_node ON streams(node_id);
CREATE INDEX IF NOT EXISTS idx_streams_status ON streams(status);
CREATE INDEX IF NOT EXISTS idx_streams_path ON streams(path);
`
