package configmgr

// Schema contains the SQL statements to create the config snapshot log.
// The log is append-only: rows are inserted and their applied flag is
// flipped at most once, nothing is ever updated in place or deleted.
const Schema = `
CREATE TABLE IF NOT EXISTS config_snapshots (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    node_id     INTEGER,
    config_hash TEXT NOT NULL,
    config_body TEXT NOT NULL,
    notes       TEXT NOT NULL DEFAULT '',
    applied     BOOLEAN NOT NULL DEFAULT FALSE,
    applied_by  TEXT NOT NULL DEFAULT '',
    created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_snapshots_node ON config_snapshots(node_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_hash ON config_snapshots(config_hash);
`
