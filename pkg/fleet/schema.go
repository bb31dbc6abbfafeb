package fleet

// Schema contains the SQL statements to create the fleet directory schema.
const Schema = `
-- Nodes table: one row per managed media-server instance
CREATE TABLE IF NOT EXISTS nodes (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    name             TEXT UNIQUE NOT NULL,
    environment      TEXT NOT NULL DEFAULT 'production',
    control_base_url TEXT NOT NULL,
    hls_base_url     TEXT NOT NULL,
    created_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at       DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name);
CREATE INDEX IF NOT EXISTS idx_nodes_environment ON nodes(environment);
`
