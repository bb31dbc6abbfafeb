package blacklist

// Schema contains the SQL statements to create the blacklist schema.
const Schema = `
-- Blocked IPs table: viewer addresses denied access, optionally scoped
CREATE TABLE IF NOT EXISTS blocked_ips (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    ip_address   TEXT NOT NULL,
    reason       TEXT NOT NULL DEFAULT '',
    blocked_by   TEXT NOT NULL DEFAULT '',
    path_pattern TEXT,
    node_id      INTEGER,
    expires_at   DATETIME,
    created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One entry per (address, scope). NULL scope fields are coalesced so the
-- fleet-wide scope is unique too; a plain UNIQUE would treat NULLs as
-- distinct.
CREATE UNIQUE INDEX IF NOT EXISTS idx_blocked_ips_scope
    ON blocked_ips(ip_address, COALESCE(path_pattern, ''), COALESCE(node_id, 0));

CREATE INDEX IF NOT EXISTS idx_blocked_ips_address ON blocked_ips(ip_address);
CREATE INDEX IF NOT EXISTS idx_blocked_ips_expiry ON blocked_ips(expires_at);
`
