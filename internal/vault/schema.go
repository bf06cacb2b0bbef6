package vault

const schema = `
CREATE TABLE IF NOT EXISTS vault_entries (
    vault_anchor     TEXT PRIMARY KEY,
    cert_id          TEXT UNIQUE NOT NULL,
    ics_hash         TEXT NOT NULL,
    content_hash     TEXT NOT NULL,
    timestamp        TEXT NOT NULL,
    cert_type        TEXT NOT NULL CHECK(cert_type IN ('LOGIC_FRAGMENT','FULL_DOCUMENT','RESEARCH_PAPER')),
    author_signature TEXT,
    metadata         TEXT NOT NULL,
    created_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_ics_hash ON vault_entries(ics_hash);
CREATE INDEX IF NOT EXISTS idx_entries_content ON vault_entries(content_hash);
CREATE INDEX IF NOT EXISTS idx_entries_type ON vault_entries(cert_type);
CREATE INDEX IF NOT EXISTS idx_entries_author ON vault_entries(author_signature) WHERE author_signature IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_entries_created ON vault_entries(created_at);

CREATE TABLE IF NOT EXISTS drift_alerts (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    cert_id       TEXT NOT NULL,
    original_hash TEXT NOT NULL,
    current_hash  TEXT NOT NULL,
    severity      REAL NOT NULL,
    alert_type    TEXT NOT NULL,
    resolved      INTEGER DEFAULT 0 CHECK(resolved IN (0, 1)),
    created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_cert ON drift_alerts(cert_id);
CREATE INDEX IF NOT EXISTS idx_alerts_unresolved ON drift_alerts(resolved) WHERE resolved = 0;

CREATE TABLE IF NOT EXISTS vault_metadata (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);
`
