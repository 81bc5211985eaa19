package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notifications (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    type                 TEXT NOT NULL,
    message              TEXT NOT NULL,
    data                 TEXT,
    user_id              TEXT,
    received_at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_received ON notifications(received_at);
CREATE INDEX IF NOT EXISTS idx_notifications_type ON notifications(type);
`
