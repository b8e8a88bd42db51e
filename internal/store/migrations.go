package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS access_log (
	id          TEXT PRIMARY KEY,
	request_id  TEXT NOT NULL DEFAULT '',
	provider    TEXT NOT NULL,
	operation   TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	error_kind  TEXT NOT NULL DEFAULT '',
	message_id  TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_access_log_created_at ON access_log(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_access_log_provider_op
	ON access_log(provider, operation, created_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
