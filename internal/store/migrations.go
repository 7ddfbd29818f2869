package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
// The SQL is kept to the subset understood by both SQLite and PostgreSQL.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	role         TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	location      TEXT NOT NULL DEFAULT '',
	priority      INTEGER NOT NULL DEFAULT 3,
	status        TEXT NOT NULL DEFAULT 'pending'
		CHECK(status IN ('pending', 'in_progress', 'completed', 'verified')),
	assigned_to   TEXT NOT NULL DEFAULT '[]',
	assignee_name TEXT NOT NULL DEFAULT '',
	reminder_id   TEXT,
	version       INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS reminders (
	id                TEXT PRIMARY KEY,
	task_id           TEXT REFERENCES tasks(id),
	message           TEXT NOT NULL DEFAULT '',
	schedule_type     TEXT NOT NULL CHECK(schedule_type IN ('datetime', 'shifts')),
	start_date        TIMESTAMP,
	start_time        TEXT NOT NULL DEFAULT '',
	shifts            TEXT NOT NULL DEFAULT '[]',
	interval_count    INTEGER,
	unit              TEXT,
	weekdays          INTEGER NOT NULL DEFAULT 0,
	end_kind          TEXT,
	end_date          TIMESTAMP,
	end_count         INTEGER,
	frequency         TEXT NOT NULL,
	remind_at         TIMESTAMP,
	occurrences_fired INTEGER NOT NULL DEFAULT 0,
	active            INTEGER NOT NULL DEFAULT 1 CHECK(active IN (0, 1)),
	created_at        TIMESTAMP NOT NULL,
	updated_at        TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks(updated_at);
CREATE INDEX IF NOT EXISTS idx_reminders_task_id ON reminders(task_id);
CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(active, remind_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS notification_log (
	id         TEXT PRIMARY KEY,
	event_id   TEXT NOT NULL,
	task_id    TEXT NOT NULL,
	event_kind TEXT NOT NULL,
	status     TEXT NOT NULL CHECK(status IN ('delivered', 'failed', 'dropped')),
	attempts   INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notification_log_task_id ON notification_log(task_id);
CREATE INDEX IF NOT EXISTS idx_notification_log_created ON notification_log(created_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
