package journal

// migrations is the ordered list of SQL migration statements.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS agent_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		source TEXT NOT NULL,
		severity INTEGER NOT NULL,
		value REAL,
		metadata TEXT,
		occurred_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_events_type ON agent_events(type, occurred_at)`,
	`CREATE TABLE IF NOT EXISTS agent_interventions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		intervention_id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		source TEXT NOT NULL,
		reason TEXT NOT NULL,
		urgency REAL NOT NULL,
		parameters TEXT,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notification_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		intervention_id TEXT NOT NULL,
		intervention_type TEXT NOT NULL,
		sink TEXT,
		delivered INTEGER NOT NULL,
		action TEXT,
		error TEXT,
		recorded_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outcomes_intervention ON notification_outcomes(intervention_id)`,
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	)`,
}
