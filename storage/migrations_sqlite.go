package storage

import "database/sql"

const rulesTableDDL = `
CREATE TABLE IF NOT EXISTS rules (
	id TEXT PRIMARY KEY,
	rule_id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	enabled INTEGER NOT NULL DEFAULT 1,
	immutable INTEGER NOT NULL DEFAULT 0,
	type TEXT NOT NULL,
	severity TEXT NOT NULL,
	risk_score REAL NOT NULL DEFAULT 0,
	query TEXT,
	language TEXT,
	saved_id TEXT,
	filters TEXT, -- JSON array
	index_patterns TEXT, -- JSON array
	output_index TEXT,
	rule_from TEXT NOT NULL,
	rule_to TEXT NOT NULL,
	interval TEXT NOT NULL,
	max_signals INTEGER NOT NULL,
	meta TEXT, -- JSON object
	tags TEXT, -- JSON array
	rule_references TEXT, -- JSON array
	false_positives TEXT, -- JSON array
	threats TEXT, -- JSON array
	timeline_id TEXT,
	timeline_title TEXT,
	version INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
)`

// ruleMigrations builds the rule store schema. Append new versions; never
// edit an applied one.
var ruleMigrations = []Migration{
	{
		Version: 1,
		Name:    "create_rules_table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(rulesTableDDL)
			return err
		},
	},
	{
		Version: 2,
		Name:    "index_rules",
		Up: func(tx *sql.Tx) error {
			if err := createIndexIfNotExists(tx, "idx_rules_enabled", "rules", "enabled"); err != nil {
				return err
			}
			if err := createIndexIfNotExists(tx, "idx_rules_created_at", "rules", "created_at DESC"); err != nil {
				return err
			}
			return createIndexIfNotExists(tx, "idx_rules_severity", "rules", "severity")
		},
	},
}
