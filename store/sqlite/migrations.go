package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the hub store (SQLite).
var Migrations = migrate.NewGroup("nexus")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_nexus_events",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS nexus_events (
    id              INTEGER PRIMARY KEY,
    source_address  TEXT NOT NULL DEFAULT '',
    method          TEXT NOT NULL DEFAULT '',
    headers         TEXT NOT NULL DEFAULT '{}',
    payload         TEXT,
    received_at     TEXT NOT NULL DEFAULT (datetime('now')),
    is_favorite     INTEGER NOT NULL DEFAULT 0,
    is_deleted      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_nexus_events_received ON nexus_events (received_at);
CREATE INDEX IF NOT EXISTS idx_nexus_events_deleted ON nexus_events (is_deleted);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS nexus_events`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_nexus_machine_token",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS nexus_machine_token (
    id          INTEGER PRIMARY KEY,
    token       TEXT NOT NULL DEFAULT '',
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS nexus_machine_token`)
				return err
			},
		},
	)
}
