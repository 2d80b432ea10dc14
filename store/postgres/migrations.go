package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the hub store (Postgres).
var Migrations = migrate.NewGroup("nexus")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_nexus_events",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS nexus_events (
    id              BIGINT PRIMARY KEY,
    source_address  TEXT NOT NULL DEFAULT '',
    method          TEXT NOT NULL DEFAULT '',
    headers         JSONB NOT NULL DEFAULT '{}',
    payload         JSONB,
    received_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_favorite     BOOLEAN NOT NULL DEFAULT FALSE,
    is_deleted      BOOLEAN NOT NULL DEFAULT FALSE
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
    id          BIGINT PRIMARY KEY,
    token       TEXT NOT NULL DEFAULT '',
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
