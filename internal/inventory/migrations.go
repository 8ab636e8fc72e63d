package inventory

import (
	"database/sql"

	"github.com/wirepoll/wirepoll/internal/store"
)

// Migrations returns the inventory schema.
func Migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create device, interface and item tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS devices (
						id TEXT PRIMARY KEY,
						name TEXT NOT NULL,
						address TEXT NOT NULL,
						port INTEGER NOT NULL DEFAULT 161,
						snmp_version TEXT NOT NULL DEFAULT '2c',
						community TEXT NOT NULL DEFAULT '',
						username TEXT NOT NULL DEFAULT '',
						auth_protocol TEXT NOT NULL DEFAULT '',
						auth_passphrase TEXT NOT NULL DEFAULT '',
						priv_protocol TEXT NOT NULL DEFAULT '',
						priv_passphrase TEXT NOT NULL DEFAULT '',
						security_level TEXT NOT NULL DEFAULT '',
						health TEXT NOT NULL DEFAULT 'ok',
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,

					`CREATE TABLE IF NOT EXISTS device_interfaces (
						device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
						if_index INTEGER NOT NULL,
						name TEXT NOT NULL,
						type_code INTEGER NOT NULL DEFAULT 0,
						type_name TEXT NOT NULL DEFAULT 'other',
						speed_bps INTEGER NOT NULL DEFAULT 0,
						admin_status TEXT NOT NULL DEFAULT 'down',
						oper_status TEXT NOT NULL DEFAULT 'down',
						PRIMARY KEY (device_id, if_index)
					)`,

					`CREATE TABLE IF NOT EXISTS items (
						id TEXT PRIMARY KEY,
						device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
						name TEXT NOT NULL,
						oid TEXT NOT NULL DEFAULT '',
						unit TEXT NOT NULL DEFAULT '',
						interval_seconds INTEGER NOT NULL DEFAULT 60,
						derived INTEGER NOT NULL DEFAULT 0,
						source_item_id TEXT NOT NULL DEFAULT '',
						enabled INTEGER NOT NULL DEFAULT 1,
						health TEXT NOT NULL DEFAULT 'ok',
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_items_device ON items(device_id)`,
					`CREATE INDEX IF NOT EXISTS idx_items_source ON items(source_item_id)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
