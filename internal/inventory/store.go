package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store provides database access for devices, interfaces and items.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const deviceColumns = `id, name, address, port, snmp_version, community, username,
	auth_protocol, auth_passphrase, priv_protocol, priv_passphrase, security_level,
	health, created_at, updated_at`

func scanDevice(row interface{ Scan(...any) error }) (*Device, error) {
	var d Device
	err := row.Scan(
		&d.ID, &d.Name, &d.Address, &d.Port,
		&d.Credential.Version, &d.Credential.Community, &d.Credential.Username,
		&d.Credential.AuthProtocol, &d.Credential.AuthPassphrase,
		&d.Credential.PrivacyProtocol, &d.Credential.PrivacyPassphrase,
		&d.Credential.SecurityLevel,
		&d.Health, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// -- Devices --

// InsertDevice inserts a new device.
func (s *Store) InsertDevice(ctx context.Context, d *Device) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (
			id, name, address, port, snmp_version, community, username,
			auth_protocol, auth_passphrase, priv_protocol, priv_passphrase, security_level,
			health, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Address, d.Port,
		d.Credential.Version, d.Credential.Community, d.Credential.Username,
		d.Credential.AuthProtocol, d.Credential.AuthPassphrase,
		d.Credential.PrivacyProtocol, d.Credential.PrivacyPassphrase,
		d.Credential.SecurityLevel,
		d.Health, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

// GetDevice returns a device by ID. Returns nil, nil if not found.
func (s *Store) GetDevice(ctx context.Context, id string) (*Device, error) {
	d, err := scanDevice(s.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

// ListDevices returns all devices.
func (s *Store) ListDevices(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// UpdateDeviceHealth sets the health status of a device.
func (s *Store) UpdateDeviceHealth(ctx context.Context, id, health string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE devices SET health = ?, updated_at = ? WHERE id = ?`,
		health, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update device health: %w", err)
	}
	return nil
}

// DeleteDevice removes a device. Interfaces and items cascade.
func (s *Store) DeleteDevice(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}

// -- Interfaces --

// ReplaceInterfaces swaps a device's interface snapshot for a fresh one.
func (s *Store) ReplaceInterfaces(ctx context.Context, deviceID string, interfaces []Interface) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM device_interfaces WHERE device_id = ?`, deviceID,
	); err != nil {
		return fmt.Errorf("clear interfaces: %w", err)
	}

	for i := range interfaces {
		iface := &interfaces[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO device_interfaces (
				device_id, if_index, name, type_code, type_name, speed_bps, admin_status, oper_status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			deviceID, iface.Index, iface.Name, iface.TypeCode, iface.TypeName,
			iface.SpeedBps, iface.AdminStatus, iface.OperStatus,
		); err != nil {
			return fmt.Errorf("insert interface %d: %w", iface.Index, err)
		}
	}

	return tx.Commit()
}

// ListInterfaces returns the interface snapshot for a device, ordered by index.
func (s *Store) ListInterfaces(ctx context.Context, deviceID string) ([]Interface, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, if_index, name, type_code, type_name, speed_bps, admin_status, oper_status
		FROM device_interfaces WHERE device_id = ? ORDER BY if_index`,
		deviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	defer rows.Close()

	var interfaces []Interface
	for rows.Next() {
		var iface Interface
		if err := rows.Scan(
			&iface.DeviceID, &iface.Index, &iface.Name, &iface.TypeCode,
			&iface.TypeName, &iface.SpeedBps, &iface.AdminStatus, &iface.OperStatus,
		); err != nil {
			return nil, fmt.Errorf("scan interface row: %w", err)
		}
		interfaces = append(interfaces, iface)
	}
	return interfaces, rows.Err()
}

// GetInterface returns one interface row. Returns nil, nil if not found.
func (s *Store) GetInterface(ctx context.Context, deviceID string, ifIndex int) (*Interface, error) {
	var iface Interface
	err := s.db.QueryRowContext(ctx, `
		SELECT device_id, if_index, name, type_code, type_name, speed_bps, admin_status, oper_status
		FROM device_interfaces WHERE device_id = ? AND if_index = ?`,
		deviceID, ifIndex,
	).Scan(
		&iface.DeviceID, &iface.Index, &iface.Name, &iface.TypeCode,
		&iface.TypeName, &iface.SpeedBps, &iface.AdminStatus, &iface.OperStatus,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get interface: %w", err)
	}
	return &iface, nil
}

// -- Items --

const itemColumns = `id, device_id, name, oid, unit, interval_seconds, derived,
	source_item_id, enabled, health, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (*Item, error) {
	var it Item
	var derived, enabled int
	err := row.Scan(
		&it.ID, &it.DeviceID, &it.Name, &it.OID, &it.Unit, &it.IntervalSeconds,
		&derived, &it.SourceItemID, &enabled, &it.Health, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	it.Derived = derived != 0
	it.Enabled = enabled != 0
	return &it, nil
}

// InsertItem inserts a new monitored item.
func (s *Store) InsertItem(ctx context.Context, it *Item) error {
	derived, enabled := 0, 0
	if it.Derived {
		derived = 1
	}
	if it.Enabled {
		enabled = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (
			id, device_id, name, oid, unit, interval_seconds, derived,
			source_item_id, enabled, health, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.DeviceID, it.Name, it.OID, it.Unit, it.IntervalSeconds,
		derived, it.SourceItemID, enabled, it.Health, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// GetItem returns an item by ID. Returns nil, nil if not found.
func (s *Store) GetItem(ctx context.Context, id string) (*Item, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

// GetItemByName returns a device's item by name. Returns nil, nil if not found.
func (s *Store) GetItemByName(ctx context.Context, deviceID, name string) (*Item, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE device_id = ? AND name = ?`,
		deviceID, name,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get item by name: %w", err)
	}
	return it, nil
}

// GetDerivedItem returns the derived bandwidth item fed by the given source
// item. Returns nil, nil if none is configured.
func (s *Store) GetDerivedItem(ctx context.Context, sourceItemID string) (*Item, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE derived = 1 AND source_item_id = ?`,
		sourceItemID,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get derived item: %w", err)
	}
	return it, nil
}

// ListEnabledItems returns every enabled, non-derived item. Derived items are
// written by the rate computation and never polled directly.
func (s *Store) ListEnabledItems(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE enabled = 1 AND derived = 0 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list enabled items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// ListItemsForDevice returns all items belonging to a device.
func (s *Store) ListItemsForDevice(ctx context.Context, deviceID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE device_id = ? ORDER BY created_at`,
		deviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items for device: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// UpdateItemHealth sets the health status of an item.
func (s *Store) UpdateItemHealth(ctx context.Context, id, health string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE items SET health = ?, updated_at = ? WHERE id = ?`,
		health, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update item health: %w", err)
	}
	return nil
}

// DeleteItem removes an item.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}
