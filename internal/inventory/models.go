// Package inventory holds the monitored device and item records the engine
// polls against, plus their persistence.
package inventory

import (
	"net"
	"strconv"
	"time"

	"github.com/wirepoll/wirepoll/internal/snmp"
)

// Health states for devices and items.
const (
	HealthOK      = "ok"
	HealthFailing = "failing"
)

// Device is a monitored network device.
type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"` // host or host:port
	Port      int       `json:"port"`
	Health    string    `json:"health"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Credential snmp.Credential `json:"credential"`
}

// Target returns the collector target address including the polling port.
func (d *Device) Target() string {
	if d.Port > 0 {
		return joinHostPort(d.Address, d.Port)
	}
	return d.Address
}

// Interface is an immutable snapshot row of a device's interface table,
// refreshed on demand rather than on every poll.
type Interface struct {
	DeviceID    string `json:"device_id"`
	Index       int    `json:"index"`
	Name        string `json:"name"`
	TypeCode    int    `json:"type_code"`
	TypeName    string `json:"type_name"`
	SpeedBps    uint64 `json:"speed_bps"`
	AdminStatus string `json:"admin_status"`
	OperStatus  string `json:"oper_status"`
}

// Item is a monitored metric on a device: one OID polled on its own interval.
// Derived bandwidth items carry no OID of their own; their samples are written
// by the rate computation from the source octet-counter item.
type Item struct {
	ID              string    `json:"id"`
	DeviceID        string    `json:"device_id"`
	Name            string    `json:"name"`
	OID             string    `json:"oid"`
	Unit            string    `json:"unit"`
	IntervalSeconds int       `json:"interval_seconds"`
	Derived         bool      `json:"derived"`        // bandwidth-utilization item
	SourceItemID    string    `json:"source_item_id"` // raw counter item feeding a derived item
	Enabled         bool      `json:"enabled"`
	Health          string    `json:"health"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Interval returns the polling interval as a duration.
func (i *Item) Interval() time.Duration {
	return time.Duration(i.IntervalSeconds) * time.Second
}

func joinHostPort(addr string, port int) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		// Address already carries a port.
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(port))
}
