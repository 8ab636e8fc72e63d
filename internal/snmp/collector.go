// Package snmp implements the protocol collector: single-OID gets, interface
// table discovery, and system detail retrieval over SNMP v2c/v3.
package snmp

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"
)

// Credential holds the fields needed for SNMP authentication.
type Credential struct {
	Version string // "2c" or "3"

	// SNMPv2c fields.
	Community string

	// SNMPv3 fields.
	Username          string
	AuthProtocol      string // "MD5", "SHA", "SHA-256", etc.
	AuthPassphrase    string
	PrivacyProtocol   string // "DES", "AES", "AES-256", etc.
	PrivacyPassphrase string
	SecurityLevel     string // "noAuthNoPriv", "authNoPriv", "authPriv"
}

// Interface is one row of the device's IF-MIB interface table.
type Interface struct {
	Index       int
	Name        string // ifDescr
	TypeCode    int
	TypeName    string
	SpeedBps    uint64
	AdminStatus string // "up" or "down"
	OperStatus  string // "up" or "down"
}

// Collector issues stateless request/response exchanges against devices.
// Sessions are opened and closed within each call, never held across calls.
type Collector struct {
	timeout time.Duration
	retries int
	logger  *zap.Logger
}

// Config bounds every SNMP exchange the collector performs.
type Config struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// DefaultConfig returns the collector defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 5 * time.Second,
		Retries: 1,
	}
}

// NewCollector creates a collector with the given exchange bounds.
func NewCollector(cfg Config, logger *zap.Logger) *Collector {
	return &Collector{
		timeout: cfg.Timeout,
		retries: cfg.Retries,
		logger:  logger,
	}
}

// newGoSNMP creates a configured GoSNMP instance for the given target and
// credential. The returned GoSNMP is not yet connected.
func (c *Collector) newGoSNMP(target string, cred *Credential) (*gosnmp.GoSNMP, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// No port specified, default to 161.
		host = target
		portStr = "161"
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", portStr, err)
	}

	g := &gosnmp.GoSNMP{
		Target:  host,
		Port:    uint16(port),
		Timeout: c.timeout,
		Retries: c.retries,
	}

	switch cred.Version {
	case "2c", "":
		g.Version = gosnmp.Version2c
		g.Community = cred.Community

	case "3":
		g.Version = gosnmp.Version3
		g.SecurityModel = gosnmp.UserSecurityModel

		switch cred.SecurityLevel {
		case "noAuthNoPriv":
			g.MsgFlags = gosnmp.NoAuthNoPriv
		case "authNoPriv":
			g.MsgFlags = gosnmp.AuthNoPriv
		case "authPriv":
			g.MsgFlags = gosnmp.AuthPriv
		default:
			g.MsgFlags = gosnmp.AuthPriv
		}

		g.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 cred.Username,
			AuthenticationProtocol:   mapAuthProtocol(cred.AuthProtocol),
			AuthenticationPassphrase: cred.AuthPassphrase,
			PrivacyProtocol:          mapPrivProtocol(cred.PrivacyProtocol),
			PrivacyPassphrase:        cred.PrivacyPassphrase,
		}

	default:
		return nil, fmt.Errorf("unsupported SNMP version: %s", cred.Version)
	}

	return g, nil
}

// mapAuthProtocol converts an auth protocol string to the gosnmp constant.
func mapAuthProtocol(s string) gosnmp.SnmpV3AuthProtocol {
	switch strings.ToUpper(s) {
	case "MD5":
		return gosnmp.MD5
	case "SHA":
		return gosnmp.SHA
	case "SHA-224", "SHA224":
		return gosnmp.SHA224
	case "SHA-256", "SHA256":
		return gosnmp.SHA256
	case "SHA-384", "SHA384":
		return gosnmp.SHA384
	case "SHA-512", "SHA512":
		return gosnmp.SHA512
	default:
		return gosnmp.SHA
	}
}

// mapPrivProtocol converts a privacy protocol string to the gosnmp constant.
func mapPrivProtocol(s string) gosnmp.SnmpV3PrivProtocol {
	switch strings.ToUpper(s) {
	case "DES":
		return gosnmp.DES
	case "AES", "AES-128", "AES128":
		return gosnmp.AES
	case "AES-192", "AES192":
		return gosnmp.AES192
	case "AES-256", "AES256":
		return gosnmp.AES256
	default:
		return gosnmp.AES
	}
}

// Get performs a single synchronous GET for one OID and returns its numeric
// value. Failures are classified: *TransportError when the device never
// answered, *ValueError when it answered with an error varbind or a
// non-numeric value.
func (c *Collector) Get(ctx context.Context, target string, cred *Credential, oid string) (float64, error) {
	g, err := c.newGoSNMP(target, cred)
	if err != nil {
		return 0, fmt.Errorf("configure SNMP: %w", err)
	}
	g.Context = ctx

	if err := g.Connect(); err != nil {
		return 0, &TransportError{Target: target, Err: err}
	}
	defer func() { _ = g.Conn.Close() }()

	result, err := g.Get([]string{oid})
	if err != nil {
		return 0, &TransportError{Target: target, Err: err}
	}
	if result.Error != gosnmp.NoError {
		return 0, &ValueError{OID: oid, Detail: fmt.Sprintf("error-status %v", result.Error)}
	}
	if len(result.Variables) == 0 {
		return 0, &ValueError{OID: oid, Detail: "empty response"}
	}

	pdu := result.Variables[0]
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return 0, &ValueError{OID: oid, Detail: pdu.Type.String()}
	}

	value, ok := pduToFloat(pdu)
	if !ok {
		return 0, &ValueError{OID: oid, Detail: fmt.Sprintf("non-numeric type %v", pdu.Type)}
	}

	c.logger.Debug("SNMP value retrieved",
		zap.String("target", target),
		zap.String("oid", oid),
		zap.Float64("value", value),
	)

	return value, nil
}

// DiscoverInterfaces walks the IF-MIB interface table and returns one entry
// per interface, sorted by ifIndex.
func (c *Collector) DiscoverInterfaces(ctx context.Context, target string, cred *Credential) ([]Interface, error) {
	g, err := c.newGoSNMP(target, cred)
	if err != nil {
		return nil, fmt.Errorf("configure SNMP: %w", err)
	}
	g.Context = ctx

	if err := g.Connect(); err != nil {
		return nil, &TransportError{Target: target, Err: err}
	}
	defer func() { _ = g.Conn.Close() }()

	pdus, err := g.BulkWalkAll(OIDIfTable)
	if err != nil {
		return nil, &TransportError{Target: target, Err: fmt.Errorf("walk IF-MIB: %w", err)}
	}

	// Group PDUs by interface index.
	ifMap := make(map[int]*Interface)

	for _, pdu := range pdus {
		idx := extractOIDIndex(pdu.Name)
		if idx < 0 {
			continue
		}

		iface, ok := ifMap[idx]
		if !ok {
			iface = &Interface{Index: idx}
			ifMap[idx] = iface
		}

		switch extractOIDPrefix(pdu.Name) {
		case "." + OIDIfIndex, OIDIfIndex:
			iface.Index = parsePDUInt(pdu)
		case "." + OIDIfDescr, OIDIfDescr:
			iface.Name = parsePDUString(pdu)
		case "." + OIDIfType, OIDIfType:
			iface.TypeCode = parsePDUInt(pdu)
			iface.TypeName = InterfaceTypeName(iface.TypeCode)
		case "." + OIDIfSpeed, OIDIfSpeed:
			iface.SpeedBps = parsePDUUint64(pdu)
		case "." + OIDIfAdminStatus, OIDIfAdminStatus:
			iface.AdminStatus = StatusName(parsePDUInt(pdu))
		case "." + OIDIfOperStatus, OIDIfOperStatus:
			iface.OperStatus = StatusName(parsePDUInt(pdu))
		}
	}

	interfaces := make([]Interface, 0, len(ifMap))
	for _, iface := range ifMap {
		interfaces = append(interfaces, *iface)
	}
	sort.Slice(interfaces, func(i, j int) bool {
		return interfaces[i].Index < interfaces[j].Index
	})

	c.logger.Debug("SNMP interfaces retrieved",
		zap.String("target", target),
		zap.Int("count", len(interfaces)),
	)

	return interfaces, nil
}

// FetchSystemDetails retrieves the fixed set of system-identification values
// from the SNMPv2-MIB system group.
func (c *Collector) FetchSystemDetails(ctx context.Context, target string, cred *Credential) (map[string]string, error) {
	g, err := c.newGoSNMP(target, cred)
	if err != nil {
		return nil, fmt.Errorf("configure SNMP: %w", err)
	}
	g.Context = ctx

	if err := g.Connect(); err != nil {
		return nil, &TransportError{Target: target, Err: err}
	}
	defer func() { _ = g.Conn.Close() }()

	oids := []string{
		OIDSysDescr,
		OIDSysObjectID,
		OIDSysUpTime,
		OIDSysContact,
		OIDSysName,
		OIDSysLocation,
	}

	result, err := g.Get(oids)
	if err != nil {
		return nil, &TransportError{Target: target, Err: err}
	}

	details := make(map[string]string, len(oids))
	for _, pdu := range result.Variables {
		switch pdu.Name {
		case "." + OIDSysDescr:
			details["description"] = parsePDUString(pdu)
		case "." + OIDSysObjectID:
			details["object_id"] = parsePDUString(pdu)
		case "." + OIDSysUpTime:
			details["uptime"] = parsePDUUpTime(pdu).String()
		case "." + OIDSysContact:
			details["contact"] = parsePDUString(pdu)
		case "." + OIDSysName:
			details["name"] = parsePDUString(pdu)
		case "." + OIDSysLocation:
			details["location"] = parsePDUString(pdu)
		}
	}

	c.logger.Debug("SNMP system details retrieved",
		zap.String("target", target),
		zap.String("name", details["name"]),
	)

	return details, nil
}

// pduToFloat extracts a numeric value from an SNMP PDU. Numeric strings
// (some agents expose gauges as DisplayString) are accepted.
func pduToFloat(pdu gosnmp.SnmpPDU) (float64, bool) {
	switch v := pdu.Value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float64:
		return v, true
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// parsePDUString extracts a string value from an SNMP PDU.
func parsePDUString(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	}
}

// parsePDUUpTime converts a TimeTicks value (hundredths of a second) to a
// time.Duration.
func parsePDUUpTime(pdu gosnmp.SnmpPDU) time.Duration {
	switch v := pdu.Value.(type) {
	case uint32:
		return time.Duration(v) * 10 * time.Millisecond
	case uint:
		return time.Duration(int64(v)) * 10 * time.Millisecond
	case int:
		return time.Duration(v) * 10 * time.Millisecond
	default:
		return 0
	}
}

// parsePDUInt extracts an integer value from an SNMP PDU.
func parsePDUInt(pdu gosnmp.SnmpPDU) int {
	switch v := pdu.Value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint:
		return int(v)
	case uint32:
		return int(v)
	case uint64:
		return int(v)
	default:
		return 0
	}
}

// parsePDUUint64 extracts a uint64 value from an SNMP PDU.
func parsePDUUint64(pdu gosnmp.SnmpPDU) uint64 {
	switch v := pdu.Value.(type) {
	case uint64:
		return v
	case uint32:
		return uint64(v)
	case uint:
		return uint64(v)
	case int:
		if v >= 0 {
			return uint64(v)
		}
		return 0
	default:
		return 0
	}
}

// extractOIDIndex extracts the last numeric segment from an OID string.
// For example, ".1.3.6.1.2.1.2.2.1.2.3" returns 3.
func extractOIDIndex(oid string) int {
	lastDot := strings.LastIndex(oid, ".")
	if lastDot < 0 || lastDot == len(oid)-1 {
		return -1
	}
	idx, err := strconv.Atoi(oid[lastDot+1:])
	if err != nil {
		return -1
	}
	return idx
}

// extractOIDPrefix returns the OID with the last segment removed.
func extractOIDPrefix(oid string) string {
	lastDot := strings.LastIndex(oid, ".")
	if lastDot < 0 {
		return oid
	}
	return oid[:lastDot]
}
