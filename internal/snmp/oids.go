package snmp

import "strings"

// Standard OIDs used by the collector.

// SNMPv2-MIB system group (1.3.6.1.2.1.1).
const (
	OIDSysDescr    = "1.3.6.1.2.1.1.1.0"
	OIDSysObjectID = "1.3.6.1.2.1.1.2.0"
	OIDSysUpTime   = "1.3.6.1.2.1.1.3.0"
	OIDSysContact  = "1.3.6.1.2.1.1.4.0"
	OIDSysName     = "1.3.6.1.2.1.1.5.0"
	OIDSysLocation = "1.3.6.1.2.1.1.6.0"
)

// IF-MIB interface table (1.3.6.1.2.1.2.2.1).
const (
	OIDIfTable       = "1.3.6.1.2.1.2.2.1"
	OIDIfIndex       = "1.3.6.1.2.1.2.2.1.1"
	OIDIfDescr       = "1.3.6.1.2.1.2.2.1.2"
	OIDIfType        = "1.3.6.1.2.1.2.2.1.3"
	OIDIfSpeed       = "1.3.6.1.2.1.2.2.1.5"
	OIDIfAdminStatus = "1.3.6.1.2.1.2.2.1.7"
	OIDIfOperStatus  = "1.3.6.1.2.1.2.2.1.8"
	OIDIfInOctets    = "1.3.6.1.2.1.2.2.1.10"
	OIDIfOutOctets   = "1.3.6.1.2.1.2.2.1.16"
)

// IF-MIB 64-bit counters (1.3.6.1.2.1.31.1.1.1).
const (
	OIDIfHCInOctets  = "1.3.6.1.2.1.31.1.1.1.6"
	OIDIfHCOutOctets = "1.3.6.1.2.1.31.1.1.1.10"
)

// octetCounterPrefixes covers the in/out octet counter columns, 32- and 64-bit.
var octetCounterPrefixes = []string{
	OIDIfInOctets, OIDIfOutOctets, OIDIfHCInOctets, OIDIfHCOutOctets,
}

// IsOctetCounter reports whether oid belongs to the interface octet-counter
// family, i.e. whether its samples can feed bandwidth-utilization derivation.
func IsOctetCounter(oid string) bool {
	trimmed := strings.TrimPrefix(oid, ".")
	for _, p := range octetCounterPrefixes {
		if trimmed == p || strings.HasPrefix(trimmed, p+".") {
			return true
		}
	}
	return false
}

// ifTypeNames maps IANAifType codes to names. Subset covering the types seen
// on typical managed networks; unknown codes render as "other".
var ifTypeNames = map[int]string{
	1:   "other",
	6:   "ethernetCsmacd",
	23:  "ppp",
	24:  "softwareLoopback",
	53:  "propVirtual",
	71:  "ieee80211",
	117: "gigabitEthernet",
	131: "tunnel",
	135: "l2vlan",
	136: "l3ipvlan",
	161: "ieee8023adLag",
}

// InterfaceTypeName returns the IANAifType name for a code.
func InterfaceTypeName(code int) string {
	if name, ok := ifTypeNames[code]; ok {
		return name
	}
	return "other"
}

// StatusName decodes an ifAdminStatus/ifOperStatus integer: 1 is up,
// anything else is down.
func StatusName(code int) string {
	if code == 1 {
		return "up"
	}
	return "down"
}
