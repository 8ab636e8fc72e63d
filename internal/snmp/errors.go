package snmp

import (
	"errors"
	"fmt"
)

// The collector classifies every failure as one of two kinds. Transport
// errors mean the device never answered and callers should mark it
// unhealthy; value errors mean the device answered but the requested object
// is absent or unusable, which is a per-item condition.

// TransportError indicates the device was unreachable or timed out.
type TransportError struct {
	Target string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("snmp transport %s: %v", e.Target, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValueError indicates the device responded with an error varbind for the
// requested OID (noSuchObject, noSuchInstance, error-status, or a value the
// collector cannot interpret).
type ValueError struct {
	OID    string
	Detail string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("snmp value %s: %s", e.OID, e.Detail)
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsValue reports whether err is (or wraps) a ValueError.
func IsValue(err error) bool {
	var ve *ValueError
	return errors.As(err, &ve)
}
