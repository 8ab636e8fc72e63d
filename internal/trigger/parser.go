// Package trigger parses and evaluates threshold expressions against stored
// sample rates, maintaining each trigger's truth state.
package trigger

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DefaultWindow is the aggregate window applied when a term omits the
// duration argument, e.g. avg(item) means avg(item, 15m).
const DefaultWindow = 15 * time.Minute

// Term is one atomic comparison inside an expression:
// function(item[, duration]) operator numericLiteral.
type Term struct {
	Func      string // "last", "avg", "min", "max"
	Item      string
	Window    time.Duration // used by avg/min/max
	Operator  string        // <, <=, =, ==, >=, >, !=
	Threshold float64
	raw       string
}

// String returns the term as written.
func (t Term) String() string { return t.raw }

// Expression is a flat, ordered sequence of terms joined by and/or
// connectives. There is no precedence and no nesting: the truth value is a
// strict left-to-right fold.
type Expression struct {
	Terms       []Term
	Connectives []string // len(Connectives) == len(Terms)-1
}

// References reports whether any term reads the named item.
func (e *Expression) References(itemName string) bool {
	for i := range e.Terms {
		if e.Terms[i].Item == itemName {
			return true
		}
	}
	return false
}

// ParseError describes a malformed trigger expression. Evaluation skips the
// trigger and logs; it is never fatal.
type ParseError struct {
	Expr   string
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse expression %q: %s", e.Expr, e.Detail)
}

var (
	connectiveRe = regexp.MustCompile(`\s+(and|or)\s+`)
	termRe       = regexp.MustCompile(`^(last|avg|min|max)\(\s*([^,()]+?)\s*(?:,\s*(\d+[smhd])\s*)?\)\s*(<=|>=|==|!=|<|>|=)\s*(-?\d+(?:\.\d+)?)$`)
)

// Parse splits an expression into terms and connectives and validates each
// term against the grammar.
func Parse(expr string) (*Expression, error) {
	if expr == "" {
		return nil, &ParseError{Expr: expr, Detail: "empty expression"}
	}

	var (
		terms       []Term
		connectives []string
		pos         int
	)

	matches := connectiveRe.FindAllStringSubmatchIndex(expr, -1)
	for _, m := range matches {
		term, err := parseTerm(expr[pos:m[0]])
		if err != nil {
			return nil, &ParseError{Expr: expr, Detail: err.Error()}
		}
		terms = append(terms, term)
		connectives = append(connectives, expr[m[2]:m[3]])
		pos = m[1]
	}

	term, err := parseTerm(expr[pos:])
	if err != nil {
		return nil, &ParseError{Expr: expr, Detail: err.Error()}
	}
	terms = append(terms, term)

	return &Expression{Terms: terms, Connectives: connectives}, nil
}

func parseTerm(s string) (Term, error) {
	m := termRe.FindStringSubmatch(s)
	if m == nil {
		return Term{}, fmt.Errorf("malformed term %q", s)
	}

	threshold, err := strconv.ParseFloat(m[5], 64)
	if err != nil {
		return Term{}, fmt.Errorf("bad numeric literal %q", m[5])
	}

	window := DefaultWindow
	if m[3] != "" {
		window, err = parseWindow(m[3])
		if err != nil {
			return Term{}, err
		}
	}

	return Term{
		Func:      m[1],
		Item:      m[2],
		Window:    window,
		Operator:  m[4],
		Threshold: threshold,
		raw:       s,
	}, nil
}

// parseWindow parses duration literals like 30s, 15m, 2h, 1d.
func parseWindow(s string) (time.Duration, error) {
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("bad duration %q", s)
	}
	switch s[len(s)-1] {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("bad duration unit %q", s)
	}
}

// Compare applies a term's operator to the measured value.
func (t Term) Compare(value float64) bool {
	switch t.Operator {
	case "<":
		return value < t.Threshold
	case "<=":
		return value <= t.Threshold
	case "=", "==":
		return value == t.Threshold
	case ">=":
		return value >= t.Threshold
	case ">":
		return value > t.Threshold
	case "!=":
		return value != t.Threshold
	default:
		return false
	}
}

// Fold combines per-term truth values through the connectives in strict
// left-to-right order.
func Fold(states []bool, connectives []string) bool {
	if len(states) == 0 {
		return false
	}
	result := states[0]
	for i, conn := range connectives {
		if i+1 >= len(states) {
			break
		}
		if conn == "and" {
			result = result && states[i+1]
		} else {
			result = result || states[i+1]
		}
	}
	return result
}
