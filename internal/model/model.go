package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Date is a civil calendar date with no time-of-day and no time zone,
// used for all-day events and for expansion window bounds. It is never
// coerced into an instant implicitly; converting to time.Time requires
// an explicit location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a date in "2006-01-02" form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Time returns midnight of d in the given location.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns the date n days after d (n may be negative).
// Normalization of month/day overflow is delegated to time.Time.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time(time.UTC).AddDate(0, 0, n))
}

// Compare returns -1, 0 or +1 comparing d against o in calendar order.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return intCompare(d.Year, o.Year)
	case d.Month != o.Month:
		return intCompare(int(d.Month), int(o.Month))
	default:
		return intCompare(d.Day, o.Day)
	}
}

// Before reports whether d is earlier than o.
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// After reports whether d is later than o.
func (d Date) After(o Date) bool { return d.Compare(o) > 0 }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalJSON encodes the date as a "2006-01-02" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func intCompare(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ValueKind identifies which member of the canonical value model a Value
// carries. The set is closed: every normalized property is exactly one of
// these five kinds, and anything else must fail normalization.
type ValueKind uint8

const (
	KindInstant ValueKind = iota + 1 // absolute instant, always UTC
	KindDate                         // civil date, all-day semantics
	KindDuration
	KindInteger
	KindText
)

func (k ValueKind) String() string {
	switch k {
	case KindInstant:
		return "instant"
	case KindDate:
		return "date"
	case KindDuration:
		return "duration"
	case KindInteger:
		return "integer"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// Value is the canonical property value: a tagged union over the five
// kinds. Only the field matching Kind is meaningful. Construct values
// through the *Value helpers so invariants (e.g. instants are UTC) hold.
type Value struct {
	Kind     ValueKind
	Instant  time.Time
	Date     Date
	Duration time.Duration
	Integer  int64
	Text     string
}

// InstantValue returns an instant value. The instant is stored in UTC so
// that two representations of the same absolute time compare equal.
func InstantValue(t time.Time) Value {
	return Value{Kind: KindInstant, Instant: t.UTC()}
}

// DateValue returns a civil-date value.
func DateValue(d Date) Value {
	return Value{Kind: KindDate, Date: d}
}

// DurationValue returns a duration value.
func DurationValue(d time.Duration) Value {
	return Value{Kind: KindDuration, Duration: d}
}

// IntegerValue returns an integer value.
func IntegerValue(n int64) Value {
	return Value{Kind: KindInteger, Integer: n}
}

// TextValue returns a text value.
func TextValue(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// MarshalJSON encodes the value by kind: instants as RFC 3339 UTC strings,
// dates as "2006-01-02", durations and text as strings, integers as
// numbers. The switch is exhaustive over ValueKind; an unknown kind is an
// error rather than a silent null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindInstant:
		return json.Marshal(v.Instant.UTC().Format(time.RFC3339))
	case KindDate:
		return json.Marshal(v.Date.String())
	case KindDuration:
		return json.Marshal(v.Duration.String())
	case KindInteger:
		return json.Marshal(v.Integer)
	case KindText:
		return json.Marshal(v.Text)
	default:
		return nil, fmt.Errorf("model: cannot marshal value of kind %s", v.Kind)
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInstant:
		return v.Instant.UTC().Format(time.RFC3339)
	case KindDate:
		return v.Date.String()
	case KindDuration:
		return v.Duration.String()
	case KindInteger:
		return fmt.Sprintf("%d", v.Integer)
	case KindText:
		return v.Text
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}

// Record is one normalized occurrence: property name to canonical value.
type Record map[string]Value
