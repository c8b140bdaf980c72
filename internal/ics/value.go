package ics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"calfeed/internal/model"
)

// Property is one raw content line of a component: its name, parameters
// and undecoded value text, in document order.
type Property struct {
	Name   string
	Params map[string][]string
	Value  string
}

// Param returns the first value of the named parameter, or "".
func (p Property) Param(name string) string {
	if p.Params == nil {
		return ""
	}
	if vs, ok := p.Params[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Properties whose default value type is DATE-TIME (RFC 5545 section 3.8).
// The actual value may still be a DATE (all-day semantics); the value
// shape decides between the two.
var dateTimeProperties = map[string]bool{
	"DTSTART":       true,
	"DTEND":         true,
	"DTSTAMP":       true,
	"DUE":           true,
	"COMPLETED":     true,
	"CREATED":       true,
	"LAST-MODIFIED": true,
	"RECURRENCE-ID": true,
	"EXDATE":        true,
	"RDATE":         true,
}

var durationProperties = map[string]bool{
	"DURATION": true,
	"TRIGGER":  true,
}

var integerProperties = map[string]bool{
	"SEQUENCE":         true,
	"PRIORITY":         true,
	"REPEAT":           true,
	"PERCENT-COMPLETE": true,
}

// decodeValue maps one property value into the canonical value model.
// defaultLoc resolves floating (zone-less) date-times. Any shape outside
// the five canonical kinds yields *UnsupportedPropertyTypeError.
func decodeValue(p Property, defaultLoc *time.Location) (model.Value, error) {
	valueType := strings.ToUpper(p.Param("VALUE"))

	switch valueType {
	case "":
		switch {
		case dateTimeProperties[p.Name]:
			return decodeTemporal(p, defaultLoc)
		case durationProperties[p.Name]:
			return decodeDuration(p)
		case integerProperties[p.Name]:
			return decodeInteger(p)
		default:
			return model.TextValue(p.Value), nil
		}
	case "DATE-TIME", "DATE":
		return decodeTemporal(p, defaultLoc)
	case "DURATION":
		return decodeDuration(p)
	case "INTEGER":
		return decodeInteger(p)
	case "TEXT", "URI", "CAL-ADDRESS":
		return model.TextValue(p.Value), nil
	default:
		// PERIOD, BINARY, BOOLEAN, FLOAT, UTC-OFFSET, ... have no home in
		// the canonical model.
		return model.Value{}, &UnsupportedPropertyTypeError{Property: p.Name, RawValue: p.Value}
	}
}

// decodeTemporal decodes a DATE-TIME or DATE shaped value. Pure dates stay
// civil dates; date-times become UTC instants.
func decodeTemporal(p Property, defaultLoc *time.Location) (model.Value, error) {
	v := strings.TrimSpace(p.Value)

	if !strings.Contains(v, "T") {
		d, err := parseCivilDate(v)
		if err != nil {
			return model.Value{}, &UnsupportedPropertyTypeError{Property: p.Name, RawValue: p.Value}
		}
		return model.DateValue(d), nil
	}

	t, err := parseDateTime(v, p.Param("TZID"), defaultLoc)
	if err != nil {
		return model.Value{}, &UnsupportedPropertyTypeError{Property: p.Name, RawValue: p.Value}
	}
	return model.InstantValue(t), nil
}

func decodeDuration(p Property) (model.Value, error) {
	d, err := parseICSDuration(p.Value)
	if err != nil {
		return model.Value{}, &UnsupportedPropertyTypeError{Property: p.Name, RawValue: p.Value}
	}
	return model.DurationValue(d), nil
}

func decodeInteger(p Property) (model.Value, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(p.Value), 10, 64)
	if err != nil {
		return model.Value{}, &UnsupportedPropertyTypeError{Property: p.Name, RawValue: p.Value}
	}
	return model.IntegerValue(n), nil
}

// parseDateTime parses an RFC 5545 DATE-TIME value.
//
//   - 20190310T230000Z        -> UTC
//   - 20190310T100000 + TZID  -> that zone
//   - 20190310T100000         -> defaultLoc (floating time)
func parseDateTime(v, tzid string, defaultLoc *time.Location) (time.Time, error) {
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	loc := defaultLoc
	if loc == nil {
		loc = time.Local
	}
	if tzid != "" {
		l, err := time.LoadLocation(tzid)
		if err != nil {
			return time.Time{}, fmt.Errorf("unknown TZID %q: %w", tzid, err)
		}
		loc = l
	}
	return time.ParseInLocation("20060102T150405", v, loc)
}

// parseCivilDate parses an RFC 5545 DATE value (20190310).
func parseCivilDate(v string) (model.Date, error) {
	t, err := time.Parse("20060102", v)
	if err != nil {
		return model.Date{}, err
	}
	return model.DateOf(t), nil
}

// parseICSDuration parses an RFC 5545 DURATION value, e.g. "PT1H30M",
// "-PT15M", "P2W" or "P15DT5H0M20S".
func parseICSDuration(s string) (time.Duration, error) {
	v := strings.TrimSpace(s)

	negative := false
	switch {
	case strings.HasPrefix(v, "-"):
		negative = true
		v = v[1:]
	case strings.HasPrefix(v, "+"):
		v = v[1:]
	}

	if !strings.HasPrefix(v, "P") {
		return 0, fmt.Errorf("duration %q: missing P designator", s)
	}
	v = v[1:]

	var total time.Duration
	inTime := false
	digits := ""

	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			digits += string(r)
		case r == 'T':
			if digits != "" {
				return 0, fmt.Errorf("duration %q: digits before T designator", s)
			}
			inTime = true
		default:
			if digits == "" {
				return 0, fmt.Errorf("duration %q: designator %c without digits", s, r)
			}
			n, err := strconv.Atoi(digits)
			if err != nil {
				return 0, fmt.Errorf("duration %q: %w", s, err)
			}
			digits = ""

			var unit time.Duration
			switch r {
			case 'W':
				unit = 7 * 24 * time.Hour
			case 'D':
				unit = 24 * time.Hour
			case 'H':
				unit = time.Hour
			case 'M':
				unit = time.Minute
			case 'S':
				unit = time.Second
			default:
				return 0, fmt.Errorf("duration %q: unknown designator %c", s, r)
			}
			if (r == 'H' || r == 'M' || r == 'S') && !inTime {
				return 0, fmt.Errorf("duration %q: time designator %c before T", s, r)
			}
			total += time.Duration(n) * unit
		}
	}

	if digits != "" {
		return 0, fmt.Errorf("duration %q: trailing digits without designator", s)
	}
	if negative {
		total = -total
	}
	return total, nil
}
