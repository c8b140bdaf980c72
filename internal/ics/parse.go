package ics

import (
	"bytes"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

// CalendarDocument is the parsed, immutable form of one iCalendar payload.
// Events are kept in document order; that order drives the ordering of
// expansion output.
type CalendarDocument struct {
	Events []*EventComponent
}

// EventComponent is a single VEVENT: the full property list in document
// order plus the decoded fields recurrence expansion needs. An event with
// a RECURRENCE-ID is an override instance for one generated occurrence of
// the master sharing its UID.
type EventComponent struct {
	UID        string
	Properties []Property

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule   string // raw RECUR value, validated at parse time
	RDates  []time.Time
	ExDates []time.Time

	RecurrenceID *time.Time
}

// IsOverride reports whether this event replaces one generated occurrence
// of a recurring master rather than standing on its own.
func (ev *EventComponent) IsOverride() bool { return ev.RecurrenceID != nil }

// IsRecurring reports whether this event is a recurring master, i.e. it
// generates candidate instants via RRULE and/or RDATE.
func (ev *EventComponent) IsRecurring() bool {
	return !ev.IsOverride() && (ev.RRule != "" || len(ev.RDates) > 0)
}

func (ev *EventComponent) property(name string) (Property, bool) {
	// Last occurrence wins, matching dict semantics of common parsers.
	for i := len(ev.Properties) - 1; i >= 0; i-- {
		if ev.Properties[i].Name == name {
			return ev.Properties[i], true
		}
	}
	return Property{}, false
}

// Parser decodes raw iCalendar bytes into a CalendarDocument.
//
// Location resolves floating (zone-less) date-times and anchors all-day
// dates during expansion; nil means time.Local. Parsing is a pure
// transformation: any defect in the input fails the whole call with
// *ParseError (or *UnsupportedPropertyTypeError for value shapes outside
// the canonical model), never a partial document.
type Parser struct {
	Location *time.Location
}

// Parse decodes body with a default Parser.
func Parse(body []byte) (*CalendarDocument, error) {
	return Parser{}.Parse(body)
}

// Parse decodes one iCalendar payload. Structure handling (line
// unfolding, components, parameters) is delegated to arran4/golang-ical;
// value typing per RFC 5545 happens here.
func (p Parser) Parse(body []byte) (*CalendarDocument, error) {
	if len(body) == 0 {
		return nil, &ParseError{Reason: "empty calendar body"}
	}

	loc := p.Location
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Reason: "malformed iCalendar", Err: err}
	}

	doc := &CalendarDocument{}
	for _, ve := range cal.Events() {
		ev, err := parseEvent(ve, loc)
		if err != nil {
			return nil, err
		}
		doc.Events = append(doc.Events, ev)
	}
	return doc, nil
}

func parseEvent(ve *ical.VEvent, loc *time.Location) (*EventComponent, error) {
	ev := &EventComponent{}

	for _, ip := range ve.Properties {
		ev.Properties = append(ev.Properties, Property{
			Name:   strings.ToUpper(ip.IANAToken),
			Params: ip.ICalParameters,
			Value:  ip.Value,
		})
	}

	uid, ok := ev.property("UID")
	if !ok || uid.Value == "" {
		return nil, &ParseError{Reason: "VEVENT missing UID"}
	}
	ev.UID = uid.Value

	if err := parseEventTimes(ev, loc); err != nil {
		return nil, err
	}

	// RRULE. A RECUR value that does not parse is rejected here rather
	// than deferred to expansion time.
	if p, ok := ev.property("RRULE"); ok {
		if _, err := rrule.StrToRRule(p.Value); err != nil {
			return nil, parseErrorf(err, "event %s: malformed RRULE %q", ev.UID, p.Value)
		}
		ev.RRule = p.Value
	}

	var err error
	if ev.RDates, err = parseInstantList(ev, "RDATE", loc); err != nil {
		return nil, err
	}
	if ev.ExDates, err = parseInstantList(ev, "EXDATE", loc); err != nil {
		return nil, err
	}

	if p, ok := ev.property("RECURRENCE-ID"); ok {
		t, err := parseInstant(p, p.Value, loc)
		if err != nil {
			return nil, err
		}
		ev.RecurrenceID = &t
	}

	return ev, nil
}

// parseEventTimes decodes DTSTART plus DTEND or DURATION, and the all-day
// flag. A DATE/DATE-TIME mismatch between DTSTART and DTEND is rejected.
func parseEventTimes(ev *EventComponent, loc *time.Location) error {
	startProp, ok := ev.property("DTSTART")
	if !ok {
		return parseErrorf(nil, "event %s: missing DTSTART", ev.UID)
	}

	startIsDate := isDateShaped(startProp)
	ev.AllDay = startIsDate

	start, err := parseInstant(startProp, startProp.Value, loc)
	if err != nil {
		return err
	}
	ev.Start = start

	if endProp, ok := ev.property("DTEND"); ok {
		if isDateShaped(endProp) != startIsDate {
			if startIsDate {
				return parseErrorf(nil, "event %s: DTSTART is a DATE but DTEND is a DATE-TIME", ev.UID)
			}
			return parseErrorf(nil, "event %s: DTSTART is a DATE-TIME but DTEND is a DATE", ev.UID)
		}
		end, err := parseInstant(endProp, endProp.Value, loc)
		if err != nil {
			return err
		}
		ev.End = end
		return nil
	}

	if durProp, ok := ev.property("DURATION"); ok {
		dur, err := parseICSDuration(durProp.Value)
		if err != nil {
			return parseErrorf(err, "event %s: malformed DURATION %q", ev.UID, durProp.Value)
		}
		ev.End = ev.Start.Add(dur)
		return nil
	}

	// RFC 5545 defaults: an all-day event without DTEND covers one day, a
	// timed event without DTEND/DURATION has zero extent.
	if ev.AllDay {
		ev.End = ev.Start.AddDate(0, 0, 1)
	} else {
		ev.End = ev.Start
	}
	return nil
}

// parseInstantList decodes the (possibly repeated, comma-separated)
// RDATE or EXDATE properties into concrete instants.
func parseInstantList(ev *EventComponent, name string, loc *time.Location) ([]time.Time, error) {
	var out []time.Time
	for _, p := range ev.Properties {
		if p.Name != name {
			continue
		}
		if strings.EqualFold(p.Param("VALUE"), "PERIOD") {
			// PERIOD has no mapping in the canonical value model.
			return nil, &UnsupportedPropertyTypeError{Property: p.Name, RawValue: p.Value}
		}
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, err := parseInstant(p, part, loc)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// parseInstant decodes one DATE-TIME or DATE value of a property into a
// time.Time. DATE values become midnight in loc so that all-day instants
// from one calendar share a reference frame.
func parseInstant(p Property, value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)

	if !strings.Contains(value, "T") {
		d, err := parseCivilDate(value)
		if err != nil {
			return time.Time{}, parseErrorf(err, "property %s: malformed DATE %q", p.Name, value)
		}
		return d.Time(loc), nil
	}

	t, err := parseDateTime(value, p.Param("TZID"), loc)
	if err != nil {
		return time.Time{}, parseErrorf(err, "property %s: malformed DATE-TIME %q", p.Name, value)
	}
	return t, nil
}

func isDateShaped(p Property) bool {
	if strings.EqualFold(p.Param("VALUE"), "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}
