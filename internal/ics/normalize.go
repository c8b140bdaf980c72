package ics

import (
	"time"

	"calfeed/internal/model"
)

// Recurrence scaffolding is consumed by expansion and has no place on a
// concrete occurrence record.
var consumedProperties = map[string]bool{
	"RRULE":  true,
	"RDATE":  true,
	"EXDATE": true,
}

// Normalize maps one occurrence into a Record: every declared property
// becomes exactly one canonical value. Date-times come out as UTC
// instants, pure dates stay civil dates, durations, integers and text
// pass through. DTSTART/DTEND carry the occurrence's resolved start and
// end rather than the master's original values. A property whose shape
// fits none of the five kinds fails the whole call.
func Normalize(occ Occurrence) (model.Record, error) {
	rec := make(model.Record, len(occ.Event.Properties))

	for _, p := range occ.Event.Properties {
		switch {
		case consumedProperties[p.Name]:
			continue
		case p.Name == "DTSTART":
			rec[p.Name] = temporalValue(occ.Start, occ.AllDay)
		case p.Name == "DTEND":
			rec[p.Name] = temporalValue(occ.End, occ.AllDay)
		default:
			v, err := decodeValue(p, occ.Start.Location())
			if err != nil {
				return nil, err
			}
			rec[p.Name] = v
		}
	}
	return rec, nil
}

// ExpandAndNormalize is the full core pipeline: expand doc against win and
// normalize every retained occurrence, in expansion order. Any failure
// aborts the whole call with no partial results.
func ExpandAndNormalize(doc *CalendarDocument, win Window) ([]model.Record, error) {
	occs, err := Expand(doc, win)
	if err != nil {
		return nil, err
	}

	records := make([]model.Record, 0, len(occs))
	for _, occ := range occs {
		rec, err := Normalize(occ)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func temporalValue(t time.Time, allDay bool) model.Value {
	if allDay {
		// Never coerce an all-day boundary into an instant; that would
		// impose a time-of-day that was never declared.
		return model.DateValue(model.DateOf(t))
	}
	return model.InstantValue(t)
}
