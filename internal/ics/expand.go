package ics

import (
	"time"

	"github.com/teambition/rrule-go"

	"calfeed/internal/model"
)

// Window is the half-open civil-date interval [Start, End) an expansion is
// evaluated against. Equal bounds denote an empty window.
type Window struct {
	Start model.Date
	End   model.Date
}

// Occurrence is one concrete event instance: either a non-recurring event,
// or one recurrence-generated instant of a master, possibly replaced by an
// override. Event points at the component whose properties the occurrence
// carries (the override when one matched).
type Occurrence struct {
	Event  *EventComponent
	Start  time.Time
	End    time.Time
	AllDay bool
}

// Expand produces every occurrence of doc's events whose effective start
// falls within win. Output order is: masters and non-recurring events in
// document order, each master's instants in chronological order.
func Expand(doc *CalendarDocument, win Window) ([]Occurrence, error) {
	if win.Start.After(win.End) {
		return nil, &InvalidWindowError{Start: win.Start, End: win.End}
	}

	// Overrides are grouped by the UID of the master they target; they
	// are never emitted on their own.
	overridesByUID := make(map[string][]*EventComponent)
	bases := make([]*EventComponent, 0, len(doc.Events))
	for _, ev := range doc.Events {
		if ev.IsOverride() {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	var out []Occurrence
	for _, ev := range bases {
		if ev.IsRecurring() {
			occs, err := expandMaster(ev, overridesByUID[ev.UID], win)
			if err != nil {
				return nil, err
			}
			out = append(out, occs...)
			continue
		}
		occ := Occurrence{Event: ev, Start: ev.Start, End: ev.End, AllDay: ev.AllDay}
		if withinWindow(occ, win) {
			out = append(out, occ)
		}
	}
	return out, nil
}

// expandMaster generates the candidate instants of one recurring master
// (RRULE union RDATE minus EXDATE), substitutes matching overrides and
// windows the result.
func expandMaster(ev *EventComponent, overrides []*EventComponent, win Window) ([]Occurrence, error) {
	var set rrule.Set

	if ev.RRule != "" {
		r, err := rrule.StrToRRule(ev.RRule)
		if err != nil {
			// Validated at parse time; guards documents built by hand.
			return nil, parseErrorf(err, "event %s: malformed RRULE %q", ev.UID, ev.RRule)
		}
		r.DTStart(ev.Start)
		set.RRule(r)
	} else {
		// RDATE-only series: DTSTART is the first instance.
		set.RDate(ev.Start)
	}
	for _, rd := range ev.RDates {
		set.RDate(rd)
	}
	// The set excludes by absolute instant, so the zone an EXDATE was
	// written in does not have to match the generated instant's zone.
	for _, ex := range ev.ExDates {
		set.ExDate(ex)
	}

	loc := ev.Start.Location()
	lo := win.Start.Time(loc)
	hi := win.End.Time(loc)

	var out []Occurrence
	var prev time.Time
	for _, start := range set.Between(lo, hi, true) {
		if !prev.IsZero() && start.Equal(prev) {
			continue // RDATE duplicating an RRULE instant
		}
		prev = start

		occ := Occurrence{
			Event:  ev,
			Start:  start,
			End:    shiftEnd(ev, start),
			AllDay: ev.AllDay,
		}
		if ov := matchOverride(ev, overrides, start); ov != nil {
			// The override's own DTSTART/DTEND supersede the generated
			// instant entirely.
			occ = Occurrence{Event: ov, Start: ov.Start, End: ov.End, AllDay: ov.AllDay}
		}
		if withinWindow(occ, win) {
			out = append(out, occ)
		}
	}
	return out, nil
}

// shiftEnd moves the master's DTSTART->DTEND extent onto a generated
// instant. All-day extents move in whole days so a DST transition cannot
// skew the end date.
func shiftEnd(ev *EventComponent, start time.Time) time.Time {
	if ev.AllDay {
		return start.AddDate(0, 0, daysBetween(model.DateOf(ev.Start), model.DateOf(ev.End)))
	}
	return start.Add(ev.End.Sub(ev.Start))
}

func daysBetween(a, b model.Date) int {
	return int(b.Time(time.UTC).Sub(a.Time(time.UTC)) / (24 * time.Hour))
}

// matchOverride finds the override whose RECURRENCE-ID equals the
// generated instant. Timed series compare by absolute instant; all-day
// series compare by calendar date.
func matchOverride(master *EventComponent, overrides []*EventComponent, start time.Time) *EventComponent {
	for _, ov := range overrides {
		if ov.RecurrenceID == nil {
			continue
		}
		if master.AllDay {
			if model.DateOf(*ov.RecurrenceID) == model.DateOf(start) {
				return ov
			}
		} else if ov.RecurrenceID.Equal(start) {
			return ov
		}
	}
	return nil
}

// withinWindow applies the half-open window to an occurrence's effective
// start: calendar-date comparison for all-day events, instant comparison
// (bounds taken at midnight in the occurrence's own zone) otherwise. An
// occurrence starting exactly at the window end is excluded.
func withinWindow(occ Occurrence, win Window) bool {
	if occ.AllDay {
		d := model.DateOf(occ.Start)
		return d.Compare(win.Start) >= 0 && d.Compare(win.End) < 0
	}
	loc := occ.Start.Location()
	lo := win.Start.Time(loc)
	hi := win.End.Time(loc)
	return !occ.Start.Before(lo) && occ.Start.Before(hi)
}
