package ics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calfeed/internal/model"
)

// The 2019-03 scenario: one non-recurring VEVENT in a fixed zone,
// window [2019-03-05, 2019-04-01) yields exactly one record with the
// UTC-equivalent DTSTART.
func TestExpandAndNormalizeEndToEnd(t *testing.T) {
	doc := mustParseUTC(t, `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:meeting-1
DTSTAMP:20190301T000000Z
DTSTART;TZID=Australia/Sydney:20190310T100000
DTEND;TZID=Australia/Sydney:20190310T110000
SUMMARY:Meeting
SEQUENCE:0
END:VEVENT
END:VCALENDAR`)

	records, err := ExpandAndNormalize(doc, Window{Start: date(2019, 3, 5), End: date(2019, 4, 1)})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, model.InstantValue(time.Date(2019, 3, 9, 23, 0, 0, 0, time.UTC)), rec["DTSTART"])
	assert.Equal(t, model.InstantValue(time.Date(2019, 3, 10, 0, 0, 0, 0, time.UTC)), rec["DTEND"])
	assert.Equal(t, model.TextValue("Meeting"), rec["SUMMARY"])
	assert.Equal(t, model.TextValue("meeting-1"), rec["UID"])
	assert.Equal(t, model.IntegerValue(0), rec["SEQUENCE"])
	assert.Equal(t, model.InstantValue(time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)), rec["DTSTAMP"])
}

func TestNormalizeAllDayPassThrough(t *testing.T) {
	doc := mustParseUTC(t, `BEGIN:VCALENDAR
BEGIN:VEVENT
UID:holiday
DTSTART;VALUE=DATE:20240110
DTEND;VALUE=DATE:20240111
SUMMARY:Holiday
END:VEVENT
END:VCALENDAR`)

	records, err := ExpandAndNormalize(doc, Window{Start: date(2024, 1, 1), End: date(2024, 2, 1)})
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Dates round-trip as civil dates; they never acquire a time-of-day
	// or zone.
	assert.Equal(t, model.DateValue(date(2024, 1, 10)), records[0]["DTSTART"])
	assert.Equal(t, model.DateValue(date(2024, 1, 11)), records[0]["DTEND"])
	assert.Equal(t, model.KindDate, records[0]["DTSTART"].Kind)
}

func TestNormalizeUTCForEquivalentZones(t *testing.T) {
	doc := mustParseUTC(t, `BEGIN:VCALENDAR
BEGIN:VEVENT
UID:utc-form
DTSTART:20190309T230000Z
DTEND:20190310T000000Z
SUMMARY:A
END:VEVENT
BEGIN:VEVENT
UID:zoned-form
DTSTART;TZID=Australia/Sydney:20190310T100000
DTEND;TZID=Australia/Sydney:20190310T110000
SUMMARY:B
END:VEVENT
END:VCALENDAR`)

	records, err := ExpandAndNormalize(doc, Window{Start: date(2019, 3, 1), End: date(2019, 4, 1)})
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Same absolute instant in different representations: identical
	// normalized values.
	assert.Equal(t, records[0]["DTSTART"], records[1]["DTSTART"])
	assert.Equal(t, time.UTC, records[0]["DTSTART"].Instant.Location())
}

func TestNormalizeOverrideSummaryWins(t *testing.T) {
	doc := mustParseUTC(t, `BEGIN:VCALENDAR
BEGIN:VEVENT
UID:weekly
DTSTART:20240101T090000Z
DTEND:20240101T100000Z
RRULE:FREQ=WEEKLY;COUNT=3
SUMMARY:Sync
END:VEVENT
BEGIN:VEVENT
UID:weekly
RECURRENCE-ID:20240108T090000Z
DTSTART:20240108T090000Z
DTEND:20240108T100000Z
SUMMARY:Sync (amended)
END:VEVENT
END:VCALENDAR`)

	records, err := ExpandAndNormalize(doc, Window{Start: date(2024, 1, 1), End: date(2024, 2, 1)})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, model.TextValue("Sync"), records[0]["SUMMARY"])
	assert.Equal(t, model.TextValue("Sync (amended)"), records[1]["SUMMARY"])
	assert.Equal(t, model.TextValue("Sync"), records[2]["SUMMARY"])

	// The override instance carries its RECURRENCE-ID on the record.
	assert.Equal(t, model.KindInstant, records[1]["RECURRENCE-ID"].Kind)
	_, hasRID := records[0]["RECURRENCE-ID"]
	assert.False(t, hasRID)
}

func TestNormalizeStripsRecurrenceScaffolding(t *testing.T) {
	doc := mustParseUTC(t, `BEGIN:VCALENDAR
BEGIN:VEVENT
UID:weekly
DTSTART:20240101T090000Z
DTEND:20240101T100000Z
RRULE:FREQ=WEEKLY;COUNT=2
EXDATE:20240108T090000Z
RDATE:20240103T090000Z
SUMMARY:Sync
END:VEVENT
END:VCALENDAR`)

	records, err := ExpandAndNormalize(doc, Window{Start: date(2024, 1, 1), End: date(2024, 2, 1)})
	require.NoError(t, err)
	require.NotEmpty(t, records)

	for _, rec := range records {
		for _, name := range []string{"RRULE", "RDATE", "EXDATE"} {
			_, ok := rec[name]
			assert.False(t, ok, "record should not carry %s", name)
		}
	}
}

func TestNormalizeFailsFastOnUnsupportedShape(t *testing.T) {
	doc := mustParseUTC(t, `BEGIN:VCALENDAR
BEGIN:VEVENT
UID:ok-event
DTSTART:20240110T090000Z
DTEND:20240110T100000Z
SUMMARY:Fine
END:VEVENT
BEGIN:VEVENT
UID:bad-event
DTSTART:20240111T090000Z
DTEND:20240111T100000Z
X-FLAG;VALUE=BOOLEAN:TRUE
SUMMARY:Broken
END:VEVENT
END:VCALENDAR`)

	records, err := ExpandAndNormalize(doc, Window{Start: date(2024, 1, 1), End: date(2024, 2, 1)})
	require.Error(t, err)
	assert.Nil(t, records, "no partial record set on failure")

	var uerr *UnsupportedPropertyTypeError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, "X-FLAG", uerr.Property)
	assert.Equal(t, "TRUE", uerr.RawValue)
}

func TestNormalizeSynthesizedInstanceShiftsDtstart(t *testing.T) {
	doc := mustParseUTC(t, `BEGIN:VCALENDAR
BEGIN:VEVENT
UID:daily
DTSTART:20240101T090000Z
DTEND:20240101T100000Z
RRULE:FREQ=DAILY;COUNT=3
SUMMARY:Daily
END:VEVENT
END:VCALENDAR`)

	records, err := ExpandAndNormalize(doc, Window{Start: date(2024, 1, 1), End: date(2024, 2, 1)})
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Each synthesized record carries its own instant, not the master's.
	assert.Equal(t, model.InstantValue(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)), records[1]["DTSTART"])
	assert.Equal(t, model.InstantValue(time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)), records[2]["DTEND"])
}
