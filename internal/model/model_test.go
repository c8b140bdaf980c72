package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateCompare(t *testing.T) {
	a := Date{Year: 2024, Month: time.January, Day: 15}
	b := Date{Year: 2024, Month: time.February, Day: 1}

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
}

func TestDateAddDaysAcrossMonthEnd(t *testing.T) {
	d := Date{Year: 2024, Month: time.January, Day: 30}
	assert.Equal(t, Date{Year: 2024, Month: time.February, Day: 4}, d.AddDays(5))
	assert.Equal(t, Date{Year: 2024, Month: time.January, Day: 25}, d.AddDays(-5))
}

func TestDateOfUsesOwnLocation(t *testing.T) {
	sydney, err := time.LoadLocation("Australia/Sydney")
	require.NoError(t, err)

	// 23:00 UTC on Mar 9 is already Mar 10 in Sydney.
	utc := time.Date(2019, 3, 9, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, Date{Year: 2019, Month: time.March, Day: 9}, DateOf(utc))
	assert.Equal(t, Date{Year: 2019, Month: time.March, Day: 10}, DateOf(utc.In(sydney)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: time.January, Day: 15}, d)

	_, err = ParseDate("15/01/2024")
	assert.Error(t, err)
}

func TestDateString(t *testing.T) {
	d := Date{Year: 2024, Month: time.March, Day: 5}
	assert.Equal(t, "2024-03-05", d.String())
}

func TestInstantValueStoresUTC(t *testing.T) {
	sydney, err := time.LoadLocation("Australia/Sydney")
	require.NoError(t, err)

	local := time.Date(2019, 3, 10, 10, 0, 0, 0, sydney)
	v := InstantValue(local)

	assert.Equal(t, time.UTC, v.Instant.Location())
	assert.Equal(t, InstantValue(time.Date(2019, 3, 9, 23, 0, 0, 0, time.UTC)), v)
}

func TestValueMarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected string
	}{
		{
			name:     "instant",
			value:    InstantValue(time.Date(2019, 3, 9, 23, 0, 0, 0, time.UTC)),
			expected: `"2019-03-09T23:00:00Z"`,
		},
		{
			name:     "date",
			value:    DateValue(Date{Year: 2024, Month: time.January, Day: 10}),
			expected: `"2024-01-10"`,
		},
		{
			name:     "duration",
			value:    DurationValue(90 * time.Minute),
			expected: `"1h30m0s"`,
		},
		{
			name:     "integer",
			value:    IntegerValue(-3),
			expected: `-3`,
		},
		{
			name:     "text",
			value:    TextValue("Meeting"),
			expected: `"Meeting"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(data))
		})
	}
}

func TestValueMarshalJSONRejectsUnknownKind(t *testing.T) {
	_, err := json.Marshal(Value{Kind: ValueKind(42)})
	assert.Error(t, err)
}
