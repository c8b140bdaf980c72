package ics

import (
	"fmt"

	"calfeed/internal/model"
)

// The processing pipeline distinguishes four failure kinds. All of them
// are fatal to the call that produced them; callers use errors.As to tell
// them apart and decide whether to retry, skip or alert.

// FetchError reports that retrieving the calendar bytes failed. It is
// produced by the Fetcher, never by parse or expansion, so callers can
// separate transport problems from calendar problems.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("ics: fetch %s: %v", redactURL(e.URL), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports that the input bytes are not well-formed iCalendar.
// No partial CalendarDocument is ever returned alongside one.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ics: parse: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("ics: parse: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErrorf(err error, format string, args ...any) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// InvalidWindowError reports an expansion window whose start is after its
// end. Equal bounds are not an error; they denote an empty window.
type InvalidWindowError struct {
	Start model.Date
	End   model.Date
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("ics: invalid window: start %s is after end %s", e.Start, e.End)
}

// UnsupportedPropertyTypeError reports a property value whose shape has no
// mapping into the canonical value model. The property is never skipped;
// the whole call fails.
type UnsupportedPropertyTypeError struct {
	Property string
	RawValue string
}

func (e *UnsupportedPropertyTypeError) Error() string {
	return fmt.Sprintf("ics: unsupported value for property %s: %q", e.Property, e.RawValue)
}
