package extract

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	apperrors "github.com/ankaboot-source/leadminer-engine/internal/errors"
)

// zoneOffsets maps timezone abbreviations that the RFC 5322 parser
// recognizes by name only (with a zero offset) to their real UTC
// offsets in seconds.
var zoneOffsets = map[string]int{
	"CEST": 2 * 3600,
	"CET":  1 * 3600,
	"EEST": 3 * 3600,
	"EET":  2 * 3600,
	"WEST": 1 * 3600,
	"WET":  0,
	"BST":  1 * 3600,
	"IST":  5*3600 + 1800,
	"JST":  9 * 3600,
	"AEST": 10 * 3600,
	"PST":  -8 * 3600,
	"PDT":  -7 * 3600,
	"MST":  -7 * 3600,
	"MDT":  -6 * 3600,
	"CST":  -6 * 3600,
	"CDT":  -5 * 3600,
	"EST":  -5 * 3600,
	"EDT":  -4 * 3600,
}

// extraDateLayouts cover non-RFC dates occasionally seen in the wild.
var extraDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05Z07:00",
	"2 Jan 2006 15:04:05",
	"Mon, 2 Jan 2006 15:04:05",
}

// ParseMessageDate parses a message Date header value and normalizes
// it to UTC. Two-digit years are promoted per RFC 5322 obsolete-date
// rules by the underlying parser, and zone abbreviations the parser
// only knows by name get their offsets applied from a fixed table.
func ParseMessageDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty date value", apperrors.ErrParse)
	}

	if t, err := mail.ParseDate(value); err == nil {
		return fixAbbreviatedZone(t).UTC(), nil
	}

	for _, layout := range extraDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return fixAbbreviatedZone(t).UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: unrecognized date value %q", apperrors.ErrParse, value)
}

// FormatMessageDate renders a normalized message date as an ISO-style
// minute-precision UTC string.
func FormatMessageDate(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}

// fixAbbreviatedZone corrects timestamps whose zone abbreviation
// parsed with a zero offset (time.Parse keeps the name but cannot
// resolve it) by rebuilding the instant in the abbreviation's real
// zone.
func fixAbbreviatedZone(t time.Time) time.Time {
	name, offset := t.Zone()
	if offset != 0 || name == "UTC" || name == "GMT" || name == "UT" {
		return t
	}
	realOffset, ok := zoneOffsets[name]
	if !ok || realOffset == 0 {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
		time.FixedZone(name, realOffset))
}
