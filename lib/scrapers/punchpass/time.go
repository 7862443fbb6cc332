package punchpass

import (
	"fmt"
	"regexp"
	"time"
)

const DefaultTimezone = "America/New_York"

// the site renders wall-clock times without a zone, both in uppercase
// and lowercase meridiem depending on the page
var wallClockLayouts = []string{
	"January 2, 2006 3:04 PM",
	"January 2, 2006 3:04 pm",
}

// NormalizeTime parses a "<Month> <Day>, <Year> <Hour>:<Minute> <AM/PM>"
// wall-clock reading and localizes it (not converts) to the given IANA
// zone; the reading is assumed to already be in that zone. zone defaults
// to America/New_York.
func NormalizeTime(text string, zone string) (StructuredTime, error) {
	if zone == "" {
		zone = DefaultTimezone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return StructuredTime{}, fmt.Errorf("load location %q: %w", zone, err)
	}

	var parsed time.Time
	ok := false
	for _, layout := range wallClockLayouts {
		parsed, err = time.ParseInLocation(layout, text, loc)
		if err == nil {
			ok = true
			break
		}
	}
	if !ok {
		return StructuredTime{}, fmt.Errorf("unrecognized time %q: %w", text, err)
	}

	return StructuredTime{
		Date:     parsed.Format("2006-01-02"),
		DateTime: parsed.Format(time.RFC3339),
		TimeZone: zone,
	}, nil
}

// the detail page subtitle reads like "March 10, 2025 @ 6:00-7:30 pm".
// the start bound borrows the meridiem from the end of the range, which
// is what the site's own display does.
var startSubtitleRegex = regexp.MustCompile(`(.+)\s@\s(\d+:\d+)-\d+:\d+\s([ap]m)`)
var endSubtitleRegex = regexp.MustCompile(`(.+)\s@\s\d+:\d+-(\d+:\d+\s[ap]m)`)

func rewriteStartSubtitle(subtitle string) string {
	return startSubtitleRegex.ReplaceAllString(subtitle, "$1 $2 $3")
}

func rewriteEndSubtitle(subtitle string) string {
	return endSubtitleRegex.ReplaceAllString(subtitle, "$1 $2")
}
