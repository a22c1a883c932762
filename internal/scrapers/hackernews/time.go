package hackernews

import (
	"regexp"
	"strconv"
	"time"
)

var minutesAgoRegex = regexp.MustCompile(`(?i)(\d+) minutes? ago`)
var hoursAgoRegex = regexp.MustCompile(`(?i)(\d+) hours? ago`)
var daysAgoRegex = regexp.MustCompile(`(?i)(\d+) days? ago`)

func matchCount(re *regexp.Regexp, phrase string) (int, bool) {
	groups := re.FindStringSubmatch(phrase)
	if len(groups) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(groups[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ResolveRelative turns a phrase like "3 hours ago" into an absolute time using anchor as "now".
// Minutes and hours give an instant, days give a calendar date (the time of day is dropped).
// Anything else is unresolved, which is not an error.
func ResolveRelative(anchor time.Time, phrase string) SubmittedAt {
	anchor = anchor.UTC()

	if n, ok := matchCount(minutesAgoRegex, phrase); ok {
		return Instant(anchor.Add(-time.Duration(n) * time.Minute))
	}
	if n, ok := matchCount(hoursAgoRegex, phrase); ok {
		return Instant(anchor.Add(-time.Duration(n) * time.Hour))
	}
	if n, ok := matchCount(daysAgoRegex, phrase); ok {
		year, month, day := anchor.Date()
		return Date(year, month, day-n)
	}
	return Unresolved()
}
