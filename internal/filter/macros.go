package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	reNowInterval = regexp.MustCompile(`(?i)now\(\)\s*-\s*interval\s*'(\d+)\s*([smh])'`)
	reNow         = regexp.MustCompile(`(?i)now\(\)`)
	reTimeLiteral = regexp.MustCompile(`'(\d{1,2}:\d{2}(?::\d{2})?)'`)
)

// expandTimeMacros rewrites now(), now() - interval '<N><unit>', and bare
// HH:MM[:SS] literals (used with timestamp comparisons/BETWEEN) into
// quoted ISO-8601 instants, relative to now. It is applied to the raw
// condition text before lexing.
func expandTimeMacros(s string, now time.Time) string {
	s = reNowInterval.ReplaceAllStringFunc(s, func(m string) string {
		sub := reNowInterval.FindStringSubmatch(m)
		n, _ := strconv.Atoi(sub[1])
		var d time.Duration
		switch sub[2] {
		case "s", "S":
			d = time.Duration(n) * time.Second
		case "m", "M":
			d = time.Duration(n) * time.Minute
		case "h", "H":
			d = time.Duration(n) * time.Hour
		}
		return "'" + now.Add(-d).Format(time.RFC3339) + "'"
	})

	s = reNow.ReplaceAllStringFunc(s, func(string) string {
		return "'" + now.Format(time.RFC3339) + "'"
	})

	s = reTimeLiteral.ReplaceAllStringFunc(s, func(m string) string {
		sub := reTimeLiteral.FindStringSubmatch(m)
		clock := sub[1]
		if len(clock) <= 5 { // HH:MM, no seconds
			clock += ":00"
		}
		return fmt.Sprintf("'%sT%s'", now.Format("2006-01-02"), clock)
	})

	return s
}
