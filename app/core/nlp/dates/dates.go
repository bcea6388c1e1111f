package dates

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ErrUnparsed is returned when no parsing strategy recognizes the input.
// Callers must not substitute "now"; they keep the raw text and ask the
// user to clarify.
var ErrUnparsed = errors.New("unparsed date expression")

var strictLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var nlParser *when.Parser

func init() {
	nlParser = when.New(nil)
	nlParser.Add(en.All...)
	nlParser.Add(common.All...)
}

// Parse converts a free-text date/time expression into an absolute
// timestamp relative to now. Strategies are tried in order; the first
// success wins:
//  1. strict absolute layouts
//  2. permissive calendar parse (month names, partial dates, embedded times)
//  3. relative natural language ("tomorrow", "in 3 days", "next friday")
func Parse(text string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, ErrUnparsed
	}

	for _, layout := range strictLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}

	if t, err := dateparse.ParseIn(s, now.Location()); err == nil {
		return t, nil
	}

	if r, err := nlParser.Parse(s, now); err == nil && r != nil {
		return r.Time, nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsed, s)
}

// FormatRelative renders a timestamp the way the assistant speaks about
// due dates: "Today at 3:04 PM", "Tomorrow at ...", a weekday name within
// the next six days, otherwise "Jan 02 at ...".
func FormatRelative(t time.Time, now time.Time) string {
	day := func(x time.Time) time.Time {
		return time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, x.Location())
	}
	days := int(day(t).Sub(day(now)).Hours() / 24)

	clock := strings.TrimPrefix(t.Format("3:04 PM"), "0")
	switch {
	case days == 0:
		return "Today at " + clock
	case days == 1:
		return "Tomorrow at " + clock
	case days == -1:
		return "Yesterday at " + clock
	case days > 1 && days < 7:
		return t.Format("Monday") + " at " + clock
	default:
		return t.Format("Jan 02") + " at " + clock
	}
}
