// Package congress maps calendar years and dates to congress numbers.
//
// Congressional terms have started in odd-numbered years since 1789. Before
// the 20th Amendment the boundary fell on March 4th; starting with the 73rd
// Congress (1933) it falls on January 3rd. Every odd year therefore contains
// the end of one congress and the start of the next.
package congress

import (
	"errors"
	"fmt"
	"time"
)

// FirstYear is the year the 1st Congress convened.
const FirstYear = 1789

// JanuaryPivot is the first congress seated under the January regime
// introduced by the 20th Amendment.
const JanuaryPivot = 73

// ErrInvalidYear is returned for years before the 1st Congress.
var ErrInvalidYear = errors.New("year predates the 1st Congress (1789)")

// Session describes one congress active during a queried year.
type Session struct {
	Number  int
	Ordinal string // "118th"
	Label   string // "2021-January 2023"
}

// Years returns the start and end calendar years for a congress number.
func Years(n int) (start, end int) {
	start = FirstYear + (n-1)*2
	return start, start + 2
}

// BoundaryMonth returns the month in which congress n's term boundary falls.
func BoundaryMonth(n int) time.Month {
	if n < JanuaryPivot {
		return time.March
	}
	return time.January
}

// NumberForDate returns the congress in session on the given date. In odd
// years the outgoing congress sits until the handover: March 4th under the
// March regime, January 3rd under the January regime.
func NumberForDate(d time.Time) int {
	year := d.Year()
	if year%2 == 0 {
		year--
	} else {
		outgoing := (year - FirstYear) / 2
		if beforeHandover(d, BoundaryMonth(outgoing)) {
			year -= 2
		}
	}
	return 1 + (year-FirstYear)/2
}

// beforeHandover reports whether d falls before the term handover of an odd
// year. The handover follows the outgoing congress's regime, so 1933 turns
// over on March 4th even though the incoming 73rd ends under the January rule.
func beforeHandover(d time.Time, boundary time.Month) bool {
	day := 3
	if boundary == time.March {
		day = 4
	}
	if d.Month() != boundary {
		return d.Month() < boundary
	}
	return d.Day() < day
}

// SessionsForYear returns the congress(es) active at any point during year,
// outgoing first. Even years map to exactly one congress; odd years span a
// term boundary and map to two, except 1789 which had no outgoing congress.
func SessionsForYear(year int) ([]Session, error) {
	if year < FirstYear {
		return nil, fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}

	if year == FirstYear {
		_, end := Years(1)
		return []Session{{
			Number:  1,
			Ordinal: Ordinal(1),
			Label:   fmt.Sprintf("March %d-%d", FirstYear, end),
		}}, nil
	}

	if year%2 == 0 {
		n := NumberForDate(time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC))
		start, end := Years(n)
		return []Session{{
			Number:  n,
			Ordinal: Ordinal(n),
			Label:   fmt.Sprintf("%d-%d", start, end),
		}}, nil
	}

	outgoing := NumberForDate(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC))
	incoming := outgoing + 1

	outStart, _ := Years(outgoing)
	_, inEnd := Years(incoming)

	return []Session{
		{
			Number:  outgoing,
			Ordinal: Ordinal(outgoing),
			Label:   fmt.Sprintf("%d-%s %d", outStart, BoundaryMonth(outgoing), year),
		},
		{
			Number:  incoming,
			Ordinal: Ordinal(incoming),
			Label:   fmt.Sprintf("%s %d-%d", BoundaryMonth(incoming), year, inEnd),
		},
	}, nil
}

// Ordinal formats n with its English ordinal suffix ("1st", "102nd", "113th").
func Ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
