package tzclock

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	// Embedded zone database so the reference zone resolves on hosts
	// without /usr/share/zoneinfo.
	_ "time/tzdata"
)

// DefaultTimezone is the reference zone used when none is configured.
const DefaultTimezone = "America/Santiago"

// Layout is the canonical timestamp layout.
const Layout = "2006-01-02T15:04:05.000-07:00"

// DateLayout is the canonical calendar-date layout.
const DateLayout = "2006-01-02"

// Layouts carrying an explicit offset, tried after offset normalization.
var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05-0700",
}

// Layouts without offset, interpreted as wall time in the reference zone.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DateLayout,
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006",
	"2/1/2006",
}

// trailingOffset matches a "+HH:MM" style suffix whose minute part may be
// fractional or out of range (e.g. "-03:7.5", "+01:75").
var trailingOffset = regexp.MustCompile(`([+-])(\d{1,2}):(\d+(?:\.\d*)?)$`)

// Service converts instants to and from the reference timezone.
type Service struct {
	loc   *time.Location
	clock Clock
}

// New creates a Service for the named IANA zone. An empty name selects
// DefaultTimezone; a nil clock selects SystemClock.
func New(timezone string, clock Clock) (*Service, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("tzclock: load location %q: %w", timezone, err)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{loc: loc, clock: clock}, nil
}

// MustNew is like New but panics on an unknown zone.
func MustNew(timezone string, clock Clock) *Service {
	s, err := New(timezone, clock)
	if err != nil {
		panic(err)
	}
	return s
}

// Location returns the reference zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Now returns the current instant expressed in the reference zone.
func (s *Service) Now() time.Time {
	return s.clock.Now().In(s.loc)
}

// NowISO returns the current instant as a canonical timestamp.
func (s *Service) NowISO() string {
	return s.Format(s.clock.Now())
}

// Format renders t as a canonical timestamp in the reference zone.
func (s *Service) Format(t time.Time) string {
	return t.In(s.loc).Format(Layout)
}

// FormatDate renders the reference-zone calendar date of t.
func (s *Service) FormatDate(t time.Time) string {
	return t.In(s.loc).Format(DateLayout)
}

// Today returns the start of the current day in the reference zone.
func (s *Service) Today() time.Time {
	return s.StartOfDay(s.clock.Now())
}

// StartOfDay returns midnight of t's calendar day in the reference zone.
func (s *Service) StartOfDay(t time.Time) time.Time {
	t = t.In(s.loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

// AddDays shifts t by n calendar days in the reference zone, keeping the
// wall-clock time across DST transitions.
func (s *Service) AddDays(t time.Time, n int) time.Time {
	t = t.In(s.loc)
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d+n, hh, mm, ss, t.Nanosecond(), s.loc)
}

// NextMidnight returns the first reference-zone midnight strictly after t.
func (s *Service) NextMidnight(t time.Time) time.Time {
	return s.AddDays(s.StartOfDay(t), 1)
}

// ParseFlexible normalizes a timestamp-like value. It accepts time.Time,
// *time.Time, epoch milliseconds (integers, floats, json.Number and
// digit-only strings) and date/time strings. The boolean is false when no
// instant can be determined.
func (s *Service) ParseFlexible(v any) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return val, !val.IsZero()
	case *time.Time:
		if val == nil || val.IsZero() {
			return time.Time{}, false
		}
		return *val, true
	case int:
		return time.UnixMilli(int64(val)), true
	case int64:
		return time.UnixMilli(val), true
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(val)), true
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return time.UnixMilli(n), true
		}
		f, err := val.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return s.ParseFlexible(f)
	case string:
		return s.parseString(val)
	default:
		return time.Time{}, false
	}
}

// ParseDate resolves v to the start of its calendar day in the reference
// zone. Date-only strings are read as reference-zone dates.
func (s *Service) ParseDate(v any) (time.Time, bool) {
	t, ok := s.ParseFlexible(v)
	if !ok {
		return time.Time{}, false
	}
	return s.StartOfDay(t), true
}

// ParseOr parses v and falls back to the current instant. Used for
// write-time stamps where a missing value must not block the write.
func (s *Service) ParseOr(v any) time.Time {
	if t, ok := s.ParseFlexible(v); ok {
		return t
	}
	return s.Now()
}

func (s *Service) parseString(raw string) (time.Time, bool) {
	str := strings.TrimSpace(raw)
	if str == "" {
		return time.Time{}, false
	}

	if isDigits(str) {
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(n), true
	}

	str = normalizeOffset(str)

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, str, s.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeOffset clamps the minute component of a trailing offset into
// [0, 59], flooring fractional minutes, and zero-pads the hour.
func normalizeOffset(str string) string {
	m := trailingOffset.FindStringSubmatchIndex(str)
	if m == nil {
		return str
	}
	// Only treat the suffix as an offset when a time-of-day precedes it.
	head := str[:m[0]]
	if !strings.ContainsAny(head, "T ") || !strings.Contains(head, ":") {
		return str
	}

	sign := str[m[2]:m[3]]
	hours, _ := strconv.Atoi(str[m[4]:m[5]])
	minutes, err := strconv.ParseFloat(str[m[6]:m[7]], 64)
	if err != nil {
		minutes = 0
	}
	mm := int(math.Floor(minutes))
	if mm > 59 {
		mm = 59
	}
	if mm < 0 {
		mm = 0
	}
	return fmt.Sprintf("%s%s%02d:%02d", head, sign, hours, mm)
}

func isDigits(s string) bool {
	start := 0
	if strings.HasPrefix(s, "-") {
		start = 1
	}
	if start == len(s) {
		return false
	}
	for _, r := range s[start:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
