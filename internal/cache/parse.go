package cache

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
	year  = 365 * day
)

// ttlUnits maps a TTL suffix to its length. Suffixes are case-sensitive
// because m (minute) and M (month) differ.
var ttlUnits = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  day,
	"w":  week,
	"M":  month,
	"y":  year,
}

// sizeUnits maps an upper-cased size suffix to its byte multiplier.
var sizeUnits = map[string]float64{
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
}

// A limit that overflows int64 or truncates to zero would read as "no limit",
// so both are rejected.
var (
	errOutOfRange = errors.New("value out of range")
	errRoundsZero = errors.New("value rounds to zero")
)

var (
	ttlPattern  = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(ms|s|m|h|d|w|M|y)$`)
	sizePattern = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*(b|kb|mb|gb)$`)
	intPattern  = regexp.MustCompile(`^\d+$`)
)

// ParseTTL parses a cache time-to-live. It accepts integer milliseconds
// ("86400000") or a number followed by one of ms, s, m, h, d, w, M, y
// ("7d", "1.5h"). An empty string means no expiry.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if intPattern.MatchString(s) {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil || ms > math.MaxInt64/int64(time.Millisecond) {
			return 0, &InvalidConfigurationError{Field: "ttl", Value: s, Reason: errOutOfRange.Error()}
		}
		return time.Duration(ms) * time.Millisecond, nil
	}

	m := ttlPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, &InvalidConfigurationError{
			Field:  "ttl",
			Value:  s,
			Reason: "want milliseconds or a number with unit ms, s, m, h, d, w, M or y",
		}
	}

	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, &InvalidConfigurationError{Field: "ttl", Value: s, Reason: err.Error()}
	}
	v, err := scale(n, float64(ttlUnits[m[2]]))
	if err != nil {
		return 0, &InvalidConfigurationError{Field: "ttl", Value: s, Reason: err.Error()}
	}
	return time.Duration(v), nil
}

// ParseSize parses a cache size budget. It accepts integer bytes ("1048576")
// or a number followed by B, KB, MB or GB in any case ("500MB", "1.5gb").
// Multipliers are powers of 1024. An empty string means unbounded.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if intPattern.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, &InvalidConfigurationError{Field: "max_size", Value: s, Reason: errOutOfRange.Error()}
		}
		return n, nil
	}

	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, &InvalidConfigurationError{
			Field:  "max_size",
			Value:  s,
			Reason: "want bytes or a number with unit B, KB, MB or GB",
		}
	}

	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, &InvalidConfigurationError{Field: "max_size", Value: s, Reason: err.Error()}
	}
	v, err := scale(n, sizeUnits[strings.ToUpper(m[2])])
	if err != nil {
		return 0, &InvalidConfigurationError{Field: "max_size", Value: s, Reason: err.Error()}
	}
	return v, nil
}

// scale multiplies n by unit and truncates to int64.
func scale(n, unit float64) (int64, error) {
	v := n * unit
	// float64(math.MaxInt64) rounds up to 2^63, which itself overflows
	if math.IsInf(v, 0) || v >= float64(math.MaxInt64) {
		return 0, errOutOfRange
	}
	if n > 0 && v < 1 {
		return 0, errRoundsZero
	}
	return int64(v), nil
}

// FormatTTL renders a duration using the largest whole TTL unit.
func FormatTTL(d time.Duration) string {
	if d <= 0 {
		return "never"
	}
	for _, u := range []struct {
		suffix string
		d      time.Duration
	}{{"y", year}, {"M", month}, {"w", week}, {"d", day}, {"h", time.Hour}, {"m", time.Minute}, {"s", time.Second}} {
		if d%u.d == 0 {
			return fmt.Sprintf("%d%s", d/u.d, u.suffix)
		}
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}
