// Package money parses numeric values that may arrive either as plain
// numbers or as decorated spreadsheet text ("1 000₽", "5%", "92.50₽",
// "\"95 USDT\""). Parsing is strict about the numeric core but tolerant of
// decorations; callers decide whether a failure is skipped or propagated.
package money

import (
	"errors"
	"strconv"
	"strings"
)

// ErrEmpty is returned when the input contains no numeric content at all.
var ErrEmpty = errors.New("money: empty value")

// decorations stripped before numeric parsing. NBSP shows up in amounts
// formatted as "1 000".
var stripper = strings.NewReplacer(
	"₽", "",
	"%", "",
	"USDT", "",
	"usdt", "",
	"\"", "",
	"'", "",
	" ", "",
	" ", "",
)

// ParseFloat parses a possibly decorated numeric string into a float64.
// A decimal comma is accepted in place of a dot.
func ParseFloat(s string) (float64, error) {
	cleaned := strings.TrimSpace(stripper.Replace(s))
	if cleaned == "" {
		return 0, ErrEmpty
	}
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// ParseAmount parses a decorated monetary amount into integer currency
// units, truncating any fractional part ("1 000₽" -> 1000).
func ParseAmount(s string) (int64, error) {
	v, err := ParseFloat(s)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// ParsePercent parses a commission percentage, with or without the percent
// sign ("5%" -> 5.0).
func ParsePercent(s string) (float64, error) {
	return ParseFloat(s)
}

// ParseFloatOr parses s and falls back to def when the value is empty or
// unparsable. Used on read paths where a bad cell is skipped, not fatal.
func ParseFloatOr(s string, def float64) float64 {
	v, err := ParseFloat(s)
	if err != nil {
		return def
	}
	return v
}
