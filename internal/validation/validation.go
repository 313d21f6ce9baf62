package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	// ErrCityEmpty is returned when city is empty or whitespace-only after trim.
	ErrCityEmpty = errors.New("city is required")

	// ErrCityTooLong is returned when city length exceeds the maximum.
	ErrCityTooLong = errors.New("city too long")

	// ErrInvalidChars is returned when a location field contains disallowed characters.
	ErrInvalidChars = errors.New("invalid characters")

	// ErrInvalidDays is returned when the days parameter is not an integer in [1,7].
	ErrInvalidDays = errors.New("days must be an integer between 1 and 7")

	// ErrInvalidTimeRange is returned when from/to are missing, malformed, or inverted.
	ErrInvalidTimeRange = errors.New("invalid time range")
)

const maxLocationLen = 100

// ValidateCity trims the input, enforces the length bound (in runes) and
// restricts to letters (Unicode), digits, space, comma, hyphen, apostrophe
// and period. Normalization (lowercasing) is left to the service layer.
func ValidateCity(input string) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrCityEmpty
	}
	if len(r) > maxLocationLen {
		return "", ErrCityTooLong
	}
	for _, c := range r {
		if !isAllowedLocationRune(c) {
			return "", fmt.Errorf("%w in city", ErrInvalidChars)
		}
	}
	return s, nil
}

// ValidateCountry validates an optional country field; empty is allowed.
func ValidateCountry(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", nil
	}
	r := []rune(s)
	if len(r) > maxLocationLen {
		return "", fmt.Errorf("%w: country too long", ErrInvalidChars)
	}
	for _, c := range r {
		if !isAllowedLocationRune(c) {
			return "", fmt.Errorf("%w in country", ErrInvalidChars)
		}
	}
	return s, nil
}

// ValidateDays parses the forecast days parameter. Empty defaults to 5.
func ValidateDays(input string) (int, error) {
	if strings.TrimSpace(input) == "" {
		return 5, nil
	}
	days, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || days < 1 || days > 7 {
		return 0, ErrInvalidDays
	}
	return days, nil
}

// ValidateTimeRange parses the required RFC3339 from/to history bounds and
// rejects inverted ranges.
func ValidateTimeRange(fromStr, toStr string) (time.Time, time.Time, error) {
	if strings.TrimSpace(fromStr) == "" || strings.TrimSpace(toStr) == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from and to are required", ErrInvalidTimeRange)
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from must be RFC3339", ErrInvalidTimeRange)
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to must be RFC3339", ErrInvalidTimeRange)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to precedes from", ErrInvalidTimeRange)
	}
	return from, to, nil
}

// isAllowedLocationRune returns true for letters (Unicode), digits, space,
// comma, hyphen, apostrophe and period.
func isAllowedLocationRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '\'', '.':
		return true
	}
	return false
}
