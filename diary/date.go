package diary

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DateFormat is the layout of Entry.Date
	DateFormat = "20060102"

	MaxTitleLen   = 200
	MaxContentLen = 20000
)

var (
	ErrInvalidDate    = errors.New("invalid date")
	ErrTitleTooLong   = errors.New("title too long")
	ErrContentTooLong = errors.New("content too long")
	ErrBadHeader      = errors.New("missing diary header")
	ErrNotBackup      = errors.New("not a diary backup")
)

// IsValidationError returns true if err was caused by invalid input
// as opposed to a failure to read or write files
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrTitleTooLong) ||
		errors.Is(err, ErrContentTooLong) ||
		errors.Is(err, ErrBadHeader) ||
		errors.Is(err, ErrNotBackup)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ValidateDate checks that date is YYYYMMDD and an existing calendar day
func ValidateDate(date string) error {
	if len(date) != 8 || !isDigits(date) {
		return fmt.Errorf("%w: '%s' is not YYYYMMDD", ErrInvalidDate, date)
	}
	// time.Parse rejects days out of range for the month, e.g. 20250230
	if _, err := time.Parse(DateFormat, date); err != nil {
		return fmt.Errorf("%w: '%s' is not a calendar date", ErrInvalidDate, date)
	}
	return nil
}

// Validate checks that e can be stored. Lengths are in characters,
// not bytes.
func Validate(e *Entry) error {
	if e == nil {
		return fmt.Errorf("%w: no entry", ErrInvalidDate)
	}
	if err := ValidateDate(e.Date); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(e.Title); n > MaxTitleLen {
		return fmt.Errorf("%w: %d characters, max is %d", ErrTitleTooLong, n, MaxTitleLen)
	}
	if n := utf8.RuneCountInString(e.Content); n > MaxContentLen {
		return fmt.Errorf("%w: %d characters, max is %d", ErrContentTooLong, n, MaxContentLen)
	}
	return nil
}

// FormatDate returns t as a date key
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// ParseDate converts user input to a date key. Accepts:
// YYYYMMDD, YYYY-MM-DD, "today" and "yesterday" (relative to now)
func ParseDate(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "today":
		return FormatDate(now), nil
	case "yesterday":
		return FormatDate(now.AddDate(0, 0, -1)), nil
	}
	if len(s) == 10 && s[4] == '-' && s[7] == '-' {
		s = s[:4] + s[5:7] + s[8:]
	}
	if err := ValidateDate(s); err != nil {
		return "", err
	}
	return s, nil
}
