package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/jghoshh/momentum/models"
)

// ParseDate parses a YYYY-MM-DD string into a time.Time at midnight UTC.
// Returns an error if the input is not a valid calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(models.DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return t, nil
}

// FormatDate formats a time.Time as a YYYY-MM-DD string.
func FormatDate(t time.Time) string {
	return t.Format(models.DateFormat)
}

// MonthLabel returns the YYYY-MM label of the month containing the given date.
func MonthLabel(t time.Time) string {
	return t.Format("2006-01")
}

// MonthLabelOf returns the YYYY-MM label of the month containing the given
// YYYY-MM-DD date string. Invalid input yields an error.
func MonthLabelOf(date string) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return MonthLabel(t), nil
}

// MonthRange returns every date of the month containing t, first through last
// calendar day, as YYYY-MM-DD strings in ascending order. The range is never
// padded with adjacent-month days.
func MonthRange(t time.Time) []string {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	dates := make([]string, 0, last.Day())
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		dates = append(dates, FormatDate(day))
	}
	return dates
}

// AddDays returns the YYYY-MM-DD string that is n days after the given date
// string. n may be negative.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, n)), nil
}

// PrintError prints an error message to the console framed by a banner so it
// stands out in the interactive shell.
func PrintError(message string) {
	message = "ERROR: " + message
	bannerChar := "="
	bannerLength := len(message) + 4
	bannerLine := strings.Repeat(bannerChar, bannerLength)

	fmt.Println(bannerLine)
	fmt.Printf("%s %s %s\n", bannerChar, message, bannerChar)
	fmt.Println(bannerLine)
	fmt.Println()
}
