package fat32

import (
	"time"
)

// ParseDate reads the given input as a FAT directory entry date stamp.
//  Bits 0–4: Day of month, valid value range 1-31 inclusive.
//  Bits 5–8: Month of year, 1 = January, valid value range 1–12 inclusive.
//  Bits 9–15: Count of years from 1980, valid value range 0–127 inclusive (1980–2107).
// It returns a time.Time which has always a time of 00:00:00.000000000 UTC.
//
// As value 0 for day and month is invalid, time.Time{} is returned in that case so that
// time.Time.IsZero() can be used.
//
// Note that monthOfYear may be bigger than 12 which is unspecified. In this case the year gets incremented by one.
func ParseDate(input uint16) time.Time {
	dayOfMonth := input & 0x1F
	monthOfYear := input & 0x1E0 >> 5
	yearSince1980 := input & 0xFE00 >> 9

	if dayOfMonth == 0 || monthOfYear == 0 {
		return time.Time{}
	}

	return time.Date(1980+int(yearSince1980), time.Month(monthOfYear), int(dayOfMonth), 0, 0, 0, 0, time.UTC)
}

// ParseTime reads the given input as a FAT directory entry time stamp with a granularity of 2 seconds.
//  Bits 0–4: 2-second count, valid value range 0–29 inclusive (0 – 58 seconds).
//  Bits 5–10: Minutes, valid value range 0–59 inclusive.
//  Bits 11–15: Hours, valid value range 0–23 inclusive.
// It returns a time.Time which has always a date of January 1, year 1.
//
// Bigger values than the specified ones are just added to the time but limited to 23:59:59.
func ParseTime(input uint16) time.Time {
	seconds := int(input&0x1F) * 2
	minutes := input & 0x7E0 >> 5
	hours := input & 0xF800 >> 11

	result := time.Date(1, 1, 1, int(hours), int(minutes), seconds, 0, time.UTC)

	if result.Day() > 1 {
		return time.Date(1, 1, 1, 23, 59, 59, 0, time.UTC)
	}

	return result
}

// FormatDate encodes the date part of t as a FAT date stamp.
// Dates before 1980 are stored as 1980-01-01, dates after 2107 as 2107-12-31.
func FormatDate(t time.Time) uint16 {
	year, month, day := t.Date()
	switch {
	case year < 1980:
		year, month, day = 1980, time.January, 1
	case year > 2107:
		year, month, day = 2107, time.December, 31
	}
	return uint16(year-1980)<<9 | uint16(month)<<5 | uint16(day)
}

// FormatTime encodes the time of day of t as a FAT time stamp. Odd seconds are rounded down.
func FormatTime(t time.Time) uint16 {
	return uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
}

// timestamp combines a FAT date and time stamp.
// If the date contains any invalid value time.Time{} is returned.
func timestamp(date, clock uint16) time.Time {
	d := ParseDate(date)
	if d.IsZero() {
		return time.Time{}
	}
	c := ParseTime(clock)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, time.UTC)
}
