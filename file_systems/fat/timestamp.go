package fat

import (
	"fmt"
	"time"

	"github.com/dargueta/sdfat"
)

// DateTimeFunc supplies the packed FAT date and time stamped on directory
// entries when they're created or written.
type DateTimeFunc func() (date uint16, time uint16)

// DefaultDate is 2000-01-01, used for new entries on volumes without a
// [DateTimeFunc].
const DefaultDate = uint16(((2000 - 1980) << 9) | (1 << 5) | 1)

// DefaultTime is 01:00:00, used for new entries on volumes without a
// [DateTimeFunc].
const DefaultTime = uint16(1 << 11)

// Bits for [File.SetTimestamp] selecting which timestamps to change.
const (
	TimestampAccess = 1 << iota
	TimestampCreate
	TimestampWrite
)

// PackDate encodes a date in the FAT on-disk format. Years before 1980 can't
// be represented.
func PackDate(year int, month time.Month, day int) uint16 {
	return uint16((year-1980)<<9) | uint16(month)<<5 | uint16(day)
}

// PackTime encodes a time in the FAT on-disk format, with two-second
// granularity.
func PackTime(hour, minute, second int) uint16 {
	return uint16(hour<<11) | uint16(minute<<5) | uint16(second>>1)
}

// DateFromInt converts the FAT on-disk representation of a date into a Go
// time.Time object at midnight local time.
func DateFromInt(value uint16) time.Time {
	day := int(value & 0x001f)
	month := time.Month((value >> 5) & 0x000f)
	year := int(1980 + (value >> 9))

	return time.Date(year, month, day, 0, 0, 0, 0, time.Local)
}

// TimestampFromParts converts a FAT timestamp into a time.Time object. datePart
// is required; timePart and tenths should be 0 if they're not present in the
// source field(s). `tenths` is the creation-time refinement in units of 10ms,
// in the range [0, 199].
func TimestampFromParts(datePart uint16, timePart uint16, tenths uint8) time.Time {
	dateDt := DateFromInt(datePart)

	seconds := int(timePart&0x001f) * 2
	if tenths >= 100 {
		seconds++
		tenths -= 100
	}

	minutes := int((timePart >> 5) & 0x003f)
	hours := int(timePart >> 11)
	nanoseconds := int(tenths) * int(10*time.Millisecond)

	return time.Date(
		dateDt.Year(), dateDt.Month(), dateDt.Day(), hours, minutes, seconds, nanoseconds, time.Local)
}

// TimeToParts is the inverse of [TimestampFromParts]. It fails if `t` is
// outside the years FAT can represent, [1980, 2107].
func TimeToParts(t time.Time) (datePart, timePart uint16, tenths uint8, err error) {
	if t.Year() < 1980 || t.Year() > 2107 {
		return 0, 0, 0, sdfat.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf("year %d not in [1980, 2107]", t.Year()))
	}

	datePart = PackDate(t.Year(), t.Month(), t.Day())
	timePart = PackTime(t.Hour(), t.Minute(), t.Second())
	tenths = uint8(t.Nanosecond() / int(10*time.Millisecond))
	if t.Second()&1 != 0 {
		tenths += 100
	}
	return datePart, timePart, tenths, nil
}

// ClockDateTime adapts a clock such as [time.Now] into a [DateTimeFunc]. Times
// outside the representable range fall back to the defaults.
func ClockDateTime(clock func() time.Time) DateTimeFunc {
	return func() (uint16, uint16) {
		datePart, timePart, _, err := TimeToParts(clock())
		if err != nil {
			return DefaultDate, DefaultTime
		}
		return datePart, timePart
	}
}
