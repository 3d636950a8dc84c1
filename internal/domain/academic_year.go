package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Month sentinels for one-time fees.
const (
	MonthAnnual    = "ANNUAL"
	MonthAdmission = "ADMISSION"
)

// academic-year order, starting in April
var academicMonths = [12]string{
	"APRIL", "MAY", "JUNE", "JULY", "AUGUST", "SEPTEMBER",
	"OCTOBER", "NOVEMBER", "DECEMBER", "JANUARY", "FEBRUARY", "MARCH",
}

// AcademicMonths returns the twelve month labels in academic-year order.
func AcademicMonths() []string {
	out := make([]string, len(academicMonths))
	copy(out, academicMonths[:])
	return out
}

// IsCalendarMonth reports whether m is one of the twelve month labels.
func IsCalendarMonth(m string) bool {
	for _, label := range academicMonths {
		if label == m {
			return true
		}
	}
	return false
}

// MonthLabel returns the upper-case label used in fee records, e.g. "APRIL".
func MonthLabel(m time.Month) string {
	return strings.ToUpper(m.String())
}

// AcademicYearFor maps a date to its academic year label. Years start in April:
// 2024-03-15 is in "2023-2024", 2024-04-01 is in "2024-2025".
func AcademicYearFor(t time.Time) string {
	y := t.Year()
	if t.Month() >= time.April {
		return fmt.Sprintf("%d-%d", y, y+1)
	}
	return fmt.Sprintf("%d-%d", y-1, y)
}

// ValidAcademicYear reports whether s has the form "YYYY-YYYY" with consecutive years.
func ValidAcademicYear(s string) bool {
	parts := strings.Split(s, "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 4 {
		return false
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	return end == start+1
}
