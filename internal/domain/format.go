package domain

import (
	"fmt"
	"strconv"
	"time"
)

// FormatCurrency renders an amount as "Rs. 12,345".
func FormatCurrency(v int64) string {
	if v == 0 {
		return "Rs. 0"
	}
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	digits := strconv.FormatInt(v, 10)
	out := make([]byte, 0, len(digits)+len(digits)/3)
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digits[i])
	}
	return "Rs. " + sign + string(out)
}

// FormatTrialRemaining renders a duration as "N days, H hours, M minutes".
func FormatTrialRemaining(d time.Duration) string {
	if d <= 0 {
		return "No trial period"
	}
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)
	return fmt.Sprintf("%d days, %d hours, %d minutes", days, hours, minutes)
}
