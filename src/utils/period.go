package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParsePeriod converts a lookback period such as "1D", "2W", "3M" or "1A"
// into a duration. Months and years use calendar approximations.
func ParsePeriod(period string) (time.Duration, error) {
	if len(period) < 2 {
		return 0, fmt.Errorf("ParsePeriod: invalid period %q", period)
	}

	unit := strings.ToUpper(period[len(period)-1:])
	count, err := strconv.Atoi(period[:len(period)-1])
	if err != nil || count <= 0 {
		return 0, fmt.Errorf("ParsePeriod: invalid period %q", period)
	}

	switch unit {
	case "D":
		return time.Duration(count) * 24 * time.Hour, nil
	case "W":
		return time.Duration(count) * 7 * 24 * time.Hour, nil
	case "M":
		return time.Duration(count) * 30 * 24 * time.Hour, nil
	case "A":
		return time.Duration(count) * 365 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("ParsePeriod: invalid period unit %q", unit)
	}
}
