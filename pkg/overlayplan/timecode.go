package overlayplan

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseTimecode accepts plain seconds ("14", "21.5") or clock notation
// ("1:23", "0:05.250", "1:02:03") and returns seconds.
func ParseTimecode(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("value is required")
	}

	if !strings.Contains(value, ":") {
		secs, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, fmt.Errorf("invalid time %q", value)
		}
		if secs < 0 {
			return 0, fmt.Errorf("time %q must be non-negative", value)
		}
		return secs, nil
	}

	parts := strings.Split(value, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q", value)
	}

	var hours, minutes int
	var err error
	if len(parts) == 2 {
		minutes, err = parseComponent("minutes", parts[0], -1)
		if err != nil {
			return 0, err
		}
	} else {
		hours, err = parseComponent("hours", parts[0], -1)
		if err != nil {
			return 0, err
		}
		minutes, err = parseComponent("minutes", parts[1], 59)
		if err != nil {
			return 0, err
		}
	}

	seconds, err := parseSeconds(parts[len(parts)-1])
	if err != nil {
		return 0, err
	}
	return float64(hours*3600+minutes*60) + seconds, nil
}

func parseComponent(name, raw string, max int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%s are required", name)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s must be non-negative", name)
	}
	if max >= 0 && value > max {
		return 0, fmt.Errorf("%s must be <= %d", name, max)
	}
	return value, nil
}

func parseSeconds(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("seconds are required")
	}
	whole, frac, hasFrac := strings.Cut(raw, ".")
	if hasFrac && frac == "" {
		return 0, errors.New("fractional seconds requires digits")
	}
	secInt, err := strconv.Atoi(whole)
	if err != nil {
		return 0, errors.New("seconds must be an integer")
	}
	if secInt < 0 || secInt > 59 {
		return 0, errors.New("seconds must be between 0 and 59")
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errors.New("invalid fractional seconds")
	}
	return value, nil
}
