package config

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

var (
	reDuration         = regexp.MustCompile(`^(\d+)([smhdwMy])$`)
	errInvalidDuration = errors.New("invalid duration")
)

// ParseDuration works exactly like time.ParseDuration except that
// it supports durations longer than hours
// Formats: s, m, h, d, w, M, y.
func ParseDuration(durationString string) (time.Duration, error) {
	if durationString == "0" {
		return 0, nil
	}

	matchDuration := reDuration.FindStringSubmatch(durationString)
	if matchDuration == nil {
		// Fall back to the stdlib format so values like 1h30m still work.
		stdDuration, errStd := time.ParseDuration(durationString)
		if errStd != nil {
			return 0, errors.Join(errStd, errInvalidDuration)
		}

		return stdDuration, nil
	}

	valueInt, err := strconv.ParseInt(matchDuration[1], 10, 64)
	if err != nil {
		return 0, errInvalidDuration
	}

	value := time.Duration(valueInt)
	day := time.Hour * 24

	switch matchDuration[2] {
	case "s":
		return time.Second * value, nil
	case "m":
		return time.Minute * value, nil
	case "h":
		return time.Hour * value, nil
	case "d":
		return day * value, nil
	case "w":
		return day * 7 * value, nil
	case "M":
		return day * 31 * value, nil
	case "y":
		return day * 365 * value, nil
	}

	return 0, errInvalidDuration
}
