package stringutil

import (
	"strconv"
)

// StringToFloat64Default converts a string to a float64, returning a default values on
// conversion error.
func StringToFloat64Default(numericString string, defaultValue float64) float64 {
	value, errParseFloat := strconv.ParseFloat(numericString, 64)
	if errParseFloat != nil {
		return defaultValue
	}

	return value
}
