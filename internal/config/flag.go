package config

import (
	"fmt"
	"math"
	"strings"
)

// Flag is a boolean option that also accepts the 0/1 integers used by
// older parameter files.
type Flag bool

// UnmarshalJSON accepts true/false, 0/1 and their string forms.
func (f *Flag) UnmarshalJSON(b []byte) error {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(string(b)), `"`))
	switch s {
	case "true", "1", "1.0", "yes", "on":
		*f = true
	case "false", "0", "0.0", "no", "off", "", "null":
		*f = false
	default:
		return fmt.Errorf("cannot use %s as a flag", string(b))
	}
	return nil
}

// roundHalfEven rounds ties to the even neighbour, so a 0.025 span at a
// 0.01 step gives 2 intervals.
func roundHalfEven(v float64) float64 {
	return math.RoundToEven(v)
}
