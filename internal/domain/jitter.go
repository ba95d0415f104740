package domain

import (
	"math/rand"
	"strconv"
	"strings"
)

// Jitter adds a uniform random offset in [-radius, +radius] to a decimal
// coordinate and returns it formatted back as a string. Latitude and
// longitude must be jittered with separate calls so they get independent
// draws. Input that does not parse as a number is returned unchanged.
func Jitter(coordinate string, radius float64) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(coordinate), 64)
	if err != nil {
		return coordinate
	}
	if radius <= 0 {
		return coordinate
	}
	offset := (rand.Float64()*2 - 1) * radius
	return strconv.FormatFloat(v+offset, 'f', -1, 64)
}
