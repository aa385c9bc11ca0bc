package serialbaro

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// lk8NotAvailable marks an absent field in an LK8EX1 sentence.
const lk8NotAvailable = 999999

var (
	ErrUnrecognized = errors.New("unrecognized sentence")
	ErrNoPressure   = errors.New("sentence carries no pressure")
	ErrChecksum     = errors.New("checksum mismatch")
)

// ParseLine extracts a pressure in hPa from one line of device output.
// Accepted forms are a bare number in hPa, "P=<hPa>", and
// "$LK8EX1,<pascal>,<alt>,<vario>,<temp>,<batt>,*<checksum>".
func ParseLine(line string) (float64, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return 0, ErrUnrecognized
	case strings.HasPrefix(line, "$LK8EX1,"):
		return parseLK8EX1(line)
	case strings.HasPrefix(line, "P="), strings.HasPrefix(line, "p="):
		return parseHPa(line[2:])
	case line[0] == '$':
		return 0, ErrUnrecognized
	default:
		return parseHPa(line)
	}
}

func parseHPa(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnrecognized, s)
	}
	if v <= 0 {
		return 0, ErrNoPressure
	}
	return v, nil
}

func parseLK8EX1(line string) (float64, error) {
	body := line[1:]
	if star := strings.IndexByte(body, '*'); star >= 0 {
		sum := body[star+1:]
		body = body[:star]
		if sum != "" {
			want, err := strconv.ParseUint(sum, 16, 8)
			if err != nil {
				return 0, fmt.Errorf("%w: %q", ErrChecksum, sum)
			}
			if checksum(body) != byte(want) {
				return 0, ErrChecksum
			}
		}
	}

	fields := strings.Split(body, ",")
	if len(fields) < 2 {
		return 0, ErrUnrecognized
	}
	pa, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnrecognized, fields[1])
	}
	if pa == lk8NotAvailable || pa <= 0 {
		return 0, ErrNoPressure
	}
	return pa / 100, nil
}

// checksum is the NMEA XOR of all bytes between '$' and '*'.
func checksum(s string) byte {
	var c byte
	for i := 0; i < len(s); i++ {
		c ^= s[i]
	}
	return c
}
