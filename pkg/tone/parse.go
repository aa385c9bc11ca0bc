package tone

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// ErrEmptyProfile is returned when a profile contains no usable tone points.
var ErrEmptyProfile = errors.New("tone profile has no tone points")

// Diagnostic describes a skipped profile line.
type Diagnostic struct {
	Line   int
	Text   string
	Reason string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s (%q)", d.Line, d.Reason, d.Text)
}

// ParseString parses profile text.
func ParseString(s string) (*Profile, []Diagnostic, error) {
	return Parse(strings.NewReader(s))
}

// Parse reads a line-oriented key=value profile. Blank lines and lines
// starting with '#' are ignored. Malformed lines are skipped and reported as
// diagnostics. Tone points are returned sorted by vertical speed.
func Parse(r io.Reader) (*Profile, []Diagnostic, error) {
	p := &Profile{
		ClimbOn:  DefaultClimbOn,
		ClimbOff: DefaultClimbOff,
		SinkOn:   DefaultSinkOn,
		SinkOff:  DefaultSinkOff,
	}
	var diags []Diagnostic

	skip := func(n int, line, reason string) {
		d := Diagnostic{Line: n, Text: line, Reason: reason}
		diags = append(diags, d)
		slog.Warn("Tone: skipping profile line", "line", n, "reason", reason, "text", line)
	}

	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			skip(n, line, "missing '='")
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		var target *float64
		switch key {
		case "ClimbToneOnThreshold":
			target = &p.ClimbOn
		case "ClimbToneOffThreshold":
			target = &p.ClimbOff
		case "SinkToneOnThreshold":
			target = &p.SinkOn
		case "SinkToneOffThreshold":
			target = &p.SinkOff
		case "tone":
			pt, err := parsePoint(value)
			if err != nil {
				skip(n, line, err.Error())
				continue
			}
			p.Points = append(p.Points, pt)
			continue
		default:
			skip(n, line, "unknown key "+key)
			continue
		}

		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			skip(n, line, "invalid number")
			continue
		}
		*target = f
	}
	if err := sc.Err(); err != nil {
		return nil, diags, fmt.Errorf("read tone profile: %w", err)
	}

	if len(p.Points) == 0 {
		return nil, diags, ErrEmptyProfile
	}

	sort.SliceStable(p.Points, func(i, j int) bool {
		return p.Points[i].VerticalSpeed < p.Points[j].VerticalSpeed
	})

	if p.ClimbOff > p.ClimbOn || p.SinkOff < p.SinkOn {
		slog.Warn("Tone: off thresholds outside on thresholds, hysteresis disabled",
			"climb_on", p.ClimbOn, "climb_off", p.ClimbOff, "sink_on", p.SinkOn, "sink_off", p.SinkOff)
	}

	return p, diags, nil
}

func parsePoint(value string) (Point, error) {
	fields := strings.Split(value, ",")
	if len(fields) != 4 {
		return Point{}, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	vs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Point{}, errors.New("invalid vertical speed")
	}
	var ints [3]int
	for i, f := range fields[1:] {
		v, err := strconv.Atoi(f)
		if err != nil {
			return Point{}, fmt.Errorf("invalid integer in field %d", i+2)
		}
		ints[i] = v
	}

	return Point{
		VerticalSpeed: vs,
		FrequencyHz:   ints[0],
		CycleMillis:   ints[1],
		DutyPercent:   ints[2],
	}, nil
}
