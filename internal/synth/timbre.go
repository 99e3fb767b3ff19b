package synth

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTimbre is returned for timbre names outside the table.
var ErrUnknownTimbre = errors.New("unknown timbre")

// DefaultTimbre is used when a session does not choose one.
const DefaultTimbre = "sine"

// timbres maps oscillator names to the General MIDI program that comes
// closest on a plain GM synth.
var timbres = []struct {
	name    string
	program uint8
}{
	{"sine", 79},
	{"square", 80},
	{"sawtooth", 81},
	{"triangle", 82},
	{"fmsine", 4},
	{"fmsquare", 5},
	{"fmsawtooth", 86},
	{"fmtriangle", 11},
	{"amsine", 16},
	{"amsquare", 17},
	{"amsawtooth", 18},
	{"amtriangle", 19},
	{"fatsine", 89},
	{"fatsquare", 90},
	{"fatsawtooth", 50},
	{"fattriangle", 91},
}

// Timbres lists the timbre names in menu order.
func Timbres() []string {
	names := make([]string, len(timbres))
	for i, t := range timbres {
		names[i] = t.name
	}
	return names
}

// Program returns the GM program number for a timbre name.
func Program(name string) (uint8, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, t := range timbres {
		if t.name == n {
			return t.program, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTimbre, name)
}
