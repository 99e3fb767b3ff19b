// Package music holds the scale table, the transposer and pitch naming.
package music

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gitlab.com/gomidi/midi/v2"
)

var (
	// ErrUnknownScale is returned by Lookup for names not in the table.
	ErrUnknownScale = errors.New("unknown scale")
	// ErrUnknownKey is returned by KeyOffset for unrecognized key names.
	ErrUnknownKey = errors.New("unknown key")
	// ErrInvalidScale is returned by Validate.
	ErrInvalidScale = errors.New("invalid scale")
)

// MinScaleLen is the shortest scale the classifier can address.
const MinScaleLen = 8

// Scale is an ascending sequence of MIDI pitch numbers (middle C = 60).
type Scale []int

// Built-in scales. Each mode starts on its own white key of C major and spans
// two octaves; blues is a single octave around middle C.
var table = map[string]Scale{
	"blues":      {58, 60, 63, 65, 66, 67, 70, 72, 75},
	"ionian":     {60, 62, 64, 65, 67, 69, 71, 72, 74, 76, 77, 79, 81, 83, 84},
	"dorian":     {62, 64, 65, 67, 69, 71, 72, 74, 76, 77, 79, 81, 83, 84, 86},
	"phrygian":   {64, 65, 67, 69, 71, 72, 74, 76, 77, 79, 81, 83, 84, 86, 88},
	"lydian":     {65, 67, 69, 71, 72, 74, 76, 77, 79, 81, 83, 84, 86, 88, 89},
	"mixolydian": {67, 69, 71, 72, 74, 76, 77, 79, 81, 83, 84, 86, 88, 89, 91},
	"aeolian":    {69, 71, 72, 74, 76, 77, 79, 81, 83, 84, 86, 88, 89, 91, 93},
	"locrian":    {71, 72, 74, 76, 77, 79, 81, 83, 84, 86, 88, 89, 91, 93, 95},
}

// Lookup returns a copy of the named built-in scale (case-insensitive).
func Lookup(name string) (Scale, error) {
	s, ok := table[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScale, name)
	}
	return s.clone(), nil
}

// Names returns the built-in scale names in sorted order.
func Names() []string {
	names := make([]string, 0, len(table))
	for n := range table {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks that the scale is strictly ascending and long enough.
func (s Scale) Validate() error {
	if len(s) < MinScaleLen {
		return fmt.Errorf("%w: %d notes, need at least %d", ErrInvalidScale, len(s), MinScaleLen)
	}
	for i := 1; i < len(s); i++ {
		if s[i] <= s[i-1] {
			return fmt.Errorf("%w: not ascending at index %d", ErrInvalidScale, i)
		}
	}
	return nil
}

// Len returns the number of notes.
func (s Scale) Len() int { return len(s) }

// Top returns the highest pitch.
func (s Scale) Top() int { return s[len(s)-1] }

// At returns the pitch at i, clamping i into the valid index range.
// The second result is false when i had to be clamped.
func (s Scale) At(i int) (int, bool) {
	switch {
	case i < 0:
		return s[0], false
	case i >= len(s):
		return s[len(s)-1], false
	}
	return s[i], true
}

func (s Scale) clone() Scale {
	out := make(Scale, len(s))
	copy(out, s)
	return out
}

// Transpose returns a new scale with every pitch shifted by shift semitones.
func Transpose(s Scale, shift int) Scale {
	out := make(Scale, len(s))
	for i, p := range s {
		out[i] = p + shift
	}
	return out
}

var keys = map[string]int{
	"c": 0, "b#": 0,
	"c#": 1, "db": 1,
	"d":  2,
	"d#": 3, "eb": 3,
	"e": 4, "fb": 4,
	"f": 5, "e#": 5,
	"f#": 6, "gb": 6,
	"g":  7,
	"g#": 8, "ab": 8,
	"a":  9,
	"a#": 10, "bb": 10,
	"b": 11, "cb": 11,
}

// keyMenu is the selection list offered to users, in semitone order.
var keyMenu = []string{"C", "C#", "D", "Eb", "E", "F", "F#", "G", "Ab", "A", "Bb", "B"}

// Keys returns the selectable key names from C upwards.
func Keys() []string {
	return append([]string(nil), keyMenu...)
}

// KeyOffset maps a key name such as "Eb" or "F#" to its semitone offset from C.
func KeyOffset(name string) (int, error) {
	off, ok := keys[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
	return off, nil
}

// Resolve looks up a scale by name and transposes it into the given key.
func Resolve(scaleName, key string) (Scale, error) {
	s, err := Lookup(scaleName)
	if err != nil {
		return nil, err
	}
	shift, err := KeyOffset(key)
	if err != nil {
		return nil, err
	}
	return Transpose(s, shift), nil
}

// PitchName renders a MIDI pitch as a note name, e.g. "C5".
func PitchName(p int) string {
	if p < 0 || p > 127 {
		return fmt.Sprintf("pitch(%d)", p)
	}
	return midi.Note(uint8(p)).String()
}
