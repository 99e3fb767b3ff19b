package performance

import (
	"fmt"
	"strings"

	"github.com/turquoise5/hand-music/internal/music"
)

// EventType tags an Event.
type EventType string

const (
	EventAttack  EventType = "attack"
	EventRelease EventType = "release"
	EventRamp    EventType = "ramp"
)

// Voice identifies which of the two note voices an attack or release targets.
type Voice string

const (
	VoiceMelody Voice = "melody"
	VoiceChord  Voice = "chord"
)

// Param names a continuous control.
type Param string

const (
	ParamVolume     Param = "volumeDb"
	ParamPan        Param = "pan"
	ParamFilter     Param = "filterDepth"
	ParamDistortion Param = "distortionDepth"
	ParamTremolo    Param = "tremoloRate"
	// ParamPortamento carries the glide time in milliseconds, 0 when off.
	ParamPortamento Param = "portamento"
)

// Event is one instruction for the audio renderer. Attack and release use
// Voice, Pitches and Velocity; ramps use Param, Value and RampMs.
type Event struct {
	Type     EventType `json:"type"`
	Voice    Voice     `json:"voice,omitempty"`
	Pitches  []int     `json:"pitches,omitempty"`
	Velocity float64   `json:"velocity,omitempty"`
	Param    Param     `json:"param,omitempty"`
	Value    float64   `json:"value"`
	RampMs   int       `json:"rampMs,omitempty"`
}

// AttackEvent starts pitches on voice.
func AttackEvent(voice Voice, pitches []int, velocity float64) Event {
	return Event{Type: EventAttack, Voice: voice, Pitches: pitches, Velocity: velocity}
}

// ReleaseEvent stops pitches on voice.
func ReleaseEvent(voice Voice, pitches []int) Event {
	return Event{Type: EventRelease, Voice: voice, Pitches: pitches}
}

// RampEvent moves param to value over rampMs milliseconds.
func RampEvent(param Param, value float64, rampMs int) Event {
	return Event{Type: EventRamp, Param: param, Value: value, RampMs: rampMs}
}

func (e Event) String() string {
	switch e.Type {
	case EventAttack, EventRelease:
		names := make([]string, len(e.Pitches))
		for i, p := range e.Pitches {
			names[i] = music.PitchName(p)
		}
		return fmt.Sprintf("%s %s [%s]", e.Voice, e.Type, strings.Join(names, " "))
	case EventRamp:
		return fmt.Sprintf("ramp %s -> %.3f over %dms", e.Param, e.Value, e.RampMs)
	default:
		return string(e.Type)
	}
}
