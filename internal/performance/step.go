package performance

import (
	"fmt"

	"github.com/turquoise5/hand-music/internal/detector"
	"github.com/turquoise5/hand-music/internal/gesture"
	"github.com/turquoise5/hand-music/internal/music"
)

// Result is the outcome of one Step.
type Result struct {
	State  State
	Events []Event
	Issues []Issue

	// Left and Right are the classifier readings used this frame, nil when
	// the hand was absent or rejected.
	Left  *gesture.LeftControl
	Right *gesture.RightControl
}

// Step advances prev by one frame. It never modifies prev.
//
// Events are ordered melody first, then chord, then parameter ramps
// (volume, filter, distortion, tremolo, portamento, pan).
func Step(cfg Config, scale music.Scale, prev State, frame detector.Frame) Result {
	res := Result{State: prev.clone()}
	st := &res.State
	now := frame.Timestamp

	for _, r := range st.ramps() {
		r.advance(now, cfg.RampMs)
	}
	if now > 0 {
		st.LastFrame = now
	}

	left, right, issues := pickHands(frame.Hands)
	res.Issues = issues

	if left == nil && right == nil {
		res.Events = silence(st)
		return res
	}

	var melody, chord, ramps []Event

	if right != nil {
		rc, err := gesture.ClassifyRight(cfg.Gesture, scale, right)
		if err != nil {
			res.Issues = append(res.Issues, Issue{Hand: detector.Right, Err: err})
		} else if rc.InFrame {
			res.Right = &rc
			if rc.Clamped {
				res.Issues = append(res.Issues, Issue{
					Hand: detector.Right,
					Err:  fmt.Errorf("%w: index clamped into %d-note scale", gesture.ErrOutOfRange, len(scale)),
				})
			}
			melody = stepMelody(cfg, st, rc)
			chord = stepChord(cfg, scale, st, rc)
		}
	}

	if left != nil {
		lc, err := gesture.ClassifyLeft(cfg.Gesture, left)
		if err != nil {
			res.Issues = append(res.Issues, Issue{Hand: detector.Left, Err: err})
		} else {
			res.Left = &lc
			ramps = stepLeft(cfg, st, lc, now)
		}
	}

	if res.Right != nil && st.Pan.retarget(res.Right.Pan, now, cfg.RampDeadband) {
		st.Pan.advance(now, cfg.RampMs)
		ramps = append(ramps, RampEvent(ParamPan, st.Pan.Target, cfg.RampMs))
	}

	res.Events = append(append(melody, chord...), ramps...)
	return res
}

// Silence releases every sounding voice in s and returns the releases.
func Silence(s State) (State, []Event) {
	out := s.clone()
	return out, silence(&out)
}

func silence(st *State) []Event {
	var events []Event
	if st.MelodyActive {
		events = append(events, ReleaseEvent(VoiceMelody, []int{st.MelodyPitch}))
		st.MelodyActive = false
		st.MelodyPitch = 0
	}
	if st.ChordActive {
		events = append(events, ReleaseEvent(VoiceChord, st.ChordPitches))
		st.ChordActive = false
		st.ChordRoot = 0
		st.ChordPitches = nil
	}
	return events
}

func stepMelody(cfg Config, st *State, rc gesture.RightControl) []Event {
	if rc.Articulation == gesture.Release {
		if !st.MelodyActive {
			return nil
		}
		ev := ReleaseEvent(VoiceMelody, []int{st.MelodyPitch})
		st.MelodyActive = false
		st.MelodyPitch = 0
		return []Event{ev}
	}
	// A held pitch re-attacks on every frame.
	st.MelodyActive = true
	st.MelodyPitch = rc.Pitch
	return []Event{AttackEvent(VoiceMelody, []int{rc.Pitch}, cfg.Velocity)}
}

func stepChord(cfg Config, scale music.Scale, st *State, rc gesture.RightControl) []Event {
	if !rc.ChordGate {
		if cfg.ReleaseChordOnGateDrop && st.ChordActive {
			ev := ReleaseEvent(VoiceChord, st.ChordPitches)
			st.ChordActive = false
			st.ChordRoot = 0
			st.ChordPitches = nil
			return []Event{ev}
		}
		return nil
	}
	if st.ChordActive && st.ChordRoot == rc.ChordRoot {
		return nil
	}

	var events []Event
	if st.ChordActive {
		events = append(events, ReleaseEvent(VoiceChord, st.ChordPitches))
	}
	pitches := gesture.ChordPitches(scale, rc.ChordRoot, cfg.Gesture.ChordSize, cfg.Gesture.ChordStep)
	st.ChordActive = true
	st.ChordRoot = rc.ChordRoot
	st.ChordPitches = pitches
	return append(events, AttackEvent(VoiceChord, append([]int(nil), pitches...), cfg.Velocity))
}

func stepLeft(cfg Config, st *State, lc gesture.LeftControl, now int64) []Event {
	var events []Event
	targets := []struct {
		param Param
		ramp  *Ramp
		value float64
	}{
		{ParamVolume, &st.Volume, lc.VolumeDb},
		{ParamFilter, &st.Filter, lc.FilterDepth},
		{ParamDistortion, &st.Distortion, lc.DistortionDepth},
		{ParamTremolo, &st.Tremolo, lc.TremoloRateHz},
	}
	for _, t := range targets {
		if t.ramp.retarget(t.value, now, cfg.RampDeadband) {
			t.ramp.advance(now, cfg.RampMs)
			events = append(events, RampEvent(t.param, t.ramp.Target, cfg.RampMs))
		}
	}

	if lc.Portamento != st.Portamento {
		st.Portamento = lc.Portamento
		glide := 0.0
		if lc.Portamento {
			glide = float64(cfg.GlideMs)
		}
		events = append(events, RampEvent(ParamPortamento, glide, 0))
	}
	return events
}

// pickHands validates the frame's hands and keeps at most one per label.
// Malformed hands are dropped; between two valid hands with the same label
// the higher score wins and the first seen wins a tie.
func pickHands(hands []detector.HandLandmarks) (left, right *detector.HandLandmarks, issues []Issue) {
	for i := range hands {
		h := &hands[i]
		if err := h.Validate(); err != nil {
			issues = append(issues, Issue{Hand: h.Handedness, Err: err})
			continue
		}

		slot := &right
		if h.Handedness == detector.Left {
			slot = &left
		}
		if *slot != nil {
			issues = append(issues, Issue{
				Hand: h.Handedness,
				Err:  fmt.Errorf("%w: scores %.2f and %.2f", ErrAmbiguousHandedness, (*slot).Score, h.Score),
			})
			if h.Score <= (*slot).Score {
				continue
			}
		}
		*slot = h
	}
	return left, right, issues
}
