package performance

import (
	"errors"
	"math"
	"testing"

	"github.com/turquoise5/hand-music/internal/detector"
	"github.com/turquoise5/hand-music/internal/gesture"
	"github.com/turquoise5/hand-music/internal/music"
)

func cMajor(t *testing.T) music.Scale {
	t.Helper()
	s, err := music.Resolve("ionian", "C")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return s
}

func frame(ts int64, hands ...detector.HandLandmarks) detector.Frame {
	return detector.Frame{Hands: hands, Timestamp: ts}
}

// playingHand points and holds the chord gesture at once.
func playingHand(x, y float64) detector.HandLandmarks {
	return detector.NewHand(detector.Right, x, y).
		Place(detector.IndexTip, 0, -0.30, 0).
		Place(detector.MiddleTip, 0, -0.20, 0).
		Place(detector.RingTip, 0.02, -0.20, 0).
		Build()
}

func countEvents(events []Event, typ EventType, voice Voice) int {
	n := 0
	for _, e := range events {
		if e.Type == typ && e.Voice == voice {
			n++
		}
	}
	return n
}

func samePitches(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStep_TopNoteScenario(t *testing.T) {
	cfg := DefaultConfig()
	scale := cMajor(t)

	res := Step(cfg, scale, NewState(cfg), frame(1000, detector.PointingHand(0.5, 0.01)))

	if len(res.Events) == 0 || res.Events[0].Type != EventAttack {
		t.Fatalf("expected a melody attack first, got %v", res.Events)
	}
	if got := res.Events[0].Pitches; !samePitches(got, []int{84}) {
		t.Errorf("expected top note 84, got %v", got)
	}
	if !res.State.MelodyActive || res.State.MelodyPitch != 84 {
		t.Errorf("expected melody sounding at 84, got %+v", res.State)
	}
}

func TestStep_WristOnTopEdgeIsSilent(t *testing.T) {
	cfg := DefaultConfig()
	scale := cMajor(t)

	res := Step(cfg, scale, NewState(cfg), frame(1000, detector.PointingHand(0.5, 0.0)))

	if len(res.Events) != 0 {
		t.Errorf("a wrist on the frame edge must not play, got %v", res.Events)
	}
	if res.State.MelodyActive || res.Right != nil {
		t.Errorf("expected the right hand out of frame, got %+v", res.State)
	}
}

func TestStep_MelodyRetriggersEveryFrame(t *testing.T) {
	cfg := DefaultConfig()
	scale := cMajor(t)
	st := NewState(cfg)

	for i := 0; i < 3; i++ {
		res := Step(cfg, scale, st, frame(int64(1000+i*33), detector.PointingHand(0.5, 0.5)))
		if n := countEvents(res.Events, EventAttack, VoiceMelody); n != 1 {
			t.Fatalf("frame %d: expected 1 melody attack, got %d", i, n)
		}
		st = res.State
	}
}

func TestStep_MelodyRelease(t *testing.T) {
	cfg := DefaultConfig()
	scale := cMajor(t)

	res := Step(cfg, scale, NewState(cfg), frame(1000, detector.PointingHand(0.5, 0.5)))
	res = Step(cfg, scale, res.State, frame(1033, detector.ClosedHand(detector.Right, 0.5, 0.5)))

	if n := countEvents(res.Events, EventRelease, VoiceMelody); n != 1 {
		t.Fatalf("expected 1 melody release, got %d", n)
	}
	if !samePitches(res.Events[0].Pitches, []int{78}) {
		t.Errorf("expected release of 78, got %v", res.Events[0].Pitches)
	}

	t.Run("note-off while silent emits nothing", func(t *testing.T) {
		again := Step(cfg, scale, res.State, frame(1066, detector.ClosedHand(detector.Right, 0.5, 0.5)))
		if n := countEvents(again.Events, EventRelease, VoiceMelody); n != 0 {
			t.Errorf("expected no release, got %d", n)
		}
	})
}

func TestStep_ChordRetrigger(t *testing.T) {
	cfg := DefaultConfig()
	scale := cMajor(t)

	first := Step(cfg, scale, NewState(cfg), frame(1000, detector.ChordHand(0.5, 0.6)))
	if n := countEvents(first.Events, EventAttack, VoiceChord); n != 1 {
		t.Fatalf("frame 1: expected 1 chord attack, got %d", n)
	}
	if !samePitches(first.State.ChordPitches, []int{65, 69, 72, 76}) {
		t.Errorf("expected chord on degree 3, got %v", first.State.ChordPitches)
	}

	second := Step(cfg, scale, first.State, frame(1033, detector.ChordHand(0.5, 0.6)))
	if n := countEvents(second.Events, EventAttack, VoiceChord) + countEvents(second.Events, EventRelease, VoiceChord); n != 0 {
		t.Errorf("frame 2: expected no chord events, got %d", n)
	}

	t.Run("root change releases the exact previous chord first", func(t *testing.T) {
		res := Step(cfg, scale, second.State, frame(1066, detector.ChordHand(0.5, 0.3)))
		if len(res.Events) < 2 {
			t.Fatalf("expected release and attack, got %v", res.Events)
		}
		if res.Events[0].Type != EventRelease || !samePitches(res.Events[0].Pitches, []int{65, 69, 72, 76}) {
			t.Errorf("expected release of previous chord, got %v", res.Events[0])
		}
		if res.Events[1].Type != EventAttack || !samePitches(res.Events[1].Pitches, []int{69, 72, 76, 79}) {
			t.Errorf("expected attack on degree 5, got %v", res.Events[1])
		}
		if res.State.ChordRoot != 5 {
			t.Errorf("expected root 5, got %d", res.State.ChordRoot)
		}
	})
}

func TestStep_ChordGateDrop(t *testing.T) {
	scale := cMajor(t)

	t.Run("held by default", func(t *testing.T) {
		cfg := DefaultConfig()
		res := Step(cfg, scale, NewState(cfg), frame(1000, detector.ChordHand(0.5, 0.6)))
		res = Step(cfg, scale, res.State, frame(1033, detector.ClosedHand(detector.Right, 0.5, 0.6)))
		if n := countEvents(res.Events, EventRelease, VoiceChord); n != 0 {
			t.Errorf("expected chord to outlive its gesture, got %d releases", n)
		}
		if !res.State.ChordActive {
			t.Error("expected chord still held")
		}
	})

	t.Run("released when configured", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ReleaseChordOnGateDrop = true
		res := Step(cfg, scale, NewState(cfg), frame(1000, detector.ChordHand(0.5, 0.6)))
		res = Step(cfg, scale, res.State, frame(1033, detector.ClosedHand(detector.Right, 0.5, 0.6)))
		if n := countEvents(res.Events, EventRelease, VoiceChord); n != 1 {
			t.Errorf("expected 1 chord release, got %d", n)
		}
		if res.State.ChordActive {
			t.Error("expected chord released")
		}
	})
}

func TestStep_GlobalSilence(t *testing.T) {
	cfg := DefaultConfig()
	scale := cMajor(t)

	res := Step(cfg, scale, NewState(cfg), frame(1000, playingHand(0.5, 0.6)))
	if !res.State.MelodyActive || !res.State.ChordActive {
		t.Fatalf("expected both voices sounding, got %+v", res.State)
	}

	res = Step(cfg, scale, res.State, frame(1033))
	if len(res.Events) != 2 {
		t.Fatalf("expected exactly 2 events, got %v", res.Events)
	}
	if res.Events[0].Voice != VoiceMelody || res.Events[0].Type != EventRelease {
		t.Errorf("expected melody release first, got %v", res.Events[0])
	}
	if res.Events[1].Voice != VoiceChord || res.Events[1].Type != EventRelease {
		t.Errorf("expected chord release second, got %v", res.Events[1])
	}
	if !res.State.Silent() {
		t.Errorf("expected silent state, got %+v", res.State)
	}

	t.Run("empty frame while silent emits nothing", func(t *testing.T) {
		again := Step(cfg, scale, res.State, frame(1066))
		if len(again.Events) != 0 {
			t.Errorf("expected no events, got %v", again.Events)
		}
	})
}

func TestStep_AmbiguousHandedness(t *testing.T) {
	cfg := DefaultConfig()
	scale := cMajor(t)

	weak := detector.NewHand(detector.Right, 0.5, 0.5).Place(detector.IndexTip, 0, -0.30, 0).Score(0.6).Build()
	strong := detector.NewHand(detector.Right, 0.5, 0.25).Place(detector.IndexTip, 0, -0.30, 0).Score(0.9).Build()

	res := Step(cfg, scale, NewState(cfg), frame(1000, weak, strong))

	if res.State.MelodyPitch != 81 {
		t.Errorf("expected the stronger hand to play 81, got %d", res.State.MelodyPitch)
	}
	if len(res.Issues) != 1 || !errors.Is(res.Issues[0], ErrAmbiguousHandedness) {
		t.Fatalf("expected one ambiguous-handedness issue, got %v", res.Issues)
	}
	if res.Issues[0].Reason() != "ambiguous" {
		t.Errorf("expected reason ambiguous, got %s", res.Issues[0].Reason())
	}

	t.Run("tie keeps the first hand", func(t *testing.T) {
		tied := detector.NewHand(detector.Right, 0.5, 0.25).Place(detector.IndexTip, 0, -0.30, 0).Score(0.6).Build()
		res := Step(cfg, scale, NewState(cfg), frame(1000, weak, tied))
		if res.State.MelodyPitch != 78 {
			t.Errorf("expected first hand to play 78, got %d", res.State.MelodyPitch)
		}
	})
}

func TestStep_MalformedHandIsAbsent(t *testing.T) {
	cfg := DefaultConfig()
	scale := cMajor(t)

	res := Step(cfg, scale, NewState(cfg), frame(1000, detector.PointingHand(0.5, 0.5)))

	bad := detector.PointingHand(0.5, 0.5)
	bad.Points[detector.IndexTip] = detector.Missing()
	res = Step(cfg, scale, res.State, frame(1033, bad))

	if len(res.Issues) != 1 || !errors.Is(res.Issues[0], detector.ErrMalformedLandmarks) {
		t.Fatalf("expected a malformed-landmarks issue, got %v", res.Issues)
	}
	if n := countEvents(res.Events, EventRelease, VoiceMelody); n != 1 {
		t.Errorf("expected malformed-only frame to act as silence, got %v", res.Events)
	}
	for _, e := range res.Events {
		for _, p := range e.Pitches {
			if p != 78 {
				t.Errorf("unexpected pitch %d in %v", p, e)
			}
		}
	}

	t.Run("other hand still counts", func(t *testing.T) {
		start := Step(cfg, scale, NewState(cfg), frame(1000, detector.PointingHand(0.5, 0.5)))
		res := Step(cfg, scale, start.State, frame(1033, bad, detector.ClosedHand(detector.Left, 0.3, 0.5)))
		if n := countEvents(res.Events, EventRelease, VoiceMelody); n != 0 {
			t.Errorf("expected melody untouched with a left hand visible, got %v", res.Events)
		}
		if res.Left == nil {
			t.Error("expected left hand classified")
		}
	})
}

func TestStep_OutOfFrameRightHand(t *testing.T) {
	cfg := DefaultConfig()
	scale := cMajor(t)

	res := Step(cfg, scale, NewState(cfg), frame(1000, detector.PointingHand(0.5, 0.5)))
	res = Step(cfg, scale, res.State, frame(1033, detector.PointingHand(0.5, 0)))

	if len(res.Events) != 0 {
		t.Errorf("expected no events for an out-of-frame wrist, got %v", res.Events)
	}
	if !res.State.MelodyActive {
		t.Error("expected melody left sounding")
	}
	if res.Right != nil {
		t.Error("expected no right-hand reading")
	}
}

func TestStep_ClampedIndexIsReported(t *testing.T) {
	cfg := DefaultConfig()
	blues, _ := music.Lookup("blues")

	res := Step(cfg, blues, NewState(cfg), frame(1000, detector.SpreadThumbHand(0.5, 0.95)))

	if res.State.MelodyPitch != blues[0] {
		t.Errorf("expected clamped pitch %d, got %d", blues[0], res.State.MelodyPitch)
	}
	if len(res.Issues) != 1 || !errors.Is(res.Issues[0], gesture.ErrOutOfRange) {
		t.Errorf("expected an out-of-range issue, got %v", res.Issues)
	}
}

func TestStep_LeftHandRamps(t *testing.T) {
	cfg := DefaultConfig()
	scale := cMajor(t)

	res := Step(cfg, scale, NewState(cfg), frame(1000, detector.ClosedHand(detector.Left, 0.3, 0.5)))

	want := []struct {
		param Param
		value float64
		ms    int
	}{
		{ParamVolume, -23, 100},
		{ParamFilter, 1, 100},
		{ParamDistortion, 1, 100},
		{ParamPortamento, 70, 0},
	}
	if len(res.Events) != len(want) {
		t.Fatalf("expected %d ramps, got %v", len(want), res.Events)
	}
	for i, w := range want {
		e := res.Events[i]
		if e.Type != EventRamp || e.Param != w.param || e.Value != w.value || e.RampMs != w.ms {
			t.Errorf("event %d: expected %s=%v over %dms, got %v", i, w.param, w.value, w.ms, e)
		}
	}

	t.Run("unchanged targets are not re-sent", func(t *testing.T) {
		again := Step(cfg, scale, res.State, frame(1033, detector.ClosedHand(detector.Left, 0.3, 0.5)))
		if len(again.Events) != 0 {
			t.Errorf("expected no ramps, got %v", again.Events)
		}
	})

	t.Run("current value follows the ramp", func(t *testing.T) {
		mid := Step(cfg, scale, res.State, frame(1050, detector.ClosedHand(detector.Left, 0.3, 0.5)))
		if math.Abs(mid.State.Volume.Current-(-16.5)) > 1e-9 {
			t.Errorf("expected volume -16.5 halfway, got %f", mid.State.Volume.Current)
		}
		done := Step(cfg, scale, mid.State, frame(1200, detector.ClosedHand(detector.Left, 0.3, 0.5)))
		if done.State.Volume.Current != -23 {
			t.Errorf("expected volume -23 after the ramp, got %f", done.State.Volume.Current)
		}
	})

	t.Run("portamento turns off", func(t *testing.T) {
		open := detector.NewHand(detector.Left, 0.3, 0.5).Place(detector.PinkyTip, 0, -0.3, 0).Build()
		off := Step(cfg, scale, res.State, frame(1033, open))
		if len(off.Events) != 1 || off.Events[0].Param != ParamPortamento || off.Events[0].Value != 0 {
			t.Errorf("expected portamento off, got %v", off.Events)
		}
	})
}

func TestStep_PanAndOrdering(t *testing.T) {
	cfg := DefaultConfig()
	scale := cMajor(t)

	res := Step(cfg, scale, NewState(cfg), frame(1000,
		detector.ClosedHand(detector.Left, 0.3, 0.5),
		detector.PointingHand(0.25, 0.5),
	))

	if len(res.Events) < 2 {
		t.Fatalf("expected events, got %v", res.Events)
	}
	if res.Events[0].Type != EventAttack {
		t.Errorf("expected melody attack first, got %v", res.Events[0])
	}
	last := res.Events[len(res.Events)-1]
	if last.Param != ParamPan || math.Abs(last.Value-0.5) > 1e-9 {
		t.Errorf("expected pan ramp 0.5 last, got %v", last)
	}
}

func TestStep_DoesNotMutatePrev(t *testing.T) {
	cfg := DefaultConfig()
	scale := cMajor(t)

	first := Step(cfg, scale, NewState(cfg), frame(1000, detector.ChordHand(0.5, 0.6)))
	before := append([]int(nil), first.State.ChordPitches...)

	Step(cfg, scale, first.State, frame(1033))
	Step(cfg, scale, first.State, frame(1033, detector.ChordHand(0.5, 0.3)))

	if !first.State.ChordActive || !samePitches(first.State.ChordPitches, before) {
		t.Errorf("prev state changed: %+v", first.State)
	}
}

func TestRamp_WithoutTimestamps(t *testing.T) {
	r := newRamp(0)
	if !r.retarget(1, 0, 0.01) {
		t.Fatal("expected retarget")
	}
	r.advance(0, 100)
	if r.Current != 1 {
		t.Errorf("expected immediate completion, got %f", r.Current)
	}
	if r.retarget(1.005, 0, 0.01) {
		t.Error("expected change inside deadband to be ignored")
	}
}
