package performance

// Ramp tracks one continuous parameter moving linearly from From to Target,
// starting at Started (Unix ms). Current is the value at the last frame.
type Ramp struct {
	From    float64
	Target  float64
	Current float64
	Started int64
}

func newRamp(v float64) Ramp {
	return Ramp{From: v, Target: v, Current: v}
}

// advance moves Current to its position at now. Without usable timestamps
// the ramp completes immediately.
func (r *Ramp) advance(now int64, durationMs int) {
	if r.Current == r.Target {
		return
	}
	elapsed := now - r.Started
	if now <= 0 || r.Started <= 0 || durationMs <= 0 || elapsed >= int64(durationMs) {
		r.Current = r.Target
		return
	}
	if elapsed <= 0 {
		return
	}
	r.Current = r.From + (r.Target-r.From)*float64(elapsed)/float64(durationMs)
}

// retarget starts a new ramp toward target when it lies outside the
// deadband around the current target. It reports whether it did.
func (r *Ramp) retarget(target float64, now int64, deadband float64) bool {
	d := target - r.Target
	if d < 0 {
		d = -d
	}
	if d <= deadband {
		return false
	}
	r.From = r.Current
	r.Target = target
	r.Started = now
	return true
}

// State is everything a session remembers between frames.
type State struct {
	MelodyActive bool
	MelodyPitch  int

	ChordActive  bool
	ChordRoot    int
	ChordPitches []int

	Volume     Ramp
	Pan        Ramp
	Filter     Ramp
	Distortion Ramp
	Tremolo    Ramp
	Portamento bool

	// LastFrame is the timestamp of the most recent frame, Unix ms.
	LastFrame int64
}

// NewState returns a silent state with parameters at their session defaults.
func NewState(cfg Config) State {
	return State{
		Volume:     newRamp(cfg.InitialVolumeDb),
		Pan:        newRamp(0),
		Filter:     newRamp(0),
		Distortion: newRamp(0),
		Tremolo:    newRamp(0),
	}
}

// Silent reports whether neither voice is sounding.
func (s State) Silent() bool {
	return !s.MelodyActive && !s.ChordActive
}

func (s State) clone() State {
	out := s
	if s.ChordPitches != nil {
		out.ChordPitches = append([]int(nil), s.ChordPitches...)
	}
	return out
}

func (s *State) ramps() []*Ramp {
	return []*Ramp{&s.Volume, &s.Pan, &s.Filter, &s.Distortion, &s.Tremolo}
}
