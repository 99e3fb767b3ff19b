package detector

import (
	"encoding/json"
	"fmt"
)

// wireHand is the JSON shape produced by the MediaPipe service and by
// browser-side detectors. Points may be short or contain nulls.
type wireHand struct {
	Points     []*wirePoint `json:"points"`
	Handedness string       `json:"handedness"`
	Score      float64      `json:"score"`
}

type wirePoint struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

type wireFrame struct {
	Hands     []wireHand `json:"hands"`
	Timestamp int64      `json:"timestamp"`
}

// DecodeFrame parses a JSON detector frame. Absent points or coordinates are
// decoded as NaN so that Validate rejects the hand instead of the whole frame.
func DecodeFrame(data []byte) (Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(data, &wf); err != nil {
		return Frame{}, fmt.Errorf("parse frame: %w", err)
	}

	frame := Frame{
		Hands:     make([]HandLandmarks, 0, len(wf.Hands)),
		Timestamp: wf.Timestamp,
	}
	for _, h := range wf.Hands {
		frame.Hands = append(frame.Hands, h.toHandLandmarks())
	}
	return frame, nil
}

func (h wireHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	for i := 0; i < NumLandmarks; i++ {
		if i >= len(h.Points) || h.Points[i] == nil {
			lm.Points[i] = Missing()
			continue
		}
		lm.Points[i] = h.Points[i].toPoint()
	}
	return lm
}

func (p *wirePoint) toPoint() Point3D {
	m := Missing()
	if p.X != nil {
		m.X = *p.X
	}
	if p.Y != nil {
		m.Y = *p.Y
	}
	if p.Z != nil {
		m.Z = *p.Z
	} else {
		// z is optional in 2-D detector output.
		m.Z = 0
	}
	return m
}

// FilterHands drops hands scored below minConfidence and keeps at most maxHands,
// preserving detector order.
func FilterHands(hands []HandLandmarks, cfg Config) []HandLandmarks {
	out := hands[:0:0]
	for _, h := range hands {
		if h.Score < cfg.MinConfidence {
			continue
		}
		if cfg.MaxHands > 0 && len(out) >= cfg.MaxHands {
			break
		}
		out = append(out, h)
	}
	return out
}
