// Package testdata embeds recorded landmark frames for end-to-end tests.
// Each file under frames/ holds one JSON detector frame per line.
package testdata

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"

	"github.com/turquoise5/hand-music/internal/detector"
)

//go:embed frames/*.jsonl
var framesFS embed.FS

// LoadRaw returns the raw JSON lines of a recorded sequence, as a browser
// client would send them over the landmarks websocket.
func LoadRaw(name string) ([][]byte, error) {
	data, err := framesFS.ReadFile("frames/" + name + ".jsonl")
	if err != nil {
		return nil, fmt.Errorf("load sequence %s: %w", name, err)
	}

	var lines [][]byte
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read sequence %s: %w", name, err)
	}
	return lines, nil
}

// LoadSequence decodes a recorded sequence into detector frames.
func LoadSequence(name string) ([]detector.Frame, error) {
	lines, err := LoadRaw(name)
	if err != nil {
		return nil, err
	}

	frames := make([]detector.Frame, 0, len(lines))
	for i, line := range lines {
		f, err := detector.DecodeFrame(line)
		if err != nil {
			return nil, fmt.Errorf("sequence %s frame %d: %w", name, i, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}
