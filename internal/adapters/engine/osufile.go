package engine

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

const formatHeader = "osu file format v"

// Parse reads the header and [General]/[Difficulty] sections of a .osu file.
// Hit objects are left to the engine.
func Parse(data []byte) (*Beatmap, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	bm := &Beatmap{Data: data, CircleSize: 5, ApproachRate: -1, OverallDifficulty: 5, HPDrainRate: 5}

	headerSeen := false
	section := ""
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !headerSeen {
			line = strings.TrimPrefix(line, "\ufeff")
			if line == "" {
				continue
			}
			v, ok := strings.CutPrefix(line, formatHeader)
			if !ok {
				return nil, fmt.Errorf("%w: missing format header", ErrMalformedBeatmap)
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("%w: format version %q", ErrMalformedBeatmap, v)
			}
			bm.FormatVersion = n
			headerSeen = true
			continue
		}
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = line[1 : len(line)-1]
			if section == "HitObjects" {
				break
			}
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		switch section {
		case "General":
			if key == "Mode" {
				n, err := strconv.Atoi(val)
				if err != nil {
					return nil, fmt.Errorf("%w: mode %q", ErrMalformedBeatmap, val)
				}
				bm.Mode = n
			}
		case "Difficulty":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				continue
			}
			switch key {
			case "CircleSize":
				bm.CircleSize = f
			case "ApproachRate":
				bm.ApproachRate = f
			case "OverallDifficulty":
				bm.OverallDifficulty = f
			case "HPDrainRate":
				bm.HPDrainRate = f
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedBeatmap, err)
	}
	if !headerSeen {
		return nil, fmt.Errorf("%w: empty file", ErrMalformedBeatmap)
	}
	// Old maps have no ApproachRate; it follows OverallDifficulty.
	if bm.ApproachRate < 0 {
		bm.ApproachRate = bm.OverallDifficulty
	}
	return bm, nil
}
