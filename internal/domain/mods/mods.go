// Package mods contains the gameplay modifier bit flags and game modes shared
// by the rating pipeline, storage and transport layers.
package mods

import "strings"

// Mods is the legacy osu! modifier bit set.
type Mods uint32

// Modifier flags.
const (
	NoFail      Mods = 1 << 0
	Easy        Mods = 1 << 1
	TouchDevice Mods = 1 << 2
	Hidden      Mods = 1 << 3
	HardRock    Mods = 1 << 4
	SuddenDeath Mods = 1 << 5
	DoubleTime  Mods = 1 << 6
	Relax       Mods = 1 << 7
	HalfTime    Mods = 1 << 8
	Nightcore   Mods = 1 << 9
	Flashlight  Mods = 1 << 10
	Autoplay    Mods = 1 << 11
	SpunOut     Mods = 1 << 12
	Autopilot   Mods = 1 << 13
	Perfect     Mods = 1 << 14
)

// Has reports whether every flag in f is set.
func (m Mods) Has(f Mods) bool { return m&f == f }

// IsRelax reports whether the relax flag is set.
func (m Mods) IsRelax() bool { return m.Has(Relax) }

// Normalize forces DoubleTime when Nightcore is present; the engine models
// nightcore as double time.
func (m Mods) Normalize() Mods {
	if m.Has(Nightcore) {
		return m | DoubleTime
	}
	return m
}

var acronyms = []struct {
	flag Mods
	name string
}{
	{NoFail, "NF"}, {Easy, "EZ"}, {TouchDevice, "TD"}, {Hidden, "HD"},
	{HardRock, "HR"}, {SuddenDeath, "SD"}, {DoubleTime, "DT"}, {Relax, "RX"},
	{HalfTime, "HT"}, {Nightcore, "NC"}, {Flashlight, "FL"}, {Autoplay, "AT"},
	{SpunOut, "SO"}, {Autopilot, "AP"}, {Perfect, "PF"},
}

// String renders the flags as concatenated acronyms, e.g. "HDDTRX".
// NC implies DT and PF implies SD, so the implied flag is omitted.
func (m Mods) String() string {
	if m == 0 {
		return "NM"
	}
	var b strings.Builder
	for _, a := range acronyms {
		if !m.Has(a.flag) {
			continue
		}
		if a.flag == DoubleTime && m.Has(Nightcore) {
			continue
		}
		if a.flag == SuddenDeath && m.Has(Perfect) {
			continue
		}
		b.WriteString(a.name)
	}
	return b.String()
}

// Mode is a server game mode. Vanilla modes are 0-3, relax 4-6, autopilot 8.
type Mode int

// Game modes.
const (
	VanillaOsu   Mode = 0
	VanillaTaiko Mode = 1
	VanillaCatch Mode = 2
	VanillaMania Mode = 3
	RelaxOsu     Mode = 4
	RelaxTaiko   Mode = 5
	RelaxCatch   Mode = 6
	AutopilotOsu Mode = 8
)

// AllModes lists every mode the recalculation tool accepts, in run order.
var AllModes = []Mode{
	VanillaOsu, VanillaTaiko, VanillaCatch, VanillaMania,
	RelaxOsu, RelaxTaiko, RelaxCatch, AutopilotOsu,
}

// Valid reports whether m is one of AllModes.
func (m Mode) Valid() bool {
	for _, v := range AllModes {
		if v == m {
			return true
		}
	}
	return false
}

// Ruleset maps a server mode to the underlying ruleset (0 osu, 1 taiko,
// 2 catch, 3 mania).
func (m Mode) Ruleset() int {
	switch m {
	case RelaxOsu, AutopilotOsu:
		return 0
	case RelaxTaiko:
		return 1
	case RelaxCatch:
		return 2
	default:
		return int(m)
	}
}

func (m Mode) String() string {
	switch m {
	case VanillaOsu:
		return "vn!std"
	case VanillaTaiko:
		return "vn!taiko"
	case VanillaCatch:
		return "vn!catch"
	case VanillaMania:
		return "vn!mania"
	case RelaxOsu:
		return "rx!std"
	case RelaxTaiko:
		return "rx!taiko"
	case RelaxCatch:
		return "rx!catch"
	case AutopilotOsu:
		return "ap!std"
	default:
		return "unknown"
	}
}
