// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package channel declares which pins may serve as capture/compare channels
// of which timer, and validates pin assignments against that table.
package channel // import "github.com/go-lpc/tim/channel"

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-lpc/tim/timer"
	"golang.org/x/xerrors"
)

var (
	// ErrNoCapability is returned when a pin cannot drive a timer channel.
	ErrNoCapability = xerrors.New("channel: no such capability")
	// ErrPinInUse is returned when a pin is bound twice.
	ErrPinInUse = xerrors.New("channel: pin in use")
	// ErrChannelInUse is returned when a timer channel is bound twice.
	ErrChannelInUse = xerrors.New("channel: channel in use")
	// ErrInvalidPin is returned for a malformed pin name.
	ErrInvalidPin = xerrors.New("channel: invalid pin")
)

// Pin identifies a GPIO pin: port A..I, number 0..15.
type Pin uint8

const (
	nPorts   = 9
	nPerPort = 16
)

func mkpin(port byte, num uint8) Pin {
	if num >= nPerPort {
		panic(fmt.Errorf("channel: invalid pin number P%c%d", port, num))
	}
	return Pin((port-'A')*nPerPort + num)
}

// PA returns pin n of port A.
func PA(n uint8) Pin { return mkpin('A', n) }
// PB returns pin n of port B.
func PB(n uint8) Pin { return mkpin('B', n) }
// PC returns pin n of port C.
func PC(n uint8) Pin { return mkpin('C', n) }
// PD returns pin n of port D.
func PD(n uint8) Pin { return mkpin('D', n) }
// PE returns pin n of port E.
func PE(n uint8) Pin { return mkpin('E', n) }
// PF returns pin n of port F.
func PF(n uint8) Pin { return mkpin('F', n) }
// PG returns pin n of port G.
func PG(n uint8) Pin { return mkpin('G', n) }
// PH returns pin n of port H.
func PH(n uint8) Pin { return mkpin('H', n) }
// PI returns pin n of port I.
func PI(n uint8) Pin { return mkpin('I', n) }

// Port returns the port letter of the pin.
func (p Pin) Port() byte { return 'A' + byte(p)/nPerPort }

// Num returns the number of the pin within its port.
func (p Pin) Num() uint8 { return uint8(p) % nPerPort }

func (p Pin) String() string {
	return "P" + string(rune(p.Port())) + strconv.Itoa(int(p.Num()))
}

// ParsePin parses a pin name such as "PA8" or "pe14".
func ParsePin(s string) (Pin, error) {
	name := strings.ToUpper(s)
	if len(name) < 3 || name[0] != 'P' || name[1] < 'A' || name[1] >= 'A'+nPorts {
		return 0, xerrors.Errorf("%q: %w", s, ErrInvalidPin)
	}
	num, err := strconv.ParseUint(name[2:], 10, 8)
	if err != nil || num >= nPerPort {
		return 0, xerrors.Errorf("%q: %w", s, ErrInvalidPin)
	}
	return mkpin(name[1], uint8(num)), nil
}

// Channel is a capture/compare channel number.
type Channel uint8

const (
	C1 Channel = iota + 1
	C2
	C3
	C4
)

func (ch Channel) String() string { return "CH" + strconv.Itoa(int(ch)) }

// AF is a GPIO alternate function number.
type AF uint8

const (
	AF0 AF = iota
	AF1
	AF2
	AF3
)

func (af AF) String() string { return "AF" + strconv.Itoa(int(af)) }

// Mode is the electrical mode a pin must be configured in.
type Mode uint8

const (
	Alternate Mode = iota + 1
)

func (m Mode) String() string {
	switch m {
	case Alternate:
		return "alternate"
	default:
		return "Mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// Capability states that Pin, configured in Mode with alternate function AF,
// may be wired to the given channel of Timer.
type Capability struct {
	Timer   string
	Channel Channel
	Pin     Pin
	Mode    Mode
	AF      AF
}

func (c Capability) String() string {
	return fmt.Sprintf("%s/%v: %v (%v %v)", c.Timer, c.Channel, c.Pin, c.Mode, c.AF)
}

// Capabilities returns the whole capability table.
func Capabilities() []Capability {
	out := make([]Capability, len(capabilities))
	copy(out, capabilities)
	return out
}

// Lookup returns the pins that may serve channel ch of the named timer.
func Lookup(tim string, ch Channel) []Capability {
	tim = strings.ToUpper(tim)
	var out []Capability
	for _, c := range capabilities {
		if c.Timer == tim && c.Channel == ch {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the channels of the named timer that pin may serve.
func Find(tim string, pin Pin) []Capability {
	tim = strings.ToUpper(tim)
	var out []Capability
	for _, c := range capabilities {
		if c.Timer == tim && c.Pin == pin {
			out = append(out, c)
		}
	}
	return out
}

// Check reports whether pin, with alternate function af, may be wired to
// channel ch of the named timer.
func Check(tim string, ch Channel, pin Pin, af AF) error {
	for _, c := range Lookup(tim, ch) {
		if c.Pin == pin && c.AF == af {
			return nil
		}
	}
	return xerrors.Errorf("%s/%v on %v (%v): %w", tim, ch, pin, af, ErrNoCapability)
}

// MustCheck is like Check but panics on an invalid wiring.
func MustCheck(tim string, ch Channel, pin Pin, af AF) {
	if err := Check(tim, ch, pin, af); err != nil {
		panic(err)
	}
}

// Binding assigns a pin to a timer channel on a board.
type Binding struct {
	Timer   string
	Channel Channel
	Pin     Pin
	AF      AF
}

func (b Binding) String() string {
	return fmt.Sprintf("%s/%v=%v:%v", b.Timer, b.Channel, b.Pin, b.AF)
}

// Validate checks a board pin assignment: every binding must match a
// capability, a pin may only be wired once and a channel may only be
// driven by one pin.
func Validate(bs []Binding) error {
	var (
		pins = make(map[Pin]Binding, len(bs))
		chs  = make(map[string]Binding, len(bs))
	)
	for _, b := range bs {
		err := Check(b.Timer, b.Channel, b.Pin, b.AF)
		if err != nil {
			return xerrors.Errorf("could not validate binding %v: %w", b, err)
		}
		if prev, dup := pins[b.Pin]; dup {
			return xerrors.Errorf("binding %v conflicts with %v: %w", b, prev, ErrPinInUse)
		}
		pins[b.Pin] = b

		key := strings.ToUpper(b.Timer) + "/" + b.Channel.String()
		if prev, dup := chs[key]; dup {
			return xerrors.Errorf("binding %v conflicts with %v: %w", b, prev, ErrChannelInUse)
		}
		chs[key] = b
	}
	return nil
}

func init() {
	if err := selfCheck(capabilities); err != nil {
		panic(err)
	}
}

// selfCheck verifies the table against the timer instances of the chip.
func selfCheck(cs []Capability) error {
	for _, c := range cs {
		inst, ok := timer.Lookup(c.Timer)
		if !ok {
			return xerrors.Errorf("channel: capability %v: unknown timer", c)
		}
		if c.Channel < C1 || int(c.Channel) > inst.Channels {
			return xerrors.Errorf(
				"channel: capability %v: %s has %d channels",
				c, inst.Name, inst.Channels,
			)
		}
		if c.Mode != Alternate {
			return xerrors.Errorf("channel: capability %v: invalid mode", c)
		}
	}
	return nil
}
