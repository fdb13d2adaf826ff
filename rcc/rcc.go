// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rcc exposes the clock gates and reset lines of the STM32F7
// peripheral buses, and the timer kernel clock derivation rules.
package rcc // import "github.com/go-lpc/tim/rcc"

import (
	"fmt"

	"github.com/go-lpc/tim/regs"
)

// Base is the bus address of the RCC register block.
const Base = 0x40023800

// Register offsets, relative to Base.
const (
	APB1RSTR = 0x20
	APB2RSTR = 0x24
	APB1ENR  = 0x40
	APB2ENR  = 0x44
	DCKCFGR1 = 0x8C
)

// Bus identifies a peripheral bus domain.
type Bus uint8

const (
	APB1 Bus = iota + 1
	APB2
)

func (bus Bus) String() string {
	switch bus {
	case APB1:
		return "APB1"
	case APB2:
		return "APB2"
	default:
		return fmt.Sprintf("Bus(%d)", uint8(bus))
	}
}

// Clocks describes the frozen clock tree, as configured by the chip
// initialization code.
type Clocks struct {
	HCLK  Hertz // AHB clock
	PCLK1 Hertz // APB1 clock
	PCLK2 Hertz // APB2 clock
	PPRE1 uint8 // APB1 prescaler: 1, 2, 4, 8 or 16
	PPRE2 uint8 // APB2 prescaler: 1, 2, 4, 8 or 16

	// TIMPRE mirrors DCKCFGR1.TIMPRE.
	TIMPRE bool
}

// Timer returns the kernel clock of the timers sitting on bus.
func (clk Clocks) Timer(bus Bus) Hertz {
	switch bus {
	case APB1:
		return timclk(clk.HCLK, clk.PCLK1, clk.PPRE1, clk.TIMPRE)
	case APB2:
		return timclk(clk.HCLK, clk.PCLK2, clk.PPRE2, clk.TIMPRE)
	default:
		panic(fmt.Errorf("rcc: invalid bus %v", bus))
	}
}

// TimClk1 returns the kernel clock of the APB1 timers.
func (clk Clocks) TimClk1() Hertz { return clk.Timer(APB1) }

// TimClk2 returns the kernel clock of the APB2 timers.
func (clk Clocks) TimClk2() Hertz { return clk.Timer(APB2) }

func timclk(hclk, pclk Hertz, ppre uint8, timpre bool) Hertz {
	if !timpre {
		if ppre <= 1 {
			return pclk
		}
		return 2 * pclk
	}
	switch ppre {
	case 0, 1, 2, 4:
		return hclk
	default:
		return 4 * pclk
	}
}

// Controller drives the enable and reset bits of the APB peripherals.
type Controller struct {
	bus  *regs.Bus
	enr  [2]regs.Reg32
	rstr [2]regs.Reg32
}

// New returns a controller for the RCC block reachable through w.
func New(w regs.Window) *Controller {
	bus := regs.NewBus(w)
	return &Controller{
		bus: bus,
		enr: [2]regs.Reg32{
			bus.Reg32(Base + APB1ENR),
			bus.Reg32(Base + APB2ENR),
		},
		rstr: [2]regs.Reg32{
			bus.Reg32(Base + APB1RSTR),
			bus.Reg32(Base + APB2RSTR),
		},
	}
}

func index(bus Bus) int {
	switch bus {
	case APB1:
		return 0
	case APB2:
		return 1
	default:
		panic(fmt.Errorf("rcc: invalid bus %v", bus))
	}
}

// Enable opens the clock gate of the peripheral at bit on bus.
func (ctl *Controller) Enable(bus Bus, bit uint) {
	ctl.enr[index(bus)].SetBits(1 << bit)
}

// Disable closes the clock gate of the peripheral at bit on bus.
func (ctl *Controller) Disable(bus Bus, bit uint) {
	ctl.enr[index(bus)].ClearBits(1 << bit)
}

// Enabled reports whether the clock gate of the peripheral is open.
func (ctl *Controller) Enabled(bus Bus, bit uint) bool {
	return ctl.enr[index(bus)].HasBits(1 << bit)
}

// Reset pulses the reset line of the peripheral at bit on bus,
// bringing it back to its power-on state.
func (ctl *Controller) Reset(bus Bus, bit uint) {
	rstr := ctl.rstr[index(bus)]
	rstr.SetBits(1 << bit)
	rstr.ClearBits(1 << bit)
}

// Err returns the first register access error, if any.
func (ctl *Controller) Err() error {
	return ctl.bus.Err()
}

// ResetClocks returns the clock tree of the chip out of reset:
// every bus runs from the 16MHz internal oscillator, undivided.
func ResetClocks() Clocks {
	return Clocks{
		HCLK:  MHz(16),
		PCLK1: MHz(16),
		PCLK2: MHz(16),
		PPRE1: 1,
		PPRE2: 1,
	}
}
