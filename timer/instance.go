// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timer

import (
	"strings"

	"github.com/go-lpc/tim/rcc"
)

// Instance describes one timer block of the chip.
type Instance struct {
	Name     string  // TIMx
	Base     int64   // bus address of the register block
	Bus      rcc.Bus // bus domain feeding the kernel clock
	Bit      uint    // enable/reset bit in RCC APBxENR/APBxRSTR
	Channels int     // number of capture/compare channels
	Width    uint    // counter width, in bits
}

var instances = [...]Instance{
	{Name: "TIM2", Base: 0x40000000, Bus: rcc.APB1, Bit: 0, Channels: 4, Width: 32},
	{Name: "TIM3", Base: 0x40000400, Bus: rcc.APB1, Bit: 1, Channels: 4, Width: 16},
	{Name: "TIM4", Base: 0x40000800, Bus: rcc.APB1, Bit: 2, Channels: 4, Width: 16},
	{Name: "TIM5", Base: 0x40000c00, Bus: rcc.APB1, Bit: 3, Channels: 4, Width: 32},
	{Name: "TIM6", Base: 0x40001000, Bus: rcc.APB1, Bit: 4, Channels: 0, Width: 16},
	{Name: "TIM7", Base: 0x40001400, Bus: rcc.APB1, Bit: 5, Channels: 0, Width: 16},
	{Name: "TIM12", Base: 0x40001800, Bus: rcc.APB1, Bit: 6, Channels: 2, Width: 16},
	{Name: "TIM13", Base: 0x40001c00, Bus: rcc.APB1, Bit: 7, Channels: 1, Width: 16},
	{Name: "TIM14", Base: 0x40002000, Bus: rcc.APB1, Bit: 8, Channels: 1, Width: 16},

	{Name: "TIM1", Base: 0x40010000, Bus: rcc.APB2, Bit: 0, Channels: 4, Width: 16},
	{Name: "TIM8", Base: 0x40010400, Bus: rcc.APB2, Bit: 1, Channels: 4, Width: 16},
	{Name: "TIM9", Base: 0x40014000, Bus: rcc.APB2, Bit: 16, Channels: 2, Width: 16},
	{Name: "TIM10", Base: 0x40014400, Bus: rcc.APB2, Bit: 17, Channels: 1, Width: 16},
	{Name: "TIM11", Base: 0x40014800, Bus: rcc.APB2, Bit: 18, Channels: 1, Width: 16},
}

// BlockSpan is the size of the address range decoded by a timer block.
const BlockSpan = 0x400

// Instances returns the timer blocks of the chip.
func Instances() []Instance {
	out := make([]Instance, len(instances))
	copy(out, instances[:])
	return out
}

// Lookup returns the timer block named name (e.g. "TIM2" or "tim2").
func Lookup(name string) (Instance, bool) {
	name = strings.ToUpper(name)
	for _, inst := range instances {
		if inst.Name == name {
			return inst, true
		}
	}
	return Instance{}, false
}
