// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timer

import (
	"fmt"

	"github.com/go-lpc/tim/rcc"
)

// Prescaler holds the PSC/ARR register pair producing one rollover
// per period.
type Prescaler struct {
	PSC uint16 // clock divider minus one
	ARR uint32 // reload value (counter top)
}

// Ticks returns the number of kernel clock cycles per rollover.
func (p Prescaler) Ticks() uint64 {
	return (uint64(p.PSC) + 1) * (uint64(p.ARR) + 1)
}

// Rate returns the rollover frequency obtained from clock.
func (p Prescaler) Rate(clock rcc.Hertz) rcc.Hertz {
	return rcc.Hertz(uint64(clock) / p.Ticks())
}

// Prescale splits clock/timeout kernel cycles into the smallest prescaler
// that lets the reload value fit the 16-bit counter.
func Prescale(clock, timeout rcc.Hertz) (Prescaler, error) {
	if timeout == 0 {
		return Prescaler{}, fmt.Errorf("%w: zero timeout", ErrRange)
	}
	ticks := uint64(clock) / uint64(timeout)
	if ticks < 2 {
		return Prescaler{}, fmt.Errorf(
			"%w: timeout=%v too high for clock=%v", ErrRange, timeout, clock,
		)
	}
	psc := (ticks - 1) >> 16
	if psc > 0xffff {
		return Prescaler{}, fmt.Errorf(
			"%w: timeout=%v too low for clock=%v", ErrRange, timeout, clock,
		)
	}
	arr := ticks/(psc+1) - 1
	return Prescaler{PSC: uint16(psc), ARR: uint32(arr)}, nil
}
