// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package board opens the peripheral address space used by the tim commands,
// either from a memory device file or from the simulator.
package board // import "github.com/go-lpc/tim/internal/board"

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-lpc/tim/internal/mmap"
	"github.com/go-lpc/tim/internal/sim"
	"github.com/go-lpc/tim/rcc"
	"github.com/go-lpc/tim/regs"
	"github.com/go-lpc/tim/timer"
)

// Peripheral region covering the timer blocks and the RCC block.
const (
	PeriphBase = 0x40000000
	PeriphSpan = 0x24000
)

// Board is the peripheral address space of one chip.
type Board struct {
	msg *log.Logger

	w      regs.Window
	sim    *sim.Bus
	closer io.Closer

	RCC    *rcc.Controller
	Periph *timer.Peripherals
	Clocks rcc.Clocks
}

// Open maps the peripherals of the chip from the device file devmem.
func Open(devmem string, clocks rcc.Clocks) (*Board, error) {
	w, err := mmap.Open(devmem, PeriphBase, PeriphSpan)
	if err != nil {
		return nil, fmt.Errorf("board: could not map peripherals: %w", err)
	}
	brd := New(w, clocks)
	brd.closer = w
	brd.msg.Printf("mapped %q [0x%x, 0x%x)", devmem, PeriphBase, PeriphBase+PeriphSpan)
	return brd, nil
}

// Sim returns a simulated chip. Its clock is frozen until Advance or
// RunClock is called.
func Sim(clocks rcc.Clocks) *Board {
	dev := sim.New()
	brd := New(dev, clocks)
	brd.sim = dev
	return brd
}

// New returns a board driving the peripherals reachable through w.
func New(w regs.Window, clocks rcc.Clocks) *Board {
	return &Board{
		msg:    log.New(os.Stdout, "board: ", 0),
		w:      w,
		RCC:    rcc.New(w),
		Periph: timer.NewPeripherals(w),
		Clocks: clocks,
	}
}

// Window returns the register window of the board.
func (brd *Board) Window() regs.Window { return brd.w }

// Simulated reports whether the board is the simulator.
func (brd *Board) Simulated() bool { return brd.sim != nil }

// OnInterrupt registers the update interrupt handler of the simulator.
// Interrupts of a real chip are not delivered to user space.
func (brd *Board) OnInterrupt(f func(name string)) bool {
	if brd.sim == nil {
		return false
	}
	brd.sim.OnInterrupt(f)
	return true
}

// Advance moves the simulated time forward by d.
func (brd *Board) Advance(d time.Duration) {
	if brd.sim == nil || d <= 0 {
		return
	}
	brd.sim.TickBus(rcc.APB1, cycles(brd.Clocks.TimClk1(), d))
	brd.sim.TickBus(rcc.APB2, cycles(brd.Clocks.TimClk2(), d))
}

// RunClock advances the simulated time along the wall clock, until ctx
// is done.
func (brd *Board) RunClock(ctx context.Context) {
	if brd.sim == nil {
		return
	}

	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			brd.Advance(now.Sub(last))
			last = now
		}
	}
}

// NewTimer claims the named timer block and starts it with timeout.
func (brd *Board) NewTimer(name string, timeout rcc.Hertz, opts ...timer.Option) (*timer.Timer, error) {
	blk, err := brd.Periph.Take(name)
	if err != nil {
		return nil, fmt.Errorf("board: could not take %q: %w", name, err)
	}

	if _, err := timer.Prescale(brd.Clocks.Timer(blk.Instance().Bus), timeout); err != nil {
		_ = brd.Periph.Release(blk)
		return nil, fmt.Errorf("board: could not configure %s: %w", blk.Instance().Name, err)
	}

	tim := timer.New(blk, timeout, brd.Clocks, brd.RCC, opts...)
	err = brd.RCC.Err()
	if err == nil {
		err = tim.Err()
	}
	if err != nil {
		_ = brd.FreeTimer(tim)
		return nil, fmt.Errorf("board: could not start %s: %w", blk.Instance().Name, err)
	}
	return tim, nil
}

// FreeTimer stops the timer and gives its block back.
func (brd *Board) FreeTimer(tim *timer.Timer) error {
	return brd.Periph.Release(tim.Free())
}

// Close unmaps the peripherals.
func (brd *Board) Close() error {
	if brd.closer == nil {
		return nil
	}
	return brd.closer.Close()
}

// Uniform returns a clock tree where every bus runs undivided at f.
func Uniform(f rcc.Hertz) rcc.Clocks {
	return rcc.Clocks{
		HCLK:  f,
		PCLK1: f,
		PCLK2: f,
		PPRE1: 1,
		PPRE2: 1,
	}
}

func cycles(f rcc.Hertz, d time.Duration) uint64 {
	var (
		sec  = uint64(d / time.Second)
		frac = uint64(d % time.Second)
	)
	return uint64(f)*sec + uint64(f)*frac/uint64(time.Second)
}

// Select returns a simulated board when simulate is set, and maps the
// peripherals from devmem otherwise.
func Select(simulate bool, devmem string, clocks rcc.Clocks) (*Board, error) {
	if simulate {
		return Sim(clocks), nil
	}
	return Open(devmem, clocks)
}
