// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package timer drives the general-purpose timers of an STM32F7 as periodic
// count-down timers.
//
// A Timer owns the register block of one timer instance. It is configured
// with a timeout frequency and either polled with Wait or, once Listen has
// unmasked the update interrupt, serviced from an interrupt handler that
// calls ClearInterrupt.
//
// A Timer is not safe for concurrent use.
package timer // import "github.com/go-lpc/tim/timer"

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-lpc/tim/rcc"
)

const (
	verbose = false
)

var (
	// ErrDisabled is returned when cancelling a timer that is not running.
	ErrDisabled = errors.New("timer: disabled")

	// ErrWouldBlock is returned by Wait while the timeout has not elapsed.
	ErrWouldBlock = errors.New("timer: would block")

	// ErrRange is returned when a timeout cannot be produced from a clock.
	ErrRange = errors.New("timer: out of range")

	// ErrInUse is returned when taking a block that is already owned.
	ErrInUse = errors.New("timer: block in use")

	// ErrUnknown is returned for a timer name that is not on the chip.
	ErrUnknown = errors.New("timer: unknown instance")
)

// Event is an interrupt source of a timer.
type Event uint8

const (
	// TimeOut fires when the counter rolls over.
	TimeOut Event = iota
)

func (evt Event) String() string {
	switch evt {
	case TimeOut:
		return "timeout"
	default:
		return fmt.Sprintf("Event(%d)", uint8(evt))
	}
}

// Gate enables and resets the peripherals of a bus.
type Gate interface {
	Enable(bus rcc.Bus, bit uint)
	Reset(bus rcc.Bus, bit uint)
}

// ClockSource resolves the kernel clock of the timers of a bus.
type ClockSource interface {
	Timer(bus rcc.Bus) rcc.Hertz
}

var (
	_ Gate        = (*rcc.Controller)(nil)
	_ ClockSource = rcc.Clocks{}
)

// Timer is a periodic count-down timer.
type Timer struct {
	msg *log.Logger
	blk *Block

	clock   rcc.Hertz
	timeout rcc.Hertz
	cfg     Prescaler
}

// New enables and resets the timer block, then starts it with timeout.
// New panics if timeout cannot be produced from the kernel clock.
func New(blk *Block, timeout rcc.Hertz, clocks ClockSource, gate Gate, opts ...Option) *Timer {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	inst := blk.inst
	gate.Enable(inst.Bus, inst.Bit)
	gate.Reset(inst.Bus, inst.Bit)

	tim := &Timer{
		msg:   cfg.msg,
		blk:   blk,
		clock: clocks.Timer(inst.Bus),
	}
	tim.msg.Printf("%s: bus=%v, clock=%v", inst.Name, inst.Bus, tim.clock)

	tim.Start(timeout)
	return tim
}

// Start (re)configures the timer to roll over at the timeout frequency and
// starts counting.
// Start panics if timeout cannot be produced from the kernel clock.
func (tim *Timer) Start(timeout rcc.Hertz) {
	tim.disable()

	tim.timeout = timeout
	cfg, err := Prescale(tim.clock, timeout)
	if err != nil {
		panic(fmt.Errorf("timer: %s: could not start: %w", tim.blk.inst.Name, err))
	}
	tim.cfg = cfg
	if verbose {
		tim.msg.Printf("%s: timeout=%v, psc=%d, arr=%d", tim.blk.inst.Name, timeout, cfg.PSC, cfg.ARR)
	}

	tim.blk.psc.Set(uint32(cfg.PSC))
	tim.blk.arr.Set(cfg.ARR)

	// load the prescaler now rather than at the next rollover.
	// this raises UIF, which does not mean the timeout elapsed.
	tim.blk.egr.Set(UG)
	tim.blk.sr.Set(^uint32(UIF))

	tim.enable()
}

// Wait reports whether the timeout elapsed since the previous successful
// call. Wait never blocks: it returns ErrWouldBlock until the next rollover.
func (tim *Timer) Wait() error {
	if !tim.blk.sr.HasBits(UIF) {
		return ErrWouldBlock
	}
	tim.blk.sr.Set(^uint32(UIF))
	return nil
}

// WaitContext polls Wait every poll interval until the timeout elapses,
// the context is done or a register access fails.
func (tim *Timer) WaitContext(ctx context.Context, poll time.Duration) error {
	if poll <= 0 {
		poll = time.Millisecond
	}

	err := tim.Wait()
	if !errors.Is(err, ErrWouldBlock) {
		return err
	}

	tick := time.NewTicker(poll)
	defer tick.Stop()

	for {
		if err := tim.blk.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
		err := tim.Wait()
		if !errors.Is(err, ErrWouldBlock) {
			return err
		}
	}
}

// Cancel stops the counter.
// Cancel fails with ErrDisabled if the counter was not running.
func (tim *Timer) Cancel() error {
	if !tim.blk.cr1.HasBits(CEN) {
		return ErrDisabled
	}
	tim.disable()
	return nil
}

// Listen unmasks the interrupt of evt.
func (tim *Timer) Listen(evt Event) {
	switch evt {
	case TimeOut:
		tim.blk.dier.SetBits(UIE)
	default:
		panic(fmt.Errorf("timer: invalid event %v", evt))
	}
}

// Unlisten masks the interrupt of evt.
func (tim *Timer) Unlisten(evt Event) {
	switch evt {
	case TimeOut:
		tim.blk.dier.ClearBits(UIE)
	default:
		panic(fmt.Errorf("timer: invalid event %v", evt))
	}
}

// ClearInterrupt clears the pending flag of evt.
//
// Interrupt handlers must call ClearInterrupt, otherwise the interrupt
// fires again as soon as the handler returns.
func (tim *Timer) ClearInterrupt(evt Event) {
	switch evt {
	case TimeOut:
		tim.blk.sr.Set(^uint32(UIF))
	default:
		panic(fmt.Errorf("timer: invalid event %v", evt))
	}
}

// Pending reports whether the flag of evt is set, without clearing it.
func (tim *Timer) Pending(evt Event) bool {
	switch evt {
	case TimeOut:
		return tim.blk.sr.HasBits(UIF)
	default:
		panic(fmt.Errorf("timer: invalid event %v", evt))
	}
}

// Listening reports whether the interrupt of evt is unmasked.
func (tim *Timer) Listening(evt Event) bool {
	switch evt {
	case TimeOut:
		return tim.blk.dier.HasBits(UIE)
	default:
		panic(fmt.Errorf("timer: invalid event %v", evt))
	}
}

// Free stops the counter and gives back the register block.
// The timer must not be used afterwards.
func (tim *Timer) Free() *Block {
	tim.disable()
	blk := tim.blk
	tim.blk = nil
	tim.msg.Printf("%s: released", blk.inst.Name)
	return blk
}

// Name returns the name of the timer instance.
func (tim *Timer) Name() string { return tim.blk.inst.Name }

// Clock returns the kernel clock feeding the timer.
func (tim *Timer) Clock() rcc.Hertz { return tim.clock }

// Timeout returns the last configured timeout frequency.
func (tim *Timer) Timeout() rcc.Hertz { return tim.timeout }

// Config returns the prescaler and reload values of the last Start.
func (tim *Timer) Config() Prescaler { return tim.cfg }

// Counter returns the current value of the counter.
func (tim *Timer) Counter() uint32 { return tim.blk.Counter() }

// Running reports whether the counter is enabled.
func (tim *Timer) Running() bool { return tim.blk.Running() }

// Err returns the first register access error, if any.
func (tim *Timer) Err() error { return tim.blk.Err() }

func (tim *Timer) enable() {
	tim.blk.cr1.SetBits(CEN)
}

func (tim *Timer) disable() {
	tim.blk.cr1.ClearBits(CEN)
}
