// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sim simulates the RCC and timer blocks of an STM32F7 at the
// register level.
package sim // import "github.com/go-lpc/tim/internal/sim"

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/go-lpc/tim/rcc"
	"github.com/go-lpc/tim/timer"
)

const rccSpan = 0x400

// Bus is a simulated peripheral bus.
// Bus implements io.ReaderAt and io.WriterAt over absolute addresses.
type Bus struct {
	mu     sync.Mutex
	rcc    map[int64]uint32
	blocks []*block
	irq    func(name string)
}

type block struct {
	inst timer.Instance
	regs map[int64]uint32

	cr1  uint32
	dier uint32
	sr   uint32
	cnt  uint32
	psc  uint32
	arr  uint32

	shadow    uint32 // prescaler value in use by the counter
	div       uint64 // prescaler counter
	rollovers int
}

// New returns a bus with every timer block held in reset state.
func New() *Bus {
	bus := &Bus{
		rcc: make(map[int64]uint32),
	}
	for _, inst := range timer.Instances() {
		blk := &block{inst: inst}
		blk.reset()
		bus.blocks = append(bus.blocks, blk)
	}
	return bus
}

// OnInterrupt registers the handler invoked for each update interrupt
// raised by a timer with UIE set.
func (bus *Bus) OnInterrupt(f func(name string)) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.irq = f
}

func (blk *block) reset() {
	blk.regs = make(map[int64]uint32)
	blk.cr1 = 0
	blk.dier = 0
	blk.sr = 0
	blk.cnt = 0
	blk.psc = 0
	blk.arr = blk.mask()
	blk.shadow = 0
	blk.div = 0
}

func (blk *block) mask() uint32 {
	if blk.inst.Width >= 32 {
		return 0xffffffff
	}
	return 1<<blk.inst.Width - 1
}

func (bus *Bus) clocked(blk *block) bool {
	var enr, rstr int64
	switch blk.inst.Bus {
	case rcc.APB1:
		enr, rstr = rcc.APB1ENR, rcc.APB1RSTR
	case rcc.APB2:
		enr, rstr = rcc.APB2ENR, rcc.APB2RSTR
	}
	bit := uint32(1) << blk.inst.Bit
	return bus.rcc[enr]&bit != 0 && bus.rcc[rstr]&bit == 0
}

func (bus *Bus) decode(addr int64) (*block, int64, error) {
	if addr&3 != 0 {
		return nil, 0, fmt.Errorf("sim: unaligned address 0x%x", addr)
	}
	if rcc.Base <= addr && addr < rcc.Base+rccSpan {
		return nil, addr - rcc.Base, nil
	}
	for _, blk := range bus.blocks {
		if blk.inst.Base <= addr && addr < blk.inst.Base+timer.BlockSpan {
			return blk, addr - blk.inst.Base, nil
		}
	}
	return nil, 0, fmt.Errorf("sim: invalid address 0x%x", addr)
}

// ReadAt implements io.ReaderAt. Only 32-bit accesses are supported.
func (bus *Bus) ReadAt(p []byte, addr int64) (int, error) {
	if len(p) != 4 {
		return 0, fmt.Errorf("sim: invalid access size %d", len(p))
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()

	blk, off, err := bus.decode(addr)
	if err != nil {
		return 0, err
	}

	var v uint32
	switch {
	case blk == nil:
		v = bus.rcc[off]
	case bus.clocked(blk):
		v = blk.read(off)
	}
	binary.LittleEndian.PutUint32(p, v)
	return 4, nil
}

// WriteAt implements io.WriterAt. Only 32-bit accesses are supported.
func (bus *Bus) WriteAt(p []byte, addr int64) (int, error) {
	if len(p) != 4 {
		return 0, fmt.Errorf("sim: invalid access size %d", len(p))
	}
	v := binary.LittleEndian.Uint32(p)

	bus.mu.Lock()
	blk, off, err := bus.decode(addr)
	if err != nil {
		bus.mu.Unlock()
		return 0, err
	}

	var irqs []string
	switch {
	case blk == nil:
		bus.writeRCC(off, v)
	case bus.clocked(blk):
		irqs = blk.write(off, v)
	}
	irq := bus.irq
	bus.mu.Unlock()

	bus.raise(irq, irqs)
	return 4, nil
}

func (bus *Bus) writeRCC(off int64, v uint32) {
	bus.rcc[off] = v

	var dom rcc.Bus
	switch off {
	case rcc.APB1RSTR:
		dom = rcc.APB1
	case rcc.APB2RSTR:
		dom = rcc.APB2
	default:
		return
	}
	for _, blk := range bus.blocks {
		if blk.inst.Bus == dom && v&(1<<blk.inst.Bit) != 0 {
			blk.reset()
		}
	}
}

func (blk *block) read(off int64) uint32 {
	switch off {
	case timer.RegCR1:
		return blk.cr1
	case timer.RegDIER:
		return blk.dier
	case timer.RegSR:
		return blk.sr
	case timer.RegEGR:
		return 0
	case timer.RegCNT:
		return blk.cnt
	case timer.RegPSC:
		return blk.psc
	case timer.RegARR:
		return blk.arr
	default:
		return blk.regs[off]
	}
}

func (blk *block) write(off int64, v uint32) []string {
	switch off {
	case timer.RegCR1:
		blk.cr1 = v & 0x3ff
	case timer.RegDIER:
		blk.dier = v
	case timer.RegSR:
		blk.sr &= v
	case timer.RegEGR:
		if v&timer.UG != 0 {
			return blk.update(false)
		}
	case timer.RegCNT:
		blk.cnt = v & blk.mask()
	case timer.RegPSC:
		blk.psc = v & 0xffff
	case timer.RegARR:
		blk.arr = v & blk.mask()
	default:
		blk.regs[off] = v
	}
	return nil
}

// update performs an update event: reload the prescaler, restart the
// counter and raise UIF.
func (blk *block) update(rollover bool) []string {
	blk.cnt = 0
	blk.div = 0
	blk.shadow = blk.psc
	blk.sr |= timer.UIF
	if rollover {
		blk.rollovers++
	}
	if blk.dier&timer.UIE != 0 {
		return []string{blk.inst.Name}
	}
	return nil
}

// Tick advances every running timer by n kernel clock cycles.
func (bus *Bus) Tick(n uint64) {
	bus.tick(0, n)
}

// TickBus advances the running timers of the dom bus by n kernel clock cycles.
func (bus *Bus) TickBus(dom rcc.Bus, n uint64) {
	bus.tick(dom, n)
}

func (bus *Bus) tick(dom rcc.Bus, n uint64) {
	bus.mu.Lock()
	var irqs []string
	for _, blk := range bus.blocks {
		if dom != 0 && blk.inst.Bus != dom {
			continue
		}
		if !bus.clocked(blk) || blk.cr1&timer.CEN == 0 {
			continue
		}
		irqs = append(irqs, blk.advance(n)...)
	}
	irq := bus.irq
	bus.mu.Unlock()

	bus.raise(irq, irqs)
}

func (blk *block) advance(n uint64) []string {
	var irqs []string
	for n > 0 {
		if blk.arr == 0 {
			// counter is blocked.
			return irqs
		}
		var (
			per = uint64(blk.shadow) + 1
			top = uint64(blk.arr)
		)
		if uint64(blk.cnt) > top {
			top = uint64(blk.mask())
		}
		next := (top-uint64(blk.cnt))*per + (per - blk.div)
		if n < next {
			adv := blk.div + n
			blk.cnt += uint32(adv / per)
			blk.div = adv % per
			return irqs
		}
		n -= next
		irqs = append(irqs, blk.update(true)...)
	}
	return irqs
}

func (bus *Bus) raise(irq func(name string), irqs []string) {
	if irq == nil {
		return
	}
	for _, name := range irqs {
		irq(name)
	}
}

func (bus *Bus) lookup(name string) *block {
	inst, ok := timer.Lookup(name)
	if !ok {
		panic(fmt.Errorf("sim: unknown timer %q", name))
	}
	for _, blk := range bus.blocks {
		if blk.inst.Name == inst.Name {
			return blk
		}
	}
	panic("unreachable")
}

// Rollovers returns the number of counter rollovers of the named timer.
func (bus *Bus) Rollovers(name string) int {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return bus.lookup(name).rollovers
}

// Reg returns the raw value of the register at off of the named timer,
// regardless of its clock gate.
func (bus *Bus) Reg(name string, off int64) uint32 {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return bus.lookup(name).read(off)
}

// Prescaler returns the prescaler value in use by the counter of the
// named timer.
func (bus *Bus) Prescaler(name string) uint32 {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return bus.lookup(name).shadow
}

// RCC returns the raw value of the RCC register at off.
func (bus *Bus) RCC(off int64) uint32 {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return bus.rcc[off]
}
