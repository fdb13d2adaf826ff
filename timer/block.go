// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timer

import (
	"fmt"
	"sync"

	"github.com/go-lpc/tim/regs"
)

// Register offsets of a timer block, relative to Instance.Base.
const (
	RegCR1  = 0x00
	RegCR2  = 0x04
	RegSMCR = 0x08
	RegDIER = 0x0c
	RegSR   = 0x10
	RegEGR  = 0x14
	RegCNT  = 0x24
	RegPSC  = 0x28
	RegARR  = 0x2c
)

// Register fields.
const (
	CEN = 1 << 0 // CR1: counter enable
	UIE = 1 << 0 // DIER: update interrupt enable
	UIF = 1 << 0 // SR: update interrupt flag, rc_w0
	UG  = 1 << 0 // EGR: update generation
)

// Block is the register block of one timer instance.
//
// A Block is handed out at most once by Peripherals: its holder is the only
// writer of the block's control registers until it gives it back.
type Block struct {
	inst  Instance
	bus   *regs.Bus
	owner *Peripherals

	cr1  regs.Reg32
	dier regs.Reg32
	sr   regs.Reg32
	egr  regs.Reg32
	cnt  regs.Reg32
	psc  regs.Reg32
	arr  regs.Reg32
}

func newBlock(inst Instance, w regs.Window) *Block {
	bus := regs.NewBus(w)
	return &Block{
		inst: inst,
		bus:  bus,
		cr1:  bus.Reg32(inst.Base + RegCR1),
		dier: bus.Reg32(inst.Base + RegDIER),
		sr:   bus.Reg32(inst.Base + RegSR),
		egr:  bus.Reg32(inst.Base + RegEGR),
		cnt:  bus.Reg32(inst.Base + RegCNT),
		psc:  bus.Reg32(inst.Base + RegPSC),
		arr:  bus.Reg32(inst.Base + RegARR),
	}
}

// Instance returns the timer instance this block belongs to.
func (blk *Block) Instance() Instance { return blk.inst }

// Counter returns the current value of the counter.
func (blk *Block) Counter() uint32 { return blk.cnt.Get() }

// Running reports whether the counter is enabled.
func (blk *Block) Running() bool { return blk.cr1.HasBits(CEN) }

// Err returns the first register access error, if any.
func (blk *Block) Err() error { return blk.bus.Err() }

// Peripherals hands out the timer blocks reachable through a memory window.
type Peripherals struct {
	mu    sync.Mutex
	w     regs.Window
	taken map[string]bool
}

// NewPeripherals returns the set of timer blocks reachable through w.
func NewPeripherals(w regs.Window) *Peripherals {
	return &Peripherals{
		w:     w,
		taken: make(map[string]bool, len(instances)),
	}
}

// Window returns the memory window of the peripherals.
func (p *Peripherals) Window() regs.Window { return p.w }

// Take claims the register block of the named timer.
// Take fails with ErrInUse if the block was already claimed.
func (p *Peripherals) Take(name string) (*Block, error) {
	inst, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.taken[inst.Name] {
		return nil, fmt.Errorf("%w: %s", ErrInUse, inst.Name)
	}
	p.taken[inst.Name] = true

	blk := newBlock(inst, p.w)
	blk.owner = p
	return blk, nil
}

// Release gives back a block obtained from Take.
func (p *Peripherals) Release(blk *Block) error {
	if blk == nil || blk.owner != p {
		return fmt.Errorf("timer: block not owned by these peripherals")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.taken[blk.inst.Name] {
		return fmt.Errorf("timer: block %s already released", blk.inst.Name)
	}
	delete(p.taken, blk.inst.Name)
	blk.owner = nil
	return nil
}
