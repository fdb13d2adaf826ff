// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs provides 32-bit register access over a memory window.
package regs // import "github.com/go-lpc/tim/regs"

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Window is a view of a physical address space.
// Offsets passed to ReadAt and WriteAt are absolute bus addresses.
type Window interface {
	io.ReaderAt
	io.WriterAt
}

// Bus performs little-endian 32-bit accesses over a Window.
//
// The first failing access is recorded and every later access is skipped:
// reads return 0 and writes are dropped until the error is cleared.
type Bus struct {
	w    Window
	err  error
	xbuf [4]byte
}

// NewBus returns a bus accessing registers through w.
func NewBus(w Window) *Bus {
	return &Bus{w: w}
}

// Window returns the underlying memory window.
func (bus *Bus) Window() Window { return bus.w }

// Err returns the first access error, if any.
func (bus *Bus) Err() error { return bus.err }

// ClearErr forgets the recorded access error.
func (bus *Bus) ClearErr() { bus.err = nil }

func (bus *Bus) readU32(addr int64) uint32 {
	if bus.err != nil {
		return 0
	}
	_, bus.err = bus.w.ReadAt(bus.xbuf[:4], addr)
	if bus.err != nil {
		bus.err = fmt.Errorf("regs: could not read register 0x%x: %w", addr, bus.err)
		return 0
	}
	return binary.LittleEndian.Uint32(bus.xbuf[:4])
}

func (bus *Bus) writeU32(addr int64, v uint32) {
	if bus.err != nil {
		return
	}
	binary.LittleEndian.PutUint32(bus.xbuf[:4], v)
	_, bus.err = bus.w.WriteAt(bus.xbuf[:4], addr)
	if bus.err != nil {
		bus.err = fmt.Errorf("regs: could not write register 0x%x: %w", addr, bus.err)
		return
	}
}

// Reg32 returns the 32-bit register located at addr.
func (bus *Bus) Reg32(addr int64) Reg32 {
	return Reg32{
		addr: addr,
		r: func() uint32 {
			return bus.readU32(addr)
		},
		w: func(v uint32) {
			bus.writeU32(addr, v)
		},
	}
}

// Reg32 is a single 32-bit hardware register.
type Reg32 struct {
	addr int64
	r    func() uint32
	w    func(v uint32)
}

// Addr returns the bus address of the register.
func (reg Reg32) Addr() int64 { return reg.addr }

// Get reads the register.
func (reg Reg32) Get() uint32 { return reg.r() }

// Set writes v to the register.
func (reg Reg32) Set(v uint32) { reg.w(v) }

// SetBits sets the bits of mask with a read-modify-write cycle.
func (reg Reg32) SetBits(mask uint32) {
	reg.w(reg.r() | mask)
}

// ClearBits clears the bits of mask with a read-modify-write cycle.
func (reg Reg32) ClearBits(mask uint32) {
	reg.w(reg.r() &^ mask)
}

// HasBits reports whether all the bits of mask are set.
func (reg Reg32) HasBits(mask uint32) bool {
	return reg.r()&mask == mask
}
