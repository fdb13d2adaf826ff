// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"
)

type memWindow struct {
	mem  map[int64]uint32
	fail int64 // address failing every access
}

func newMemWindow() *memWindow {
	return &memWindow{mem: make(map[int64]uint32), fail: -1}
}

var errBus = errors.New("bus error")

func (w *memWindow) ReadAt(p []byte, addr int64) (int, error) {
	if addr == w.fail {
		return 0, errBus
	}
	if len(p) != 4 {
		return 0, fmt.Errorf("invalid size %d", len(p))
	}
	binary.LittleEndian.PutUint32(p, w.mem[addr])
	return 4, nil
}

func (w *memWindow) WriteAt(p []byte, addr int64) (int, error) {
	if addr == w.fail {
		return 0, errBus
	}
	if len(p) != 4 {
		return 0, fmt.Errorf("invalid size %d", len(p))
	}
	w.mem[addr] = binary.LittleEndian.Uint32(p)
	return 4, nil
}

func TestReg32(t *testing.T) {
	var (
		w   = newMemWindow()
		bus = NewBus(w)
		reg = bus.Reg32(0x40000010)
	)

	if got, want := reg.Addr(), int64(0x40000010); got != want {
		t.Fatalf("invalid address: got=0x%x, want=0x%x", got, want)
	}

	reg.Set(0xcafe0000)
	if got, want := w.mem[0x40000010], uint32(0xcafe0000); got != want {
		t.Fatalf("invalid raw value: got=0x%x, want=0x%x", got, want)
	}

	reg.SetBits(0x5)
	if got, want := reg.Get(), uint32(0xcafe0005); got != want {
		t.Fatalf("invalid value after set-bits: got=0x%x, want=0x%x", got, want)
	}

	if !reg.HasBits(0x5) {
		t.Fatalf("bits 0x5 should be set")
	}
	if reg.HasBits(0x7) {
		t.Fatalf("bits 0x7 should not all be set")
	}

	reg.ClearBits(0xcafe0001)
	if got, want := reg.Get(), uint32(0x4); got != want {
		t.Fatalf("invalid value after clear-bits: got=0x%x, want=0x%x", got, want)
	}

	if err := bus.Err(); err != nil {
		t.Fatalf("unexpected bus error: %+v", err)
	}
}

func TestStickyErr(t *testing.T) {
	var (
		w   = newMemWindow()
		bus = NewBus(w)
		bad = bus.Reg32(0x10)
		ok  = bus.Reg32(0x20)
	)
	w.fail = bad.Addr()

	ok.Set(42)
	bad.Set(1)
	if err := bus.Err(); !errors.Is(err, errBus) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, errBus)
	}

	ok.Set(43)
	if got, want := w.mem[ok.Addr()], uint32(42); got != want {
		t.Fatalf("write should have been dropped: got=%d, want=%d", got, want)
	}
	if got, want := ok.Get(), uint32(0); got != want {
		t.Fatalf("read should have been skipped: got=%d, want=%d", got, want)
	}

	bus.ClearErr()
	if got, want := ok.Get(), uint32(42); got != want {
		t.Fatalf("invalid value: got=%d, want=%d", got, want)
	}

	_ = bad.Get()
	if err := bus.Err(); err == nil {
		t.Fatalf("expected a read error")
	}
	if got, want := bus.Err().Error(), "regs: could not read register 0x10: bus error"; got != want {
		t.Fatalf("invalid error message:\ngot= %q\nwant=%q", got, want)
	}
}
