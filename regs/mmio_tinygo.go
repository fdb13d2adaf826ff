// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build tinygo

package regs

import (
	"encoding/binary"
	"errors"
	"runtime/volatile"
	"unsafe"
)

var errUnaligned = errors.New("regs: unaligned access")

type mmio struct{}

// MMIO returns the window onto the address space of the running MCU.
func MMIO() Window { return mmio{} }

func (mmio) ReadAt(p []byte, addr int64) (int, error) {
	if len(p) != 4 || addr&3 != 0 {
		return 0, errUnaligned
	}
	reg := (*volatile.Register32)(unsafe.Pointer(uintptr(addr)))
	binary.LittleEndian.PutUint32(p, reg.Get())
	return 4, nil
}

func (mmio) WriteAt(p []byte, addr int64) (int, error) {
	if len(p) != 4 || addr&3 != 0 {
		return 0, errUnaligned
	}
	reg := (*volatile.Register32)(unsafe.Pointer(uintptr(addr)))
	reg.Set(binary.LittleEndian.Uint32(p))
	return 4, nil
}
