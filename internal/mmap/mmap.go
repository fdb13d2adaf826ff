// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap maps physical memory regions exposed by a device file,
// such as /dev/mem, into the address space of the process.
package mmap // import "github.com/go-lpc/tim/internal/mmap"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

var (
	errClosed = errors.New("mmap: closed")
)

// Handle is a memory-mapped region, addressed from its first byte.
type Handle struct {
	data []byte
}

// HandleFrom returns a handle over data.
// The handle unmaps data when closed.
func HandleFrom(data []byte) *Handle {
	h := &Handle{data: data}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h
}

// Close closes the mmap handle.
func (h *Handle) Close() error {
	if h == nil {
		return os.ErrInvalid
	}

	if h.data == nil {
		return nil
	}
	data := h.data
	h.data = nil
	runtime.SetFinalizer(h, nil)

	return unix.Munmap(data)
}

// Len returns the length of the underlying memory-mapped file.
func (h *Handle) Len() int {
	return len(h.data)
}

// At returns the byte at index i.
func (h *Handle) At(i int) byte {
	return h.data[i]
}

// ReadAt implements the io.ReaderAt interface.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid ReadAt offset %d", off)
	}
	n := copy(p, h.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements the io.WriterAt interface.
func (h *Handle) WriteAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid WriteAt offset %d", off)
	}
	n := copy(h.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

var (
	_ io.ReaderAt = (*Handle)(nil)
	_ io.WriterAt = (*Handle)(nil)
	_ io.Closer   = (*Handle)(nil)
)

// Window is a mapped physical address range, addressed with absolute
// physical addresses.
type Window struct {
	f    *os.File
	h    *Handle
	base int64 // physical address of the first mapped byte
	end  int64 // physical address past the last requested byte
}

// Open maps span bytes of physical memory starting at base from the device
// file fname. The mapping is extended to whole pages.
func Open(fname string, base, span int64) (*Window, error) {
	if base < 0 || span <= 0 {
		return nil, fmt.Errorf("mmap: invalid region base=0x%x span=0x%x", base, span)
	}

	f, err := os.OpenFile(fname, os.O_RDWR|os.O_SYNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not open %q: %w", fname, err)
	}

	var (
		page = int64(os.Getpagesize())
		beg  = base &^ (page - 1)
		size = (base + span - beg + page - 1) &^ (page - 1)
	)

	data, err := unix.Mmap(
		int(f.Fd()), beg, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap: could not mmap %q [0x%x, 0x%x): %w", fname, beg, beg+size, err)
	}
	if int64(len(data)) != size {
		_ = unix.Munmap(data)
		_ = f.Close()
		return nil, fmt.Errorf("mmap: invalid mmap'd data: %d", len(data))
	}

	return &Window{
		f:    f,
		h:    HandleFrom(data),
		base: beg,
		end:  base + span,
	}, nil
}

func (w *Window) offset(addr int64, n int) (int64, error) {
	if addr < w.base || addr+int64(n) > w.end {
		return 0, fmt.Errorf("mmap: address 0x%x out of window [0x%x, 0x%x)", addr, w.base, w.end)
	}
	return addr - w.base, nil
}

// ReadAt implements the io.ReaderAt interface, with addr a physical address.
func (w *Window) ReadAt(p []byte, addr int64) (int, error) {
	off, err := w.offset(addr, len(p))
	if err != nil {
		return 0, err
	}
	return w.h.ReadAt(p, off)
}

// WriteAt implements the io.WriterAt interface, with addr a physical address.
func (w *Window) WriteAt(p []byte, addr int64) (int, error) {
	off, err := w.offset(addr, len(p))
	if err != nil {
		return 0, err
	}
	return w.h.WriteAt(p, off)
}

// Close unmaps the window and closes the device file.
func (w *Window) Close() error {
	err := w.h.Close()
	if e := w.f.Close(); e != nil && err == nil {
		err = e
	}
	return err
}

var (
	_ io.ReaderAt = (*Window)(nil)
	_ io.WriterAt = (*Window)(nil)
	_ io.Closer   = (*Window)(nil)
)
