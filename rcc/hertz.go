// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rcc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Hertz is a frequency.
type Hertz uint32

// Hz returns a frequency of v hertz.
func Hz(v uint32) Hertz { return Hertz(v) }

// KHz returns a frequency of v kilohertz.
// KHz panics if the frequency does not fit in a Hertz.
func KHz(v uint32) Hertz { return scale(v, 1000) }

// MHz returns a frequency of v megahertz.
// MHz panics if the frequency does not fit in a Hertz.
func MHz(v uint32) Hertz { return scale(v, 1000000) }

func scale(v, mul uint32) Hertz {
	f := uint64(v) * uint64(mul)
	if f > 1<<32-1 {
		panic(fmt.Errorf("rcc: frequency overflow (%d*%d Hz)", v, mul))
	}
	return Hertz(f)
}

func (f Hertz) String() string {
	switch {
	case f != 0 && f%1000000 == 0:
		return strconv.FormatUint(uint64(f/1000000), 10) + "MHz"
	case f != 0 && f%1000 == 0:
		return strconv.FormatUint(uint64(f/1000), 10) + "kHz"
	default:
		return strconv.FormatUint(uint64(f), 10) + "Hz"
	}
}

// ParseHertz parses a frequency such as "1000", "250Hz", "4kHz" or "16MHz".
func ParseHertz(s string) (Hertz, error) {
	var (
		mul uint64 = 1
		num        = s
	)
	switch {
	case hasSuffixFold(s, "mhz"):
		mul, num = 1000000, s[:len(s)-3]
	case hasSuffixFold(s, "khz"):
		mul, num = 1000, s[:len(s)-3]
	case hasSuffixFold(s, "hz"):
		num = s[:len(s)-2]
	}
	v, err := strconv.ParseUint(num, 10, 32)
	if err != nil {
		var nerr *strconv.NumError
		if errors.As(err, &nerr) {
			err = nerr.Err
		}
		return 0, &strconv.NumError{Func: "ParseHertz", Num: s, Err: err}
	}
	v *= mul
	if v > 1<<32-1 {
		return 0, &strconv.NumError{Func: "ParseHertz", Num: s, Err: strconv.ErrRange}
	}
	return Hertz(v), nil
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}
