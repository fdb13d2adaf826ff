// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/go-lpc/tim/internal/board"
	"github.com/go-lpc/tim/rcc"
)

func TestShell(t *testing.T) {
	var (
		out = new(bytes.Buffer)
		brd = board.Sim(board.Uniform(rcc.MHz(16)))
		sh  = newShell(brd, out)
	)
	defer sh.close()

	for _, tc := range []struct {
		line string
		want string
		err  string
	}{
		{line: "status", want: "no timer\n"},
		{line: "start TIM2 1kHz", want: "TIM2: timeout=1kHz psc=0 arr=15999\n"},
		{line: "wait tim2", want: "would block\n"},
		{line: "advance 1ms"},
		{line: "pending TIM2", want: "true\n"},
		{line: "wait TIM2", want: "elapsed\n"},
		{line: "wait TIM2", want: "would block\n"},
		{line: "start TIM2 1Hz", want: "TIM2: timeout=1Hz psc=244 arr=65305\n"},
		{line: "start TIM2 32MHz", err: "timer: out of range: timeout=32MHz too high for clock=16MHz"},
		{line: "listen TIM2"},
		{line: "advance 1s"},
		{line: "pending TIM2", want: "true\n"},
		{line: "clear TIM2"},
		{line: "pending TIM2", want: "false\n"},
		{line: "unlisten TIM2"},
		{
			line: "status",
			want: "TIM2: running=true listen=false pending=false clock=16MHz timeout=1Hz psc=244 arr=65305\n",
		},
		{line: "cancel TIM2"},
		{line: "cancel TIM2", err: "timer: disabled"},
		{line: "start TIM2 1kHz", want: "TIM2: timeout=1kHz psc=0 arr=15999\n"},
		{line: "waitc TIM2 5s"},
		{line: "free TIM2"},
		{line: "wait TIM2", err: "timer TIM2 not started"},
		{line: "wait TIM15", err: "timer: unknown instance: \"TIM15\""},
		{line: "wait", err: "missing arguments"},
		{line: "start TIM2", err: "usage: start TIMx freq"},
		{line: "advance soon", err: "invalid duration: time: invalid duration \"soon\""},
		{line: "pins TIM10", want: "TIM10/CH1: PB8 (alternate AF3)\nTIM10/CH1: PF6 (alternate AF3)\n"},
		{line: "pins TIM1 ch2", want: "TIM1/CH2: PA9 (alternate AF1)\nTIM1/CH2: PE11 (alternate AF1)\n"},
		{line: "pins TIM6", want: "TIM6: no pin\n"},
		{line: "pins TIM10 2", err: "invalid channel \"2\" for TIM10"},
		{line: "reboot", err: "unknown command \"reboot\" (try help)"},
		{line: ""},
	} {
		out.Reset()
		err := sh.exec(tc.line)
		switch {
		case tc.err != "":
			if err == nil || err.Error() != tc.err {
				t.Fatalf("%q: invalid error:\ngot= %v\nwant=%s", tc.line, err, tc.err)
			}
			continue
		case err != nil:
			t.Fatalf("%q: could not execute: %+v", tc.line, err)
		}

		got := out.String()
		if tc.line == "waitc TIM2 5s" {
			if !strings.HasPrefix(got, "elapsed after ") {
				t.Fatalf("%q: invalid output: %q", tc.line, got)
			}
			continue
		}
		if got != tc.want {
			t.Fatalf("%q: invalid output:\ngot= %q\nwant=%q", tc.line, got, tc.want)
		}
	}

	if err := sh.exec("quit"); !errors.Is(err, errQuit) {
		t.Fatalf("invalid quit error: %+v", err)
	}

	out.Reset()
	if err := sh.exec("version"); err != nil {
		t.Fatalf("could not display version: %+v", err)
	}
	if got := out.String(); !strings.HasPrefix(got, "tim-shell ") {
		t.Fatalf("invalid version: %q", got)
	}

	out.Reset()
	if err := sh.exec("help"); err != nil {
		t.Fatalf("could not display help: %+v", err)
	}
	if got, want := strings.Count(out.String(), "\n"), len(sh.cmds); got != want {
		t.Fatalf("invalid help: got %d lines, want %d", got, want)
	}
}

func TestComplete(t *testing.T) {
	sh := newShell(board.Sim(board.Uniform(rcc.MHz(16))), new(bytes.Buffer))

	for _, tc := range []struct {
		line string
		want []string
	}{
		{line: "un", want: []string{"unlisten"}},
		{line: "wa", want: []string{"wait", "waitc"}},
		{line: "wait tim1", want: []string{"wait TIM1", "wait TIM10", "wait TIM11", "wait TIM12", "wait TIM13", "wait TIM14"}},
		{line: "start TIM2 ", want: nil},
	} {
		t.Run(tc.line, func(t *testing.T) {
			got := sh.complete(tc.line)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("invalid completion:\ngot= %q\nwant=%q", got, tc.want)
			}
		})
	}
}
