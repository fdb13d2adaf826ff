// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tim-shell is an interactive shell driving the timers of a chip.
//
// Usage:
//
//	$> tim-shell -sim
//	tim> start TIM2 1kHz
//	tim> advance 3ms
//	tim> wait TIM2
//	elapsed
//	tim> pins TIM1 1
//	TIM1/CH1: PA8 (alternate AF1)
//	TIM1/CH1: PE9 (alternate AF1)
package main // import "github.com/go-lpc/tim/cmd/tim-shell"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-lpc/tim"
	"github.com/go-lpc/tim/channel"
	"github.com/go-lpc/tim/internal/board"
	"github.com/go-lpc/tim/rcc"
	"github.com/go-lpc/tim/timer"
	"github.com/peterh/liner"
)

func main() {
	var (
		simu   = flag.Bool("sim", false, "drive a simulated chip")
		devmem = flag.String("dev-mem", "/dev/mem", "memory device file")
		clk    = flag.String("clk", "16MHz", "kernel clock of the timers")
	)

	flag.Parse()

	log.SetPrefix("tim-shell: ")
	log.SetFlags(0)

	hz, err := rcc.ParseHertz(*clk)
	if err != nil {
		log.Fatalf("invalid kernel clock: %+v", err)
	}

	brd, err := board.Select(*simu, *devmem, board.Uniform(hz))
	if err != nil {
		log.Fatalf("could not open board: %+v", err)
	}
	defer brd.Close()

	sh := newShell(brd, os.Stdout)
	defer sh.close()

	err = sh.loop()
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

var errQuit = errors.New("quit")

type shell struct {
	brd    *board.Board
	out    io.Writer
	msg    *log.Logger
	timers map[string]*timer.Timer
	cmds   map[string]command
}

type command struct {
	help string
	run  func(args []string) error
}

func newShell(brd *board.Board, out io.Writer) *shell {
	sh := &shell{
		brd:    brd,
		out:    out,
		msg:    log.New(out, "", 0),
		timers: make(map[string]*timer.Timer),
	}
	sh.cmds = map[string]command{
		"start":    {"start TIMx freq: (re)start a timer", sh.cmdStart},
		"wait":     {"wait TIMx: report whether the timeout elapsed", sh.cmdWait},
		"waitc":    {"waitc TIMx [deadline]: block until the timeout elapses", sh.cmdWaitC},
		"cancel":   {"cancel TIMx: stop a timer", sh.cmdCancel},
		"listen":   {"listen TIMx: unmask the timeout interrupt", sh.cmdListen},
		"unlisten": {"unlisten TIMx: mask the timeout interrupt", sh.cmdUnlisten},
		"clear":    {"clear TIMx: clear the timeout interrupt flag", sh.cmdClear},
		"pending":  {"pending TIMx: report the timeout interrupt flag", sh.cmdPending},
		"free":     {"free TIMx: release a timer", sh.cmdFree},
		"status":   {"status: display the timers in use", sh.cmdStatus},
		"advance":  {"advance duration: move the simulated time forward", sh.cmdAdvance},
		"pins":     {"pins TIMx [channel]: display the pins of a timer", sh.cmdPins},
		"help":     {"help: display this help", sh.cmdHelp},
		"version":  {"version: display the version of tim-shell", sh.cmdVersion},
		"quit":     {"quit: leave the shell", func([]string) error { return errQuit }},
	}
	return sh
}

func (sh *shell) close() {
	for _, tim := range sh.timers {
		err := sh.brd.FreeTimer(tim)
		if err != nil {
			log.Printf("could not free %s: %+v", tim.Name(), err)
		}
	}
	sh.timers = make(map[string]*timer.Timer)
}

func (sh *shell) loop() error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(sh.complete)

	hist := filepath.Join(os.TempDir(), ".tim-shell.history")
	if f, err := os.Open(hist); err == nil {
		_, _ = term.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(hist)
		if err != nil {
			log.Printf("could not save history: %+v", err)
			return
		}
		defer f.Close()
		_, _ = term.WriteHistory(f)
	}()

	for {
		line, err := term.Prompt("tim> ")
		switch {
		case err == nil:
		case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
			fmt.Fprintln(sh.out)
			return nil
		default:
			return fmt.Errorf("could not read command: %w", err)
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		term.AppendHistory(line)

		err = sh.exec(line)
		switch {
		case err == nil:
		case errors.Is(err, errQuit):
			return nil
		default:
			sh.msg.Printf("error: %v", err)
		}
	}
}

func (sh *shell) complete(line string) []string {
	var out []string
	toks := strings.Fields(line)
	switch {
	case len(toks) == 0:
		for name := range sh.cmds {
			out = append(out, name)
		}
	case len(toks) == 1 && !strings.HasSuffix(line, " "):
		for name := range sh.cmds {
			if strings.HasPrefix(name, toks[0]) {
				out = append(out, name)
			}
		}
	case len(toks) == 1 || (len(toks) == 2 && !strings.HasSuffix(line, " ")):
		prefix := ""
		if len(toks) == 2 {
			prefix = strings.ToUpper(toks[1])
		}
		for _, inst := range timer.Instances() {
			if strings.HasPrefix(inst.Name, prefix) {
				out = append(out, toks[0]+" "+inst.Name)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (sh *shell) exec(line string) error {
	toks := strings.Fields(line)
	if len(toks) == 0 {
		return nil
	}
	cmd, ok := sh.cmds[toks[0]]
	if !ok {
		return fmt.Errorf("unknown command %q (try help)", toks[0])
	}
	return cmd.run(toks[1:])
}

func (sh *shell) timer(args []string, n int) (*timer.Timer, error) {
	if len(args) < n {
		return nil, fmt.Errorf("missing arguments")
	}
	inst, ok := timer.Lookup(args[0])
	if !ok {
		return nil, fmt.Errorf("%w: %q", timer.ErrUnknown, args[0])
	}
	tim, ok := sh.timers[inst.Name]
	if !ok {
		return nil, fmt.Errorf("timer %s not started", inst.Name)
	}
	return tim, nil
}

func (sh *shell) cmdStart(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: start TIMx freq")
	}
	hz, err := rcc.ParseHertz(args[1])
	if err != nil {
		return err
	}

	inst, ok := timer.Lookup(args[0])
	if !ok {
		return fmt.Errorf("%w: %q", timer.ErrUnknown, args[0])
	}

	tim, ok := sh.timers[inst.Name]
	if !ok {
		tim, err = sh.brd.NewTimer(inst.Name, hz, timer.WithLogger(log.Default()))
		if err != nil {
			return err
		}
		sh.timers[inst.Name] = tim
	} else {
		if _, err := timer.Prescale(tim.Clock(), hz); err != nil {
			return err
		}
		tim.Start(hz)
	}

	cfg := tim.Config()
	sh.msg.Printf("%s: timeout=%v psc=%d arr=%d", tim.Name(), tim.Timeout(), cfg.PSC, cfg.ARR)
	return tim.Err()
}

func (sh *shell) cmdWait(args []string) error {
	tim, err := sh.timer(args, 1)
	if err != nil {
		return err
	}
	err = tim.Wait()
	switch {
	case err == nil:
		sh.msg.Printf("elapsed")
	case errors.Is(err, timer.ErrWouldBlock):
		sh.msg.Printf("would block")
	default:
		return err
	}
	return tim.Err()
}

func (sh *shell) cmdWaitC(args []string) error {
	tim, err := sh.timer(args, 1)
	if err != nil {
		return err
	}
	deadline := 10 * time.Second
	if len(args) > 1 {
		deadline, err = time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("invalid deadline: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	if sh.brd.Simulated() {
		go sh.brd.RunClock(ctx)
	}

	start := time.Now()
	err = tim.WaitContext(ctx, 0)
	if err != nil {
		return err
	}
	sh.msg.Printf("elapsed after %v", time.Since(start))
	return nil
}

func (sh *shell) cmdCancel(args []string) error {
	tim, err := sh.timer(args, 1)
	if err != nil {
		return err
	}
	return tim.Cancel()
}

func (sh *shell) cmdListen(args []string) error {
	tim, err := sh.timer(args, 1)
	if err != nil {
		return err
	}
	tim.Listen(timer.TimeOut)
	return tim.Err()
}

func (sh *shell) cmdUnlisten(args []string) error {
	tim, err := sh.timer(args, 1)
	if err != nil {
		return err
	}
	tim.Unlisten(timer.TimeOut)
	return tim.Err()
}

func (sh *shell) cmdClear(args []string) error {
	tim, err := sh.timer(args, 1)
	if err != nil {
		return err
	}
	tim.ClearInterrupt(timer.TimeOut)
	return tim.Err()
}

func (sh *shell) cmdPending(args []string) error {
	tim, err := sh.timer(args, 1)
	if err != nil {
		return err
	}
	sh.msg.Printf("%v", tim.Pending(timer.TimeOut))
	return tim.Err()
}

func (sh *shell) cmdFree(args []string) error {
	tim, err := sh.timer(args, 1)
	if err != nil {
		return err
	}
	delete(sh.timers, tim.Name())
	return sh.brd.FreeTimer(tim)
}

func (sh *shell) cmdStatus(args []string) error {
	if len(sh.timers) == 0 {
		sh.msg.Printf("no timer")
		return nil
	}
	names := make([]string, 0, len(sh.timers))
	for name := range sh.timers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tim := sh.timers[name]
		cfg := tim.Config()
		sh.msg.Printf(
			"%s: running=%v listen=%v pending=%v clock=%v timeout=%v psc=%d arr=%d",
			name, tim.Running(), tim.Listening(timer.TimeOut), tim.Pending(timer.TimeOut),
			tim.Clock(), tim.Timeout(), cfg.PSC, cfg.ARR,
		)
	}
	return nil
}

func (sh *shell) cmdAdvance(args []string) error {
	if !sh.brd.Simulated() {
		return fmt.Errorf("advance needs a simulated chip")
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: advance duration")
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	sh.brd.Advance(d)
	return nil
}

func (sh *shell) cmdPins(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: pins TIMx [channel]")
	}
	inst, ok := timer.Lookup(args[0])
	if !ok {
		return fmt.Errorf("%w: %q", timer.ErrUnknown, args[0])
	}

	chs := make([]channel.Channel, 0, inst.Channels)
	switch len(args) {
	case 2:
		v, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(args[1]), "CH"))
		if err != nil || v < 1 || v > inst.Channels {
			return fmt.Errorf("invalid channel %q for %s", args[1], inst.Name)
		}
		chs = append(chs, channel.Channel(v))
	default:
		for i := 1; i <= inst.Channels; i++ {
			chs = append(chs, channel.Channel(i))
		}
	}

	n := 0
	for _, ch := range chs {
		for _, c := range channel.Lookup(inst.Name, ch) {
			sh.msg.Printf("%v", c)
			n++
		}
	}
	if n == 0 {
		sh.msg.Printf("%s: no pin", inst.Name)
	}
	return nil
}

func (sh *shell) cmdHelp(args []string) error {
	names := make([]string, 0, len(sh.cmds))
	for name := range sh.cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sh.msg.Printf("  %s", sh.cmds[name].help)
	}
	return nil
}

func (sh *shell) cmdVersion(args []string) error {
	version, sum := tim.Version()
	if version == "" {
		version = "(unknown)"
	}
	sh.msg.Printf("tim-shell %s %s", version, sum)
	return nil
}
