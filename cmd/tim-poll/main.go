// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tim-poll polls a set of timers concurrently and reports how many
// times each of them rolled over.
//
// Usage:
//
//	$> tim-poll -sim -timers=TIM2:1kHz,TIM9:250Hz -d=10s
package main // import "github.com/go-lpc/tim/cmd/tim-poll"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-lpc/tim/internal/board"
	"github.com/go-lpc/tim/rcc"
	"github.com/go-lpc/tim/timer"
	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

var (
	simu   = flag.Bool("sim", false, "drive a simulated chip")
	devmem = flag.String("dev-mem", "/dev/mem", "memory device file")
	clk    = flag.String("clk", "16MHz", "kernel clock of the timers")
	timers = flag.String("timers", "TIM2:1kHz", "comma-separated list of timer:frequency to poll")
	dur    = flag.Duration("d", 10*time.Second, "polling duration")
	poll   = flag.Duration("poll", 0, "polling interval (0: busy polling)")

	doMon  = flag.Bool("pmon", false, "enable pmon monitoring")
	doFreq = flag.Duration("freq", 1*time.Second, "pmon frequency")
	dir    = flag.String("o", os.TempDir(), "output directory for pmon logs")
)

func main() {
	flag.Parse()

	log.SetPrefix("tim-poll: ")
	log.SetFlags(0)

	hz, err := rcc.ParseHertz(*clk)
	if err != nil {
		log.Fatalf("invalid kernel clock: %+v", err)
	}

	targets, err := parseTargets(*timers)
	if err != nil {
		log.Fatalf("invalid timers: %+v", err)
	}

	brd, err := board.Select(*simu, *devmem, board.Uniform(hz))
	if err != nil {
		log.Fatalf("could not open board: %+v", err)
	}
	defer brd.Close()

	res, err := run(brd, targets, *dur, *poll, *doMon, *doFreq, *dir)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	for _, r := range res {
		log.Printf("%v", r)
	}
}

type target struct {
	name    string
	timeout rcc.Hertz
}

func parseTargets(s string) ([]target, error) {
	var targets []target
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		i := strings.Index(tok, ":")
		if i < 0 {
			return nil, fmt.Errorf("invalid timer target %q (want TIMx:freq)", tok)
		}
		hz, err := rcc.ParseHertz(tok[i+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid frequency for %q: %w", tok, err)
		}
		targets = append(targets, target{name: tok[:i], timeout: hz})
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no timer to poll")
	}
	return targets, nil
}

type result struct {
	name      string
	timeout   rcc.Hertz
	rollovers int
	want      int
}

func (r result) String() string {
	return fmt.Sprintf("%s: timeout=%v rollovers=%d (expected=%d)", r.name, r.timeout, r.rollovers, r.want)
}

func run(brd *board.Board, targets []target, dur, poll time.Duration, doMon bool, freq time.Duration, dir string) ([]result, error) {
	tims := make([]*timer.Timer, len(targets))
	for i, s := range targets {
		tim, err := brd.NewTimer(s.name, s.timeout, timer.WithLogger(log.Default()))
		if err != nil {
			return nil, fmt.Errorf("could not create timer %q: %w", s.name, err)
		}
		defer func() {
			err := brd.FreeTimer(tim)
			if err != nil {
				log.Printf("could not free timer %s: %+v", tim.Name(), err)
			}
		}()
		tims[i] = tim
	}

	if doMon {
		p, err := pmon.Monitor(os.Getpid())
		if err != nil {
			return nil, fmt.Errorf("could not start monitoring: %w", err)
		}
		f, err := os.Create(filepath.Join(dir, "tim-poll-pmon.log"))
		if err != nil {
			return nil, fmt.Errorf("could not create pmon log file: %w", err)
		}
		defer f.Close()
		p.W = f
		p.Freq = freq

		go func() {
			err := p.Run()
			if err != nil {
				log.Printf("could not start monitoring: %+v", err)
			}
		}()

		defer func() {
			err := p.Kill()
			if err != nil {
				log.Printf("could not stop monitoring: %+v", err)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), dur)
	defer cancel()

	if brd.Simulated() {
		go brd.RunClock(ctx)
	}

	var (
		grp errgroup.Group
		res = make([]result, len(tims))
	)
	for i := range tims {
		i := i
		grp.Go(func() error {
			n, err := count(ctx, tims[i], poll)
			res[i] = result{
				name:      tims[i].Name(),
				timeout:   tims[i].Timeout(),
				rollovers: n,
				want:      int(dur * time.Duration(tims[i].Timeout()) / time.Second),
			}
			return err
		})
	}

	err := grp.Wait()
	if err != nil {
		return res, fmt.Errorf("could not poll timers: %w", err)
	}
	return res, nil
}

// count polls tim until ctx is done and returns the number of observed
// rollovers.
func count(ctx context.Context, tim *timer.Timer, poll time.Duration) (int, error) {
	n := 0
	for {
		select {
		case <-ctx.Done():
			return n, nil
		default:
		}

		err := tim.Wait()
		switch {
		case err == nil:
			n++
		case errors.Is(err, timer.ErrWouldBlock):
			if poll > 0 {
				time.Sleep(poll)
			}
		default:
			return n, fmt.Errorf("could not wait for %s: %w", tim.Name(), err)
		}

		if err := tim.Err(); err != nil {
			return n, fmt.Errorf("could not access %s: %w", tim.Name(), err)
		}
	}
}
