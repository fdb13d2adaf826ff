// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tim-daq starts a TDAQ server publishing the rollovers of a timer.
//
// The /config command selects the timer and its frequency, e.g. "TIM2:1kHz".
// Once started, every rollover is published on the /ticks output as a
// 16-byte little-endian frame: the rollover count (uint64) followed by the
// time of the observation in nanoseconds since the Unix epoch (int64).
package main // import "github.com/go-lpc/tim/cmd/tim-daq"

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/tim/internal/board"
	"github.com/go-lpc/tim/rcc"
	"github.com/go-lpc/tim/timer"
)

func main() {
	var (
		simu   = flag.Bool("sim", false, "drive a simulated chip")
		devmem = flag.String("dev-mem", "/dev/mem", "memory device file")
		clk    = flag.String("clk", "16MHz", "kernel clock of the timers")
		tim    = flag.String("timer", "TIM2:1kHz", "default timer:frequency to publish")
	)

	cmd := flags.New()

	hz, err := rcc.ParseHertz(*clk)
	if err != nil {
		log.Panicf("invalid kernel clock: %+v", err)
	}

	brd, err := board.Select(*simu, *devmem, board.Uniform(hz))
	if err != nil {
		log.Panicf("could not open board: %+v", err)
	}
	defer brd.Close()

	dev, err := newDevice(brd, *tim)
	if err != nil {
		log.Panicf("could not create device: %+v", err)
	}

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/ticks", dev.ticks)

	srv.RunHandle(dev.run)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if brd.Simulated() {
		go brd.RunClock(ctx)
	}

	err = srv.Run(ctx)
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type device struct {
	brd  *board.Board
	poll time.Duration

	mu      sync.Mutex
	name    string
	timeout rcc.Hertz
	tim     *timer.Timer
	n       uint64
	data    chan []byte
}

func newDevice(brd *board.Board, cfg string) (*device, error) {
	dev := &device{
		brd:  brd,
		poll: 100 * time.Microsecond,
		data: make(chan []byte, 1024),
	}
	err := dev.configure(cfg)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func (dev *device) configure(cfg string) error {
	i := strings.Index(cfg, ":")
	if i < 0 {
		return fmt.Errorf("invalid timer configuration %q (want TIMx:freq)", cfg)
	}
	inst, ok := timer.Lookup(strings.TrimSpace(cfg[:i]))
	if !ok {
		return fmt.Errorf("%w: %q", timer.ErrUnknown, cfg[:i])
	}
	hz, err := rcc.ParseHertz(strings.TrimSpace(cfg[i+1:]))
	if err != nil {
		return fmt.Errorf("invalid frequency in %q: %w", cfg, err)
	}
	_, err = timer.Prescale(dev.brd.Clocks.Timer(inst.Bus), hz)
	if err != nil {
		return fmt.Errorf("invalid configuration %q: %w", cfg, err)
	}

	dev.name = inst.Name
	dev.timeout = hz
	return nil
}

func (dev *device) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if len(req.Body) == 0 {
		return nil
	}
	if dev.tim != nil {
		return fmt.Errorf("could not configure %s: timer already initialized", dev.name)
	}

	err := dev.configure(string(req.Body))
	if err != nil {
		ctx.Msg.Errorf("could not configure device: %+v", err)
		return err
	}
	ctx.Msg.Infof("configured %s with timeout=%v", dev.name, dev.timeout)
	return nil
}

func (dev *device) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.tim != nil {
		return nil
	}

	tim, err := dev.brd.NewTimer(dev.name, dev.timeout, timer.WithLogger(log.Default()))
	if err != nil {
		ctx.Msg.Errorf("could not create timer %s: %+v", dev.name, err)
		return fmt.Errorf("could not create timer %s: %w", dev.name, err)
	}
	// hold the counter until /start.
	err = tim.Cancel()
	if errors.Is(err, timer.ErrDisabled) {
		err = nil
	}
	if err == nil {
		err = tim.Err()
	}
	if err != nil {
		_ = dev.brd.FreeTimer(tim)
		ctx.Msg.Errorf("could not hold timer %s: %+v", dev.name, err)
		return fmt.Errorf("could not hold timer %s: %w", dev.name, err)
	}

	dev.tim = tim
	dev.n = 0
	dev.data = make(chan []byte, 1024)
	return nil
}

func (dev *device) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.n = 0
	dev.data = make(chan []byte, 1024)
	return dev.release()
}

func (dev *device) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.tim == nil {
		return fmt.Errorf("could not start %s: timer not initialized", dev.name)
	}
	dev.n = 0
	dev.tim.Start(dev.timeout)
	return dev.tim.Err()
}

func (dev *device) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	ctx.Msg.Debugf("received /stop command... -> n=%d", dev.n)
	if dev.tim == nil {
		return nil
	}
	err := dev.tim.Cancel()
	if err != nil && !errors.Is(err, timer.ErrDisabled) {
		return fmt.Errorf("could not stop %s: %w", dev.name, err)
	}
	return nil
}

func (dev *device) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	dev.mu.Lock()
	defer dev.mu.Unlock()

	return dev.release()
}

func (dev *device) release() error {
	if dev.tim == nil {
		return nil
	}
	tim := dev.tim
	dev.tim = nil
	err := dev.brd.FreeTimer(tim)
	if err != nil {
		return fmt.Errorf("could not release %s: %w", dev.name, err)
	}
	return nil
}

func (dev *device) ticks(ctx tdaq.Context, dst *tdaq.Frame) error {
	dev.mu.Lock()
	data := dev.data
	dev.mu.Unlock()

	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case raw := <-data:
		dst.Body = raw
	}
	return nil
}

func (dev *device) run(ctx tdaq.Context) error {
	tick := time.NewTicker(dev.poll)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		case now := <-tick.C:
			err := dev.sample(now)
			if err != nil {
				ctx.Msg.Errorf("could not sample timer: %+v", err)
				return err
			}
		}
	}
}

func (dev *device) sample(now time.Time) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.tim == nil {
		return nil
	}

	err := dev.tim.Wait()
	switch {
	case err == nil:
		dev.n++
	case errors.Is(err, timer.ErrWouldBlock):
		return dev.tim.Err()
	default:
		return err
	}

	raw := make([]byte, 16)
	binary.LittleEndian.PutUint64(raw[:8], dev.n)
	binary.LittleEndian.PutUint64(raw[8:], uint64(now.UnixNano()))
	select {
	case dev.data <- raw:
	default:
	}
	return nil
}
