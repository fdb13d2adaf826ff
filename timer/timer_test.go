// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timer_test

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-lpc/tim/internal/mmap"
	"github.com/go-lpc/tim/internal/sim"
	"github.com/go-lpc/tim/rcc"
	"github.com/go-lpc/tim/regs"
	"github.com/go-lpc/tim/timer"
)

var quiet = timer.WithLogger(log.New(io.Discard, "", 0))

func newTimer(t *testing.T, w regs.Window, name string, timeout rcc.Hertz, clocks rcc.Clocks) (*timer.Peripherals, *timer.Timer) {
	t.Helper()

	p := timer.NewPeripherals(w)
	blk, err := p.Take(name)
	if err != nil {
		t.Fatalf("could not take %s: %+v", name, err)
	}
	tim := timer.New(blk, timeout, clocks, rcc.New(w), quiet)
	return p, tim
}

func TestStart(t *testing.T) {
	dev := sim.New()
	_, tim := newTimer(t, dev, "TIM2", rcc.KHz(1), rcc.ResetClocks())

	if got, want := tim.Config(), (timer.Prescaler{PSC: 0, ARR: 15999}); got != want {
		t.Fatalf("invalid config: got=%+v, want=%+v", got, want)
	}
	if got, want := dev.Reg("TIM2", timer.RegPSC), uint32(0); got != want {
		t.Fatalf("invalid PSC: got=%d, want=%d", got, want)
	}
	if got, want := dev.Reg("TIM2", timer.RegARR), uint32(15999); got != want {
		t.Fatalf("invalid ARR: got=%d, want=%d", got, want)
	}
	if got, want := dev.Reg("TIM2", timer.RegSR)&timer.UIF, uint32(0); got != want {
		t.Fatalf("update flag should be cleared after start")
	}
	if !tim.Running() {
		t.Fatalf("timer should be running")
	}
	if got, want := dev.RCC(rcc.APB1ENR), uint32(1<<0); got != want {
		t.Fatalf("invalid APB1ENR: got=0x%x, want=0x%x", got, want)
	}
	if got, want := tim.Name(), "TIM2"; got != want {
		t.Fatalf("invalid name: got=%q, want=%q", got, want)
	}
	if got, want := tim.Clock(), rcc.MHz(16); got != want {
		t.Fatalf("invalid clock: got=%v, want=%v", got, want)
	}
	if got, want := tim.Timeout(), rcc.KHz(1); got != want {
		t.Fatalf("invalid timeout: got=%v, want=%v", got, want)
	}

	err := tim.Wait()
	if !errors.Is(err, timer.ErrWouldBlock) {
		t.Fatalf("wait right after start should block: %+v", err)
	}
	if err := tim.Err(); err != nil {
		t.Fatalf("unexpected register error: %+v", err)
	}
}

func TestWait(t *testing.T) {
	dev := sim.New()
	_, tim := newTimer(t, dev, "TIM3", rcc.KHz(1), rcc.ResetClocks())

	dev.Tick(15999)
	if err := tim.Wait(); !errors.Is(err, timer.ErrWouldBlock) {
		t.Fatalf("timeout should not have elapsed: %+v", err)
	}

	dev.Tick(1)
	if err := tim.Wait(); err != nil {
		t.Fatalf("timeout should have elapsed: %+v", err)
	}
	if err := tim.Wait(); !errors.Is(err, timer.ErrWouldBlock) {
		t.Fatalf("elapsed timeout should be reported once: %+v", err)
	}

	dev.Tick(3 * 16000)
	if err := tim.Wait(); err != nil {
		t.Fatalf("timeout should have elapsed: %+v", err)
	}
	if err := tim.Wait(); !errors.Is(err, timer.ErrWouldBlock) {
		t.Fatalf("missed timeouts should coalesce: %+v", err)
	}

	if got, want := dev.Rollovers("TIM3"), 4; got != want {
		t.Fatalf("invalid rollovers: got=%d, want=%d", got, want)
	}
}

func TestReconfigure(t *testing.T) {
	dev := sim.New()
	_, tim := newTimer(t, dev, "TIM4", rcc.KHz(1), rcc.ResetClocks())

	dev.Tick(8000)
	tim.Start(rcc.Hz(1))

	if got, want := tim.Config(), (timer.Prescaler{PSC: 244, ARR: 65305}); got != want {
		t.Fatalf("invalid config: got=%+v, want=%+v", got, want)
	}
	if got, want := dev.Prescaler("TIM4"), uint32(244); got != want {
		t.Fatalf("prescaler not loaded: got=%d, want=%d", got, want)
	}
	if got, want := dev.Reg("TIM4", timer.RegCNT), uint32(0); got != want {
		t.Fatalf("counter not restarted: got=%d, want=%d", got, want)
	}
	if err := tim.Wait(); !errors.Is(err, timer.ErrWouldBlock) {
		t.Fatalf("reconfigured timer should not report a timeout: %+v", err)
	}

	period := tim.Config().Ticks()
	if got, want := period, uint64(15999970); got != want {
		t.Fatalf("invalid period: got=%d, want=%d", got, want)
	}
	dev.Tick(period - 1)
	if err := tim.Wait(); !errors.Is(err, timer.ErrWouldBlock) {
		t.Fatalf("timeout should not have elapsed: %+v", err)
	}
	dev.Tick(1)
	if err := tim.Wait(); err != nil {
		t.Fatalf("timeout should have elapsed: %+v", err)
	}
}

func TestAPB2Clock(t *testing.T) {
	dev := sim.New()
	clocks := rcc.Clocks{
		HCLK:  rcc.MHz(216),
		PCLK1: rcc.MHz(54),
		PCLK2: rcc.MHz(108),
		PPRE1: 4,
		PPRE2: 2,
	}
	_, tim := newTimer(t, dev, "TIM1", rcc.KHz(1), clocks)

	if got, want := tim.Clock(), rcc.MHz(216); got != want {
		t.Fatalf("invalid clock: got=%v, want=%v", got, want)
	}
	if got, want := tim.Config(), (timer.Prescaler{PSC: 3, ARR: 53999}); got != want {
		t.Fatalf("invalid config: got=%+v, want=%+v", got, want)
	}
	if got, want := dev.RCC(rcc.APB2ENR), uint32(1<<0); got != want {
		t.Fatalf("invalid APB2ENR: got=0x%x, want=0x%x", got, want)
	}
}

func TestCancel(t *testing.T) {
	dev := sim.New()
	_, tim := newTimer(t, dev, "TIM5", rcc.KHz(1), rcc.ResetClocks())

	if err := tim.Cancel(); err != nil {
		t.Fatalf("could not cancel: %+v", err)
	}
	if tim.Running() {
		t.Fatalf("timer should be stopped")
	}
	if err := tim.Cancel(); !errors.Is(err, timer.ErrDisabled) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, timer.ErrDisabled)
	}

	dev.Tick(1 << 20)
	if err := tim.Wait(); !errors.Is(err, timer.ErrWouldBlock) {
		t.Fatalf("stopped timer should not elapse: %+v", err)
	}

	tim.Start(rcc.KHz(2))
	if !tim.Running() {
		t.Fatalf("timer should be running")
	}
	dev.Tick(8000)
	if err := tim.Wait(); err != nil {
		t.Fatalf("timeout should have elapsed: %+v", err)
	}
}

func TestFree(t *testing.T) {
	dev := sim.New()
	p, tim := newTimer(t, dev, "TIM9", rcc.KHz(1), rcc.ResetClocks())

	blk := tim.Free()
	if blk.Running() {
		t.Fatalf("freed timer should be stopped")
	}
	if got, want := blk.Instance().Name, "TIM9"; got != want {
		t.Fatalf("invalid block: got=%q, want=%q", got, want)
	}

	if _, err := p.Take("TIM9"); !errors.Is(err, timer.ErrInUse) {
		t.Fatalf("block should still be owned: %+v", err)
	}

	if err := p.Release(blk); err != nil {
		t.Fatalf("could not release block: %+v", err)
	}
	if err := p.Release(blk); err == nil {
		t.Fatalf("expected an error releasing twice")
	}

	blk, err := p.Take("tim9")
	if err != nil {
		t.Fatalf("could not take block again: %+v", err)
	}
	tim = timer.New(blk, rcc.Hz(100), rcc.ResetClocks(), rcc.New(dev), quiet)
	if !tim.Running() {
		t.Fatalf("timer should be running")
	}
}

func TestFreeAfterCancel(t *testing.T) {
	for _, tc := range []struct {
		name  string
		start bool
	}{
		{"running", true},
		{"stopped", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dev := sim.New()
			_, tim := newTimer(t, dev, "TIM14", rcc.KHz(1), rcc.ResetClocks())
			if !tc.start {
				if err := tim.Cancel(); err != nil {
					t.Fatalf("could not cancel timer: %+v", err)
				}
			}

			err := tim.Cancel()
			switch {
			case tc.start && err != nil:
				t.Fatalf("could not cancel timer: %+v", err)
			case !tc.start && !errors.Is(err, timer.ErrDisabled):
				t.Fatalf("invalid error: got=%+v, want=%+v", err, timer.ErrDisabled)
			}

			blk := tim.Free()
			if blk.Running() {
				t.Fatalf("freed timer should be stopped")
			}
			if got := dev.Reg("TIM14", timer.RegCR1); got&timer.CEN != 0 {
				t.Fatalf("invalid CR1: got=0x%x, want CEN cleared", got)
			}
		})
	}
}

func TestTake(t *testing.T) {
	var (
		dev = sim.New()
		p   = timer.NewPeripherals(dev)
	)

	_, err := p.Take("TIM12")
	if err != nil {
		t.Fatalf("could not take TIM12: %+v", err)
	}

	_, err = p.Take("TIM12")
	if !errors.Is(err, timer.ErrInUse) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, timer.ErrInUse)
	}

	_, err = p.Take("TIM15")
	if !errors.Is(err, timer.ErrUnknown) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, timer.ErrUnknown)
	}

	other := timer.NewPeripherals(dev)
	blk, err := other.Take("TIM13")
	if err != nil {
		t.Fatalf("could not take TIM13: %+v", err)
	}
	if err := p.Release(blk); err == nil {
		t.Fatalf("expected an error releasing a foreign block")
	}
}

func TestListen(t *testing.T) {
	var (
		dev   = sim.New()
		_, tm = newTimer(t, dev, "TIM10", rcc.KHz(1), rcc.ResetClocks())
		irqs  = make(map[string]int)
	)

	dev.OnInterrupt(func(name string) {
		irqs[name]++
		if !tm.Pending(timer.TimeOut) {
			t.Errorf("interrupt without pending flag")
		}
		tm.ClearInterrupt(timer.TimeOut)
	})

	tm.Listen(timer.TimeOut)
	if !tm.Listening(timer.TimeOut) {
		t.Fatalf("timer should be listening")
	}
	if got, want := dev.Reg("TIM10", timer.RegDIER), uint32(timer.UIE); got != want {
		t.Fatalf("invalid DIER: got=0x%x, want=0x%x", got, want)
	}

	dev.Tick(16000)
	if got, want := irqs["TIM10"], 1; got != want {
		t.Fatalf("invalid interrupt count: got=%d, want=%d", got, want)
	}
	if tm.Pending(timer.TimeOut) {
		t.Fatalf("interrupt handler should have cleared the flag")
	}

	dev.Tick(2 * 16000)
	if got, want := irqs["TIM10"], 3; got != want {
		t.Fatalf("invalid interrupt count: got=%d, want=%d", got, want)
	}

	tm.Unlisten(timer.TimeOut)
	if tm.Listening(timer.TimeOut) {
		t.Fatalf("timer should not be listening")
	}
	dev.Tick(16000)
	if got, want := irqs["TIM10"], 3; got != want {
		t.Fatalf("masked timer raised an interrupt: got=%d, want=%d", got, want)
	}
	if !tm.Pending(timer.TimeOut) {
		t.Fatalf("flag should be set while masked")
	}
	tm.ClearInterrupt(timer.TimeOut)
	if tm.Pending(timer.TimeOut) {
		t.Fatalf("flag should be cleared")
	}
}

func TestInvalidEvent(t *testing.T) {
	dev := sim.New()
	_, tim := newTimer(t, dev, "TIM11", rcc.KHz(1), rcc.ResetClocks())

	for _, tc := range []struct {
		name string
		f    func()
	}{
		{"listen", func() { tim.Listen(timer.Event(42)) }},
		{"unlisten", func() { tim.Unlisten(timer.Event(42)) }},
		{"clear", func() { tim.ClearInterrupt(timer.Event(42)) }},
		{"pending", func() { tim.Pending(timer.Event(42)) }},
		{"listening", func() { tim.Listening(timer.Event(42)) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if e := recover(); e == nil {
					t.Fatalf("expected a panic")
				}
			}()
			tc.f()
		})
	}
}

func TestStartOutOfRange(t *testing.T) {
	for _, tc := range []struct {
		name    string
		timeout rcc.Hertz
	}{
		{"zero", 0},
		{"too-high", rcc.MHz(16)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dev := sim.New()
			_, tim := newTimer(t, dev, "TIM6", rcc.KHz(1), rcc.ResetClocks())

			defer func() {
				e := recover()
				if e == nil {
					t.Fatalf("expected a panic")
				}
				err, ok := e.(error)
				if !ok || !errors.Is(err, timer.ErrRange) {
					t.Fatalf("invalid panic: %v", e)
				}
			}()
			tim.Start(tc.timeout)
		})
	}
}

func TestWaitContext(t *testing.T) {
	dev := sim.New()
	_, tim := newTimer(t, dev, "TIM7", rcc.KHz(1), rcc.ResetClocks())

	t.Run("elapsed", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				dev.Tick(1000)
				time.Sleep(100 * time.Microsecond)
			}
		}()

		err := tim.WaitContext(ctx, 50*time.Microsecond)
		cancel()
		wg.Wait()
		if err != nil {
			t.Fatalf("could not wait for timeout: %+v", err)
		}
	})

	t.Run("deadline", func(t *testing.T) {
		_ = tim.Wait()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := tim.WaitContext(ctx, 0)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("invalid error: got=%+v, want=%+v", err, context.DeadlineExceeded)
		}
	})
}

func TestDevMem(t *testing.T) {
	const (
		base = 0x40000000
		span = 0x24000
	)

	fname := filepath.Join(t.TempDir(), "dev.mem")
	f, err := os.Create(fname)
	if err != nil {
		t.Fatalf("could not create fake dev-mem: %+v", err)
	}
	defer f.Close()

	err = f.Truncate(base + span)
	if err != nil {
		t.Fatalf("could not resize fake dev-mem: %+v", err)
	}

	w, err := mmap.Open(fname, base, span)
	if err != nil {
		t.Fatalf("could not map fake dev-mem: %+v", err)
	}
	defer w.Close()

	_, tim := newTimer(t, w, "TIM3", rcc.Hz(1), rcc.ResetClocks())
	if err := tim.Err(); err != nil {
		t.Fatalf("register error: %+v", err)
	}

	inst, _ := timer.Lookup("TIM3")
	for _, tc := range []struct {
		name string
		addr int64
		want uint32
	}{
		{"PSC", inst.Base + timer.RegPSC, 244},
		{"ARR", inst.Base + timer.RegARR, 65305},
		{"CR1", inst.Base + timer.RegCR1, timer.CEN},
		{"SR", inst.Base + timer.RegSR, ^uint32(timer.UIF)},
		{"EGR", inst.Base + timer.RegEGR, timer.UG},
		{"APB1ENR", rcc.Base + rcc.APB1ENR, 1 << inst.Bit},
		{"APB1RSTR", rcc.Base + rcc.APB1RSTR, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, 4)
			_, err := f.ReadAt(buf, tc.addr)
			if err != nil {
				t.Fatalf("could not read 0x%x: %+v", tc.addr, err)
			}
			if got := binary.LittleEndian.Uint32(buf); got != tc.want {
				t.Fatalf("invalid value: got=0x%x, want=0x%x", got, tc.want)
			}
		})
	}

	if err := tim.Cancel(); err != nil {
		t.Fatalf("could not cancel: %+v", err)
	}
	if err := tim.Cancel(); !errors.Is(err, timer.ErrDisabled) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, timer.ErrDisabled)
	}
}
