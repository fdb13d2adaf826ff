// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tim-ctl serves timer operations over TCP.
//
// Requests and replies are JSON values:
//
//	{"cmd": "start", "args": ["TIM2", "1kHz"]}
//	{"msg": "ok"}
//
// Commands are start, wait, cancel, listen, unlisten, free and status.
// A watchdog mails an alert when a running timer stops rolling over.
package main // import "github.com/go-lpc/tim/cmd/tim-ctl"

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-lpc/tim/internal/board"
	"github.com/go-lpc/tim/rcc"
	"github.com/go-lpc/tim/timer"
	"golang.org/x/sync/errgroup"
	mail "gopkg.in/gomail.v2"
)

func main() {
	var (
		addr   = flag.String("addr", ":8866", "[ip]:port to listen on")
		freq   = flag.Duration("freq", 30*time.Second, "watchdog probing interval")
		simu   = flag.Bool("sim", false, "drive a simulated chip")
		devmem = flag.String("dev-mem", "/dev/mem", "memory device file")
		clk    = flag.String("clk", "16MHz", "kernel clock of the timers")
	)

	flag.Parse()

	log.SetPrefix("tim-ctl: ")
	log.SetFlags(0)

	err := run(*addr, *freq, *simu, *devmem, *clk)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(addr string, freq time.Duration, simu bool, devmem, clk string) error {
	hz, err := rcc.ParseHertz(clk)
	if err != nil {
		return fmt.Errorf("invalid kernel clock: %w", err)
	}

	brd, err := board.Select(simu, devmem, board.Uniform(hz))
	if err != nil {
		return fmt.Errorf("could not open board: %w", err)
	}
	defer brd.Close()

	srv, err := newServer(addr, brd, freq)
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	log.Printf("running tim-ctl server on %q...", srv.conn.Addr().String())
	return srv.run(ctx)
}

type server struct {
	conn net.Listener
	brd  *board.Board
	freq time.Duration

	mu     sync.Mutex
	timers map[string]*entry
	alerts map[string]int // keep track of the number of alerts per timer
	notify func(st status)
}

type entry struct {
	tim   *timer.Timer
	count int // rollovers observed so far

	// state at the previous watchdog probe.
	seen    int
	cnt     uint32
	pending bool
}

// progress reports whether the timer moved since the previous probe.
// progress never clears the update flag: rollovers belong to wait.
func (e *entry) progress() bool {
	var (
		cnt     = e.tim.Counter()
		pending = e.tim.Pending(timer.TimeOut)
		moved   = e.count != e.seen || cnt != e.cnt || (pending && !e.pending)
	)
	e.seen = e.count
	e.cnt = cnt
	e.pending = pending
	return moved
}

func newServer(addr string, brd *board.Board, freq time.Duration) (*server, error) {
	conn, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not listen on %q: %w", addr, err)
	}
	srv := &server{
		conn:   conn,
		brd:    brd,
		freq:   freq,
		timers: make(map[string]*entry),
		alerts: make(map[string]int),
	}
	srv.notify = srv.alertMail
	brd.OnInterrupt(srv.irq)
	return srv, nil
}

func (srv *server) run(ctx context.Context) error {
	grp, ctx := errgroup.WithContext(ctx)
	if srv.brd.Simulated() {
		grp.Go(func() error {
			srv.brd.RunClock(ctx)
			return nil
		})
	}
	grp.Go(func() error {
		return srv.serve(ctx)
	})
	grp.Go(func() error {
		srv.watchdog(ctx)
		return nil
	})
	grp.Go(func() error {
		<-ctx.Done()
		return srv.conn.Close()
	})
	return grp.Wait()
}

func (srv *server) serve(ctx context.Context) error {
	for {
		conn, err := srv.conn.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("could not accept connection: %+v", err)
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			continue
		}
		go srv.handle(conn)
	}
}

type Request struct {
	Name string   `json:"cmd"`
	Args []string `json:"args"`
}

type Reply struct {
	Msg string `json:"msg"`
	Err string `json:"err,omitempty"`
}

func (srv *server) handle(conn net.Conn) {
	defer conn.Close()

	var (
		dec = json.NewDecoder(conn)
		enc = json.NewEncoder(conn)
	)
	for {
		var req Request
		err := dec.Decode(&req)
		if err != nil {
			log.Printf("could not decode command: %+v", err)
			return
		}

		rep := srv.dispatch(req)
		if rep.Err != "" {
			log.Printf("command %s %v failed: %s", req.Name, req.Args, rep.Err)
		}

		err = enc.Encode(rep)
		if err != nil {
			log.Printf("could not send reply: %+v", err)
			return
		}
	}
}

func (srv *server) dispatch(req Request) Reply {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	switch req.Name {
	case "status":
		return Reply{Msg: srv.status()}
	case "start":
		if len(req.Args) != 2 {
			return Reply{Err: "usage: start TIMx hz"}
		}
		hz, err := rcc.ParseHertz(req.Args[1])
		if err != nil {
			return Reply{Err: err.Error()}
		}
		err = srv.start(req.Args[0], hz)
		if err != nil {
			return Reply{Err: err.Error()}
		}
		return Reply{Msg: "ok"}
	}

	if len(req.Args) != 1 {
		return Reply{Err: fmt.Sprintf("usage: %s TIMx", req.Name)}
	}
	e, err := srv.lookup(req.Args[0])
	if err != nil {
		return Reply{Err: err.Error()}
	}

	msg := "ok"
	switch req.Name {
	case "wait":
		err = e.tim.Wait()
		if err == nil {
			e.count++
			msg = "elapsed"
		}
	case "cancel":
		err = e.tim.Cancel()
	case "listen":
		if !srv.brd.Simulated() {
			return Reply{Err: "interrupts are not delivered to user space"}
		}
		e.tim.Listen(timer.TimeOut)
	case "unlisten":
		e.tim.Unlisten(timer.TimeOut)
	case "free":
		name := e.tim.Name()
		err = srv.brd.FreeTimer(e.tim)
		delete(srv.timers, name)
		delete(srv.alerts, name)
		return reply(msg, err)
	default:
		return Reply{Err: fmt.Sprintf("unknown command %q", req.Name)}
	}

	if err == nil {
		err = e.tim.Err()
	}
	return reply(msg, err)
}

func reply(msg string, err error) Reply {
	if err != nil {
		return Reply{Err: err.Error()}
	}
	return Reply{Msg: msg}
}

func (srv *server) lookup(name string) (*entry, error) {
	inst, ok := timer.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", timer.ErrUnknown, name)
	}
	e, ok := srv.timers[inst.Name]
	if !ok {
		return nil, fmt.Errorf("timer %s not started", inst.Name)
	}
	return e, nil
}

func (srv *server) start(name string, hz rcc.Hertz) error {
	inst, ok := timer.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", timer.ErrUnknown, name)
	}

	e, ok := srv.timers[inst.Name]
	if !ok {
		tim, err := srv.brd.NewTimer(inst.Name, hz, timer.WithLogger(log.Default()))
		if err != nil {
			return err
		}
		srv.timers[inst.Name] = &entry{tim: tim, seen: -1}
		return tim.Err()
	}

	if _, err := timer.Prescale(e.tim.Clock(), hz); err != nil {
		return err
	}

	// mask the update interrupt while UG reloads the prescaler.
	listening := e.tim.Listening(timer.TimeOut)
	if listening {
		e.tim.Unlisten(timer.TimeOut)
	}
	e.tim.Start(hz)
	if listening {
		e.tim.Listen(timer.TimeOut)
	}
	e.seen = -1
	return e.tim.Err()
}

// irq services the update interrupts of the simulated chip.
func (srv *server) irq(name string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	e, ok := srv.timers[name]
	if !ok {
		return
	}
	e.tim.ClearInterrupt(timer.TimeOut)
	e.count++
}

type status struct {
	Name      string
	Running   bool
	Listening bool
	Timeout   rcc.Hertz
	Config    timer.Prescaler
	Count     int
}

func (st status) String() string {
	return fmt.Sprintf(
		"%s: running=%v listen=%v timeout=%v psc=%d arr=%d rollovers=%d",
		st.Name, st.Running, st.Listening, st.Timeout,
		st.Config.PSC, st.Config.ARR, st.Count,
	)
}

func (e *entry) status() status {
	return status{
		Name:      e.tim.Name(),
		Running:   e.tim.Running(),
		Listening: e.tim.Listening(timer.TimeOut),
		Timeout:   e.tim.Timeout(),
		Config:    e.tim.Config(),
		Count:     e.count,
	}
}

func (srv *server) status() string {
	if len(srv.timers) == 0 {
		return "no timer"
	}
	names := make([]string, 0, len(srv.timers))
	for name := range srv.timers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, len(names))
	for i, name := range names {
		out[i] = srv.timers[name].status().String()
	}
	return strings.Join(out, "\n")
}

func (srv *server) watchdog(ctx context.Context) {
	tick := time.NewTicker(srv.freq)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			srv.inspect()
		}
	}
}

// inspect probes the running timers and raises an alert for each timer
// that did not move since the previous probe.
func (srv *server) inspect() {
	srv.mu.Lock()
	var stalled []status
	for _, e := range srv.timers {
		moved := e.progress()
		if !e.tim.Running() {
			continue
		}
		if !moved && period(e.tim.Timeout()) < srv.freq {
			stalled = append(stalled, e.status())
		}
	}
	srv.mu.Unlock()

	for _, st := range stalled {
		srv.alert(st)
	}
}

func period(hz rcc.Hertz) time.Duration {
	if hz == 0 {
		return 0
	}
	return time.Second / time.Duration(hz)
}

func (srv *server) alert(st status) {
	log.Printf("timer %s did not roll over in the last %v (%v)", st.Name, srv.freq, st)

	srv.mu.Lock()
	srv.alerts[st.Name]++
	n := srv.alerts[st.Name]
	srv.mu.Unlock()

	const maxAlerts = 5
	if n < maxAlerts {
		srv.notify(st)
	}
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = strings.Split(os.Getenv("MAIL_TGTS"), ",")
)

func (srv *server) alertMail(st status) {
	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 ||
		len(alertMailTgts) == 0 || alertMailTgts[0] == "" {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[tim-ctl] timer alert: %s", st.Name))
	msg.SetBody("text/plain", fmt.Sprintf("timer: %s\ntimeout: %v\nrollovers: %d\nfreq: %v",
		st.Name, st.Timeout, st.Count, srv.freq,
	))

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
