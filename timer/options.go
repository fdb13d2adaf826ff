// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timer

import (
	"log"
	"os"
)

type config struct {
	msg *log.Logger
}

func newConfig() config {
	return config{
		msg: log.New(os.Stdout, "timer: ", 0),
	}
}

// Option configures a Timer.
type Option func(cfg *config)

// WithLogger sets the logger used by the timer.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}
