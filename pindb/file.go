// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pindb

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/go-lpc/tim/channel"
	"gopkg.in/yaml.v3"
)

// File holds board pin assignments loaded from a YAML document:
//
//	boards:
//	  nucleo-f767:
//	    - {timer: TIM4, channel: 4, pin: PD15, af: 2}
type File struct {
	boards map[string][]channel.Binding
}

type yamlFile struct {
	Boards map[string][]yamlBinding `yaml:"boards"`
}

type yamlBinding struct {
	Timer   string `yaml:"timer"`
	Channel uint8  `yaml:"channel"`
	Pin     string `yaml:"pin"`
	AF      uint8  `yaml:"af"`
}

// Load reads the board pin assignments stored in the named YAML file.
func Load(fname string) (*File, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("pindb: could not read %q: %w", fname, err)
	}

	f, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("pindb: could not load %q: %w", fname, err)
	}
	return f, nil
}

// Parse decodes board pin assignments from a YAML document.
func Parse(raw []byte) (*File, error) {
	var doc yamlFile
	err := yaml.Unmarshal(raw, &doc)
	if err != nil {
		return nil, fmt.Errorf("pindb: could not decode YAML: %w", err)
	}

	f := &File{boards: make(map[string][]channel.Binding, len(doc.Boards))}
	for board, ys := range doc.Boards {
		bs := make([]channel.Binding, 0, len(ys))
		for _, y := range ys {
			pin, err := channel.ParsePin(y.Pin)
			if err != nil {
				return nil, fmt.Errorf("pindb: invalid pin for board %q: %w", board, err)
			}
			bs = append(bs, channel.Binding{
				Timer:   y.Timer,
				Channel: channel.Channel(y.Channel),
				Pin:     pin,
				AF:      channel.AF(y.AF),
			})
		}
		f.boards[board] = bs
	}
	return f, nil
}

// Boards returns the names of the boards with pin assignments.
func (f *File) Boards(ctx context.Context) ([]string, error) {
	boards := make([]string, 0, len(f.boards))
	for board := range f.boards {
		boards = append(boards, board)
	}
	sort.Strings(boards)
	return boards, nil
}

// Bindings returns the pin assignments of the named board.
func (f *File) Bindings(ctx context.Context, board string) ([]channel.Binding, error) {
	bs, ok := f.boards[board]
	if !ok {
		return nil, fmt.Errorf("pindb: unknown board %q", board)
	}
	return append([]channel.Binding(nil), bs...), nil
}

// Validated returns the pin assignments of the named board, after checking
// them against the capability table.
func (f *File) Validated(ctx context.Context, board string) ([]channel.Binding, error) {
	bs, err := f.Bindings(ctx, board)
	if err != nil {
		return nil, err
	}

	err = channel.Validate(bs)
	if err != nil {
		return nil, fmt.Errorf("pindb: invalid bindings for board %q: %w", board, err)
	}

	return bs, nil
}
