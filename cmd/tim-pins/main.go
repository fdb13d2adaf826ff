// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tim-pins validates the timer pin assignments of boards stored
// in the pins database, or in a YAML file with -f.
package main // import "github.com/go-lpc/tim/cmd/tim-pins"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/go-lpc/tim/channel"
	"github.com/go-lpc/tim/pindb"
)

func main() {
	log.SetPrefix("tim-pins: ")
	log.SetFlags(0)

	var (
		dbname = flag.String("db", "timpins", "name of the pins database")
		brd    = flag.String("board", "", "board to inspect (default: all boards)")
		fname  = flag.String("f", "", "YAML file with pin assignments (instead of the db)")
	)

	flag.Parse()

	var db store
	switch *fname {
	case "":
		pdb, err := pindb.Open(*dbname)
		if err != nil {
			log.Fatalf("could not open pins db: %+v", err)
		}
		defer pdb.Close()
		db = pdb
	default:
		f, err := pindb.Load(*fname)
		if err != nil {
			log.Fatalf("could not load pins file: %+v", err)
		}
		db = f
	}

	n, err := doQuery(db, *brd)
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
	if n > 0 {
		log.Fatalf("found %d invalid board(s)", n)
	}
}

type store interface {
	Boards(ctx context.Context) ([]string, error)
	Validated(ctx context.Context, board string) ([]channel.Binding, error)
}

// doQuery validates the named board, or every board when name is empty,
// and returns the number of invalid boards.
func doQuery(db store, name string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	boards := []string{name}
	if name == "" {
		v, err := db.Boards(ctx)
		if err != nil {
			return 0, fmt.Errorf("could not get boards: %w", err)
		}
		boards = v
		log.Printf("boards: %d", len(boards))
	}

	bad := 0
	for _, board := range boards {
		bs, err := db.Validated(ctx, board)
		if err != nil {
			log.Printf("board %q: %+v", board, err)
			bad++
			continue
		}
		log.Printf("board %q: %d binding(s)", board, len(bs))
		for _, b := range bs {
			log.Printf("  %v", b)
		}
	}

	return bad, nil
}
