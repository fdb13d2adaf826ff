// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pindb gives access to the database of board pin assignments:
// which pin drives which timer channel on each board.
//
// The bindings are stored in the tim_bindings table:
//
//	CREATE TABLE tim_bindings (
//		board   VARCHAR(64) NOT NULL,
//		timer   VARCHAR(8)  NOT NULL,
//		channel TINYINT     NOT NULL,
//		pin     VARCHAR(8)  NOT NULL,
//		af      TINYINT     NOT NULL
//	);
package pindb // import "github.com/go-lpc/tim/pindb"

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/go-lpc/tim/channel"
	_ "github.com/go-sql-driver/mysql"
)

var (
	host = envOr("PINDB_HOST", "localhost")
	usr  = envOr("PINDB_USER", "username")
	pwd  = envOr("PINDB_PASSWORD", "s3cr3t")

	drvName = "mysql"
)

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// DB exposes convenience methods to retrieve board pin assignments.
type DB struct {
	db   *sql.DB
	name string // name of the database
}

// Open opens a connection to the database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("pindb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pindb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("pindb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

// Close closes the connection to the database.
func (db *DB) Close() error {
	return db.db.Close()
}

// Boards returns the names of the boards with pin assignments.
func (db *DB) Boards(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := db.db.QueryContext(
		ctx,
		"SELECT DISTINCT board FROM tim_bindings ORDER BY board",
	)
	if err != nil {
		return nil, fmt.Errorf("pindb: could not query boards: %w", err)
	}
	defer rows.Close()

	var boards []string
	for rows.Next() {
		var board string
		err = rows.Scan(&board)
		if err != nil {
			return nil, fmt.Errorf("pindb: could not get board value: %w", err)
		}
		boards = append(boards, board)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pindb: could not scan db for boards: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pindb: context error while retrieving boards: %w", err)
	}

	return boards, nil
}

// Bindings returns the pin assignments of the named board.
func (db *DB) Bindings(ctx context.Context, board string) ([]channel.Binding, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := db.db.QueryContext(
		ctx,
		"SELECT timer, channel, pin, af FROM tim_bindings WHERE board=? ORDER BY timer, channel",
		board,
	)
	if err != nil {
		return nil, fmt.Errorf("pindb: could not query bindings of board %q: %w", board, err)
	}
	defer rows.Close()

	var bs []channel.Binding
	for rows.Next() {
		var (
			tim string
			ch  uint8
			pin string
			af  uint8
		)
		err = rows.Scan(&tim, &ch, &pin, &af)
		if err != nil {
			return nil, fmt.Errorf("pindb: could not get binding of board %q: %w", board, err)
		}
		p, err := channel.ParsePin(pin)
		if err != nil {
			return nil, fmt.Errorf("pindb: invalid pin for board %q: %w", board, err)
		}
		bs = append(bs, channel.Binding{
			Timer:   tim,
			Channel: channel.Channel(ch),
			Pin:     p,
			AF:      channel.AF(af),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pindb: could not scan db for bindings of board %q: %w", board, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pindb: context error while retrieving bindings of board %q: %w", board, err)
	}

	return bs, nil
}

// Validated returns the pin assignments of the named board, after checking
// them against the capability table.
func (db *DB) Validated(ctx context.Context, board string) ([]channel.Binding, error) {
	bs, err := db.Bindings(ctx, board)
	if err != nil {
		return nil, err
	}

	err = channel.Validate(bs)
	if err != nil {
		return nil, fmt.Errorf("pindb: invalid bindings for board %q: %w", board, err)
	}

	return bs, nil
}
