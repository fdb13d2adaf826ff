// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pindb

import (
	"context"
	"database/sql/driver"
	"errors"
	"reflect"
	"testing"

	"github.com/go-lpc/tim/channel"
	"github.com/go-lpc/tim/internal/fakedb"
)

func init() {
	drvName = "fakedb"
}

func TestOpen(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open pindb: %+v", err)
	}
	defer db.Close()
}

func TestBoards(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open pindb: %+v", err)
	}
	defer db.Close()

	_, err = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"board"},
		Values: [][]driver.Value{
			{"disco-f746"},
			{"nucleo-f767"},
		},
	}, func(ctx context.Context) error {
		boards, err := db.Boards(ctx)
		if err != nil {
			return err
		}

		if got, want := boards, []string{"disco-f746", "nucleo-f767"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("invalid boards:\ngot= %q\nwant=%q", got, want)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("could not retrieve boards: %+v", err)
	}
}

func TestBindings(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open pindb: %+v", err)
	}
	defer db.Close()

	rows := fakedb.Rows{
		Names: []string{"timer", "channel", "pin", "af"},
		Values: [][]driver.Value{
			{"TIM1", int64(1), "PA8", int64(1)},
			{"TIM3", int64(2), "PB5", int64(2)},
			{"TIM4", int64(4), "PD15", int64(2)},
		},
	}

	q, err := fakedb.Run(context.Background(), rows, func(ctx context.Context) error {
		bs, err := db.Validated(ctx, "nucleo-f767")
		if err != nil {
			return err
		}

		want := []channel.Binding{
			{Timer: "TIM1", Channel: channel.C1, Pin: channel.PA(8), AF: channel.AF1},
			{Timer: "TIM3", Channel: channel.C2, Pin: channel.PB(5), AF: channel.AF2},
			{Timer: "TIM4", Channel: channel.C4, Pin: channel.PD(15), AF: channel.AF2},
		}
		if !reflect.DeepEqual(bs, want) {
			t.Fatalf("invalid bindings:\ngot= %v\nwant=%v", bs, want)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("could not retrieve bindings: %+v", err)
	}

	if got, want := q.Args, []driver.Value{"nucleo-f767"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid query args: got=%v, want=%v", got, want)
	}
}

func TestInvalidBindings(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open pindb: %+v", err)
	}
	defer db.Close()

	for _, tc := range []struct {
		name string
		rows [][]driver.Value
		want error
	}{
		{
			name: "wrong-af",
			rows: [][]driver.Value{
				{"TIM1", int64(1), "PA8", int64(2)},
			},
			want: channel.ErrNoCapability,
		},
		{
			name: "shared-pin",
			rows: [][]driver.Value{
				{"TIM2", int64(1), "PA0", int64(1)},
				{"TIM5", int64(1), "PA0", int64(2)},
			},
			want: channel.ErrPinInUse,
		},
		{
			name: "bad-pin",
			rows: [][]driver.Value{
				{"TIM2", int64(1), "PZ0", int64(1)},
			},
			want: channel.ErrInvalidPin,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rows := fakedb.Rows{
				Names:  []string{"timer", "channel", "pin", "af"},
				Values: tc.rows,
			}
			_, err := fakedb.Run(context.Background(), rows, func(ctx context.Context) error {
				_, err := db.Validated(ctx, "board")
				return err
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("invalid error: got=%+v, want=%+v", err, tc.want)
			}
		})
	}
}
