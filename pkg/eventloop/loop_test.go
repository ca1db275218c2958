// SPDX-License-Identifier: MPL-2.0

package eventloop

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestDrain_RunsTasksInPostOrder(t *testing.T) {
	t.Parallel()
	l := New()
	var got []int
	for i := range 3 {
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Drain(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(got, []int{0, 1, 2}) {
		t.Errorf("expected [0 1 2], got %v", got)
	}
}

func TestDrain_TasksPostedWhileDrainingRunLater(t *testing.T) {
	t.Parallel()
	l := New()
	var got []string
	l.Post(func() {
		l.Post(func() { got = append(got, "inner") })
		got = append(got, "outer")
	})
	l.Post(func() { got = append(got, "second") })
	if err := l.Drain(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"outer", "second", "inner"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDrain_RecoversPanics(t *testing.T) {
	t.Parallel()
	l := New()
	ran := false
	l.Post(func() { panic("boom") })
	l.Post(func() { ran = true })
	err := l.Drain()
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected panic to be reported, got %v", err)
	}
	if !ran {
		t.Error("expected task after the panicking one to run")
	}
}

func TestReport_ReturnedOnce(t *testing.T) {
	t.Parallel()
	l := New()
	sentinel := errors.New("sentinel")
	l.Report(sentinel)
	if err := l.Drain(); !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if err := l.Drain(); err != nil {
		t.Errorf("expected errors to be cleared, got %v", err)
	}
}

func TestRetract(t *testing.T) {
	t.Parallel()

	kept := errors.New("kept")
	dropped := errors.New("dropped")
	tests := []struct {
		name    string
		retract error
		want    bool
		wantErr []error
	}{
		{name: "pending error", retract: dropped, want: true, wantErr: []error{kept}},
		{name: "unknown error", retract: errors.New("dropped"), want: false, wantErr: []error{kept, dropped}},
		{name: "nil", retract: nil, want: false, wantErr: []error{kept, dropped}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := New()
			l.Report(kept)
			l.Report(dropped)
			if got := l.Retract(tt.retract); got != tt.want {
				t.Errorf("Retract() = %v, want %v", got, tt.want)
			}
			err := l.Drain()
			for _, want := range tt.wantErr {
				if !errors.Is(err, want) {
					t.Errorf("expected %v in %v", want, err)
				}
			}
			if len(tt.wantErr) == 1 && errors.Is(err, dropped) {
				t.Errorf("retracted error still returned: %v", err)
			}
		})
	}
}

func TestRetract_AfterDrainIsNoop(t *testing.T) {
	t.Parallel()
	l := New()
	sentinel := errors.New("sentinel")
	l.Report(sentinel)
	if err := l.Drain(); !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if l.Retract(sentinel) {
		t.Error("an error already returned cannot be retracted")
	}
}

func TestRun_WaitsForHolds(t *testing.T) {
	t.Parallel()
	l := New()
	release := l.Hold()
	done := false
	go func() {
		time.Sleep(10 * time.Millisecond)
		l.Post(func() { done = true })
		release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done {
		t.Error("expected posted task to run before Run returned")
	}
	if tasks, holds := l.Pending(); tasks != 0 || holds != 0 {
		t.Errorf("expected idle loop, got %d tasks %d holds", tasks, holds)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	t.Parallel()
	l := New()
	release := l.Hold()
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHold_ReleaseIsIdempotent(t *testing.T) {
	t.Parallel()
	l := New()
	release := l.Hold()
	release()
	release()
	if _, holds := l.Pending(); holds != 0 {
		t.Errorf("expected 0 holds, got %d", holds)
	}
}
