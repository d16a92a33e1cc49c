package builtin

import (
	"testing"
	"time"

	"github.com/abrandao/iotseries/pkg/message"
)

func TestCounterAppendsRangeThenTerminates(t *testing.T) {
	mgr := newTestManager(t)
	mustCreate(t, mgr, "out", message.Sequence)

	w, err := mgr.OpenWriter("out")
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	r, err := mgr.OpenReader("out", false)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}

	cfg := CounterConfig{Start: 0, Stop: 3, Increment: 1, Delay: time.Millisecond}
	c := NewCounter("counter", w, r, cfg)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	for i := 0; i < 3; i++ {
		cont, err := c.Step()
		if err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		if !cont {
			t.Fatalf("Step %d: expected cont=true, got false", i)
		}
	}
	cont, err := c.Step()
	if err != nil {
		t.Fatalf("final Step: %v", err)
	}
	if cont {
		t.Error("expected cont=false once Stop is reached")
	}

	got := readAllValues(t, r)
	want := []string{"0", "1", "2"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d = %q, want %q", i, got[i], want[i])
		}
	}
}
