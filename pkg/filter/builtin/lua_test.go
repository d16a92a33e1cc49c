package builtin

import (
	"testing"

	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

func TestLuaRoutesScriptOutputToAddressedSeries(t *testing.T) {
	mgr := newTestManager(t)
	mustCreate(t, mgr, "in", message.Sequence)
	mustCreate(t, mgr, "out", message.Sequence)

	w, err := mgr.OpenWriter("in")
	if err != nil {
		t.Fatalf("OpenWriter in: %v", err)
	}
	if err := appendString(w, "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	r, err := mgr.OpenReader("in", false)
	if err != nil {
		t.Fatalf("OpenReader in: %v", err)
	}
	outWriter, err := mgr.OpenWriter("out")
	if err != nil {
		t.Fatalf("OpenWriter out: %v", err)
	}
	outReader, err := mgr.OpenReader("out", false)
	if err != nil {
		t.Fatalf("OpenReader out: %v", err)
	}

	host := &fakeScriptHost{dest: "out"}
	writers := map[string]*timeseries.Writer{"out": outWriter}
	l, err := NewLua("lua", r, nil, writers, host, LuaConfig{Input: "in", Path: "script.lua", Output: "out", ReplayHistory: true})
	if err != nil {
		t.Fatalf("NewLua: %v", err)
	}
	if !host.loaded {
		t.Fatal("expected script to be loaded at construction")
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := l.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := l.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !host.closed {
		t.Error("expected script host to be closed on Stop")
	}

	got := readAllValues(t, outReader)
	if len(got) != 1 || got[0] != "HELLO" {
		t.Errorf("got %v, want [\"HELLO\"]", got)
	}
}
