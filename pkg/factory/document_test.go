package factory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/abrandao/iotseries/pkg/message"
)

func TestLoadParsesDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.yaml")
	content := `
series:
  temperature:
    backend: memory
    policy: clock_s
    max_length: 1000
filters:
  count1:
    type: Counter
    params:
      output: temperature
order:
  - count1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	spec, ok := doc.Series["temperature"]
	if !ok {
		t.Fatalf("series temperature not found")
	}
	if spec.Backend != KindMemory || spec.Policy != "clock_s" || spec.MaxLength != 1000 {
		t.Errorf("got %+v, want backend=memory policy=clock_s max_length=1000", spec)
	}
	if _, ok := doc.Filters["count1"]; !ok {
		t.Errorf("filter count1 not found")
	}
}

func TestLoadMissingFileIsFatal(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFilterOrderUsesExplicitOrder(t *testing.T) {
	doc := &Document{
		Filters: map[string]FilterSpec{"b": {}, "a": {}, "c": {}},
		Order:   []string{"c", "a", "b"},
	}
	got := doc.filterOrder()
	want := []string{"c", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

func TestFilterOrderDefaultsToAlphabetical(t *testing.T) {
	doc := &Document{Filters: map[string]FilterSpec{"b": {}, "a": {}, "c": {}}}
	got := doc.filterOrder()
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

func TestParsePolicy(t *testing.T) {
	cases := map[string]message.TimestampType{
		"":         message.Fixed,
		"fixed":    message.Fixed,
		"sequence": message.Sequence,
		"clock_ns": message.ClockNs,
		"clock_ms": message.ClockMs,
		"clock_s":  message.ClockS,
	}
	for in, want := range cases {
		got, err := ParsePolicy(in)
		if err != nil {
			t.Errorf("ParsePolicy(%q): unexpected error %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParsePolicy(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParsePolicyUnknownIsError(t *testing.T) {
	if _, err := ParsePolicy("bogus"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
