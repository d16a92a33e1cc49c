package factory

import (
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/abrandao/iotseries/pkg/filewriter"
	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
	"github.com/abrandao/iotseries/pkg/timeseries/backend"
	"github.com/abrandao/iotseries/pkg/timeseries/backend/memory"
)

type autoCreateFactory struct{}

func (autoCreateFactory) CreateManual(name string) (backend.Backend, error) {
	return memory.New(0, 0), nil
}

func (autoCreateFactory) CreateAuto(name string) (backend.Backend, message.TimestampType, bool, error) {
	return memory.New(0, 0), message.Sequence, true, nil
}

func TestBuildFiltersMaterializesInOrder(t *testing.T) {
	mgr := timeseries.NewManager(autoCreateFactory{})
	doc := &Document{
		Filters: map[string]FilterSpec{
			"count1": mustFilterSpec(t, "Counter", map[string]interface{}{"output": "counted"}),
		},
	}

	filters, err := BuildFilters(doc, mgr, filewriter.NewPool(), Collaborators{})
	if err != nil {
		t.Fatalf("BuildFilters: %v", err)
	}
	if len(filters) != 1 || filters[0].Name() != "count1" {
		t.Errorf("got %v, want one filter named count1", filters)
	}
}

func TestBuildFiltersUnknownTypeIsFatal(t *testing.T) {
	mgr := timeseries.NewManager(autoCreateFactory{})
	doc := &Document{
		Filters: map[string]FilterSpec{
			"bogus": mustFilterSpec(t, "NotARealType", map[string]interface{}{}),
		},
	}
	if _, err := BuildFilters(doc, mgr, filewriter.NewPool(), Collaborators{}); err == nil {
		t.Fatal("expected error for unknown filter type")
	}
}

func TestBuildFiltersOrderReferencesUndeclaredNameIsFatal(t *testing.T) {
	mgr := timeseries.NewManager(autoCreateFactory{})
	doc := &Document{
		Filters: map[string]FilterSpec{},
		Order:   []string{"ghost"},
	}
	if _, err := BuildFilters(doc, mgr, filewriter.NewPool(), Collaborators{}); err == nil {
		t.Fatal("expected error for undeclared filter name in order")
	}
}

func TestBuildFiltersMQTTWithoutCollaboratorIsFatal(t *testing.T) {
	mgr := timeseries.NewManager(autoCreateFactory{})
	doc := &Document{
		Filters: map[string]FilterSpec{
			"mq": mustFilterSpec(t, "MQTTSource", map[string]interface{}{
				"output": "readings",
				"topics": []string{"sensors/+"},
			}),
		},
	}
	if _, err := BuildFilters(doc, mgr, filewriter.NewPool(), Collaborators{}); err == nil {
		t.Fatal("expected error for MQTTSource with no MQTTBroker collaborator configured")
	}
}

func mustFilterSpec(t *testing.T, filterType string, params map[string]interface{}) FilterSpec {
	t.Helper()
	var node yaml.Node
	if err := node.Encode(params); err != nil {
		t.Fatalf("Encode params: %v", err)
	}
	return FilterSpec{Type: filterType, Params: node}
}
