// Package factory loads a declarative YAML document describing series
// and filters and materializes them into a running Manager and
// Scheduler, per spec.md §4.9's Factory & Registry component.
package factory

import (
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/abrandao/iotseries/pkg/ierrors"
	"github.com/abrandao/iotseries/pkg/message"
)

// BackendKind selects which storage engine backs a series.
type BackendKind string

const (
	KindMemory BackendKind = "memory"
	KindSQL    BackendKind = "sql"
	KindLSM    BackendKind = "lsm"
)

// SeriesSpec declares one time series: its backend, timestamp policy,
// and quota, per spec.md §3/§4.1.
type SeriesSpec struct {
	Backend      BackendKind `yaml:"backend"`
	Policy       string      `yaml:"policy"`
	MaxLength    uint64      `yaml:"max_length"`
	MaxSizeBytes uint64      `yaml:"max_size_bytes"`
}

// AutoCreateSpec configures the single auto-creation template applied
// to any series name referenced before being explicitly declared, per
// spec.md §4.2's auto-creation path. Declared series (in Document.Series)
// always take precedence.
type AutoCreateSpec struct {
	Backend      BackendKind `yaml:"backend"`
	Policy       string      `yaml:"policy"`
	MaxLength    uint64      `yaml:"max_length"`
	MaxSizeBytes uint64      `yaml:"max_size_bytes"`
}

// FilterSpec declares one filter: its documented type name (spec.md
// §6/§4.9) plus a type-specific parameter block decoded lazily by
// DecodeParams once the type is known.
type FilterSpec struct {
	Type   string    `yaml:"type"`
	Params yaml.Node `yaml:"params"`
}

// DecodeParams decodes this filter's params block into out, which must
// be a pointer to one of pkg/filter/builtin's *Config types.
func (f FilterSpec) DecodeParams(out interface{}) error {
	if err := f.Params.Decode(out); err != nil {
		return ierrors.Wrap(ierrors.BadInput, "factory: malformed params for filter type "+f.Type, err)
	}
	return nil
}

// SQLConfig configures the shared embedded-SQL store, used only if at
// least one series or the auto-create template names backend: sql.
type SQLConfig struct {
	Path string `yaml:"path"`
}

// LSMConfig configures the shared badger store, used only if at least
// one series or the auto-create template names backend: lsm.
type LSMConfig struct {
	Path        string `yaml:"path"`
	InMemory    bool   `yaml:"in_memory"`
	MaxMemoryMB int64  `yaml:"max_memory_mb"`
}

// Document is the full declarative configuration: named series, named
// filters (materialized in Order, or alphabetically if Order is
// omitted — YAML maps have no inherent order), and the shared store
// configuration for the sql/lsm backend kinds.
type Document struct {
	SQL        SQLConfig             `yaml:"sql"`
	LSM        LSMConfig             `yaml:"lsm"`
	AutoCreate *AutoCreateSpec       `yaml:"auto_create"`
	Series     map[string]SeriesSpec `yaml:"series"`
	Filters    map[string]FilterSpec `yaml:"filters"`
	Order      []string              `yaml:"order"`
}

// Load reads and parses a Document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.Fatal, "factory: cannot read config "+path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, ierrors.Wrap(ierrors.Fatal, "factory: malformed config "+path, err)
	}
	return &doc, nil
}

// filterOrder returns the filter names in materialization order:
// doc.Order verbatim if given, else every declared name sorted
// alphabetically for a deterministic (if arbitrary) default.
func (doc *Document) filterOrder() []string {
	if len(doc.Order) > 0 {
		return doc.Order
	}
	names := make([]string, 0, len(doc.Filters))
	for name := range doc.Filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParsePolicy maps a declared policy name to message.TimestampType.
// "default" and "fixed" are equivalent here since a declared series'
// policy is itself what Default resolves against.
func ParsePolicy(s string) (message.TimestampType, error) {
	switch s {
	case "", "default", "fixed":
		return message.Fixed, nil
	case "sequence":
		return message.Sequence, nil
	case "clock_ns":
		return message.ClockNs, nil
	case "clock_ms":
		return message.ClockMs, nil
	case "clock_s":
		return message.ClockS, nil
	default:
		return 0, ierrors.New(ierrors.Fatal, "factory: unknown timestamp policy "+s)
	}
}
