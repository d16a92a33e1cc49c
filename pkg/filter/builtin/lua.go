package builtin

import (
	"context"

	"github.com/abrandao/iotseries/pkg/filter"
	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

// ScriptHost is the external collaborator a Lua filter delegates to.
// Per spec.md §9's design note, script execution is treated as an
// opaque callback that maps one input message to a (possibly empty)
// set of output messages addressed by series name — exactly the
// Demultiplexer contract — so Lua is built directly on
// filter.Demultiplexer rather than its own bespoke routing. No
// embedded scripting engine appears anywhere in the retrieved corpus,
// so this module ships only the interface plus an in-memory test
// double.
type ScriptHost interface {
	LoadScript(path string) error
	// Call runs the loaded script against msg and returns the set of
	// output messages keyed by destination series name.
	Call(ctx context.Context, msg message.Message) (map[string]message.Message, error)
	Close() error
}

// LuaConfig is Lua's documented option set from spec.md §6. Output
// names the conventional single destination series a script targets
// when it doesn't address multiple outputs explicitly; Writers passed
// to NewLua may hold additional series for scripts that fan out.
type LuaConfig struct {
	Input         string `yaml:"input"`
	Path          string `yaml:"path"`
	Output        string `yaml:"output"`
	ReplayHistory bool   `yaml:"replay_history"`
	PopInput      bool   `yaml:"pop_input"`
}

// Lua is a Demultiplexer whose routing function is a loaded script.
type Lua struct {
	*filter.Demultiplexer

	host ScriptHost
}

// NewLua builds a Lua filter around host, loading cfg.Path immediately
// so a missing/invalid script fails at Create time (a Fatal
// configuration error per spec.md §7), not on the first Step.
func NewLua(name string, input *timeseries.Reader, inputMgr *timeseries.Writer, writers map[string]*timeseries.Writer, host ScriptHost, cfg LuaConfig) (*Lua, error) {
	if err := host.LoadScript(cfg.Path); err != nil {
		return nil, err
	}

	l := &Lua{host: host}
	l.Demultiplexer = filter.NewDemultiplexer(name, input, inputMgr, cfg.ReplayHistory, cfg.PopInput, writers, l.demux)
	return l, nil
}

func (l *Lua) Stop() error {
	if err := l.Demultiplexer.Stop(); err != nil {
		return err
	}
	return l.host.Close()
}

func (l *Lua) demux(ctx context.Context, msg message.Message) (filter.DemuxResult, error) {
	outputs, err := l.host.Call(ctx, msg)
	if err != nil {
		return filter.DemuxResult{}, err
	}
	return filter.DemuxResult{Outputs: outputs}, nil
}
