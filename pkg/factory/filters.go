package factory

import (
	"github.com/abrandao/iotseries/pkg/filewriter"
	"github.com/abrandao/iotseries/pkg/filter"
	"github.com/abrandao/iotseries/pkg/filter/builtin"
	"github.com/abrandao/iotseries/pkg/ierrors"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

// Collaborators supplies the external-system implementations that
// MQTTSource/MQTTSink/Lua/IMST filters delegate to, keyed by filter
// name. A real deployment wires a broker client, script host, or radio
// gateway here; tests wire the in-memory doubles from pkg/filter/builtin.
type Collaborators struct {
	MQTTBrokers   map[string]builtin.MQTTBroker
	ScriptHosts   map[string]builtin.ScriptHost
	RadioDecoders map[string]builtin.RadioDecoder
}

// BuildFilters materializes every filter doc declares, in
// doc.filterOrder(), opening the readers/writers each one needs from
// mgr. Unknown filter types or backend-lookup failures are Fatal
// configuration errors, aborting before any filter starts (spec.md §7).
func BuildFilters(doc *Document, mgr *timeseries.Manager, pool *filewriter.Pool, collab Collaborators) ([]filter.Filter, error) {
	var filters []filter.Filter

	for _, name := range doc.filterOrder() {
		spec, ok := doc.Filters[name]
		if !ok {
			return nil, ierrors.New(ierrors.Fatal, "factory: filter not declared: "+name)
		}

		f, err := buildOne(name, spec, mgr, pool, collab)
		if err != nil {
			return nil, ierrors.Wrap(ierrors.Fatal, "factory: cannot build filter "+name, err)
		}
		filters = append(filters, f)
	}

	return filters, nil
}

func buildOne(name string, spec FilterSpec, mgr *timeseries.Manager, pool *filewriter.Pool, collab Collaborators) (filter.Filter, error) {
	switch spec.Type {
	case "Counter":
		var cfg builtin.CounterConfig
		if err := spec.DecodeParams(&cfg); err != nil {
			return nil, err
		}
		cfg.ApplyDefaults()
		output, outputReader, err := openSourceOutput(mgr, cfg.Output)
		if err != nil {
			return nil, err
		}
		return builtin.NewCounter(name, output, outputReader, cfg), nil

	case "CSVSource":
		var cfg builtin.CSVSourceConfig
		if err := spec.DecodeParams(&cfg); err != nil {
			return nil, err
		}
		output, outputReader, err := openSourceOutput(mgr, cfg.Output)
		if err != nil {
			return nil, err
		}
		return builtin.NewCSVSource(name, output, outputReader, cfg), nil

	case "CSVSink":
		cfg := builtin.DefaultCSVSinkConfig()
		if err := spec.DecodeParams(&cfg); err != nil {
			return nil, err
		}
		input, inputMgr, err := openAdapterInput(mgr, cfg.Input, cfg.PopInput)
		if err != nil {
			return nil, err
		}
		return builtin.NewCSVSink(name, input, inputMgr, pool, cfg), nil

	case "FileLines":
		var cfg builtin.FileLinesConfig
		if err := spec.DecodeParams(&cfg); err != nil {
			return nil, err
		}
		output, outputReader, err := openSourceOutput(mgr, cfg.Output)
		if err != nil {
			return nil, err
		}
		return builtin.NewFileLines(name, output, outputReader, cfg), nil

	case "HttpPost":
		cfg := builtin.DefaultHttpPostConfig()
		if err := spec.DecodeParams(&cfg); err != nil {
			return nil, err
		}
		input, inputMgr, err := openAdapterInput(mgr, cfg.Input, cfg.PopInput)
		if err != nil {
			return nil, err
		}
		return builtin.NewHttpPost(name, input, inputMgr, cfg), nil

	case "LoRaDecoder":
		var cfg builtin.LoRaDecoderConfig
		if err := spec.DecodeParams(&cfg); err != nil {
			return nil, err
		}
		input, inputMgr, err := openAdapterInput(mgr, cfg.Input, cfg.PopInput)
		if err != nil {
			return nil, err
		}
		output, err := mgr.OpenWriter(cfg.Output)
		if err != nil {
			return nil, err
		}
		return builtin.NewLoRaDecoder(name, input, inputMgr, output, cfg)

	case "MQTTSource":
		var cfg builtin.MQTTSourceConfig
		if err := spec.DecodeParams(&cfg); err != nil {
			return nil, err
		}
		broker, err := collab.mqttBroker(name)
		if err != nil {
			return nil, err
		}
		output, err := mgr.OpenWriter(cfg.Output)
		if err != nil {
			return nil, err
		}
		return builtin.NewMQTTSource(name, output, broker, cfg), nil

	case "MQTTSink":
		var cfg builtin.MQTTSinkConfig
		if err := spec.DecodeParams(&cfg); err != nil {
			return nil, err
		}
		broker, err := collab.mqttBroker(name)
		if err != nil {
			return nil, err
		}
		input, inputMgr, err := openAdapterInput(mgr, cfg.Input, cfg.PopInput)
		if err != nil {
			return nil, err
		}
		return builtin.NewMQTTSink(name, input, inputMgr, broker, cfg), nil

	case "Lua":
		var cfg builtin.LuaConfig
		if err := spec.DecodeParams(&cfg); err != nil {
			return nil, err
		}
		host, err := collab.scriptHost(name)
		if err != nil {
			return nil, err
		}
		input, inputMgr, err := openAdapterInput(mgr, cfg.Input, cfg.PopInput)
		if err != nil {
			return nil, err
		}
		writers := map[string]*timeseries.Writer{}
		if cfg.Output != "" {
			w, err := mgr.OpenWriter(cfg.Output)
			if err != nil {
				return nil, err
			}
			writers[cfg.Output] = w
		}
		return builtin.NewLua(name, input, inputMgr, writers, host, cfg)

	case "IMST":
		var cfg builtin.IMSTConfig
		if err := spec.DecodeParams(&cfg); err != nil {
			return nil, err
		}
		radio, err := collab.radioDecoder(name)
		if err != nil {
			return nil, err
		}
		output, err := mgr.OpenWriter(cfg.Output)
		if err != nil {
			return nil, err
		}
		return builtin.NewIMST(name, output, radio, cfg), nil

	default:
		return nil, ierrors.New(ierrors.Fatal, "factory: unknown filter type "+spec.Type)
	}
}

// openSourceOutput opens a blocking writer+reader pair for a Source
// filter's Output series, used both to append and to observe
// back-pressure.
func openSourceOutput(mgr *timeseries.Manager, name string) (*timeseries.Writer, *timeseries.Reader, error) {
	w, err := mgr.OpenWriter(name)
	if err != nil {
		return nil, nil, err
	}
	r, err := mgr.OpenReader(name, true)
	if err != nil {
		return nil, nil, err
	}
	return w, r, nil
}

// openAdapterInput opens a blocking reader for an Adapter filter's
// Input series, plus a writer iff popInput requires DeleteRange access.
func openAdapterInput(mgr *timeseries.Manager, name string, popInput bool) (*timeseries.Reader, *timeseries.Writer, error) {
	r, err := mgr.OpenReader(name, true)
	if err != nil {
		return nil, nil, err
	}
	if !popInput {
		return r, nil, nil
	}
	w, err := mgr.OpenWriter(name)
	if err != nil {
		return nil, nil, err
	}
	return r, w, nil
}

func (c Collaborators) mqttBroker(name string) (builtin.MQTTBroker, error) {
	b, ok := c.MQTTBrokers[name]
	if !ok {
		return nil, ierrors.New(ierrors.Fatal, "factory: no MQTTBroker collaborator configured for filter "+name)
	}
	return b, nil
}

func (c Collaborators) scriptHost(name string) (builtin.ScriptHost, error) {
	h, ok := c.ScriptHosts[name]
	if !ok {
		return nil, ierrors.New(ierrors.Fatal, "factory: no ScriptHost collaborator configured for filter "+name)
	}
	return h, nil
}

func (c Collaborators) radioDecoder(name string) (builtin.RadioDecoder, error) {
	r, ok := c.RadioDecoders[name]
	if !ok {
		return nil, ierrors.New(ierrors.Fatal, "factory: no RadioDecoder collaborator configured for filter "+name)
	}
	return r, nil
}
