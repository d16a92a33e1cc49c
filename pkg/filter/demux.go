package filter

import (
	"context"
	"log"

	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

// DemuxResult maps an input message to zero or more destination series.
type DemuxResult struct {
	Outputs map[string]message.Message
}

// DemuxFunc is a Demultiplexer's routing function.
type DemuxFunc func(ctx context.Context, msg message.Message) (DemuxResult, error)

// Demultiplexer specializes Adapter: Push runs Demux and appends each
// resulting message to its addressed series, logging (not failing) any
// individual append error, per spec.md §4.6.
type Demultiplexer struct {
	Adapter

	Writers map[string]*timeseries.Writer
	Demux   DemuxFunc
}

// NewDemultiplexer wires Demux as the embedded Adapter's PushFunc.
func NewDemultiplexer(name string, input *timeseries.Reader, inputMgr *timeseries.Writer, replayHistory, popInput bool, writers map[string]*timeseries.Writer, demux DemuxFunc) *Demultiplexer {
	d := &Demultiplexer{
		Adapter: Adapter{
			FilterName:    name,
			Input:         input,
			InputMgr:      inputMgr,
			ReplayHistory: replayHistory,
			PopInput:      popInput,
		},
		Writers: writers,
		Demux:   demux,
	}
	d.Adapter.Push = d.push
	return d
}

func (d *Demultiplexer) push(ctx context.Context, msg message.Message) (PushResult, error) {
	result, err := d.Demux(ctx, msg)
	if err != nil {
		return PushFailure, err
	}

	for seriesName, out := range result.Outputs {
		w, ok := d.Writers[seriesName]
		if !ok {
			log.Printf("demultiplexer %s: unknown destination series %q", d.Name(), seriesName)
			continue
		}
		if _, err := w.AppendMessage(ctx, out); err != nil {
			log.Printf("demultiplexer %s: append to %q failed: %v", d.Name(), seriesName, err)
		}
	}
	return PushSuccess, nil
}
