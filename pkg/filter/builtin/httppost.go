package builtin

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/abrandao/iotseries/pkg/config"
	"github.com/abrandao/iotseries/pkg/filter"
	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

// HttpPostConfig is HttpPost's documented option set from spec.md §6.
type HttpPostConfig struct {
	Input         string        `yaml:"input"`
	URL           string        `yaml:"url"`
	Timeout       time.Duration `yaml:"timeout"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	ReplayHistory bool          `yaml:"replay_history"`
	PopInput      bool          `yaml:"pop_input"`
}

// DefaultHttpPostConfig returns spec.md §6's documented HttpPost defaults.
func DefaultHttpPostConfig() HttpPostConfig {
	return HttpPostConfig{Timeout: config.HTTPPostDefaultTimeout}
}

// HttpPost is an Adapter that POSTs each pushed message's value to a
// fixed URL, using the message's metadata as Content-Type.
type HttpPost struct {
	filter.Adapter

	cfg    HttpPostConfig
	client *http.Client
}

// NewHttpPost builds an HttpPost sink over cfg.
func NewHttpPost(name string, input *timeseries.Reader, inputMgr *timeseries.Writer, cfg HttpPostConfig) *HttpPost {
	h := &HttpPost{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	h.Adapter = filter.Adapter{
		FilterName:    name,
		Input:         input,
		InputMgr:      inputMgr,
		ReplayHistory: cfg.ReplayHistory,
		PopInput:      cfg.PopInput,
		Push:          h.push,
	}
	return h
}

func (h *HttpPost) push(ctx context.Context, msg message.Message) (filter.PushResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(msg.Value))
	if err != nil {
		return filter.PushFailure, err
	}
	if msg.Metadata != "" {
		req.Header.Set("Content-Type", msg.Metadata)
	}
	if h.cfg.Username != "" {
		req.SetBasicAuth(h.cfg.Username, h.cfg.Password)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return filter.PushRetry, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return filter.PushRetry, nil
	}
	if resp.StatusCode >= 400 {
		return filter.PushFailure, nil
	}
	return filter.PushSuccess, nil
}
