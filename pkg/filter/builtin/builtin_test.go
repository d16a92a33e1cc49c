package builtin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
	"github.com/abrandao/iotseries/pkg/timeseries/backend"
	"github.com/abrandao/iotseries/pkg/timeseries/backend/memory"
)

type staticFactory struct{}

func (staticFactory) CreateManual(name string) (backend.Backend, error) {
	return memory.New(0, 0), nil
}

func (staticFactory) CreateAuto(name string) (backend.Backend, message.TimestampType, bool, error) {
	return memory.New(0, 0), message.Sequence, true, nil
}

func newTestManager(t *testing.T) *timeseries.Manager {
	t.Helper()
	return timeseries.NewManager(staticFactory{})
}

func mustCreate(t *testing.T, mgr *timeseries.Manager, name string, policy message.TimestampType) {
	t.Helper()
	if err := mgr.Create(name, policy); err != nil {
		t.Fatalf("Create %s: %v", name, err)
	}
}

func appendString(w *timeseries.Writer, value string) error {
	_, err := w.AppendMessage(context.Background(), message.Message{
		TimestampType: message.Sequence,
		Value:         []byte(value),
	})
	return err
}

func readAllValues(t *testing.T, r *timeseries.Reader) []string {
	t.Helper()
	ctx := context.Background()
	var out []string
	ok, err := r.SeekFirst(ctx)
	if err != nil {
		t.Fatalf("SeekFirst: %v", err)
	}
	for ok {
		_, value, found, err := r.Read(ctx)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if found {
			out = append(out, string(value))
		}
		ok, err = r.SeekNext(ctx, r.Timestamp())
		if err != nil {
			t.Fatalf("SeekNext: %v", err)
		}
	}
	return out
}

// fakeMQTTBroker is an in-memory MQTTBroker double: Publish appends to
// a shared log, and a pre-seeded inbox feeds Receive.
type fakeMQTTBroker struct {
	mu        sync.Mutex
	connected bool
	inbox     []MQTTEnvelope
	published []MQTTEnvelope
}

func (b *fakeMQTTBroker) Connect(clientID string, broker MQTTBrokerConfig, topics []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return nil
}

func (b *fakeMQTTBroker) Receive(timeout time.Duration) (MQTTEnvelope, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.inbox) == 0 {
		return MQTTEnvelope{}, false, nil
	}
	env := b.inbox[0]
	b.inbox = b.inbox[1:]
	return env, true, nil
}

func (b *fakeMQTTBroker) Publish(topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, MQTTEnvelope{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

func (b *fakeMQTTBroker) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	return nil
}

// fakeScriptHost is an in-memory ScriptHost double that uppercases the
// input value and routes it to a fixed series.
type fakeScriptHost struct {
	loaded bool
	closed bool
	dest   string
}

func (h *fakeScriptHost) LoadScript(path string) error {
	h.loaded = true
	return nil
}

func (h *fakeScriptHost) Call(ctx context.Context, msg message.Message) (map[string]message.Message, error) {
	out := make([]byte, len(msg.Value))
	for i, b := range msg.Value {
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		out[i] = b
	}
	return map[string]message.Message{
		h.dest: {TimestampType: message.Default, Value: out},
	}, nil
}

func (h *fakeScriptHost) Close() error {
	h.closed = true
	return nil
}

// fakeRadioDecoder is an in-memory RadioDecoder double feeding a fixed
// sequence of frames then returning ok=false forever.
type fakeRadioDecoder struct {
	mu     sync.Mutex
	opened bool
	closed bool
	frames [][]byte
}

func (r *fakeRadioDecoder) Open() error {
	r.opened = true
	return nil
}

func (r *fakeRadioDecoder) ReceiveFrame(timeout time.Duration) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil, false, nil
	}
	f := r.frames[0]
	r.frames = r.frames[1:]
	return f, true, nil
}

func (r *fakeRadioDecoder) Close() error {
	r.closed = true
	return nil
}
