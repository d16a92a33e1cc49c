package builtin

import (
	"context"
	"time"

	"github.com/abrandao/iotseries/pkg/config"
	"github.com/abrandao/iotseries/pkg/filter"
	"github.com/abrandao/iotseries/pkg/message"
	"github.com/abrandao/iotseries/pkg/timeseries"
)

// MQTTBrokerConfig is the Broker sub-record shared by MQTTSource and
// MQTTSink, per spec.md §6.
type MQTTBrokerConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DefaultMQTTBrokerConfig returns spec.md §6's documented broker
// defaults (127.0.0.1:1883).
func DefaultMQTTBrokerConfig() MQTTBrokerConfig {
	return MQTTBrokerConfig{Server: config.MQTTDefaultServer, Port: config.MQTTDefaultPort}
}

// MQTTEnvelope is one message received from or published to a broker.
type MQTTEnvelope struct {
	Topic   string
	Payload []byte
}

// MQTTBroker is the external collaborator an MQTTSource/MQTTSink talks
// to. spec.md §1 places the wire protocol itself out of core scope; a
// real implementation wraps a client library (e.g. paho), not
// reproduced here since no MQTT client appears anywhere in the
// retrieved corpus.
type MQTTBroker interface {
	// Connect establishes the session and subscribes to topics (a nil
	// or empty topics slice is valid for a publish-only connection).
	Connect(clientID string, broker MQTTBrokerConfig, topics []string) error
	// Receive blocks up to timeout for the next inbound message.
	Receive(timeout time.Duration) (MQTTEnvelope, bool, error)
	// Publish sends payload on topic.
	Publish(topic string, payload []byte) error
	Disconnect() error
}

// MQTTSourceConfig is MQTTSource's documented option set from spec.md §6.
type MQTTSourceConfig struct {
	Output   string           `yaml:"output"`
	Broker   MQTTBrokerConfig `yaml:"broker"`
	Topics   []string         `yaml:"topics"`
	ClientID string           `yaml:"client_id"`
}

// MQTTSource is a Filter that appends one message per inbound broker
// envelope, using the envelope's topic as Metadata.
type MQTTSource struct {
	name   string
	output *timeseries.Writer
	broker MQTTBroker
	cfg    MQTTSourceConfig
}

// NewMQTTSource builds an MQTTSource around broker, which must already
// satisfy the MQTTBroker contract (a real client or, in tests, an
// in-memory double).
func NewMQTTSource(name string, output *timeseries.Writer, broker MQTTBroker, cfg MQTTSourceConfig) *MQTTSource {
	return &MQTTSource{name: name, output: output, broker: broker, cfg: cfg}
}

func (s *MQTTSource) Name() string { return s.name }

func (s *MQTTSource) Start() error {
	return s.broker.Connect(s.cfg.ClientID, s.cfg.Broker, s.cfg.Topics)
}

func (s *MQTTSource) Stop() error {
	return s.broker.Disconnect()
}

func (s *MQTTSource) Step() (bool, error) {
	env, ok, err := s.broker.Receive(waitTimeout)
	if err != nil {
		return true, err
	}
	if !ok {
		return true, nil
	}

	msg := message.Message{
		TimestampType: message.Default,
		Metadata:      env.Topic,
		Value:         env.Payload,
	}
	_, err = s.output.AppendMessage(context.Background(), msg)
	return true, err
}

// MQTTSinkConfig is MQTTSink's documented option set from spec.md §6.
type MQTTSinkConfig struct {
	Input         string           `yaml:"input"`
	Broker        MQTTBrokerConfig `yaml:"broker"`
	ClientID      string           `yaml:"client_id"`
	Topic         string           `yaml:"topic"`
	ReplayHistory bool             `yaml:"replay_history"`
	PopInput      bool             `yaml:"pop_input"`
}

// MQTTSink is an Adapter that publishes each pushed message's value to
// a fixed topic.
type MQTTSink struct {
	filter.Adapter

	broker MQTTBroker
	cfg    MQTTSinkConfig
}

// NewMQTTSink builds an MQTTSink around broker.
func NewMQTTSink(name string, input *timeseries.Reader, inputMgr *timeseries.Writer, broker MQTTBroker, cfg MQTTSinkConfig) *MQTTSink {
	s := &MQTTSink{broker: broker, cfg: cfg}
	s.Adapter = filter.Adapter{
		FilterName:    name,
		Input:         input,
		InputMgr:      inputMgr,
		ReplayHistory: cfg.ReplayHistory,
		PopInput:      cfg.PopInput,
		Push:          s.push,
	}
	return s
}

func (s *MQTTSink) Start() error {
	if err := s.broker.Connect(s.cfg.ClientID, s.cfg.Broker, nil); err != nil {
		return err
	}
	return s.Adapter.Start()
}

func (s *MQTTSink) Stop() error {
	if err := s.Adapter.Stop(); err != nil {
		return err
	}
	return s.broker.Disconnect()
}

func (s *MQTTSink) push(ctx context.Context, msg message.Message) (filter.PushResult, error) {
	if err := s.broker.Publish(s.cfg.Topic, msg.Value); err != nil {
		return filter.PushRetry, err
	}
	return filter.PushSuccess, nil
}

// waitTimeout mirrors pkg/filter's bounded suspension point so an
// external-collaborator Filter stays within the same shutdown latency
// contract as the Source/Adapter base types.
const waitTimeout = 200 * time.Millisecond
