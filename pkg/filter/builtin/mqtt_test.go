package builtin

import (
	"testing"

	"github.com/abrandao/iotseries/pkg/message"
)

func TestMQTTSourceAppendsReceivedEnvelopes(t *testing.T) {
	mgr := newTestManager(t)
	mustCreate(t, mgr, "out", message.Sequence)
	w, err := mgr.OpenWriter("out")
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	r, err := mgr.OpenReader("out", false)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}

	broker := &fakeMQTTBroker{inbox: []MQTTEnvelope{
		{Topic: "sensors/temp", Payload: []byte("21.5")},
	}}
	src := NewMQTTSource("mqttsrc", w, broker, MQTTSourceConfig{Broker: DefaultMQTTBrokerConfig()})
	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()
	if !broker.connected {
		t.Fatal("expected broker to be connected after Start")
	}

	if _, err := src.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	got := readAllValues(t, r)
	if len(got) != 1 || got[0] != "21.5" {
		t.Errorf("got %v, want [\"21.5\"]", got)
	}

	// A second Step with an empty inbox is a no-op, not an error.
	if cont, err := src.Step(); err != nil || !cont {
		t.Fatalf("idle Step: cont=%v err=%v", cont, err)
	}
}

func TestMQTTSinkPublishesPushedMessages(t *testing.T) {
	mgr := newTestManager(t)
	mustCreate(t, mgr, "in", message.Sequence)
	w, err := mgr.OpenWriter("in")
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	if err := appendString(w, "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	r, err := mgr.OpenReader("in", false)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}

	broker := &fakeMQTTBroker{}
	sink := NewMQTTSink("mqttsink", r, nil, broker, MQTTSinkConfig{Broker: DefaultMQTTBrokerConfig(), Topic: "out/topic", ReplayHistory: true})
	if err := sink.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sink.Stop()

	if _, err := sink.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if len(broker.published) != 1 || string(broker.published[0].Payload) != "hello" || broker.published[0].Topic != "out/topic" {
		t.Errorf("published = %+v, want one envelope {out/topic, hello}", broker.published)
	}
}
