package builtin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abrandao/iotseries/pkg/message"
)

func TestHttpPostPushesBodyAndContentType(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	mgr := newTestManager(t)
	mustCreate(t, mgr, "in", message.Sequence)
	w, err := mgr.OpenWriter("in")
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	if _, err := w.AppendMessage(context.Background(), message.Message{TimestampType: message.Sequence, Metadata: "text/plain", Value: []byte("payload")}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	r, err := mgr.OpenReader("in", false)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}

	cfg := DefaultHttpPostConfig()
	cfg.Input = "in"
	cfg.URL = srv.URL
	cfg.ReplayHistory = true
	hp := NewHttpPost("httppost", r, nil, cfg)
	if err := hp.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer hp.Stop()

	if _, err := hp.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if string(gotBody) != "payload" {
		t.Errorf("posted body = %q, want %q", gotBody, "payload")
	}
	if gotContentType != "text/plain" {
		t.Errorf("Content-Type = %q, want %q", gotContentType, "text/plain")
	}
}

func TestHttpPostServerErrorRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	mgr := newTestManager(t)
	mustCreate(t, mgr, "in", message.Sequence)
	w, err := mgr.OpenWriter("in")
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	if _, err := w.AppendMessage(context.Background(), message.Message{TimestampType: message.Sequence, Value: []byte("baseline")}); err != nil {
		t.Fatalf("AppendMessage baseline: %v", err)
	}
	r, err := mgr.OpenReader("in", false)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}

	cfg := DefaultHttpPostConfig()
	cfg.URL = srv.URL
	hp := NewHttpPost("httppost", r, nil, cfg)
	if err := hp.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer hp.Stop()

	if _, err := w.AppendMessage(context.Background(), message.Message{TimestampType: message.Sequence, Value: []byte("x")}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	if _, err := hp.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	after1 := r.Timestamp()
	if _, err := hp.Step(); err != nil {
		t.Fatalf("Step retry: %v", err)
	}
	after2 := r.Timestamp()
	if after1 != after2 {
		t.Errorf("expected read head to stay put on retry, moved from %d to %d", after1, after2)
	}
}
