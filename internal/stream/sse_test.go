package stream

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewSSERelayRequiresFlusher(t *testing.T) {
	var buf bytes.Buffer
	if _, ok := NewSSERelay(context.Background(), &buf); ok {
		t.Fatalf("plain writer should be rejected")
	}
}

func TestSSERelayFramesEvents(t *testing.T) {
	rec := httptest.NewRecorder()
	relay, ok := NewSSERelay(context.Background(), rec)
	if !ok {
		t.Fatalf("recorder should support flushing")
	}

	relay.Progress("scraping profile")
	relay.Chunk("Hello")
	relay.Final(map[string]any{"keywords": []string{"golang"}})

	body := rec.Body.String()
	if !strings.Contains(body, "event: progress\ndata: {\"progress\":\"scraping profile\"}\n\n") {
		t.Fatalf("body = %q", body)
	}
	if !strings.Contains(body, "event: chunk\ndata: {\"chunk\":\"Hello\"}\n\n") {
		t.Fatalf("body = %q", body)
	}
	if !strings.Contains(body, "event: done") || !strings.Contains(body, `"done":true`) {
		t.Fatalf("body = %q", body)
	}
	if !strings.Contains(body, `"keywords":["golang"]`) {
		t.Fatalf("final payload not merged into envelope: %q", body)
	}

	// client-observed order matches emit order
	progressAt := strings.Index(body, "event: progress")
	chunkAt := strings.Index(body, "event: chunk")
	doneAt := strings.Index(body, "event: done")
	if !(progressAt < chunkAt && chunkAt < doneAt) {
		t.Fatalf("events out of order: %q", body)
	}
}

func TestSSERelaySingleTerminalEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	relay, _ := NewSSERelay(context.Background(), rec)

	relay.Final(map[string]any{"keywords": []string{"golang"}})
	relay.Error("late failure")

	body := rec.Body.String()
	if strings.Contains(body, "event: error") {
		t.Fatalf("second terminal event must be dropped: %q", body)
	}
}

func TestSSERelayErrorEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	relay, _ := NewSSERelay(context.Background(), rec)

	relay.Error("scrape timed out")

	body := rec.Body.String()
	if !strings.Contains(body, "event: error\ndata: {\"error\":\"scrape timed out\"}\n\n") {
		t.Fatalf("body = %q", body)
	}
}

func TestSSERelayClosesOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := httptest.NewRecorder()
	relay, _ := NewSSERelay(ctx, rec)

	cancel()
	if !relay.Closed() {
		t.Fatalf("relay should report closed after cancellation")
	}
	relay.Progress("should be dropped")
	if rec.Body.Len() != 0 {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

type brokenWriter struct {
	writes int
	allow  int
}

func (w *brokenWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > w.allow {
		return 0, errors.New("broken pipe")
	}
	return len(p), nil
}

func (w *brokenWriter) Flush() {}

func TestSSERelayClosesOnWriteFailure(t *testing.T) {
	w := &brokenWriter{allow: 2}
	relay, ok := NewSSERelay(context.Background(), w)
	if !ok {
		t.Fatalf("flusher writer rejected")
	}

	relay.Progress("first")
	if relay.Closed() {
		t.Fatalf("relay closed too early")
	}
	relay.Progress("second")
	if !relay.Closed() {
		t.Fatalf("write failure should close the relay")
	}
	writesBefore := w.writes
	relay.Progress("third")
	if w.writes != writesBefore {
		t.Fatalf("closed relay must not write")
	}
}

func TestFinalEnvelopeNonObjectPayload(t *testing.T) {
	env := finalEnvelope([]string{"a", "b"})
	if env["done"] != true {
		t.Fatalf("env = %+v", env)
	}
	if _, ok := env["result"]; !ok {
		t.Fatalf("non-object payload should nest under result: %+v", env)
	}
}

func TestConsoleRelayRouting(t *testing.T) {
	var out, errBuf bytes.Buffer
	relay := &ConsoleRelay{Out: &out, Err: &errBuf}

	relay.Progress("scraping profile")
	relay.Chunk("Hel")
	relay.Chunk("lo")
	relay.Error("scrape timed out")

	if got := errBuf.String(); !strings.Contains(got, "* scraping profile") || !strings.Contains(got, "error: scrape timed out") {
		t.Fatalf("err output = %q", got)
	}
	if out.String() != "Hello" {
		t.Fatalf("out = %q", out.String())
	}
}
