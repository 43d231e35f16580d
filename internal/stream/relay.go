// Package stream carries live run output to clients. A Relay receives
// progress labels, streamed text fragments and exactly one terminal event;
// implementations decide the framing.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Relay is the ordered event sink of one run. Emissions happen from a single
// goroutine in call order. After the first terminal event (Final or Error),
// or once the underlying transport fails, a relay is closed and later
// emissions are dropped.
type Relay interface {
	// Progress reports a human-readable status line.
	Progress(label string)
	// Chunk forwards a fragment of streamed assistant text.
	Chunk(fragment string)
	// Final emits the terminal success payload. Terminal.
	Final(payload any)
	// Error emits the terminal failure message. Terminal.
	Error(message string)
	// Closed reports whether the relay stopped accepting events, letting
	// producers cut upstream work short.
	Closed() bool
}

// finalEnvelope renders {done:true, ...payload}. A payload that does not
// marshal to a JSON object is nested under "result".
func finalEnvelope(payload any) map[string]any {
	b, err := json.Marshal(payload)
	if err != nil {
		return map[string]any{"done": true, "error": "unserializable result: " + err.Error()}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil || m == nil {
		return map[string]any{"done": true, "result": json.RawMessage(b)}
	}
	m["done"] = true
	return m
}

// NopRelay drops every event. Used for non-streaming runs.
type NopRelay struct{}

func (NopRelay) Progress(string) {}
func (NopRelay) Chunk(string)    {}
func (NopRelay) Final(any)       {}
func (NopRelay) Error(string)    {}
func (NopRelay) Closed() bool    { return false }

// ConsoleRelay prints run events for terminal sessions: progress labels go to
// Err, streamed text goes to Out verbatim.
type ConsoleRelay struct {
	Out io.Writer
	Err io.Writer
}

func NewConsoleRelay() *ConsoleRelay {
	return &ConsoleRelay{Out: os.Stdout, Err: os.Stderr}
}

func (r *ConsoleRelay) Progress(label string) { fmt.Fprintln(r.Err, "* "+label) }
func (r *ConsoleRelay) Chunk(fragment string) { fmt.Fprint(r.Out, fragment) }
func (r *ConsoleRelay) Final(any)             { fmt.Fprintln(r.Out) }
func (r *ConsoleRelay) Error(message string)  { fmt.Fprintln(r.Err, "error: "+message) }
func (r *ConsoleRelay) Closed() bool          { return false }
