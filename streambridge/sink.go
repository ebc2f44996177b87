// Package streambridge publishes driver.Event values onto goa.design/pulse
// streams, one stream per thread_id, so multiple HTTP/UI subscribers can
// observe a single run's stream()/resume() events without the driver
// knowing anything about HTTP or Redis. Adapted from the teacher's
// features/stream/pulse/{sink.go,subscriber.go}, narrowed to this engine's
// single Event type in place of goa-ai's stream.Event interface hierarchy.
package streambridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/deepresearchhq/engine/driver"
	clientspulse "github.com/deepresearchhq/engine/streambridge/clients/pulse"
)

// Envelope wraps one driver.Event for transmission over a Pulse stream.
type Envelope struct {
	Type      string      `json:"type"`
	ThreadID  string      `json:"thread_id"`
	Timestamp time.Time   `json:"timestamp"`
	Event     driver.Event `json:"event"`
}

// Sink publishes driver.Event values into per-thread Pulse streams.
// Thread-safe for concurrent Send calls.
type Sink struct {
	client clientspulse.Client
}

// NewSink constructs a Pulse-backed Sink over client.
func NewSink(client clientspulse.Client) (*Sink, error) {
	if client == nil {
		return nil, errors.New("streambridge: pulse client is required")
	}
	return &Sink{client: client}, nil
}

// Send publishes one event onto the Pulse stream for threadID.
func (s *Sink) Send(ctx context.Context, threadID string, event driver.Event) error {
	str, err := s.client.Stream(StreamName(threadID))
	if err != nil {
		return err
	}
	env := Envelope{Type: string(event.Type), ThreadID: threadID, Timestamp: time.Now().UTC(), Event: event}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("streambridge: marshal envelope: %w", err)
	}
	_, err = str.Add(ctx, env.Type, payload)
	return err
}

// Pump reads every event off events and publishes it to the Pulse stream for
// threadID until events closes, returning the first publish error
// encountered (if any). Intended to be run in its own goroutine alongside a
// driver.Stream/Resume call: the driver's event channel feeds straight into
// the bridge, with no HTTP/Redis awareness on the driver side.
func (s *Sink) Pump(ctx context.Context, threadID string, events <-chan driver.Event) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.Send(ctx, threadID, ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// StreamName derives the Pulse stream name for threadID.
func StreamName(threadID string) string {
	return fmt.Sprintf("research/%s", threadID)
}
