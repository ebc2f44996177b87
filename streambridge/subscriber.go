package streambridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	streamopts "goa.design/pulse/streaming/options"

	"github.com/deepresearchhq/engine/driver"
	clientspulse "github.com/deepresearchhq/engine/streambridge/clients/pulse"
)

// Subscriber consumes a thread's Pulse stream and emits driver.Event values,
// for HTTP/UI layers that were not the goroutine which called
// driver.Stream/Resume (e.g. a second browser tab reattaching to an
// in-progress run).
type Subscriber struct {
	client clientspulse.Client
	name   string
	buffer int
}

// SubscriberOptions configures a Subscriber.
type SubscriberOptions struct {
	// Client is the Pulse client used to consume events. Required.
	Client clientspulse.Client
	// SinkName identifies the Pulse consumer group. Defaults to
	// "streambridge_subscriber".
	SinkName string
	// Buffer specifies the event channel capacity. Defaults to 64.
	Buffer int
}

// NewSubscriber constructs a Pulse-backed Subscriber.
func NewSubscriber(opts SubscriberOptions) (*Subscriber, error) {
	if opts.Client == nil {
		return nil, errors.New("streambridge: pulse client is required")
	}
	name := opts.SinkName
	if name == "" {
		name = "streambridge_subscriber"
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	return &Subscriber{client: opts.Client, name: name, buffer: buffer}, nil
}

// Subscribe opens a Pulse sink on threadID's stream and returns channels of
// decoded driver.Event values and any consume error, plus a cancel function
// that stops consumption and closes the underlying Pulse sink. Extra sink
// options (e.g. replay position) pass straight through to Pulse.
func (s *Subscriber) Subscribe(ctx context.Context, threadID string, opts ...streamopts.Sink) (<-chan driver.Event, <-chan error, context.CancelFunc, error) {
	str, err := s.client.Stream(StreamName(threadID))
	if err != nil {
		return nil, nil, nil, err
	}
	sink, err := str.NewSink(ctx, s.name, opts...)
	if err != nil {
		return nil, nil, nil, err
	}

	events := make(chan driver.Event, s.buffer)
	errs := make(chan error, 1)
	runCtx, cancel := context.WithCancel(ctx)
	go s.consume(runCtx, sink, events, errs)
	cancelFunc := func() {
		cancel()
		sink.Close(context.Background())
	}
	return events, errs, cancelFunc, nil
}

func (s *Subscriber) consume(ctx context.Context, sink clientspulse.Sink, out chan<- driver.Event, errs chan<- error) {
	defer close(out)
	defer close(errs)
	ch := sink.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			var env Envelope
			if err := json.Unmarshal(evt.Payload, &env); err != nil {
				errs <- fmt.Errorf("streambridge: decode payload: %w", err)
				return
			}
			select {
			case out <- env.Event:
			case <-ctx.Done():
				return
			}
			if ackErr := sink.Ack(ctx, evt); ackErr != nil {
				errs <- fmt.Errorf("streambridge: ack: %w", ackErr)
				return
			}
		}
	}
}
