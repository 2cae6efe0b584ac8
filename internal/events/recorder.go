package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/abdul-hamid-achik/mediaflow/internal/logger"
)

var _ Publisher = (*Recorder)(nil)

// Recorder keeps published events in memory. Tests use it directly; the
// "log" event bus wraps it with logging.
type Recorder struct {
	mu     sync.Mutex
	events []*Event
	log    bool

	// Err, when set, fails every publish after recording the attempt.
	Err error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// NewLogPublisher returns a Recorder that also writes each event to the log.
func NewLogPublisher() *Recorder {
	return &Recorder{log: true}
}

func (r *Recorder) Publish(ctx context.Context, e *Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	err := r.Err
	r.mu.Unlock()

	if r.log {
		logger.FromContext(ctx).Info("event", "routing_key", e.RoutingKey, "event_id", e.ID, "data", string(e.Data))
	}
	return err
}

func (r *Recorder) Close() error {
	return nil
}

func (r *Recorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByRoutingKey returns recorded events with the given routing key.
func (r *Recorder) ByRoutingKey(key string) []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Event
	for _, e := range r.events {
		if e.RoutingKey == key {
			out = append(out, e)
		}
	}
	return out
}

// DataMap decodes an event payload into a generic map (test helper).
func DataMap(e *Event) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(e.Data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
