// Package activity keeps a short ring of recent pipeline events in Redis so
// operators can see what the service just did without digging through logs.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hostwise/whatsapp-concierge/pkg/logging"
)

const defaultCapacity = 100

const feedKey = "concierge:activity"

// Event is one entry in the feed.
type Event struct {
	Time           time.Time      `json:"time"`
	Kind           string         `json:"kind"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Detail         map[string]any `json:"detail,omitempty"`
}

// Recorder appends events to a capped Redis list. Failures are logged and
// swallowed so the feed can never break message processing.
type Recorder struct {
	client   *redis.Client
	capacity int
	logger   *logging.Logger
}

func NewRecorder(client *redis.Client, capacity int, logger *logging.Logger) *Recorder {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{client: client, capacity: capacity, logger: logger}
}

// Record appends an event and trims the feed to capacity.
func (r *Recorder) Record(ctx context.Context, evt Event) {
	if r == nil || r.client == nil {
		return
	}
	if evt.Time.IsZero() {
		evt.Time = time.Now().UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		r.logger.Warn("activity: marshal event", "error", err)
		return
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, feedKey, payload)
	pipe.LTrim(ctx, feedKey, 0, int64(r.capacity-1))
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("activity: record event", "kind", evt.Kind, "error", err)
	}
}

// Recent returns up to n events, newest first.
func (r *Recorder) Recent(ctx context.Context, n int) ([]Event, error) {
	if r == nil || r.client == nil {
		return nil, nil
	}
	if n <= 0 || n > r.capacity {
		n = r.capacity
	}
	raw, err := r.client.LRange(ctx, feedKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("activity: read feed: %w", err)
	}
	out := make([]Event, 0, len(raw))
	for _, item := range raw {
		var evt Event
		if err := json.Unmarshal([]byte(item), &evt); err != nil {
			continue
		}
		out = append(out, evt)
	}
	return out, nil
}
