// Package eventbus provides the default EventSink: a bounded, non-blocking
// fan-out to a configured webhook (adapted from the donor's
// webhook.Service.Notify) and a Redis list (adapted from the donor's
// queue.Service RPush/BLPop shape) for any out-of-process consumer this
// core does not itself implement.
package eventbus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/registryx/registryx/pkg/logging"
)

// Action names mirrored from the core's Event.Kind values.
const (
	KindBlobPut        = "blob.put"
	KindManifestPut     = "manifest.put"
	KindTagSet          = "tag.set"
	KindBlobDelete      = "blob.delete"
	KindManifestDelete  = "manifest.delete"
)

// Event is the data fanned out for any repository mutation.
type Event struct {
	Kind       string    `json:"kind"`
	Repository string    `json:"repository"`
	Digest     string    `json:"digest"`
	Tag        string    `json:"tag"`
	At         time.Time `json:"at"`
	Subject    string    `json:"subject"`
}

// QueueKey is the Redis list events are pushed onto for async consumers.
const QueueKey = "registryx:events"

// Bus is the default EventSink implementation.
type Bus struct {
	WebhookURL string
	Redis      *redis.Client
	events     chan Event
	client     *http.Client
}

// NewBus starts the draining goroutine and returns a Bus ready to Emit
// into. bufSize bounds how many in-flight events are buffered before
// Emit starts dropping, per the "never blocks the caller" requirement.
func NewBus(ctx context.Context, webhookURL string, rdb *redis.Client, bufSize int) *Bus {
	b := &Bus{
		WebhookURL: webhookURL,
		Redis:      rdb,
		events:     make(chan Event, bufSize),
		client:     &http.Client{Timeout: 5 * time.Second},
	}
	go b.drain(ctx)
	return b
}

// Emit enqueues event for async delivery. A full buffer drops the event
// and logs a warning rather than blocking the caller's request.
func (b *Bus) Emit(ctx context.Context, event Event) {
	select {
	case b.events <- event:
	default:
		logging.WithFields(map[string]any{"kind": event.Kind, "repository": event.Repository}).Warn("event bus buffer full, dropping event")
	}
}

func (b *Bus) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.events:
			b.deliver(ctx, event)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, event Event) {
	if b.Redis != nil {
		payload, err := json.Marshal(event)
		if err == nil {
			if err := b.Redis.RPush(ctx, QueueKey, payload).Err(); err != nil {
				logging.Log.WithError(err).Warn("event bus: failed to push to redis queue")
			}
		}
	}

	if err := b.notifyWebhook(ctx, event); err != nil {
		logging.Log.WithError(err).Warn("event bus: webhook delivery failed")
	}
}

func (b *Bus) notifyWebhook(ctx context.Context, event Event) error {
	if b.WebhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status: %d", resp.StatusCode)
	}
	return nil
}
