package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/eunej/CleanField/internal/httpclient"
)

// Publisher logs every event and forwards it to registered webhooks.
// Deliveries are retried on transient gateway statuses; receivers dedupe on
// the idempotency key. Webhook failures are logged, never returned.
type Publisher struct {
	source    string
	client    *httpclient.Client
	mu        sync.RWMutex
	fallback  string            // receives event types without their own endpoint
	endpoints map[string]string // eventType -> webhook URL
}

// NewPublisher creates a new event publisher
func NewPublisher(source string) *Publisher {
	return &Publisher{
		source:    source,
		client:    httpclient.NewClient("events", 5*time.Second, httpclient.WithRetry(httpclient.DefaultRetryConfig())),
		endpoints: make(map[string]string),
	}
}

// RegisterEndpoint registers a webhook endpoint for an event type
func (p *Publisher) RegisterEndpoint(eventType, webhookURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoints[eventType] = webhookURL
}

// RegisterDefault sends every event type without a dedicated endpoint to webhookURL
func (p *Publisher) RegisterDefault(webhookURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = webhookURL
}

// Publish logs the event and delivers it to its webhook, if any
func (p *Publisher) Publish(ctx context.Context, eventType string, data map[string]any) {
	now := time.Now().UTC()
	envelope := Envelope{
		EventID:        generateEventID(),
		EventType:      eventType,
		SchemaVersion:  "1.0",
		IdempotencyKey: fmt.Sprintf("%s_%v_%d", eventType, data["farm_id"], now.Unix()),
		Timestamp:      now,
		Source:         p.source,
		Data:           data,
	}
	if farmID, ok := data["farm_id"].(string); ok {
		envelope.FarmID = farmID
	}

	slog.InfoContext(ctx, "event_published",
		"event_id", envelope.EventID,
		"event_type", envelope.EventType,
		"farm_id", envelope.FarmID,
		"source", envelope.Source,
	)

	if webhookURL := p.endpointFor(eventType); webhookURL != "" {
		p.sendWebhook(ctx, webhookURL, envelope)
	}
}

func (p *Publisher) endpointFor(eventType string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if url, ok := p.endpoints[eventType]; ok {
		return url
	}
	return p.fallback
}

func (p *Publisher) sendWebhook(ctx context.Context, url string, envelope Envelope) {
	err := httpclient.NewRequest(http.MethodPost, url).
		Header("X-Event-ID", envelope.EventID).
		Header("X-Event-Type", envelope.EventType).
		JSON(envelope).
		Context(ctx).
		ExecuteJSON(p.client, nil)
	if err != nil {
		slog.WarnContext(ctx, "webhook_failed",
			"url", url,
			"event_type", envelope.EventType,
			"error", err,
		)
	}
}

func generateEventID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return "evt_" + hex.EncodeToString(b[:])
}
