// Package webhooks delivers run events to externally configured HTTP
// endpoints with signing and exponential backoff.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"carpnav/internal/metrics"
	"carpnav/internal/model"
)

// delivery is one event queued for one endpoint.
type delivery struct {
	ID        string
	URL       string
	EventType string
	Payload   []byte
	Attempts  int
	NextAt    time.Time
}

// Notifier queues events in memory and posts them from a single background
// loop. Pending deliveries are lost on restart.
type Notifier struct {
	HTTP        *http.Client
	URLs        []string
	Secret      string
	Events      []string
	MaxAttempts int

	mu      sync.Mutex
	pending []*delivery
	now     func() time.Time
	stop    chan struct{}
	done    chan struct{}
}

func NewNotifier(urls []string, secret string, events []string, maxAttempts int) *Notifier {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Notifier{
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		URLs:        urls,
		Secret:      secret,
		Events:      events,
		MaxAttempts: maxAttempts,
		now:         time.Now,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Wants reports whether evt should be delivered. An empty Events list
// selects every type.
func (n *Notifier) Wants(evt model.Event) bool {
	return len(n.Events) == 0 || slices.Contains(n.Events, evt.Type)
}

// Enqueue schedules evt for every endpoint.
func (n *Notifier) Enqueue(evt model.Event) {
	if !n.Wants(evt) {
		return
	}
	body, err := json.Marshal(map[string]any{
		"id":   uuid.NewString(),
		"type": evt.Type,
		"ts":   evt.TS,
		"data": evt,
	})
	if err != nil {
		log.Error().Err(err).Str("type", evt.Type).Msg("webhook payload")
		return
	}
	now := n.now()
	n.mu.Lock()
	for _, u := range n.URLs {
		n.pending = append(n.pending, &delivery{ID: uuid.NewString(), URL: u, EventType: evt.Type, Payload: body, NextAt: now})
	}
	n.mu.Unlock()
}

// Pending is the number of queued deliveries.
func (n *Notifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

// Start runs the delivery loop until Stop.
func (n *Notifier) Start() {
	go func() {
		defer close(n.done)
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-n.stop:
				return
			case <-ticker.C:
				n.processOnce(context.Background())
			}
		}
	}()
}

// Stop ends the loop started by Start and waits for it.
func (n *Notifier) Stop() {
	close(n.stop)
	<-n.done
}

func (n *Notifier) due() []*delivery {
	now := n.now()
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []*delivery
	keep := n.pending[:0]
	for _, d := range n.pending {
		if !d.NextAt.After(now) && len(out) < 50 {
			out = append(out, d)
			continue
		}
		keep = append(keep, d)
	}
	n.pending = keep
	return out
}

func (n *Notifier) processOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for _, d := range n.due() {
		code, err := n.post(ctx, d)
		if err == nil && code >= 200 && code < 300 {
			metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
			continue
		}
		d.Attempts++
		lg := log.Warn().Str("delivery", d.ID).Str("url", d.URL).Str("type", d.EventType).Int("attempts", d.Attempts).Int("code", code).Err(err)
		if d.Attempts >= n.MaxAttempts {
			metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
			lg.Msg("webhook dropped")
			continue
		}
		metrics.WebhookDeliveries.WithLabelValues("retry").Inc()
		lg.Msg("webhook retry")
		d.NextAt = n.now().Add(nextBackoff(d.Attempts))
		n.mu.Lock()
		n.pending = append(n.pending, d)
		n.mu.Unlock()
	}
}

func (n *Notifier) post(ctx context.Context, d *delivery) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.EventType)
	if n.Secret != "" {
		req.Header.Set("X-Signature", Sign(n.Secret, d.Payload))
	}
	resp, err := n.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
