// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/shiba-arcade/hackatime-sync/internal/breaker"
	"github.com/shiba-arcade/hackatime-sync/internal/config"
	"github.com/shiba-arcade/hackatime-sync/internal/logging"
	"github.com/shiba-arcade/hackatime-sync/internal/metrics"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("events: publisher is closed")

// Publisher emits reconciliation events.
type Publisher interface {
	PublishGameSecondsUpdated(ctx context.Context, e *GameSecondsUpdated) error
	PublishPostHoursUpdated(ctx context.Context, e *PostHoursUpdated) error
	PublishSyncCompleted(ctx context.Context, e *SyncCompleted) error
	Close() error
}

// New returns a NATS-backed publisher when events are enabled and a no-op
// publisher otherwise.
func New(cfg *config.EventsConfig) (Publisher, error) {
	if !cfg.Enabled {
		return NopPublisher{}, nil
	}
	return NewNATSPublisher(cfg)
}

// WatermillPublisher adapts any Watermill message.Publisher, guarded by a
// circuit breaker so a dead broker does not slow every game write.
type WatermillPublisher struct {
	publisher message.Publisher
	prefix    string
	breaker   *breaker.Breaker[struct{}]

	mu     sync.RWMutex
	closed bool
}

// NewWatermillPublisher wraps pub. Topics become prefix + "." + suffix.
func NewWatermillPublisher(pub message.Publisher, prefix string) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: pub,
		prefix:    prefix,
		breaker:   breaker.New[struct{}]("event-publisher", breaker.Options{MinRequests: 5}),
	}
}

// NewNATSPublisher connects to the configured NATS server.
func NewNATSPublisher(cfg *config.EventsConfig) (*WatermillPublisher, error) {
	logger := NewWatermillLogger()

	natsOpts := []natsgo.Option{
		natsgo.Name("hackatime-sync"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}
	return NewWatermillPublisher(pub, cfg.TopicPrefix), nil
}

// Topic returns the full topic for a suffix.
func (p *WatermillPublisher) Topic(suffix string) string {
	if p.prefix == "" {
		return suffix
	}
	return p.prefix + "." + suffix
}

func (p *WatermillPublisher) publish(ctx context.Context, suffix string, payload any) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", suffix, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	if runID := logging.RunIDFromContext(ctx); runID != "" {
		msg.Metadata.Set("run_id", runID)
	}

	topic := p.Topic(suffix)
	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.publisher.Publish(topic, msg)
	})
	metrics.RecordEventPublish(topic, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *WatermillPublisher) PublishGameSecondsUpdated(ctx context.Context, e *GameSecondsUpdated) error {
	return p.publish(ctx, TopicGameSecondsUpdated, e)
}

func (p *WatermillPublisher) PublishPostHoursUpdated(ctx context.Context, e *PostHoursUpdated) error {
	return p.publish(ctx, TopicPostHoursUpdated, e)
}

func (p *WatermillPublisher) PublishSyncCompleted(ctx context.Context, e *SyncCompleted) error {
	return p.publish(ctx, TopicSyncCompleted, e)
}

// Close closes the underlying publisher once.
func (p *WatermillPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishGameSecondsUpdated(context.Context, *GameSecondsUpdated) error {
	return nil
}

func (NopPublisher) PublishPostHoursUpdated(context.Context, *PostHoursUpdated) error {
	return nil
}

func (NopPublisher) PublishSyncCompleted(context.Context, *SyncCompleted) error { return nil }

func (NopPublisher) Close() error { return nil }
