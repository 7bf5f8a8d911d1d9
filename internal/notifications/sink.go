package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/multierr"

	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
)

// Sink delivers quota alerts.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, payload any) (int64, error)
	QuotaChannel(tenantID string) string
}

// RedisSink publishes alerts on the tenant's realtime channel.
type RedisSink struct {
	client redisPublisher
}

// NewRedisSink wraps the shared redis client.
func NewRedisSink(client redisPublisher) *RedisSink {
	return &RedisSink{client: client}
}

func (s *RedisSink) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode quota event: %w", err)
	}
	if _, err := s.client.Publish(ctx, s.client.QuotaChannel(event.TenantID.String()), payload); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type topicPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}

// PubSubSink forwards alerts to the quota alert topic for email and SMS
// fan-out. The tenant channel is the ordering key.
type PubSubSink struct {
	publisher topicPublisher
}

// NewPubSubSink wraps an ordered Pub/Sub publisher.
func NewPubSubSink(p *pubsub.Publisher) (*PubSubSink, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return &PubSubSink{publisher: &gcpPublisher{Publisher: p}}, nil
}

func (s *PubSubSink) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode quota event: %w", err)
	}
	channel := event.Channel()
	msg := &pubsub.Message{
		Data:        payload,
		OrderingKey: channel,
		Attributes: map[string]string{
			"channel":    channel,
			"tenant_id":  event.TenantID.String(),
			"metric_key": event.MetricKey,
			"severity":   string(event.Severity),
		},
	}
	if _, err := s.publisher.Publish(ctx, msg).Get(ctx); err != nil {
		s.publisher.ResumePublish(channel)
		return fmt.Errorf("pubsub publish: %w", err)
	}
	return nil
}

type notificationCreator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// StoreSink persists an in-app notification row.
type StoreSink struct {
	repo notificationCreator
}

// NewStoreSink wraps the notifications repository.
func NewStoreSink(repo notificationCreator) *StoreSink {
	return &StoreSink{repo: repo}
}

func (s *StoreSink) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode quota event: %w", err)
	}
	return s.repo.Create(ctx, &models.Notification{
		TenantID:  event.TenantID,
		Type:      enums.NotificationTypeQuotaAlert,
		Severity:  event.Severity,
		MetricKey: event.MetricKey,
		Title:     event.Title(),
		Message:   event.Message(),
		Payload:   payload,
	})
}

// FanoutSink publishes to every sink and combines their errors.
type FanoutSink struct {
	sinks []Sink
}

// NewFanoutSink drops nil sinks.
func NewFanoutSink(sinks ...Sink) *FanoutSink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &FanoutSink{sinks: out}
}

// Len reports the number of wired sinks.
func (f *FanoutSink) Len() int {
	return len(f.sinks)
}

func (f *FanoutSink) Publish(ctx context.Context, event Event) error {
	var errs error
	for _, s := range f.sinks {
		errs = multierr.Append(errs, s.Publish(ctx, event))
	}
	return errs
}
