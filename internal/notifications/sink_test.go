package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
)

type fakeRedis struct {
	channel string
	payload []byte
	err     error
}

func (f *fakeRedis) Publish(_ context.Context, channel string, payload any) (int64, error) {
	f.channel = channel
	f.payload, _ = payload.([]byte)
	return 1, f.err
}

func (f *fakeRedis) QuotaChannel(tenantID string) string {
	return "hd:notifications:tenant:" + tenantID + ":quota"
}

type fakeResult struct {
	err error
}

func (f fakeResult) Get(context.Context) (string, error) {
	return "server-id", f.err
}

type fakeTopic struct {
	messages []*pubsub.Message
	resumed  []string
	err      error
}

func (f *fakeTopic) Publish(_ context.Context, msg *pubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	return fakeResult{err: f.err}
}

func (f *fakeTopic) ResumePublish(key string) {
	f.resumed = append(f.resumed, key)
}

type memoryCreator struct {
	rows []models.Notification
	err  error
}

func (m *memoryCreator) Create(_ context.Context, n *models.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, *n)
	return nil
}

type failingSink struct{ err error }

func (f failingSink) Publish(context.Context, Event) error { return f.err }

func sampleEvent() Event {
	return Event{
		TenantID:   uuid.New(),
		MetricKey:  "users",
		Used:       2,
		Max:        2,
		Percentage: 100,
		Severity:   enums.AlertSeverityCritical,
	}
}

func TestRedisSinkPublishesOnTenantChannel(t *testing.T) {
	client := &fakeRedis{}
	event := sampleEvent()
	require.NoError(t, NewRedisSink(client).Publish(context.Background(), event))

	assert.Equal(t, "hd:notifications:tenant:"+event.TenantID.String()+":quota", client.channel)
	var decoded Event
	require.NoError(t, json.Unmarshal(client.payload, &decoded))
	assert.Equal(t, event.Severity, decoded.Severity)

	client.err = errors.New("redis down")
	assert.Error(t, NewRedisSink(client).Publish(context.Background(), event))
}

func TestPubSubSinkOrdersByTenantChannel(t *testing.T) {
	topic := &fakeTopic{}
	sink := &PubSubSink{publisher: topic}
	event := sampleEvent()

	require.NoError(t, sink.Publish(context.Background(), event))
	require.Len(t, topic.messages, 1)
	msg := topic.messages[0]
	assert.Equal(t, event.Channel(), msg.OrderingKey)
	assert.Equal(t, event.Channel(), msg.Attributes["channel"])
	assert.Equal(t, "critical", msg.Attributes["severity"])

	topic.err = errors.New("unavailable")
	assert.Error(t, sink.Publish(context.Background(), event))
	assert.Equal(t, []string{event.Channel()}, topic.resumed)
}

func TestNewPubSubSinkRequiresPublisher(t *testing.T) {
	_, err := NewPubSubSink(nil)
	assert.Error(t, err)
}

func TestStoreSinkPersistsQuotaAlert(t *testing.T) {
	creator := &memoryCreator{}
	event := sampleEvent()
	require.NoError(t, NewStoreSink(creator).Publish(context.Background(), event))

	require.Len(t, creator.rows, 1)
	row := creator.rows[0]
	assert.Equal(t, event.TenantID, row.TenantID)
	assert.Equal(t, enums.NotificationTypeQuotaAlert, row.Type)
	assert.Equal(t, enums.AlertSeverityCritical, row.Severity)
	assert.Equal(t, "users limit reached", row.Title)
	assert.JSONEq(t, string(mustJSON(t, event)), string(row.Payload))
}

func TestFanoutCombinesErrors(t *testing.T) {
	creator := &memoryCreator{}
	fanout := NewFanoutSink(
		NewStoreSink(creator),
		nil,
		failingSink{err: errors.New("redis down")},
		failingSink{err: errors.New("pubsub down")},
	)
	assert.Equal(t, 3, fanout.Len())

	err := fanout.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
	assert.Contains(t, err.Error(), "pubsub down")
	assert.Len(t, creator.rows, 1, "healthy sinks still receive the event")
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
