package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xiebiao/rentalhub/internal/domain/notification"
	"github.com/xiebiao/rentalhub/pkg/circuitbreaker"
)

type fakePublisher struct {
	err   error
	calls int
	keys  []string
	ids   []string
}

func (p *fakePublisher) Publish(_ context.Context, routingKey, messageID string, _ interface{}) error {
	p.calls++
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, routingKey)
	p.ids = append(p.ids, messageID)
	return nil
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Notify(context.Background(), notification.Message{OrderID: 7, Kind: notification.KindOverdue}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "OVERDUE", logs.All()[0].ContextMap()["kind"])
}

func TestMQNotifier_RoutingKeys(t *testing.T) {
	pub := &fakePublisher{}
	n := NewMQNotifier(pub, "rental.events", zap.NewNop())

	require.NoError(t, n.Notify(context.Background(), notification.Message{EventID: "e1", Kind: notification.KindDueSoon}))
	require.NoError(t, n.Notify(context.Background(), notification.Message{EventID: "e2", Kind: notification.KindOverdue}))

	assert.Equal(t, []string{RoutingKeyDueSoon, RoutingKeyOverdue}, pub.keys)
	assert.Equal(t, []string{"e1", "e2"}, pub.ids)
}

func TestMQNotifier_BreakerOpensAfterFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel/connection is not open")}
	n := NewMQNotifier(pub, "rental.events", zap.NewNop())
	msg := notification.Message{EventID: "e", Kind: notification.KindOverdue}

	for i := 0; i < 3; i++ {
		err := n.Notify(context.Background(), msg)
		assert.ErrorIs(t, err, notification.ErrNotifyFailed)
	}
	assert.Equal(t, circuitbreaker.StateOpen, n.State())

	// 熔断打开后不再调用MQ
	err := n.Notify(context.Background(), msg)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpenState)
	assert.Equal(t, 3, pub.calls)
}
