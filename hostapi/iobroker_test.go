package hostapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	respond func(instance, command string, msg any) (any, bool)
}

func (f *fakeSender) SendTo(ctx context.Context, instance, command string, msg any) (<-chan any, error) {
	ch := make(chan any, 1)
	if resp, ok := f.respond(instance, command, msg); ok {
		ch <- resp
	}
	return ch, nil
}

func TestIOBrokerSendToReturnsResponse(t *testing.T) {
	sender := &fakeSender{respond: func(instance, command string, msg any) (any, bool) {
		return "pong", true
	}}
	b := IOBroker{Sender: sender, OwnInstance: "msghub.0"}

	resp, err := b.SendTo(context.Background(), "hm-rpc.0", "ping", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "pong", resp)
}

func TestIOBrokerSendToTimesOutWithoutResponse(t *testing.T) {
	sender := &fakeSender{respond: func(instance, command string, msg any) (any, bool) {
		return nil, false
	}}
	b := IOBroker{Sender: sender, OwnInstance: "msghub.0"}

	_, err := b.SendTo(context.Background(), "hm-rpc.0", "ping", nil, 10*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestIOBrokerSendToRejectsEmptyTarget(t *testing.T) {
	b := IOBroker{OwnInstance: "msghub.0"}

	_, err := b.SendTo(context.Background(), "", "ping", nil, time.Second)
	require.ErrorIs(t, err, ErrEmptyTarget)
}

func TestIOBrokerSendToRejectsSelfAddressing(t *testing.T) {
	b := IOBroker{OwnInstance: "msghub.0"}

	_, err := b.SendTo(context.Background(), "msghub.0", "ping", nil, time.Second)
	require.ErrorIs(t, err, ErrSelfAddressed)
}
