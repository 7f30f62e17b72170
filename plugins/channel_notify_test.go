package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacknerd/msghub/events"
	"github.com/stacknerd/msghub/hostapi"
	"github.com/stacknerd/msghub/message"
)

func TestChannelNotifyHandlerForwardsOnlyMatchingChannelMessages(t *testing.T) {
	var gotRefs []string
	inner := FuncHandler[hostapi.NotifyContext]{
		Fn: func(_ context.Context, _ string, msgs []*message.Message, _ hostapi.NotifyContext) {
			for _, m := range msgs {
				gotRefs = append(gotRefs, m.Ref)
			}
		},
	}
	h := ChannelNotifyHandler{Channel: "notify.push", Inner: inner}

	msgs := []*message.Message{
		{Ref: "a1", Audience: message.Audience{Channels: message.ChannelFilter{Include: []string{"notify.*"}}}},
		{Ref: "a2", Audience: message.Audience{Channels: message.ChannelFilter{Include: []string{"notify.email"}}}},
		{Ref: "a3"},
	}

	h.OnNotifications(context.Background(), events.TypeCreated, msgs, hostapi.NotifyContext{})

	assert.Equal(t, []string{"a1", "a3"}, gotRefs)
}

func TestChannelNotifyHandlerSkipsInnerWhenNothingMatches(t *testing.T) {
	called := false
	inner := FuncHandler[hostapi.NotifyContext]{
		Fn: func(context.Context, string, []*message.Message, hostapi.NotifyContext) { called = true },
	}
	h := ChannelNotifyHandler{Channel: "notify.push", Inner: inner}

	msgs := []*message.Message{
		{Ref: "a1", Audience: message.Audience{Channels: message.ChannelFilter{Include: []string{"notify.email"}}}},
	}
	h.OnNotifications(context.Background(), events.TypeCreated, msgs, hostapi.NotifyContext{})

	require.False(t, called)
}
