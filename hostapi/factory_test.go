package hostapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacknerd/msghub/clock"
	"github.com/stacknerd/msghub/message"
)

func TestFactoryAPICreateMessagePinsCreatedAtToClock(t *testing.T) {
	now := clockTime()
	f := NewFactoryAPI(message.NewFactory(nil), clock.NewMock(now))

	m, err := f.CreateMessage(map[string]any{
		"ref":    "a1",
		"title":  "check the oven",
		"text":   "",
		"level":  20,
		"kind":   "task",
		"origin": map[string]any{"type": "manual", "system": "ui"},
	})
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), m.Timing.CreatedAt)
}
