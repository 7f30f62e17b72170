package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelFilterMatchesEmptyFilterAdmitsEverything(t *testing.T) {
	var c ChannelFilter
	assert.True(t, c.Matches("notify.push"))
}

func TestChannelFilterMatchesIncludeGlob(t *testing.T) {
	c := ChannelFilter{Include: []string{"notify.*"}}
	assert.True(t, c.Matches("notify.push"))
	assert.False(t, c.Matches("engage.log"))
}

func TestChannelFilterMatchesExcludeWinsOverInclude(t *testing.T) {
	c := ChannelFilter{Include: []string{"notify.*"}, Exclude: []string{"notify.push"}}
	assert.True(t, c.Matches("notify.email"))
	assert.False(t, c.Matches("notify.push"))
}

func TestChannelFilterMatchesFallsBackToExactOnBadPattern(t *testing.T) {
	c := ChannelFilter{Include: []string{"[unterminated"}}
	assert.False(t, c.Matches("notify.push"))
	assert.True(t, c.Matches("[unterminated"))
}
