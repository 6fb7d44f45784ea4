package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageStatus_CanTransitionTo(t *testing.T) {
	allowed := map[PageStatus][]PageStatus{
		PageStatusPending:    {PageStatusProcessing},
		PageStatusProcessing: {PageStatusCompleted, PageStatusFailed},
		PageStatusFailed:     {PageStatusPending},
		PageStatusCompleted:  {},
	}

	all := []PageStatus{PageStatusPending, PageStatusProcessing, PageStatusCompleted, PageStatusFailed}

	for from, nexts := range allowed {
		ok := map[PageStatus]bool{}
		for _, n := range nexts {
			ok[n] = true
		}
		for _, to := range all {
			assert.Equal(t, ok[to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestPageStatus_TerminalAndActive(t *testing.T) {
	assert.True(t, PageStatusPending.IsActive())
	assert.True(t, PageStatusProcessing.IsActive())
	assert.False(t, PageStatusCompleted.IsActive())
	assert.False(t, PageStatusFailed.IsActive())

	assert.False(t, PageStatusPending.IsTerminal())
	assert.False(t, PageStatusProcessing.IsTerminal())
	assert.True(t, PageStatusCompleted.IsTerminal())
	assert.True(t, PageStatusFailed.IsTerminal())
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, JobStatusPending.IsTerminal())
	assert.False(t, JobStatusRunning.IsTerminal())
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
}
