package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPresenceTracker(t *testing.T) {
	start := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	type step struct {
		offset  time.Duration
		sighted bool
		want    PresenceResult
	}

	tests := []struct {
		name  string
		steps []step
	}{
		{
			name: "从未看到首领",
			steps: []step{
				{offset: 0, want: PresenceResult{State: OutOfInstance}},
				{offset: time.Hour, want: PresenceResult{State: OutOfInstance}},
			},
		},
		{
			name: "看到首领后进入宽限期",
			steps: []step{
				{offset: 0, sighted: true, want: PresenceResult{State: InstanceActive, Sighted: true, NewEncounter: true}},
				{offset: time.Second, sighted: true, want: PresenceResult{State: InstanceActive, Sighted: true}},
				{offset: 2 * time.Minute, want: PresenceResult{State: InstanceGrace}},
				{offset: 5*time.Minute + 999*time.Millisecond, want: PresenceResult{State: InstanceGrace}},
			},
		},
		{
			name: "超时后离开副本，再次看到为新遭遇",
			steps: []step{
				{offset: 0, sighted: true, want: PresenceResult{State: InstanceActive, Sighted: true, NewEncounter: true}},
				{offset: 5 * time.Minute, want: PresenceResult{State: OutOfInstance, Expired: true}},
				{offset: 6 * time.Minute, want: PresenceResult{State: OutOfInstance}},
				{offset: 7 * time.Minute, sighted: true, want: PresenceResult{State: InstanceActive, Sighted: true, NewEncounter: true}},
			},
		},
		{
			name: "宽限期内再次看到不是新遭遇",
			steps: []step{
				{offset: 0, sighted: true, want: PresenceResult{State: InstanceActive, Sighted: true, NewEncounter: true}},
				{offset: 4 * time.Minute, want: PresenceResult{State: InstanceGrace}},
				{offset: 4*time.Minute + time.Second, sighted: true, want: PresenceResult{State: InstanceActive, Sighted: true}},
				{offset: 8 * time.Minute, want: PresenceResult{State: InstanceGrace}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPresenceTracker(0)
			for i, s := range tt.steps {
				got := p.Observe(start.Add(s.offset), s.sighted)
				assert.Equal(t, s.want, got, "step %d", i)
				assert.Equal(t, s.want.State != OutOfInstance, p.InInstance(), "step %d", i)
			}
		})
	}
}

func TestPresenceStateString(t *testing.T) {
	assert.Equal(t, "active", InstanceActive.String())
	assert.Equal(t, "grace", InstanceGrace.String())
	assert.Equal(t, "out_of_instance", OutOfInstance.String())
}
