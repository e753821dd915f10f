package imports

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTag(t *testing.T) {
	assert.Equal(t, tagKindRide, classifyTag("ride"))
	assert.Equal(t, tagKindLogs, classifyTag("logs"))
	assert.Equal(t, tagKindLog, classifyTag("log"))
	assert.Equal(t, tagKindReserved, classifyTag("_id"))
	assert.Equal(t, tagKindReserved, classifyTag("ride_id"))
	assert.Equal(t, tagKindField, classifyTag("recorded_date"))
	assert.Equal(t, tagKindField, classifyTag("Ride"))
}

func TestTransition(t *testing.T) {
	tests := []struct {
		state  parserState
		tag    tagKind
		next   parserState
		action action
	}{
		{stateRoot, tagKindRide, stateInRide, actionStartRide},
		{stateRoot, tagKindLogs, stateRoot, actionReject},
		{stateRoot, tagKindLog, stateRoot, actionReject},
		{stateRoot, tagKindReserved, stateRoot, actionIgnore},
		{stateRoot, tagKindField, stateRoot, actionIgnore},

		{stateInRide, tagKindRide, stateInRide, actionStartRide},
		{stateInRide, tagKindLogs, stateRideCreated, actionCreateRide},
		{stateInRide, tagKindLog, stateInRide, actionReject},
		{stateInRide, tagKindReserved, stateInRide, actionIgnore},
		{stateInRide, tagKindField, stateInRide, actionDeclareField},

		{stateRideCreated, tagKindRide, stateInRide, actionStartRide},
		{stateRideCreated, tagKindLogs, stateRideCreated, actionReject},
		{stateRideCreated, tagKindLog, stateInLog, actionStartLog},
		{stateRideCreated, tagKindReserved, stateRideCreated, actionIgnore},
		{stateRideCreated, tagKindField, stateRideCreated, actionIgnoreField},

		{stateInLog, tagKindRide, stateInRide, actionStartRide},
		{stateInLog, tagKindLogs, stateInLog, actionReject},
		{stateInLog, tagKindLog, stateInLog, actionStartLog},
		{stateInLog, tagKindReserved, stateInLog, actionIgnore},
		{stateInLog, tagKindField, stateInLog, actionDeclareField},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			got := transition(tt.state, tt.tag)

			assert.Equal(t, tt.next, got.next)
			assert.Equal(t, tt.action, got.action)
			if tt.action == actionReject {
				assert.NotEmpty(t, got.reason)
			}
		})
	}
}
