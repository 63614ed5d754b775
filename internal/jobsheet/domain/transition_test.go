package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	legal := []struct {
		from   Status
		action Action
		to     Status
	}{
		{StatusPending, ActionStart, StatusInProgress},
		{StatusInProgress, ActionPause, StatusPaused},
		{StatusPaused, ActionResume, StatusInProgress},
		{StatusHalted, ActionResume, StatusInProgress},
		{StatusInProgress, ActionHalt, StatusHalted},
		{StatusPaused, ActionHalt, StatusHalted},
		{StatusInProgress, ActionComplete, StatusCompleted},
		{StatusPending, ActionCancel, StatusCancelled},
		{StatusHalted, ActionCancel, StatusCancelled},
	}
	for _, tc := range legal {
		to, err := Transition(tc.from, tc.action)
		require.NoError(t, err, "%s from %s", tc.action, tc.from)
		assert.Equal(t, tc.to, to)
	}

	illegal := []struct {
		from   Status
		action Action
	}{
		{StatusInProgress, ActionStart},
		{StatusCompleted, ActionStart},
		{StatusPending, ActionComplete},
		{StatusPaused, ActionComplete},
		{StatusHalted, ActionComplete},
		{StatusPending, ActionPause},
		{StatusInProgress, ActionResume},
		{StatusCompleted, ActionCancel},
		{StatusCancelled, ActionResume},
	}
	for _, tc := range illegal {
		to, err := Transition(tc.from, tc.action)
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s from %s", tc.action, tc.from)
		assert.Equal(t, tc.from, to)
	}

	_, err := Transition(StatusPending, "teleport")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAllowedActions(t *testing.T) {
	assert.Equal(t, []Action{ActionStart, ActionCancel}, AllowedActions(StatusPending))
	assert.Equal(t, []Action{ActionPause, ActionHalt, ActionComplete, ActionCancel}, AllowedActions(StatusInProgress))
	assert.Empty(t, AllowedActions(StatusCompleted))
}

func TestCalculateWorkDuration(t *testing.T) {
	t0 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	at := func(minutes int) time.Time { return t0.Add(time.Duration(minutes) * time.Minute) }

	logs := []TimeLog{
		{Type: LogStart, Timestamp: at(0)},
		{Type: LogPause, Timestamp: at(30)},
		{Type: LogResume, Timestamp: at(40)},
		{Type: LogHalt, Timestamp: at(60)},
		{Type: LogResume, Timestamp: at(65)},
	}
	assert.Equal(t, 50*time.Minute, CalculateWorkDuration(logs, nil))

	now := at(80)
	assert.Equal(t, 65*time.Minute, CalculateWorkDuration(logs, &now))

	closed := append(logs, TimeLog{Type: LogComplete, Timestamp: at(90)})
	assert.Equal(t, 75*time.Minute, CalculateWorkDuration(closed, &now))

	shuffled := []TimeLog{closed[5], closed[2], closed[0], closed[4], closed[1], closed[3]}
	assert.Equal(t, 75*time.Minute, CalculateWorkDuration(shuffled, nil))

	assert.Zero(t, CalculateWorkDuration(nil, &now))
}

func TestChecklistComplete(t *testing.T) {
	sheet := JobSheet{}
	assert.True(t, sheet.ChecklistComplete())
	sheet.Checklist = []ChecklistItem{{Done: true}, {Done: false}}
	assert.False(t, sheet.ChecklistComplete())
	sheet.Checklist[1].Done = true
	assert.True(t, sheet.ChecklistComplete())
}
