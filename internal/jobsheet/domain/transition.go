package domain

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

type Action string

const (
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionHalt     Action = "halt"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

type rule struct {
	from []Status
	to   Status
	log  TimeLogType
}

// rules is the single source of truth for job sheet status changes.
var rules = map[Action]rule{
	ActionStart:    {from: []Status{StatusPending}, to: StatusInProgress, log: LogStart},
	ActionPause:    {from: []Status{StatusInProgress}, to: StatusPaused, log: LogPause},
	ActionResume:   {from: []Status{StatusPaused, StatusHalted}, to: StatusInProgress, log: LogResume},
	ActionHalt:     {from: []Status{StatusInProgress, StatusPaused}, to: StatusHalted, log: LogHalt},
	ActionComplete: {from: []Status{StatusInProgress}, to: StatusCompleted, log: LogComplete},
	ActionCancel:   {from: []Status{StatusPending, StatusInProgress, StatusPaused, StatusHalted}, to: StatusCancelled, log: LogCancel},
}

// Transition returns the status an action leads to, or ErrInvalidTransition
// when the action is not legal from the current status.
func Transition(from Status, action Action) (Status, error) {
	r, ok := rules[action]
	if !ok {
		return from, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	if !slices.Contains(r.from, from) {
		return from, fmt.Errorf("%w: cannot %s a job sheet that is %s", ErrInvalidTransition, action, from)
	}
	return r.to, nil
}

// LogTypeFor is the time log entry recorded for an action.
func LogTypeFor(action Action) TimeLogType {
	return rules[action].log
}

// AllowedActions lists the actions legal from a status, in a stable order.
func AllowedActions(from Status) []Action {
	var actions []Action
	for _, action := range []Action{ActionStart, ActionPause, ActionResume, ActionHalt, ActionComplete, ActionCancel} {
		if slices.Contains(rules[action].from, from) {
			actions = append(actions, action)
		}
	}
	return actions
}

// CalculateWorkDuration sums the closed working intervals in logs. An interval
// left open by a running job counts up to now only when now is given.
func CalculateWorkDuration(logs []TimeLog, now *time.Time) time.Duration {
	ordered := make([]TimeLog, len(logs))
	copy(ordered, logs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	var (
		total time.Duration
		open  *time.Time
	)
	for i := range ordered {
		entry := ordered[i]
		switch entry.Type {
		case LogStart, LogResume:
			if open == nil {
				ts := entry.Timestamp
				open = &ts
			}
		case LogPause, LogHalt, LogComplete, LogCancel:
			if open != nil {
				total += entry.Timestamp.Sub(*open)
				open = nil
			}
		}
	}
	if open != nil && now != nil && now.After(*open) {
		total += now.Sub(*open)
	}
	return total
}
