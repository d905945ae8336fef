// Package lifecycle is the task state machine: Open{n} -> Settled{n}, one way.
package lifecycle

import "github.com/slyt3/Quorum/internal/models"

// Transition is the effect of one submission on a task.
type Transition struct {
	Next models.TaskState
	// Incremented is true when the submission added a distinct voter.
	Incremented bool
	// SettledNow is true only for the submission that crossed the quorum.
	SettledNow bool
}

// Changed reports whether the task row must be written.
func (t Transition) Changed() bool {
	return t.Incremented || t.SettledNow
}

// Step advances state for a submission. Amendments never change the state.
// First votes on a settled task are counted but never settle it again.
func Step(state models.TaskState, requiredVotes int, firstVote bool) Transition {
	if !firstVote {
		return Transition{Next: state}
	}
	switch s := state.(type) {
	case models.Settled:
		return Transition{Next: models.Settled{FinalVotes: s.FinalVotes + 1}, Incremented: true}
	case models.Open:
		n := s.VotesSoFar + 1
		if n >= requiredVotes {
			return Transition{Next: models.Settled{FinalVotes: n}, Incremented: true, SettledNow: true}
		}
		return Transition{Next: models.Open{VotesSoFar: n}, Incremented: true}
	default:
		return Transition{Next: state}
	}
}
