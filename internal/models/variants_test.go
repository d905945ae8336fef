package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateRoundTripKeepsVoteCount(t *testing.T) {
	s := StateFromRow(TaskCompleted, 4)
	require.Equal(t, Settled{FinalVotes: 4}, s)
	require.Equal(t, 4, s.Votes())

	task := Task{State: s}
	require.Equal(t, TaskCompleted, task.Status())
	require.Equal(t, 4, task.CollectedVotes())

	require.Equal(t, Open{VotesSoFar: 0}, StateFromRow(TaskPending, 0))
	require.Equal(t, Open{VotesSoFar: 2}, StateFromRow(TaskActive, 2))
}

func TestKindColumns(t *testing.T) {
	isVal, answer := KindColumns(ValidationTask{CorrectAnswer: "Positive"})
	require.True(t, isVal)
	require.Equal(t, "Positive", *answer)
	require.Equal(t, ValidationTask{CorrectAnswer: "Positive"}, KindFromRow(isVal, answer))

	isVal, answer = KindColumns(StandardTask{})
	require.False(t, isVal)
	require.Nil(t, answer)
	require.Equal(t, StandardTask{}, KindFromRow(true, nil))
}

func TestAnswerColumn(t *testing.T) {
	require.Nil(t, IsCorrect(StandardAnswer{}))
	require.False(t, *IsCorrect(ValidationAnswer{Correct: false}))
	require.Equal(t, StandardAnswer{}, AnswerFromRow(nil))
	yes := true
	require.Equal(t, ValidationAnswer{Correct: true}, AnswerFromRow(&yes))
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, CodeOK, CodeOf(nil))
	require.Equal(t, CodeNotFound, CodeOf(fmt.Errorf("task t-1: %w", ErrNotFound)))
	require.Equal(t, CodeForbidden, CodeOf(ErrForbidden))
	require.Equal(t, CodeStorageFailure, CodeOf(ErrConflict))
	require.Equal(t, CodeStorageFailure, CodeOf(fmt.Errorf("disk I/O error")))
}

func TestHasOption(t *testing.T) {
	d := Dataset{Options: []string{"Positive", "Negative"}}
	require.True(t, d.HasOption("Negative"))
	require.False(t, d.HasOption("negative"))
}
