package lifecycle

import (
	"testing"

	"github.com/slyt3/Quorum/internal/models"
	"github.com/stretchr/testify/require"
)

func TestSettlesExactlyAtQuorum(t *testing.T) {
	var state models.TaskState = models.Open{}
	settlements := 0
	for i := 1; i <= 5; i++ {
		tr := Step(state, 3, true)
		require.True(t, tr.Incremented)
		require.Equal(t, i, tr.Next.Votes())
		if tr.SettledNow {
			settlements++
			require.Equal(t, 3, i, "must settle on the third distinct voter")
		}
		state = tr.Next
	}
	require.Equal(t, 1, settlements)
	require.Equal(t, models.Settled{FinalVotes: 5}, state)
}

func TestAmendmentLeavesStateAlone(t *testing.T) {
	for _, s := range []models.TaskState{models.Open{VotesSoFar: 1}, models.Settled{FinalVotes: 2}} {
		tr := Step(s, 2, false)
		require.Equal(t, s, tr.Next)
		require.False(t, tr.Changed())
	}
}

func TestSettledNeverReopens(t *testing.T) {
	tr := Step(models.Settled{FinalVotes: 2}, 10, true)
	_, settled := tr.Next.(models.Settled)
	require.True(t, settled)
	require.False(t, tr.SettledNow)
	require.True(t, tr.Incremented)
}

func TestQuorumOfOne(t *testing.T) {
	tr := Step(models.Open{}, 1, true)
	require.True(t, tr.SettledNow)
	require.Equal(t, models.Settled{FinalVotes: 1}, tr.Next)
}
