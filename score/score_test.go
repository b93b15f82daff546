package score_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/heapcheck/score"
)

func TestScoreBelowFloor(t *testing.T) {
	scorer := score.Default()
	require.Equal(t, uint64(491520), scorer.Floor())
	require.Equal(t, 1.0, scorer.Score(2048, 4096))
	require.Equal(t, 1.0, scorer.Score(0, 0))
}

func TestScoreAboveFloor(t *testing.T) {
	scorer, err := score.New(1, 1024)
	require.NoError(t, err)

	require.Equal(t, 0.5, scorer.Score(2048, 4096))
	require.Equal(t, 1.0, scorer.Score(4096, 4096))
	require.Equal(t, 0.25, scorer.Score(512, 4096))
	require.Greater(t, scorer.Score(8192, 4096), 1.0)
}

func TestScoreInvalidFloor(t *testing.T) {
	_, err := score.New(0, 480)
	require.Error(t, err)
	_, err = score.New(1024, 0)
	require.Error(t, err)
	_, err = score.New(1<<40, 1<<40)
	require.Error(t, err)
}
