package services

import (
	"testing"

	"prodsync/syncengine/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int {
	return &n
}

func TestClassifyRankings(t *testing.T) {
	previous := []schema.RankingRecord{
		{StoryId: "A", CurrentRank: 1, MatchingId: intPtr(701), SyncedToTarget: true},
		{StoryId: "B", CurrentRank: 2},
	}
	current := []ExtractedItem{
		{StoryId: "A", StoryName: "alpha", Rank: 2},
		{StoryId: "B", StoryName: "beta", Rank: 1},
		{StoryId: "C", StoryName: "gamma", Rank: 3},
	}

	records := classifyRankings(current, previous)
	require.Len(t, records, 3)

	a, b, c := records[0], records[1], records[2]

	assert.Equal(t, schema.RankDown, a.Movement)
	assert.Equal(t, 1, a.MovementDelta)
	require.NotNil(t, a.PreviousRank)
	assert.Equal(t, 1, *a.PreviousRank)
	require.NotNil(t, a.MatchingId)
	assert.Equal(t, 701, *a.MatchingId)
	// A moved, so it needs pushing again even though the old rank was pushed.
	assert.False(t, a.SyncedToTarget)

	assert.Equal(t, schema.RankUp, b.Movement)
	assert.Equal(t, 1, b.MovementDelta)
	require.NotNil(t, b.PreviousRank)
	assert.Equal(t, 2, *b.PreviousRank)

	assert.Equal(t, schema.RankNew, c.Movement)
	assert.Nil(t, c.PreviousRank)
	assert.Nil(t, c.MatchingId)
}

func TestClassifyRankingsUnchangedCarriesPushedState(t *testing.T) {
	previous := []schema.RankingRecord{
		{StoryId: "A", CurrentRank: 5, MatchingId: intPtr(701), SyncedToTarget: true},
		{StoryId: "B", CurrentRank: 6, MatchingId: intPtr(702)},
	}
	current := []ExtractedItem{
		{StoryId: "A", StoryName: "alpha", Rank: 5},
		{StoryId: "B", StoryName: "beta", Rank: 6},
	}

	records := classifyRankings(current, previous)
	require.Len(t, records, 2)

	assert.Equal(t, schema.RankUnchanged, records[0].Movement)
	assert.True(t, records[0].SyncedToTarget)
	assert.Equal(t, 0, records[0].MovementDelta)

	assert.Equal(t, schema.RankUnchanged, records[1].Movement)
	assert.False(t, records[1].SyncedToTarget)
}

func TestClassifyRankingsEmptyPrevious(t *testing.T) {
	records := classifyRankings([]ExtractedItem{{StoryId: "A", Rank: 1}}, nil)
	require.Len(t, records, 1)
	assert.Equal(t, schema.RankNew, records[0].Movement)
}

func TestClassifyRankingsDroppedStoriesAreOmitted(t *testing.T) {
	previous := []schema.RankingRecord{
		{StoryId: "A", CurrentRank: 1},
		{StoryId: "B", CurrentRank: 2},
	}

	records := classifyRankings([]ExtractedItem{{StoryId: "A", Rank: 1}}, previous)
	require.Len(t, records, 1)
	assert.Equal(t, "A", records[0].StoryId)
}
