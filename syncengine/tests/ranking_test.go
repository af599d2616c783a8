package tests

import (
	"testing"

	"prodsync/syncengine/schema"
	"prodsync/syncengine/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func recordByStory(records []schema.RankingRecord, storyId string) *schema.RankingRecord {
	for i := range records {
		if records[i].StoryId == storyId {
			return &records[i]
		}
	}
	return nil
}

func TestReconcileClassifiesMovements(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	first, err := c.reconcileRanks(env.workspaceId, env.boardId, []services.ExtractedItem{
		{StoryId: "A", StoryName: "alpha", Rank: 1},
		{StoryId: "B", StoryName: "beta", Rank: 2},
	})
	require.NoError(t, err)
	require.Len(t, first, 2)
	for _, record := range first {
		require.Equal(t, schema.RankNew, record.Movement)
		require.Nil(t, record.PreviousRank)
	}

	second, err := c.reconcileRanks(env.workspaceId, env.boardId, []services.ExtractedItem{
		{StoryId: "A", StoryName: "alpha", Rank: 2},
		{StoryId: "B", StoryName: "beta", Rank: 1},
		{StoryId: "C", StoryName: "gamma", Rank: 3},
	})
	require.NoError(t, err)
	require.Len(t, second, 3)

	a := recordByStory(second, "A")
	require.Equal(t, schema.RankDown, a.Movement)
	require.Equal(t, 1, a.MovementDelta)
	require.Equal(t, 1, *a.PreviousRank)

	b := recordByStory(second, "B")
	require.Equal(t, schema.RankUp, b.Movement)
	require.Equal(t, 1, b.MovementDelta)
	require.Equal(t, 2, *b.PreviousRank)

	cRec := recordByStory(second, "C")
	require.Equal(t, schema.RankNew, cRec.Movement)
	require.Nil(t, cRec.PreviousRank)

	// Each batch shares one grouping id, distinct from the previous batch.
	require.Equal(t, second[0].SyncHistoryId, second[1].SyncHistoryId)
	require.NotEqual(t, first[0].SyncHistoryId, second[0].SyncHistoryId)
}

func TestReconcileResolvesMatchingIdsBestEffort(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	ok, err := c.linkMapping(env.workspaceId, "A", 701)
	require.NoError(t, err)
	require.True(t, ok)

	records, err := c.reconcileRanks(env.workspaceId, env.boardId, []services.ExtractedItem{
		{StoryId: "A", StoryName: "alpha", Rank: 1},
		{StoryId: "B", StoryName: "beta", Rank: 2},
	})
	require.NoError(t, err)

	a := recordByStory(records, "A")
	require.NotNil(t, a.MatchingId)
	require.Equal(t, 701, *a.MatchingId)

	// No mapping for B: the batch still succeeds with a null matching id.
	b := recordByStory(records, "B")
	require.Nil(t, b.MatchingId)
}

func TestReconcileUnknownBoard(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	_, err := c.reconcileRanks(env.workspaceId, uuid.New(), []services.ExtractedItem{
		{StoryId: "A", Rank: 1},
	})
	require.Equal(t, 404, statusOf(err))
}

func TestReconcileRejectsBoardFromAnotherWorkspace(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	other := schema.Workspace{Id: uuid.New(), Name: "other"}
	require.NoError(t, env.db.Create(&other).Error)

	_, err := c.reconcileRanks(other.Id, env.boardId, []services.ExtractedItem{
		{StoryId: "A", Rank: 1},
	})
	require.Equal(t, 404, statusOf(err))

	var count int64
	require.NoError(t, env.db.Model(&schema.RankingRecord{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestPushRankingsPartialSuccessIsStable(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	ok, err := c.linkMapping(env.workspaceId, "A", 701)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = c.linkMapping(env.workspaceId, "B", 702)
	require.NoError(t, err)
	require.True(t, ok)

	records, err := c.reconcileRanks(env.workspaceId, env.boardId, []services.ExtractedItem{
		{StoryId: "A", StoryName: "alpha", Rank: 1},
		{StoryId: "B", StoryName: "beta", Rank: 2},
		{StoryId: "C", StoryName: "gamma", Rank: 3},
	})
	require.NoError(t, err)
	batchId := records[0].SyncHistoryId

	env.target.failFor(702)

	updated, err := c.pushRankings(batchId)
	require.NoError(t, err)
	// A pushed; B failed; C has no matching id.
	require.Equal(t, 1, updated)
	require.Equal(t, 1, env.target.rankUpdateCount())

	var pushed []schema.RankingRecord
	require.NoError(t, env.db.Find(&pushed, "sync_history_id = ? AND is_synced_to_ado = ?", batchId, true).Error)
	require.Len(t, pushed, 1)
	require.Equal(t, "A", pushed[0].StoryId)

	// The mixed batch is a stable state: a later push finishes the rest.
	env.target.recover(702)

	updated, err = c.pushRankings(batchId)
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	updated, err = c.pushRankings(batchId)
	require.NoError(t, err)
	require.Equal(t, 0, updated)
}

func TestUnchangedRanksAreNotPushed(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	ok, err := c.linkMapping(env.workspaceId, "A", 701)
	require.NoError(t, err)
	require.True(t, ok)

	first, err := c.reconcileRanks(env.workspaceId, env.boardId, []services.ExtractedItem{
		{StoryId: "A", StoryName: "alpha", Rank: 1},
	})
	require.NoError(t, err)

	updated, err := c.pushRankings(first[0].SyncHistoryId)
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	second, err := c.reconcileRanks(env.workspaceId, env.boardId, []services.ExtractedItem{
		{StoryId: "A", StoryName: "alpha", Rank: 1},
	})
	require.NoError(t, err)
	require.Equal(t, schema.RankUnchanged, second[0].Movement)
	require.True(t, second[0].SyncedToTarget)

	updated, err = c.pushRankings(second[0].SyncHistoryId)
	require.NoError(t, err)
	require.Equal(t, 0, updated)
	require.Equal(t, 1, env.target.rankUpdateCount())
}
