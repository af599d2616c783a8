package services

import (
	"fmt"
	"testing"
	"time"

	"prodsync/syncengine/schema"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newReaperTestDb(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%v?mode=memory&cache=shared&_foreign_keys=on", uuid.New())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(schema.AllModels()...))
	return db
}

func TestReaperSkipsRunsHeldByThisProcess(t *testing.T) {
	db := newReaperTestDb(t)
	engine := NewSyncEngine(db, nil, nil)

	workspace := schema.Workspace{Id: uuid.New(), Name: "acme"}
	require.NoError(t, db.Create(&workspace).Error)

	run := schema.SyncHistory{
		Id:          uuid.New(),
		WorkspaceId: workspace.Id,
		Status:      schema.SyncInProgress,
		StartedAt:   time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, db.Create(&run).Error)

	// The guard is held, so the run is alive in this process and must keep
	// its single terminal update for the sync itself.
	require.True(t, engine.sync.guard.acquire(workspace.Id))
	engine.reapStaleRuns(30 * time.Minute)

	record, err := schema.GetSyncHistory(run.Id, db)
	require.NoError(t, err)
	require.Equal(t, schema.SyncInProgress, record.Status)

	// Released guard with the row still in progress means a crashed or
	// abandoned run, which the reaper may now reset.
	engine.sync.guard.release(workspace.Id)
	engine.reapStaleRuns(30 * time.Minute)

	record, err = schema.GetSyncHistory(run.Id, db)
	require.NoError(t, err)
	require.Equal(t, schema.SyncFailed, record.Status)
	require.NotEmpty(t, record.ErrorMessage)
	require.NotNil(t, record.CompletedAt)
}

func TestReaperIgnoresFreshRuns(t *testing.T) {
	db := newReaperTestDb(t)
	engine := NewSyncEngine(db, nil, nil)

	workspace := schema.Workspace{Id: uuid.New(), Name: "acme"}
	require.NoError(t, db.Create(&workspace).Error)

	run := schema.SyncHistory{
		Id:          uuid.New(),
		WorkspaceId: workspace.Id,
		Status:      schema.SyncInProgress,
		StartedAt:   time.Now().UTC().Add(-1 * time.Minute),
	}
	require.NoError(t, db.Create(&run).Error)

	engine.reapStaleRuns(30 * time.Minute)

	record, err := schema.GetSyncHistory(run.Id, db)
	require.NoError(t, err)
	require.Equal(t, schema.SyncInProgress, record.Status)
}
