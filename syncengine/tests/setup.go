package tests

import (
	"fmt"
	"testing"

	"prodsync/syncengine/schema"
	"prodsync/syncengine/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	engine services.SyncEngine
	api    chi.Router
	db     *gorm.DB

	source *SourceStub
	target *TargetStub

	workspaceId uuid.UUID
	boardId     uuid.UUID
}

func setupTestEnv(t *testing.T) *testEnv {
	// A named in-memory db with shared cache so every pooled connection
	// sees the same data; foreign keys on so a wrong-order delete fails
	// loudly instead of silently orphaning rows.
	dsn := fmt.Sprintf("file:%v?mode=memory&cache=shared&_foreign_keys=on", uuid.New())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	err = db.AutoMigrate(schema.AllModels()...)
	if err != nil {
		t.Fatal(err)
	}

	workspace := schema.Workspace{Id: uuid.New(), Name: "acme"}
	if result := db.Create(&workspace); result.Error != nil {
		t.Fatal(result.Error)
	}

	board := schema.Board{Id: uuid.New(), WorkspaceId: workspace.Id, Name: "delivery", AreaPath: "Acme\\Delivery"}
	if result := db.Create(&board); result.Error != nil {
		t.Fatal(result.Error)
	}

	sourceStub := &SourceStub{}
	targetStub := newTargetStub()

	engine := services.NewSyncEngine(db, sourceStub, targetStub)

	return &testEnv{
		engine:      engine,
		api:         engine.Routes(),
		db:          db,
		source:      sourceStub,
		target:      targetStub,
		workspaceId: workspace.Id,
		boardId:     board.Id,
	}
}

func (e *testEnv) newClient() client {
	return client{api: e.api}
}

// createFeature inserts a feature row directly, for teardown fixtures that
// do not come through a sync run.
func (e *testEnv) createFeature(t *testing.T, sourceId string, parentId *uuid.UUID) uuid.UUID {
	feature := schema.Feature{
		Id:          uuid.New(),
		WorkspaceId: e.workspaceId,
		SourceId:    sourceId,
		Name:        sourceId,
		ParentId:    parentId,
	}
	if result := e.db.Create(&feature); result.Error != nil {
		t.Fatal(result.Error)
	}
	return feature.Id
}

func (e *testEnv) featureCount(t *testing.T) int64 {
	var count int64
	if result := e.db.Model(&schema.Feature{}).Where("workspace_id = ?", e.workspaceId).Count(&count); result.Error != nil {
		t.Fatal(result.Error)
	}
	return count
}
