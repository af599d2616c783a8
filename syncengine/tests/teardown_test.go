package tests

import (
	"testing"

	"prodsync/syncengine/schema"

	"github.com/google/uuid"
)

func newWorkspaceId() uuid.UUID {
	return uuid.New()
}

func TestClearHierarchyDeletesDeepFeatureTree(t *testing.T) {
	env := setupTestEnv(t)
	standardHierarchy(env)
	c := env.newClient()

	if _, err := c.startSync(env.workspaceId, startSyncBody{}); err != nil {
		t.Fatal(err)
	}

	// Extend the synced tree to depth 4. Foreign keys are enforced by the
	// test db, so a parent deleted before its child would fail the call
	// rather than pass silently.
	var parent schema.Feature
	if result := env.db.First(&parent, "workspace_id = ? AND source_id = ?", env.workspaceId, "FTR-2"); result.Error != nil {
		t.Fatal(result.Error)
	}
	level3 := env.createFeature(t, "FTR-3", &parent.Id)
	env.createFeature(t, "FTR-4", &level3)

	if env.featureCount(t) != 4 {
		t.Fatalf("fixture should have 4 features, got %d", env.featureCount(t))
	}

	cleared, err := c.clearHierarchy(env.workspaceId)
	if err != nil {
		t.Fatal(err)
	}
	if !cleared {
		t.Fatal("teardown of an acyclic tree should clear everything")
	}

	counts, err := c.hierarchyCounts(env.workspaceId)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Products != 0 || counts.Components != 0 || counts.Features != 0 || counts.Initiatives != 0 {
		t.Fatalf("rows remain after teardown: %+v", counts)
	}

	var junctionCount int64
	if result := env.db.Model(&schema.InitiativeFeature{}).Count(&junctionCount); result.Error != nil {
		t.Fatal(result.Error)
	}
	if junctionCount != 0 {
		t.Fatalf("initiative feature links remain after teardown: %d", junctionCount)
	}
}

func TestClearHierarchyTerminatesOnCycle(t *testing.T) {
	env := setupTestEnv(t)

	a := env.createFeature(t, "FTR-A", nil)
	b := env.createFeature(t, "FTR-B", &a)
	if result := env.db.Model(&schema.Feature{}).Where("id = ?", a).Update("parent_id", b); result.Error != nil {
		t.Fatal(result.Error)
	}

	c := env.newClient()

	cleared, err := c.clearHierarchy(env.workspaceId)
	if err != nil {
		t.Fatal(err)
	}
	if cleared {
		t.Fatal("teardown must report failure when a cycle blocks deletion")
	}

	if env.featureCount(t) != 2 {
		t.Fatalf("cyclic features should be left in place, got %d", env.featureCount(t))
	}
}

func TestClearHierarchyScopedToWorkspace(t *testing.T) {
	env := setupTestEnv(t)
	standardHierarchy(env)
	c := env.newClient()

	if _, err := c.startSync(env.workspaceId, startSyncBody{}); err != nil {
		t.Fatal(err)
	}

	other := schema.Workspace{Id: newWorkspaceId(), Name: "other"}
	if result := env.db.Create(&other); result.Error != nil {
		t.Fatal(result.Error)
	}
	foreign := schema.Product{Id: newWorkspaceId(), WorkspaceId: other.Id, SourceId: "PRD-X", Name: "Elsewhere"}
	if result := env.db.Create(&foreign); result.Error != nil {
		t.Fatal(result.Error)
	}

	cleared, err := c.clearHierarchy(env.workspaceId)
	if err != nil {
		t.Fatal(err)
	}
	if !cleared {
		t.Fatal("teardown should succeed")
	}

	var foreignCount int64
	if result := env.db.Model(&schema.Product{}).Where("workspace_id = ?", other.Id).Count(&foreignCount); result.Error != nil {
		t.Fatal(result.Error)
	}
	if foreignCount != 1 {
		t.Fatal("teardown must not touch other workspaces")
	}
}
