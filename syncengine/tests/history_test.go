package tests

import (
	"testing"

	"prodsync/syncengine/schema"
)

func TestLatestSyncBeforeAnyRun(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	_, err := c.latestSync(env.workspaceId)
	if statusOf(err) != 404 {
		t.Fatalf("workspace with no runs should 404, got %v", err)
	}
}

func TestLatestSyncReturnsNewestRun(t *testing.T) {
	env := setupTestEnv(t)
	standardHierarchy(env)
	c := env.newClient()

	first, err := c.startSync(env.workspaceId, startSyncBody{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.startSync(env.workspaceId, startSyncBody{})
	if err != nil {
		t.Fatal(err)
	}

	latest, err := c.latestSync(env.workspaceId)
	if err != nil {
		t.Fatal(err)
	}
	if latest.Id != second.SyncId {
		t.Fatalf("expected newest run %v, got %v", second.SyncId, latest.Id)
	}
	if latest.Id == first.SyncId {
		t.Fatal("latest run should not be the first run")
	}
	if latest.Status != schema.SyncCompleted {
		t.Fatalf("expected completed run, got %v", latest.Status)
	}
	if latest.CompletedAt == nil {
		t.Fatal("completed run should have a completion time")
	}
}

func TestHierarchyCountsAreLive(t *testing.T) {
	env := setupTestEnv(t)
	standardHierarchy(env)
	c := env.newClient()

	counts, err := c.hierarchyCounts(env.workspaceId)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Products != 0 || counts.Features != 0 {
		t.Fatalf("empty workspace should count zero, got %+v", counts)
	}

	if _, err := c.startSync(env.workspaceId, startSyncBody{}); err != nil {
		t.Fatal(err)
	}

	counts, err = c.hierarchyCounts(env.workspaceId)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Products != 1 || counts.Components != 2 || counts.Initiatives != 1 || counts.Features != 2 {
		t.Fatalf("counts should reflect stored rows, got %+v", counts)
	}

	// Counts come from the hierarchy tables, not the ledger: a manual insert
	// shows up without any sync run.
	env.createFeature(t, "FTR-EXTRA", nil)

	counts, err = c.hierarchyCounts(env.workspaceId)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Features != 3 {
		t.Fatalf("expected live feature count 3, got %d", counts.Features)
	}
}
