package tests

import (
	"testing"

	"prodsync/syncengine/schema"
)

func TestTitlePrefixIdempotence(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	ok, err := c.linkMapping(env.workspaceId, "FTR-1", 501)
	if err != nil || !ok {
		t.Fatalf("link failed: ok=%v err=%v", ok, err)
	}

	ok, err = c.applyTitlePrefix(env.workspaceId, "FTR-1", 501, "One click pay")
	if err != nil || !ok {
		t.Fatalf("title prefix failed: ok=%v err=%v", ok, err)
	}
	if env.target.titleUpdateCount() != 1 {
		t.Fatalf("expected one title write, got %d", env.target.titleUpdateCount())
	}
	if env.target.titleUpdates[0].title != "[FTR-1] One click pay" {
		t.Fatalf("unexpected title written: %v", env.target.titleUpdates[0].title)
	}

	// Same arguments again: the layer remembers the last written title and
	// must not issue a second write.
	ok, err = c.applyTitlePrefix(env.workspaceId, "FTR-1", 501, "One click pay")
	if err != nil || !ok {
		t.Fatalf("repeat title prefix failed: ok=%v err=%v", ok, err)
	}
	if env.target.titleUpdateCount() != 1 {
		t.Fatalf("repeat call issued a second write, got %d", env.target.titleUpdateCount())
	}

	// Title already carrying the marker also skips the write.
	ok, err = c.applyTitlePrefix(env.workspaceId, "FTR-1", 501, "[FTR-1] One click pay")
	if err != nil || !ok {
		t.Fatalf("marker title prefix failed: ok=%v err=%v", ok, err)
	}
	if env.target.titleUpdateCount() != 1 {
		t.Fatalf("marked title triggered a write, got %d", env.target.titleUpdateCount())
	}
}

func TestTitlePrefixSeedsMissingMapping(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	// No mapping row exists for the entity yet; the first call must create
	// one so the repeat call can see the title it wrote.
	ok, err := c.applyTitlePrefix(env.workspaceId, "FTR-X", 601, "Unmapped feature")
	if err != nil || !ok {
		t.Fatalf("title prefix failed: ok=%v err=%v", ok, err)
	}
	if env.target.titleUpdateCount() != 1 {
		t.Fatalf("expected one title write, got %d", env.target.titleUpdateCount())
	}

	mapping, err := schema.GetMapping(env.workspaceId, "FTR-X", env.db)
	if err != nil {
		t.Fatalf("mapping row should be seeded by the title write: %v", err)
	}
	if mapping.TargetTitle != "[FTR-X] Unmapped feature" {
		t.Fatalf("unexpected recorded title: %v", mapping.TargetTitle)
	}
	if mapping.TargetId != nil {
		t.Fatal("title write must not link the entity")
	}

	ok, err = c.applyTitlePrefix(env.workspaceId, "FTR-X", 601, "Unmapped feature")
	if err != nil || !ok {
		t.Fatalf("repeat title prefix failed: ok=%v err=%v", ok, err)
	}
	if env.target.titleUpdateCount() != 1 {
		t.Fatalf("same-arguments repeat issued a second write, got %d", env.target.titleUpdateCount())
	}
}

func TestLinkToTargetIdempotence(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	ok, err := c.linkMapping(env.workspaceId, "FTR-1", 501)
	if err != nil || !ok {
		t.Fatalf("link failed: ok=%v err=%v", ok, err)
	}

	ok, err = c.linkMapping(env.workspaceId, "FTR-1", 501)
	if err != nil || !ok {
		t.Fatalf("repeated identical link should be a no-op success: ok=%v err=%v", ok, err)
	}

	ok, err = c.linkMapping(env.workspaceId, "FTR-1", 999)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("linking an already linked entity to a different target must fail")
	}

	mapping, err := schema.GetMapping(env.workspaceId, "FTR-1", env.db)
	if err != nil {
		t.Fatal(err)
	}
	if mapping.TargetId == nil || *mapping.TargetId != 501 {
		t.Fatalf("original link must be preserved, got %v", mapping.TargetId)
	}
	if mapping.SyncStatus != schema.MappingConflict {
		t.Fatalf("conflicting relink should mark the mapping, got %v", mapping.SyncStatus)
	}
}

func TestFindParentMapping(t *testing.T) {
	env := setupTestEnv(t)
	standardHierarchy(env)
	c := env.newClient()

	// The sync run seeds mapping rows with parent references for features.
	if _, err := c.startSync(env.workspaceId, startSyncBody{}); err != nil {
		t.Fatal(err)
	}

	if ok, err := c.linkMapping(env.workspaceId, "FTR-1", 501); err != nil || !ok {
		t.Fatalf("link failed: ok=%v err=%v", ok, err)
	}

	parent, err := c.parentMapping(env.workspaceId, "FTR-2")
	if err != nil {
		t.Fatal(err)
	}
	if parent.SourceId != "FTR-1" {
		t.Fatalf("expected parent mapping for FTR-1, got %v", parent.SourceId)
	}
	if parent.TargetId == nil || *parent.TargetId != 501 {
		t.Fatalf("parent mapping should carry its target link, got %v", parent.TargetId)
	}

	// A root feature has no parent mapping.
	_, err = c.parentMapping(env.workspaceId, "FTR-1")
	if statusOf(err) != 404 {
		t.Fatalf("root feature should have no parent mapping, got %v", err)
	}
}

func TestParentChildLinkFailureIsContained(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	env.target.failFor(502)

	ok, err := c.createParentChildLink(501, 502)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("target failure must surface as a boolean failure")
	}

	env.target.recover(502)

	ok, err = c.createParentChildLink(501, 502)
	if err != nil || !ok {
		t.Fatalf("relationship creation should succeed after recovery: ok=%v err=%v", ok, err)
	}
	if len(env.target.relations) != 1 {
		t.Fatalf("expected one recorded relationship, got %d", len(env.target.relations))
	}
}
