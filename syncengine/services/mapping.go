package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"prodsync/syncengine/ado"
	"prodsync/syncengine/schema"
	"prodsync/utils"
	"prodsync/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MappingService owns the cross-system linkage records. It is the only
// writer of entity mapping rows. Target system failures never propagate as
// errors past this layer; callers get a boolean so a batch loop can keep
// going after one bad item.
type MappingService struct {
	db *gorm.DB

	targetClient ado.Client
}

// titleMarker is the parseable tag carried in target item titles so a title
// can always be traced back to its source entity.
func titleMarker(sourceId string) string {
	return fmt.Sprintf("[%v]", sourceId)
}

// RecordSourceEntity seeds (or refreshes) the mapping row for a source
// entity observed during a sync run. Best effort: failures are logged, the
// sync run does not depend on it.
func (s *MappingService) RecordSourceEntity(workspaceId uuid.UUID, sourceId, parentSourceId string) {
	var parent *string
	if parentSourceId != "" {
		parent = &parentSourceId
	}

	mapping, err := schema.GetMapping(workspaceId, sourceId, s.db)
	if err != nil {
		if !errors.Is(err, schema.ErrMappingNotFound) {
			return
		}
		mapping = schema.EntityMapping{
			Id:             uuid.New(),
			WorkspaceId:    workspaceId,
			SourceId:       sourceId,
			SourceParentId: parent,
			SyncStatus:     schema.MappingUnsynced,
		}
		if result := s.db.Create(&mapping); result.Error != nil {
			slog.Error("sql error seeding entity mapping", "source_id", sourceId, "error", result.Error)
		}
		return
	}

	result := s.db.Model(&mapping).Update("source_parent_id", parent)
	if result.Error != nil {
		slog.Error("sql error refreshing entity mapping parent", "source_id", sourceId, "error", result.Error)
	}
}

// FindParentMapping resolves the mapping row for the entity's declared
// parent. Nil without error when the entity has no parent or the parent was
// never mapped; used to decide whether a parent/child relationship should be
// created in the target system alongside a new link.
func (s *MappingService) FindParentMapping(workspaceId uuid.UUID, sourceId string) (*schema.EntityMapping, error) {
	mapping, err := schema.GetMapping(workspaceId, sourceId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrMappingNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if mapping.SourceParentId == nil {
		return nil, nil
	}

	parent, err := schema.GetMapping(workspaceId, *mapping.SourceParentId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrMappingNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &parent, nil
}

// LinkToTarget records the target item id on the mapping. Calling it again
// with the same pair is a no-op; a different target id for an already linked
// entity marks the row as a conflict and fails, only Relink may move a link.
func (s *MappingService) LinkToTarget(workspaceId uuid.UUID, sourceId string, targetId int) bool {
	now := time.Now().UTC()

	mapping, err := schema.GetMapping(workspaceId, sourceId, s.db)
	if err != nil {
		if !errors.Is(err, schema.ErrMappingNotFound) {
			return false
		}
		mapping = schema.EntityMapping{
			Id:           uuid.New(),
			WorkspaceId:  workspaceId,
			SourceId:     sourceId,
			TargetId:     &targetId,
			SyncStatus:   schema.MappingSynced,
			LastSyncedAt: &now,
		}
		if result := s.db.Create(&mapping); result.Error != nil {
			slog.Error("sql error creating entity mapping link", "source_id", sourceId, "error", result.Error)
			return false
		}
		return true
	}

	if mapping.TargetId != nil {
		if *mapping.TargetId == targetId {
			return true
		}
		slog.Error("entity already linked to a different target item",
			"source_id", sourceId, "linked_target_id", *mapping.TargetId, "requested_target_id", targetId, "code", logging.MAPPING)
		if result := s.db.Model(&mapping).Update("sync_status", schema.MappingConflict); result.Error != nil {
			slog.Error("sql error marking mapping conflict", "source_id", sourceId, "error", result.Error)
		}
		return false
	}

	updates := map[string]interface{}{
		"target_id":      targetId,
		"sync_status":    schema.MappingSynced,
		"last_synced_at": now,
	}
	if result := s.db.Model(&mapping).Updates(updates); result.Error != nil {
		slog.Error("sql error updating entity mapping link", "source_id", sourceId, "error", result.Error)
		return false
	}
	return true
}

// Relink explicitly moves a mapping to a new target item, the only sanctioned
// way to change a populated target id.
func (s *MappingService) Relink(workspaceId uuid.UUID, sourceId string, targetId int) bool {
	mapping, err := schema.GetMapping(workspaceId, sourceId, s.db)
	if err != nil {
		return false
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"target_id":      targetId,
		"sync_status":    schema.MappingSynced,
		"last_synced_at": now,
	}
	if result := s.db.Model(&mapping).Updates(updates); result.Error != nil {
		slog.Error("sql error relinking entity mapping", "source_id", sourceId, "error", result.Error)
		return false
	}
	slog.Info("entity mapping relinked", "source_id", sourceId, "target_id", targetId, "code", logging.MAPPING)
	return true
}

// ApplyTitlePrefix makes sure the target item's title carries the marker for
// its source entity. If the current title already has the marker no write is
// issued, which is what keeps repeated reconciliation passes side effect
// free.
func (s *MappingService) ApplyTitlePrefix(ctx context.Context, workspaceId uuid.UUID, sourceId string, targetId int, currentTitle string) bool {
	marker := titleMarker(sourceId)
	if strings.Contains(currentTitle, marker) {
		return true
	}

	// The caller may pass a stale title; if the last title we wrote already
	// carries the marker there is nothing to do either.
	mapping, err := schema.GetMapping(workspaceId, sourceId, s.db)
	found := err == nil
	if found && strings.Contains(mapping.TargetTitle, marker) {
		return true
	}

	newTitle := marker + " " + currentTitle
	if err := s.targetClient.UpdateItemTitle(ctx, targetId, newTitle); err != nil {
		slog.Error("failed to update target item title", "target_id", targetId, "error", err, "code", logging.TARGET_WRITE)
		return false
	}

	if !found {
		// An entity considered for linkage gets its mapping row here, so the
		// written title is remembered and a repeat call skips the write.
		mapping = schema.EntityMapping{
			Id:          uuid.New(),
			WorkspaceId: workspaceId,
			SourceId:    sourceId,
			TargetTitle: newTitle,
			SyncStatus:  schema.MappingUnsynced,
		}
		if result := s.db.Create(&mapping); result.Error != nil {
			slog.Error("sql error seeding entity mapping title", "source_id", sourceId, "error", result.Error)
		}
		return true
	}

	result := s.db.Model(&mapping).Update("target_title", newTitle)
	if result.Error != nil {
		slog.Error("sql error recording target title", "source_id", sourceId, "error", result.Error)
	}
	return true
}

// CreateParentChildLink issues the relationship call without checking for an
// existing relationship first; the target system rejects duplicates, which
// surfaces here as a logged boolean failure rather than a duplicate link.
func (s *MappingService) CreateParentChildLink(ctx context.Context, parentTargetId, childTargetId int) bool {
	err := s.targetClient.CreateParentChildRelationship(ctx, parentTargetId, childTargetId)
	if err != nil {
		slog.Error("failed to create parent child relationship",
			"parent_target_id", parentTargetId, "child_target_id", childTargetId, "error", err, "code", logging.TARGET_WRITE)
		return false
	}
	return true
}

type linkRequest struct {
	SourceId string `json:"source_id"`
	TargetId int    `json:"target_id"`
}

type titlePrefixRequest struct {
	SourceId     string `json:"source_id"`
	TargetId     int    `json:"target_id"`
	CurrentTitle string `json:"current_title"`
}

type parentLinkRequest struct {
	ParentTargetId int `json:"parent_target_id"`
	ChildTargetId  int `json:"child_target_id"`
}

type okResponse struct {
	Ok bool `json:"ok"`
}

func (s *MappingService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/{workspace_id}/link", s.Link)
	r.Post("/{workspace_id}/relink", s.RelinkHandler)
	r.Post("/{workspace_id}/title-prefix", s.TitlePrefix)
	r.Post("/parent-link", s.ParentLink)
	r.Get("/{workspace_id}/parent/{source_id}", s.ParentMapping)

	return r
}

func (s *MappingService) Link(w http.ResponseWriter, r *http.Request) {
	workspaceId, err := utils.URLParamUUID(r, "workspace_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req linkRequest
	if !utils.ParseRequestBody(w, r, &req) {
		return
	}

	utils.WriteJsonResponse(w, okResponse{Ok: s.LinkToTarget(workspaceId, req.SourceId, req.TargetId)})
}

func (s *MappingService) RelinkHandler(w http.ResponseWriter, r *http.Request) {
	workspaceId, err := utils.URLParamUUID(r, "workspace_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req linkRequest
	if !utils.ParseRequestBody(w, r, &req) {
		return
	}

	utils.WriteJsonResponse(w, okResponse{Ok: s.Relink(workspaceId, req.SourceId, req.TargetId)})
}

func (s *MappingService) TitlePrefix(w http.ResponseWriter, r *http.Request) {
	workspaceId, err := utils.URLParamUUID(r, "workspace_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req titlePrefixRequest
	if !utils.ParseRequestBody(w, r, &req) {
		return
	}

	ok := s.ApplyTitlePrefix(r.Context(), workspaceId, req.SourceId, req.TargetId, req.CurrentTitle)
	utils.WriteJsonResponse(w, okResponse{Ok: ok})
}

func (s *MappingService) ParentLink(w http.ResponseWriter, r *http.Request) {
	var req parentLinkRequest
	if !utils.ParseRequestBody(w, r, &req) {
		return
	}

	ok := s.CreateParentChildLink(r.Context(), req.ParentTargetId, req.ChildTargetId)
	utils.WriteJsonResponse(w, okResponse{Ok: ok})
}

func (s *MappingService) ParentMapping(w http.ResponseWriter, r *http.Request) {
	workspaceId, err := utils.URLParamUUID(r, "workspace_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sourceId, err := utils.URLParam(r, "source_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	parent, err := s.FindParentMapping(workspaceId, sourceId)
	if err != nil {
		http.Error(w, err.Error(), errorCode(err))
		return
	}
	if parent == nil {
		http.Error(w, "no parent mapping", http.StatusNotFound)
		return
	}

	utils.WriteJsonResponse(w, parent)
}
