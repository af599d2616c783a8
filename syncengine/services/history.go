package services

import (
	"errors"
	"log/slog"
	"net/http"

	"prodsync/syncengine/schema"
	"prodsync/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryService is a read-only accessor over the sync ledger and the
// hierarchy store counts. The insert-then-one-terminal-update discipline on
// ledger rows is enforced by the orchestrator, not here.
type HistoryService struct {
	db *gorm.DB
}

type HierarchyCounts struct {
	Products    int64 `json:"products"`
	Components  int64 `json:"components"`
	Features    int64 `json:"features"`
	Initiatives int64 `json:"initiatives"`
}

// Latest returns the most recent sync attempt, or nil if the workspace has
// never synced.
func (s *HistoryService) Latest(workspaceId uuid.UUID) (*schema.SyncHistory, error) {
	var record schema.SyncHistory
	result := s.db.Where("workspace_id = ?", workspaceId).Order("started_at DESC").First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("sql error loading latest sync history", "workspace_id", workspaceId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}
	return &record, nil
}

// Counts is computed live over the hierarchy store rather than from ledger
// counters, so it never goes stale relative to partial syncs or teardowns.
func (s *HistoryService) Counts(workspaceId uuid.UUID) (HierarchyCounts, error) {
	var counts HierarchyCounts

	for _, entry := range []struct {
		model interface{}
		dest  *int64
	}{
		{&schema.Product{}, &counts.Products},
		{&schema.Component{}, &counts.Components},
		{&schema.Feature{}, &counts.Features},
		{&schema.Initiative{}, &counts.Initiatives},
	} {
		result := s.db.Model(entry.model).Where("workspace_id = ?", workspaceId).Count(entry.dest)
		if result.Error != nil {
			slog.Error("sql error counting hierarchy rows", "workspace_id", workspaceId, "error", result.Error)
			return counts, schema.ErrDbAccessFailed
		}
	}

	return counts, nil
}

func (s *HistoryService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{workspace_id}/latest", s.LatestHandler)
	r.Get("/{workspace_id}/counts", s.CountsHandler)

	return r
}

func (s *HistoryService) LatestHandler(w http.ResponseWriter, r *http.Request) {
	workspaceId, err := utils.URLParamUUID(r, "workspace_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := s.Latest(workspaceId)
	if err != nil {
		http.Error(w, err.Error(), errorCode(err))
		return
	}
	if record == nil {
		http.Error(w, "no sync history for workspace", http.StatusNotFound)
		return
	}

	utils.WriteJsonResponse(w, record)
}

func (s *HistoryService) CountsHandler(w http.ResponseWriter, r *http.Request) {
	workspaceId, err := utils.URLParamUUID(r, "workspace_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	counts, err := s.Counts(workspaceId)
	if err != nil {
		http.Error(w, err.Error(), errorCode(err))
		return
	}

	utils.WriteJsonResponse(w, counts)
}
