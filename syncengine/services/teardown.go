package services

import (
	"log/slog"
	"net/http"

	"prodsync/syncengine/schema"
	"prodsync/utils"
	"prodsync/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var teardownRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hierarchy_teardown_runs", Help: "Hierarchy teardown runs by outcome",
}, []string{"outcome"})

type TeardownService struct {
	db *gorm.DB
}

// ClearHierarchy deletes the workspace's entire hierarchy. Junction tables
// go first, then features are stripped leaf-by-leaf so a parent row is never
// deleted while a child still references it, then the flat kinds.
//
// Returns true only if every kind reached zero rows. If a feature pass
// deletes nothing while rows remain (a cycle, or a dangling cross workspace
// reference) the loop aborts, the remaining rows are left in place, and the
// result is false. Initiatives, components and products are skipped in that
// case since remaining features may still reference them.
func (s *TeardownService) ClearHierarchy(workspaceId uuid.UUID) (bool, error) {
	if result := s.db.
		Where("feature_id IN (?)", s.featureIdsQuery(workspaceId)).
		Delete(&schema.InitiativeFeature{}); result.Error != nil {
		slog.Error("sql error deleting initiative feature links", "workspace_id", workspaceId, "error", result.Error)
		return false, schema.ErrDbAccessFailed
	}
	if result := s.db.
		Where("component_id IN (?)", s.db.Model(&schema.Component{}).Select("id").Where("workspace_id = ?", workspaceId)).
		Delete(&schema.ComponentInitiative{}); result.Error != nil {
		slog.Error("sql error deleting component initiative links", "workspace_id", workspaceId, "error", result.Error)
		return false, schema.ErrDbAccessFailed
	}

	for {
		// Current leaves: features no other feature references as parent.
		parents := s.db.Model(&schema.Feature{}).
			Select("parent_id").
			Where("workspace_id = ? AND parent_id IS NOT NULL", workspaceId)

		result := s.db.
			Where("workspace_id = ? AND id NOT IN (?)", workspaceId, parents).
			Delete(&schema.Feature{})
		if result.Error != nil {
			slog.Error("sql error deleting leaf features", "workspace_id", workspaceId, "error", result.Error)
			return false, schema.ErrDbAccessFailed
		}
		if result.RowsAffected > 0 {
			continue
		}

		var remaining int64
		if result := s.db.Model(&schema.Feature{}).Where("workspace_id = ?", workspaceId).Count(&remaining); result.Error != nil {
			slog.Error("sql error counting remaining features", "workspace_id", workspaceId, "error", result.Error)
			return false, schema.ErrDbAccessFailed
		}
		if remaining > 0 {
			slog.Error("feature teardown made no progress, aborting",
				"workspace_id", workspaceId, "remaining", remaining, "code", logging.TEARDOWN)
			teardownRuns.WithLabelValues("aborted").Inc()
			return false, nil
		}
		break
	}

	for _, model := range []interface{}{&schema.Initiative{}, &schema.Component{}, &schema.Product{}} {
		if result := s.db.Where("workspace_id = ?", workspaceId).Delete(model); result.Error != nil {
			slog.Error("sql error deleting hierarchy rows", "workspace_id", workspaceId, "error", result.Error)
			return false, schema.ErrDbAccessFailed
		}
	}

	teardownRuns.WithLabelValues("cleared").Inc()
	slog.Info("hierarchy cleared", "workspace_id", workspaceId, "code", logging.TEARDOWN)
	return true, nil
}

func (s *TeardownService) featureIdsQuery(workspaceId uuid.UUID) *gorm.DB {
	return s.db.Model(&schema.Feature{}).Select("id").Where("workspace_id = ?", workspaceId)
}

func (s *TeardownService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/{workspace_id}/clear", s.Clear)

	return r
}

type clearResponse struct {
	Cleared bool `json:"cleared"`
}

func (s *TeardownService) Clear(w http.ResponseWriter, r *http.Request) {
	workspaceId, err := utils.URLParamUUID(r, "workspace_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cleared, err := s.ClearHierarchy(workspaceId)
	if err != nil {
		http.Error(w, err.Error(), errorCode(err))
		return
	}

	utils.WriteJsonResponse(w, clearResponse{Cleared: cleared})
}
