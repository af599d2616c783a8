package services

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"prodsync/syncengine/ado"
	"prodsync/syncengine/schema"
	"prodsync/syncengine/source"
	"prodsync/utils"
	"prodsync/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

// SyncEngine aggregates the sync services behind one router and owns the
// background reaper for stale in-progress runs.
type SyncEngine struct {
	sync     SyncService
	history  HistoryService
	teardown TeardownService
	mapping  MappingService
	ranking  RankingService

	db   *gorm.DB
	stop chan bool
}

func NewSyncEngine(db *gorm.DB, sourceClient source.Client, targetClient ado.Client) SyncEngine {
	mapping := MappingService{db: db, targetClient: targetClient}

	return SyncEngine{
		sync: SyncService{
			db:           db,
			sourceClient: sourceClient,
			mapping:      &mapping,
			guard:        newWorkspaceGuard(),
		},
		history:  HistoryService{db: db},
		teardown: TeardownService{db: db},
		mapping:  mapping,
		ranking:  RankingService{db: db, targetClient: targetClient},
		db:       db,
		stop:     make(chan bool, 1),
	}
}

func (e *SyncEngine) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/sync", e.sync.Routes())
	r.Mount("/history", e.history.Routes())
	r.Mount("/hierarchy", e.teardown.Routes())
	r.Mount("/mappings", e.mapping.Routes())
	r.Mount("/rankings", e.ranking.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}

// reapStaleRuns flips in-progress ledger rows older than the threshold to
// failed. A crashed process leaves its run permanently in progress; without
// this the workspace would look busy forever to callers inspecting the
// ledger. A run whose workspace guard is still held belongs to a live sync in
// this process, slow but not dead, and is left for its own terminal update.
func (e *SyncEngine) reapStaleRuns(threshold time.Duration) {
	cutoff := time.Now().UTC().Add(-threshold)

	var stale []schema.SyncHistory
	result := e.db.Find(&stale, "status = ? AND started_at < ?", schema.SyncInProgress, cutoff)
	if result.Error != nil {
		slog.Error("stale run reaper: sql error", "error", result.Error, "code", logging.SYNC_REAPER)
		return
	}

	reset := 0
	for _, run := range stale {
		if e.sync.guard.held(run.WorkspaceId) {
			continue
		}

		result := e.db.Model(&schema.SyncHistory{}).
			Where("id = ? AND status = ?", run.Id, schema.SyncInProgress).
			Updates(map[string]interface{}{
				"status":        schema.SyncFailed,
				"error_message": "sync run timed out and was reset",
				"completed_at":  time.Now().UTC(),
			})
		if result.Error != nil {
			slog.Error("stale run reaper: sql error", "sync_id", run.Id, "error", result.Error, "code", logging.SYNC_REAPER)
			continue
		}
		reset++
	}

	if reset > 0 {
		slog.Info("stale run reaper: reset stale runs", "count", reset, "code", logging.SYNC_REAPER)
	}
}

func (e *SyncEngine) StaleRunReaper(interval, threshold time.Duration) {
	slog.Info("stale run reaper: starting", "code", logging.SYNC_REAPER)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.reapStaleRuns(threshold)
		case <-e.stop:
			slog.Info("stale run reaper: stopped", "code", logging.SYNC_REAPER)
			return
		}
	}
}

func (e *SyncEngine) StopStaleRunReaper() {
	close(e.stop)
}
