package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"prodsync/syncengine/ado"
	"prodsync/syncengine/schema"
	"prodsync/utils"
	"prodsync/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var rankPushes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ranking_pushes", Help: "Rank updates pushed to the target system by outcome",
}, []string{"outcome"})

type RankingService struct {
	db *gorm.DB

	targetClient ado.Client
}

// ExtractedItem is one entry of a freshly extracted priority order for a
// board, rank 1 being the highest priority.
type ExtractedItem struct {
	StoryId   string `json:"story_id"`
	StoryName string `json:"story_name"`
	Rank      int    `json:"rank"`
}

// classifyRankings is a pure diff of the freshly extracted order against the
// previous batch. Items without a previous record are new; everything else
// is unchanged, up, or down with the movement magnitude recorded. Previous
// rank, matching id and pushed state are carried forward from the prior
// record; a moved item needs pushing again so its pushed state resets.
func classifyRankings(current []ExtractedItem, previous []schema.RankingRecord) []schema.RankingRecord {
	prevByStory := make(map[string]schema.RankingRecord, len(previous))
	for _, rec := range previous {
		prevByStory[rec.StoryId] = rec
	}

	records := make([]schema.RankingRecord, 0, len(current))
	for _, item := range current {
		record := schema.RankingRecord{
			StoryId:     item.StoryId,
			StoryName:   item.StoryName,
			CurrentRank: item.Rank,
		}

		prev, ok := prevByStory[item.StoryId]
		if !ok {
			record.Movement = schema.RankNew
			records = append(records, record)
			continue
		}

		previousRank := prev.CurrentRank
		record.PreviousRank = &previousRank
		record.MatchingId = prev.MatchingId

		switch {
		case item.Rank == previousRank:
			record.Movement = schema.RankUnchanged
			record.SyncedToTarget = prev.SyncedToTarget
		case item.Rank < previousRank:
			record.Movement = schema.RankUp
			record.MovementDelta = previousRank - item.Rank
		default:
			record.Movement = schema.RankDown
			record.MovementDelta = item.Rank - previousRank
		}

		records = append(records, record)
	}

	return records
}

// ReconcileRanks classifies the extracted order against the previous batch
// for the board and persists the result as a new batch. Matching ids are
// resolved through the entity mapping layer best effort; a story with no
// mapping keeps a null matching id and the batch still succeeds.
func (s *RankingService) ReconcileRanks(workspaceId, boardId uuid.UUID, extracted []ExtractedItem) ([]schema.RankingRecord, error) {
	board, err := schema.GetBoard(boardId, s.db)
	if err != nil {
		return nil, err
	}
	// A board from another workspace must not be reachable through this
	// workspace's mappings.
	if board.WorkspaceId != workspaceId {
		return nil, schema.ErrBoardNotFound
	}

	previous, err := s.latestBatch(board.Id)
	if err != nil {
		return nil, err
	}

	records := classifyRankings(extracted, previous)

	batchId := uuid.New()
	now := time.Now().UTC()
	for i := range records {
		records[i].Id = uuid.New()
		records[i].WorkspaceId = workspaceId
		records[i].BoardId = board.Id
		records[i].SyncHistoryId = batchId
		records[i].CreatedAt = now

		if records[i].MatchingId == nil {
			records[i].MatchingId = s.resolveMatchingId(workspaceId, records[i].StoryId)
		}
	}

	if len(records) > 0 {
		if result := s.db.Create(&records); result.Error != nil {
			slog.Error("sql error persisting ranking batch", "board_id", board.Id, "error", result.Error)
			return nil, schema.ErrDbAccessFailed
		}
	}

	slog.Info("ranking batch reconciled", "board_id", board.Id, "batch_id", batchId, "records", len(records), "code", logging.RANKING)
	return records, nil
}

// PushRankingsToTarget pushes the computed diffs of one batch to the target
// system. Only moved or new records with a resolved matching id are pushed;
// per-item failures are logged and skipped, so a partially pushed batch is a
// stable state the next invocation can finish.
func (s *RankingService) PushRankingsToTarget(ctx context.Context, syncHistoryId uuid.UUID) (int, error) {
	var records []schema.RankingRecord
	result := s.db.Find(&records, "sync_history_id = ?", syncHistoryId)
	if result.Error != nil {
		slog.Error("sql error loading ranking batch", "batch_id", syncHistoryId, "error", result.Error)
		return 0, schema.ErrDbAccessFailed
	}
	if len(records) == 0 {
		return 0, schema.ErrSyncHistoryNotFound
	}

	updated := 0
	for _, record := range records {
		if record.SyncedToTarget || record.Movement == schema.RankUnchanged || record.MatchingId == nil {
			continue
		}

		if err := s.targetClient.UpdateItemRank(ctx, *record.MatchingId, record.CurrentRank); err != nil {
			slog.Error("failed to push rank update", "story_id", record.StoryId, "target_id", *record.MatchingId, "error", err, "code", logging.TARGET_WRITE)
			rankPushes.WithLabelValues("failed").Inc()
			continue
		}

		result := s.db.Model(&schema.RankingRecord{}).Where("id = ?", record.Id).Update("is_synced_to_ado", true)
		if result.Error != nil {
			slog.Error("sql error marking ranking record pushed", "record_id", record.Id, "error", result.Error)
			continue
		}

		rankPushes.WithLabelValues("pushed").Inc()
		updated++
	}

	return updated, nil
}

func (s *RankingService) latestBatch(boardId uuid.UUID) ([]schema.RankingRecord, error) {
	var latest schema.RankingRecord
	result := s.db.Where("board_id = ?", boardId).Order("created_at DESC").First(&latest)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("sql error loading latest ranking batch", "board_id", boardId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}

	var batch []schema.RankingRecord
	result = s.db.Find(&batch, "sync_history_id = ?", latest.SyncHistoryId)
	if result.Error != nil {
		slog.Error("sql error loading ranking batch records", "batch_id", latest.SyncHistoryId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}
	return batch, nil
}

func (s *RankingService) resolveMatchingId(workspaceId uuid.UUID, storyId string) *int {
	mapping, err := schema.GetMapping(workspaceId, storyId, s.db)
	if err != nil {
		return nil
	}
	return mapping.TargetId
}

type reconcileRequest struct {
	Items []ExtractedItem `json:"items"`
}

type pushResponse struct {
	UpdatedCount int `json:"updated_count"`
}

func (s *RankingService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/{workspace_id}/{board_id}/reconcile", s.Reconcile)
	r.Post("/push/{sync_history_id}", s.Push)

	return r
}

func (s *RankingService) Reconcile(w http.ResponseWriter, r *http.Request) {
	workspaceId, err := utils.URLParamUUID(r, "workspace_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	boardId, err := utils.URLParamUUID(r, "board_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req reconcileRequest
	if !utils.ParseRequestBody(w, r, &req) {
		return
	}

	records, err := s.ReconcileRanks(workspaceId, boardId, req.Items)
	if err != nil {
		http.Error(w, err.Error(), errorCode(err))
		return
	}

	utils.WriteJsonResponse(w, records)
}

func (s *RankingService) Push(w http.ResponseWriter, r *http.Request) {
	syncHistoryId, err := utils.URLParamUUID(r, "sync_history_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := s.PushRankingsToTarget(r.Context(), syncHistoryId)
	if err != nil {
		http.Error(w, err.Error(), errorCode(err))
		return
	}

	utils.WriteJsonResponse(w, pushResponse{UpdatedCount: updated})
}
