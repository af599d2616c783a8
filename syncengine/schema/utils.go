package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrWorkspaceNotFound   = errors.New("workspace not found")
	ErrBoardNotFound       = errors.New("board not found")
	ErrSyncHistoryNotFound = errors.New("sync history not found")
	ErrMappingNotFound     = errors.New("entity mapping not found")
	ErrDbAccessFailed      = errors.New("db access failed")
)

func GetWorkspace(workspaceId uuid.UUID, db *gorm.DB) (Workspace, error) {
	var workspace Workspace

	result := db.First(&workspace, "id = ?", workspaceId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return workspace, ErrWorkspaceNotFound
		}
		slog.Error("sql error in get workspace", "workspace_id", workspaceId, "error", result.Error)
		return workspace, ErrDbAccessFailed
	}

	return workspace, nil
}

func GetBoard(boardId uuid.UUID, db *gorm.DB) (Board, error) {
	var board Board

	result := db.First(&board, "id = ?", boardId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return board, ErrBoardNotFound
		}
		slog.Error("sql error in get board", "board_id", boardId, "error", result.Error)
		return board, ErrDbAccessFailed
	}

	return board, nil
}

func GetSyncHistory(syncId uuid.UUID, db *gorm.DB) (SyncHistory, error) {
	var record SyncHistory

	result := db.First(&record, "id = ?", syncId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return record, ErrSyncHistoryNotFound
		}
		slog.Error("sql error in get sync history", "sync_id", syncId, "error", result.Error)
		return record, ErrDbAccessFailed
	}

	return record, nil
}

func GetMapping(workspaceId uuid.UUID, sourceId string, db *gorm.DB) (EntityMapping, error) {
	var mapping EntityMapping

	result := db.First(&mapping, "workspace_id = ? AND source_id = ?", workspaceId, sourceId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return mapping, ErrMappingNotFound
		}
		slog.Error("sql error in get entity mapping", "workspace_id", workspaceId, "source_id", sourceId, "error", result.Error)
		return mapping, ErrDbAccessFailed
	}

	return mapping, nil
}
