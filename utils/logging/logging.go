package logging

import (
	"log/slog"
)

type LogCode string

const (
	// SYSTEM EVENTS
	SYSTEM LogCode = "SYSTEM"

	// HIERARCHY SYNC
	SYNC_RUN      LogCode = "SYNC_RUN"
	SYNC_UPSERT   LogCode = "SYNC_UPSERT"
	SYNC_JUNCTION LogCode = "SYNC_JUNCTION"
	SYNC_REAPER   LogCode = "SYNC_REAPER"

	// TEARDOWN
	TEARDOWN LogCode = "TEARDOWN"

	// CROSS SYSTEM LINKAGE
	MAPPING      LogCode = "MAPPING"
	TARGET_WRITE LogCode = "TARGET_WRITE"

	// RANK RECONCILIATION
	RANKING LogCode = "RANKING"
)

func JsonHandlerOptions(addSource bool) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: addSource,
	}
}
