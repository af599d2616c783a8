package services

import (
	"errors"
	"net/http"

	"prodsync/syncengine/schema"
)

func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrSyncBusy):
		return http.StatusConflict
	case errors.Is(err, schema.ErrWorkspaceNotFound),
		errors.Is(err, schema.ErrBoardNotFound),
		errors.Is(err, schema.ErrSyncHistoryNotFound),
		errors.Is(err, schema.ErrMappingNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
