/*
Package handler provides HTTP handler functions for room creation and room snapshots.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vttcore/internal/app/room"
	"vttcore/internal/pkg/errs"
	"vttcore/internal/pkg/logx"
	"vttcore/internal/pkg/resp"
)

// HandleCreateRoom creates an empty room and returns its id. The request body is ignored.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, err := deps.Engine.CreateRoom()
		if err != nil {
			logx.Error(err, "Failed to create room")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]string{
			"roomId": roomID,
		})
	}
}

// HandleGetRoom returns the current snapshot of a room.
func HandleGetRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := deps.Engine.GetRoom(chi.URLParam(r, "roomId"))
		if errors.Is(err, room.ErrRoomNotFound) {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}
		if err != nil {
			resp.RespondError(w, r, errs.From(err))
			return
		}

		resp.RespondSuccess(w, r, snapshot)
	}
}
