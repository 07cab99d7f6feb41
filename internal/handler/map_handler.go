package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"vttcore/internal/app/storage"
	"vttcore/internal/pkg/errs"
	"vttcore/internal/pkg/logx"
	"vttcore/internal/pkg/req"
	"vttcore/internal/pkg/resp"
)

// maxMultipartMemory bounds the part of a multipart upload kept in memory; the rest spills to disk.
const maxMultipartMemory = 8 << 20

// PresignMapInput defines the JSON input structure for generating a map upload URL.
type PresignMapInput struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
}

// HandlePresignMapUpload returns a time-limited URL the client PUTs the image to, plus the map
// reference to announce with mapUpload once the upload succeeds.
func HandlePresignMapUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, ok := mapRoom(w, r, deps)
		if !ok {
			return
		}

		var input PresignMapInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := storage.ValidateMapImage(input.FileName, input.MimeType, input.FileSize); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		fileKey := storage.MapKey(roomID, input.FileName)

		url, err := deps.Storage.PresignUpload(r.Context(), fileKey, strings.ToLower(input.MimeType), input.FileSize, storage.PresignedURLDuration)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"presignedUrl": url,
			"fileKey":      fileKey,
			"mapUrl":       storage.MapURL(roomID, fileKey),
		})
	}
}

// HandleUploadMap accepts a multipart "file" field and stores it server side.
func HandleUploadMap(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, ok := mapRoom(w, r, deps)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, storage.MaxMapImageSize+maxMultipartMemory)
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				resp.RespondError(w, r, errs.NewError(errs.ErrFileSizeTooLarge, storage.MaxMapImageSizeMB))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, header, err := r.FormFile("file")
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}
		defer file.Close()

		mimeType := strings.ToLower(header.Header.Get("Content-Type"))
		if customErr := storage.ValidateMapImage(header.Filename, mimeType, header.Size); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		fileKey := storage.MapKey(roomID, header.Filename)
		if err := deps.Storage.Upload(r.Context(), fileKey, mimeType, file); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"fileKey": fileKey,
			"mapUrl":  storage.MapURL(roomID, fileKey),
		})
	}
}

// HandleMapRedirect redirects to a time-limited download URL for a map image of the room.
func HandleMapRedirect(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, ok := mapRoom(w, r, deps)
		if !ok {
			return
		}

		fileKey := r.URL.Query().Get("k")
		if fileKey == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if !storage.IsRoomKey(roomID, fileKey) {
			logx.Warn("Map key not scoped to room", "room_id", roomID, "key", fileKey)
			resp.RespondError(w, r, errs.NewError(errs.ErrMapKeyInvalid))
			return
		}

		if _, err := deps.Storage.Stat(r.Context(), fileKey); err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrMapNotFound))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		url, err := deps.Storage.PresignDownload(r.Context(), fileKey, storage.PresignedURLDuration)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}

// mapRoom resolves the {roomId} path parameter for map routes. It writes the error response
// itself when storage is disabled or the room does not exist.
func mapRoom(w http.ResponseWriter, r *http.Request, deps *AppDeps) (string, bool) {
	if deps.Storage == nil {
		resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageUnavailable))
		return "", false
	}

	roomID := chi.URLParam(r, "roomId")
	if _, err := deps.Engine.GetRoom(roomID); err != nil {
		resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
		return "", false
	}

	return roomID, true
}
