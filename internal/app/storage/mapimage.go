package storage

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"vttcore/internal/pkg/errs"
)

const (
	// MaxMapImageSizeMB is the maximum allowed map image size in megabytes.
	MaxMapImageSizeMB = 20

	// MaxMapImageSize is the maximum allowed map image size in bytes.
	MaxMapImageSize = MaxMapImageSizeMB * 1024 * 1024

	// PresignedURLDuration is the fixed duration for which presigned URLs stay valid.
	PresignedURLDuration = 5 * time.Minute
)

// AllowedMIMETypes defines the set of permitted MIME types for map images.
var AllowedMIMETypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// ExtToMIME maps file extensions to their corresponding MIME types.
var ExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ValidateMapImage checks size, MIME type, and that the file extension agrees with the MIME type.
func ValidateMapImage(fileName, mimeType string, size int64) *errs.CustomError {
	if size <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}
	if size > MaxMapImageSize {
		return errs.NewError(errs.ErrFileSizeTooLarge, MaxMapImageSizeMB)
	}

	lowerMimeType := strings.ToLower(mimeType)
	if _, ok := AllowedMIMETypes[lowerMimeType]; !ok {
		return errs.NewError(errs.ErrFileTypeNotAllowed)
	}

	expectedMIME, ok := ExtToMIME[strings.ToLower(filepath.Ext(fileName))]
	if !ok || expectedMIME != lowerMimeType {
		return errs.NewError(errs.ErrFileTypeNotAllowed)
	}

	return nil
}

// MapKey returns a fresh object key for a map image of roomID.
func MapKey(roomID, fileName string) string {
	return fmt.Sprintf("%s/%s%s", roomID, uuid.New().String(), strings.ToLower(filepath.Ext(fileName)))
}

// IsRoomKey reports whether key belongs to roomID.
func IsRoomKey(roomID, key string) bool {
	rest, ok := strings.CutPrefix(key, roomID+"/")
	return ok && rest != "" && !strings.Contains(rest, "/") && !strings.Contains(rest, "..")
}

// MapURL returns the map reference clients announce via mapUpload. It resolves through the
// server's download redirect, so it stays valid after any presigned URL expires.
func MapURL(roomID, key string) string {
	return fmt.Sprintf("/api/rooms/%s/map?k=%s", url.PathEscape(roomID), url.QueryEscape(key))
}
