package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"vttcore/internal/pkg/errs"
)

func TestValidateMapImage(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		mimeType string
		size     int64
		wantCode int
	}{
		{name: "png", fileName: "dungeon.png", mimeType: "image/png", size: 1024},
		{name: "upper case jpeg", fileName: "CAVE.JPG", mimeType: "IMAGE/JPEG", size: 1024},
		{name: "at limit", fileName: "big.webp", mimeType: "image/webp", size: MaxMapImageSize},
		{name: "empty", fileName: "a.png", mimeType: "image/png", size: 0, wantCode: errs.ErrInvalidParams},
		{name: "too large", fileName: "a.png", mimeType: "image/png", size: MaxMapImageSize + 1, wantCode: errs.ErrFileSizeTooLarge},
		{name: "not an image", fileName: "notes.pdf", mimeType: "application/pdf", size: 10, wantCode: errs.ErrFileTypeNotAllowed},
		{name: "extension mismatch", fileName: "a.gif", mimeType: "image/png", size: 10, wantCode: errs.ErrFileTypeNotAllowed},
		{name: "no extension", fileName: "map", mimeType: "image/png", size: 10, wantCode: errs.ErrFileTypeNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateMapImage(tt.fileName, tt.mimeType, tt.size)
			if tt.wantCode == 0 {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, tt.wantCode, got.Code)
		})
	}
}

func TestMapKeyIsScopedToRoom(t *testing.T) {
	req := require.New(t)

	key := MapKey("R1abc9", "Tavern.PNG")
	req.True(strings.HasPrefix(key, "R1abc9/"))
	req.True(strings.HasSuffix(key, ".png"))
	req.True(IsRoomKey("R1abc9", key))
	req.False(IsRoomKey("R2abc9", key))

	req.NotEqual(key, MapKey("R1abc9", "Tavern.PNG"))
}

func TestIsRoomKey(t *testing.T) {
	req := require.New(t)

	req.True(IsRoomKey("R1", "R1/x.png"))
	req.False(IsRoomKey("R1", "R1/"))
	req.False(IsRoomKey("R1", "R1x/y.png"))
	req.False(IsRoomKey("R1", "R1/../R2/y.png"))
	req.False(IsRoomKey("R1", "R1/sub/y.png"))
	req.False(IsRoomKey("R1", ""))
}

func TestMapURL(t *testing.T) {
	req := require.New(t)

	ref := MapURL("R1", "R1/abc.png")
	u, err := url.Parse(ref)
	req.NoError(err)
	req.Equal("/api/rooms/R1/map", u.Path)
	req.Equal("R1/abc.png", u.Query().Get("k"))
}

func TestS3Store_PresignIsOffline(t *testing.T) {
	req := require.New(t)

	store, err := NewS3Store(context.Background(), ServiceConfig{
		S3BucketName:      "maps",
		S3Endpoint:        "http://127.0.0.1:9000",
		S3AccessKeyID:     "test-key",
		S3SecretAccessKey: "test-secret",
	})
	req.NoError(err)

	up, err := store.PresignUpload(context.Background(), "R1/a.png", "image/png", 42, PresignedURLDuration)
	req.NoError(err)
	req.True(strings.HasPrefix(up, "http://127.0.0.1:9000/maps/R1/a.png?"), up)
	req.Contains(up, "X-Amz-Signature=")

	down, err := store.PresignDownload(context.Background(), "R1/a.png", PresignedURLDuration)
	req.NoError(err)
	req.True(strings.HasPrefix(down, "http://127.0.0.1:9000/maps/R1/a.png?"), down)
	req.Contains(down, "X-Amz-Expires=300")
}
