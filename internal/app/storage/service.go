/*
Package storage keeps uploaded map images in S3-compatible object storage.

Objects are keyed "<roomId>/<uuid><ext>" so that a key can only ever be served for the room it was
uploaded to. The room store never sees these keys directly; clients turn them into a map reference
(see MapURL) and announce it with a mapUpload event.
*/
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
}

// ObjectInfo is the subset of object metadata the server cares about.
type ObjectInfo struct {
	ContentType string
	Size        int64
}

// Service is the map image store used by the HTTP handlers.
type Service interface {
	// PresignUpload generates a pre-signed URL for uploading an object.
	PresignUpload(ctx context.Context, key, mimeType string, size int64, ttl time.Duration) (string, error)

	// PresignDownload generates a pre-signed URL for downloading an object.
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Upload streams body into the bucket under key.
	Upload(ctx context.Context, key, mimeType string, body io.Reader) error

	// Stat returns the object's metadata or ErrObjectNotFound.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}
