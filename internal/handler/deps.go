package handler

import (
	"vttcore/internal/app/session"
	"vttcore/internal/app/storage"
	"vttcore/internal/configs"
)

// AppDeps carries the long-lived services the handlers need. Storage is nil when S3 is not configured.
type AppDeps struct {
	Engine  *session.Engine
	Config  *configs.AppConfig
	Storage storage.Service
}
