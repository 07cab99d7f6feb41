/*
Package configs loads the application's configuration from environment variables.

Values are decoded with Netflix/go-env struct tags and then normalised and validated
(port range, origin list, all-or-nothing S3 settings).
*/
package configs

import (
	"fmt"
	"strings"

	env "github.com/Netflix/go-env"
	"github.com/samber/lo"
)

const (
	minPort = 1024
	maxPort = 65535
)

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string `env:"ENVIRONMENT,default=development"`
	Port        int    `env:"PORT,default=5000"`

	// Security Settings
	AllowedOriginsRaw string `env:"ALLOWED_ORIGINS"`
	FrontendURL       string `env:"FRONTEND_URL,default=http://localhost:3000"`
	AllowedOrigins    []string

	// Session Settings
	MaxFrameBytes   int64 `env:"MAX_FRAME_BYTES,default=52428800"`
	SendBuffer      int   `env:"SEND_BUFFER,default=256"`
	MaxMessageBytes int   `env:"MAX_MESSAGE_BYTES,default=5000"`

	// S3 Storage Settings (optional, map images)
	S3BucketName      string `env:"S3_BUCKET_NAME"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3Region          string `env:"S3_REGION,default=auto"`
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// StorageEnabled reports whether S3 map storage is configured.
func (c *AppConfig) StorageEnabled() bool {
	return c.S3BucketName != ""
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// normalize derives computed fields and validates cross-field constraints.
func (c *AppConfig) normalize() error {
	if c.Port < minPort || c.Port > maxPort {
		return fmt.Errorf("port number %d is outside the allowed range (%d-%d)", c.Port, minPort, maxPort)
	}

	c.AllowedOrigins = splitCSV(c.AllowedOriginsRaw)
	if len(c.AllowedOrigins) == 0 && c.FrontendURL != "" {
		c.AllowedOrigins = []string{c.FrontendURL}
	}

	if c.MaxFrameBytes <= 0 {
		return fmt.Errorf("MAX_FRAME_BYTES must be positive, got %d", c.MaxFrameBytes)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("SEND_BUFFER must be positive, got %d", c.SendBuffer)
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("MAX_MESSAGE_BYTES must be positive, got %d", c.MaxMessageBytes)
	}

	s3 := []string{c.S3BucketName, c.S3Endpoint, c.S3AccessKeyID, c.S3SecretAccessKey}
	set := lo.CountBy(s3, func(v string) bool { return v != "" })
	if set != 0 && set != len(s3) {
		return fmt.Errorf("S3_BUCKET_NAME, S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
	}

	return nil
}

// splitCSV trims and filters a comma-separated list.
func splitCSV(v string) []string {
	return lo.Compact(lo.Map(strings.Split(v, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}
