package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port             int    `envconfig:"PORT" default:"8080"`
	DatabaseURL      string `envconfig:"DATABASE_URL" default:"sqlite://./data/canvas.db"`
	JWTSecret        string `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	AssetDir         string `envconfig:"ASSET_DIR" default:"./data/uploads/images"`
	ThumbnailDir     string `envconfig:"THUMBNAIL_DIR" default:"./data/uploads/thumbnails"`
	AllowedOrigins   string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	CanvasWidth      int    `envconfig:"CANVAS_WIDTH" default:"800"`
	CanvasHeight     int    `envconfig:"CANVAS_HEIGHT" default:"600"`
	CanvasBackground string `envconfig:"CANVAS_BACKGROUND" default:"#f8f9fa"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
	MaxUploadMB      int64  `envconfig:"MAX_UPLOAD_MB" default:"10"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.CanvasWidth <= 0 || cfg.CanvasHeight <= 0 {
		return nil, fmt.Errorf("canvas size must be positive, got %dx%d", cfg.CanvasWidth, cfg.CanvasHeight)
	}
	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", cfg.MaxUploadMB)
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MaxUploadBytes is the per-file upload limit.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// ParseLevel maps LOG_LEVEL to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
