package main

import (
	"fmt"
	"os"
	"time"

	"gradehub/internal/common/cache"
	"gradehub/internal/common/db"
	commonmw "gradehub/internal/common/http/middleware"
	"gradehub/internal/common/storage"
	"gradehub/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// GradingConfig holds submission and grading settings.
type GradingConfig struct {
	MaxContentChars  int           `yaml:"maxContentChars"`
	MaxFileBytes     int64         `yaml:"maxFileBytes"`
	DelayMin         time.Duration `yaml:"delayMin"`
	DelayMax         time.Duration `yaml:"delayMax"`
	DBTimeout        time.Duration `yaml:"dbTimeout"`
	ArchiveBucket    string        `yaml:"archiveBucket"`
	ArchiveKeyPrefix string        `yaml:"archiveKeyPrefix"`
}

// AppConfig holds grading-service configuration.
type AppConfig struct {
	Server    ServerConfig             `yaml:"server"`
	Logger    logger.Config            `yaml:"logger"`
	Database  db.MySQLConfig           `yaml:"database"`
	Redis     cache.RedisConfig        `yaml:"redis"`
	MinIO     storage.MinIOConfig      `yaml:"minio"`
	Grading   GradingConfig            `yaml:"grading"`
	RateLimit commonmw.RateLimitPolicy `yaml:"rateLimit"`
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	if cfg.Grading.MaxContentChars == 0 {
		cfg.Grading.MaxContentChars = 10000
	}
	if cfg.Grading.MaxFileBytes == 0 {
		cfg.Grading.MaxFileBytes = 1 << 20
	}
	if cfg.Grading.DelayMin == 0 {
		cfg.Grading.DelayMin = time.Second
	}
	if cfg.Grading.DelayMax == 0 {
		cfg.Grading.DelayMax = 3 * time.Second
	}
	if cfg.Grading.DBTimeout == 0 {
		cfg.Grading.DBTimeout = 5 * time.Second
	}
	if cfg.Grading.ArchiveBucket == "" {
		cfg.Grading.ArchiveBucket = cfg.MinIO.Bucket
	}
	if cfg.Grading.ArchiveKeyPrefix == "" {
		cfg.Grading.ArchiveKeyPrefix = "submissions/"
	}

	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = 15 * time.Minute
	}
	if cfg.RateLimit.IPMax == 0 {
		cfg.RateLimit.IPMax = 100
	}

	return &cfg, nil
}
