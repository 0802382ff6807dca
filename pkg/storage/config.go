package storage

import (
	"context"
	"fmt"
)

// Config selects and configures a storage driver.
type Config struct {
	Driver string      `mapstructure:"driver"` // local or s3
	Local  LocalConfig `mapstructure:"local"`
	S3     S3Config    `mapstructure:"s3"`
}

// New builds the configured Storage.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStorage(cfg.Local)
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
