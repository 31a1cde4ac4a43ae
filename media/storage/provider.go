// Package storage stores derived files per owner. Filenames are relative
// paths such as "icons/42small.jpg"; the owner GUID partitions the namespace.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotExist is returned by Read when no blob is stored at the path.
var ErrNotExist = errors.New("blob does not exist")

// BlobStore writes and reads named blobs owned by an entity. Write overwrites.
type BlobStore interface {
	Write(ctx context.Context, owner int64, filename string, data []byte) error
	Read(ctx context.Context, owner int64, filename string) ([]byte, error)
	Exists(ctx context.Context, owner int64, filename string) (bool, error)
	Name() string
}

type Config struct {
	Driver string      `mapstructure:"driver" yaml:"driver" default:"local"`
	Local  LocalConfig `mapstructure:"local" yaml:"local"`
	OSS    OSSConfig   `mapstructure:"oss" yaml:"oss"`
}

type LocalConfig struct {
	BasePath string `mapstructure:"base-path" yaml:"base-path" default:"data/files"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access-key-id" yaml:"access-key-id"`
	AccessKeySecret string `mapstructure:"access-key-secret" yaml:"access-key-secret"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
}

// New builds the store selected by cfg.Driver.
func New(cfg Config) (BlobStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "local":
		return NewLocalStore(cfg.Local.BasePath)
	case "oss":
		return NewOSSStore(cfg.OSS)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// cleanName rejects absolute names and names escaping the owner directory.
func cleanName(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("empty filename")
	}
	name := path.Clean(strings.ReplaceAll(filename, "\\", "/"))
	if path.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") || name == "." {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return name, nil
}
