package entity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/leeforge/icons/access"
)

var ErrNotFound = errors.New("entity not found")

// Store persists entities and their attributes.
//
// Get hides entities flagged Hidden unless the access gate on ctx has been
// elevated; such entities are reported as ErrNotFound.
type Store interface {
	Get(ctx context.Context, guid int64) (*Entity, error)
	Put(ctx context.Context, e *Entity) error
	SetAttributes(ctx context.Context, guid int64, attrs Attributes) error
	Close() error
}

func notFound(guid int64) error {
	return fmt.Errorf("entity %d: %w", guid, ErrNotFound)
}

func checkVisible(ctx context.Context, e *Entity) error {
	if e.Hidden && !access.HiddenVisible(ctx) {
		return notFound(e.GUID)
	}
	return nil
}

func validateAttributes(attrs Attributes) error {
	for name := range attrs {
		if err := ValidName(name); err != nil {
			return err
		}
	}
	return nil
}

type StoreConfig struct {
	Driver string       `mapstructure:"driver" yaml:"driver" default:"memory"`
	Redis  RedisConfig  `mapstructure:"redis" yaml:"redis"`
	SQLite SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
}

// Open builds the store selected by cfg.Driver: memory, redis or sqlite.
func Open(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		client, err := NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return NewRedisStore(client, cfg.Redis.KeyPrefix), nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unsupported entity store driver: %s", cfg.Driver)
	}
}
