// Package storage provides durable key-value slots used to persist sessions.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// Slot is a durable key-value store. Values are opaque bytes.
type Slot interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config 描述存储后端。
type Config struct {
	Driver string // memory | file | sqlite
	Path   string // 目录 (file) 或数据库文件 (sqlite)
}

// Open creates the slot backend named by cfg.Driver.
func Open(cfg Config) (Slot, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(cfg.Path)
	case "sqlite":
		return NewSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
