// Package kv provides the string key-value stores the task list persists to.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidKey = errors.New("invalid key")
	ErrClosed     = errors.New("store closed")
)

// Store is a string key-value store. Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// validKey accepts keys that are safe as file names and SQL values alike.
func validKey(key string) error {
	if strings.TrimSpace(key) == "" || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, r := range key {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlnum && r != '-' && r != '_' && r != '.' {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
