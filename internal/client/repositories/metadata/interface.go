// Package metadata is a small key/value store for engine facts such as the
// last successful sync and the cached login.
package metadata

import "context"

type Repository interface {
	// Get returns ("", false, nil) when key is absent.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) error
}
