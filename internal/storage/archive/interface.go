// Package archive abstracts where run artifacts live: a local results
// directory during development, an S3-compatible bucket in
// production. Paths are forward-slash relative keys; backends map
// them to their own layout.
package archive

import "context"

// Storage is the artifact storage backend
type Storage interface {
	// Write stores data at the given path, creating parents as needed
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves the data stored at the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all stored paths under the prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}
