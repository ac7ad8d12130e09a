// Package storage writes generation artifacts and returns the URL they are
// served from.
package storage

import (
	"context"
	"io"
)

// ArtifactStore durably stores an uploaded artifact under name.
type ArtifactStore interface {
	Save(ctx context.Context, name string, body io.Reader) (url string, err error)
}
