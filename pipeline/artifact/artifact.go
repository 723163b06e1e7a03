// Package artifact archives per-export debug captures (input slides, clean
// plates, final documents) so failed exports can be replayed.
package artifact

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// Store saves named artifact payloads. A nil *GCS is a valid store that
// drops everything, so archiving stays optional.
type Store interface {
	Save(ctx context.Context, name string, data []byte) error
}

type GCS struct {
	client *storage.Client
	bucket string
}

func NewGCS(client *storage.Client, bucket string) *GCS {
	return &GCS{client: client, bucket: bucket}
}

func (g *GCS) Save(ctx context.Context, name string, data []byte) error {
	if g == nil {
		return nil
	}
	writer := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

// Discard is a Store that keeps nothing.
type Discard struct{}

func (Discard) Save(context.Context, string, []byte) error { return nil }
