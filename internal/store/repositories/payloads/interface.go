// Package payloads stores the binary blobs owned by items: the primary
// ItemData and the optional Thumbnail.
package payloads

import "context"

type Repository interface {
	SetData(ctx context.Context, itemID string, data []byte) error
	Data(ctx context.Context, itemID string) ([]byte, error)
	SetThumbnail(ctx context.Context, itemID string, data []byte) error
	Thumbnail(ctx context.Context, itemID string) ([]byte, error)
}
