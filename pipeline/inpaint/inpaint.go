// Package inpaint abstracts the content-aware fill service used to erase
// detected foreground elements from a slide's background plate.
package inpaint

import (
	"context"
	"image"
)

// Client fills the masked areas of origin with plausible background content.
// The mask is the same size as origin: opaque white marks pixels to repaint,
// transparent pixels are kept. Implementations must be safe for concurrent
// use and must honor ctx cancellation, since calls can be slow.
type Client interface {
	Inpaint(ctx context.Context, origin image.Image, mask image.Image) (image.Image, error)
}
