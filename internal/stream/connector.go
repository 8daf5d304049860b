package stream

import (
	"context"
	"image"
	"net/http"

	"github.com/five82/periscope/internal/api"
	"github.com/five82/periscope/internal/mjpeg"
)

// Backend is the subset of the API the controller drives.
type Backend interface {
	StreamURL(q api.StreamQuery) string
	AbortStream(ctx context.Context, clientID string) (bool, error)
	FetchProof(ctx context.Context, q api.StreamQuery) (api.Proof, error)
}

// FrameSource is an open stream. Size is zero until the first frame; Err is
// non-nil once the stream failed.
type FrameSource interface {
	Size() image.Point
	Err() error
	Close() error
}

// Framer is implemented by sources that expose the latest decoded frame.
type Framer interface {
	Frame() image.Image
}

// Connector opens frame sources.
type Connector interface {
	Open(ctx context.Context, url string) (FrameSource, error)
}

// MJPEGConnector opens sources with package mjpeg.
type MJPEGConnector struct {
	Client *http.Client
}

func (m MJPEGConnector) Open(ctx context.Context, url string) (FrameSource, error) {
	s, err := mjpeg.Open(ctx, m.Client, url)
	if err != nil {
		return nil, err
	}
	return s, nil
}
