package mjpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
)

// ErrClosed is reported by Err after Close detached the stream.
var ErrClosed = errors.New("stream closed")

// maxPartSize bounds a single JPEG part.
const maxPartSize = 16 << 20

// Stream is one open MJPEG response. It keeps only the latest frame.
type Stream struct {
	cancel context.CancelFunc
	body   io.ReadCloser
	done   chan struct{}

	mu     sync.RWMutex
	frame  image.Image
	size   image.Point
	frames uint64
	err    error
	closed bool
}

// Open requests url and returns once the response headers arrive. A non-2xx
// status or a non-multipart content type is a load failure.
func Open(ctx context.Context, client *http.Client, url string) (*Stream, error) {
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "multipart/x-mixed-replace, image/jpeg")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		cancel()
		msg := strings.TrimSpace(string(snippet))
		if msg == "" {
			return nil, fmt.Errorf("open stream: status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("open stream: status %d: %s", resp.StatusCode, msg)
	}
	boundary, err := ParseBoundary(resp.Header.Get("Content-Type"))
	if err != nil {
		_ = resp.Body.Close()
		cancel()
		return nil, err
	}

	s := &Stream{
		cancel: cancel,
		body:   resp.Body,
		done:   make(chan struct{}),
	}
	go s.read(multipart.NewReader(resp.Body, boundary))
	return s, nil
}

// ParseBoundary extracts the part boundary from a multipart Content-Type.
// Quoted values and a stray "--" prefix are tolerated.
func ParseBoundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("parse content type %q: %w", contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("unexpected content type %q", mediaType)
	}
	boundary := strings.TrimPrefix(strings.Trim(params["boundary"], `"`), "--")
	if boundary == "" {
		return "", fmt.Errorf("content type %q has no boundary", contentType)
	}
	return boundary, nil
}

func (s *Stream) read(mr *multipart.Reader) {
	defer close(s.done)
	for {
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			s.fail(fmt.Errorf("read part: %w", err))
			return
		}
		if ct := part.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
			_ = part.Close()
			continue
		}
		data, err := io.ReadAll(io.LimitReader(part, maxPartSize))
		_ = part.Close()
		if err != nil {
			s.fail(fmt.Errorf("read frame: %w", err))
			return
		}
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			s.fail(fmt.Errorf("decode frame: %w", err))
			return
		}
		s.mu.Lock()
		s.frame = img
		s.size = img.Bounds().Size()
		s.frames++
		s.mu.Unlock()
	}
}

func (s *Stream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil && !s.closed {
		s.err = err
	}
}

// Size returns the dimensions of the latest frame, zero before the first.
func (s *Stream) Size() image.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Frame returns the latest decoded frame or nil.
func (s *Stream) Frame() image.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Frames counts decoded frames.
func (s *Stream) Frames() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// Err reports why the stream stopped delivering frames.
func (s *Stream) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err == nil && s.closed {
		return ErrClosed
	}
	return s.err
}

// Done is closed when the reader goroutine exits.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close cancels the request and waits for the reader to exit. It is safe to
// call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	if already {
		<-s.done
		return nil
	}
	s.cancel()
	err := s.body.Close()
	<-s.done
	return err
}
