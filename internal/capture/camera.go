package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const maxSnapshotBytes = 10 << 20

var (
	ErrCameraClosed = errors.New("camera is not open")
	ErrEmptyFrame   = errors.New("camera returned an empty frame")
)

// Frame - один кадр с камеры
type Frame struct {
	Data        []byte
	ContentType string
	CapturedAt  time.Time
}

// Camera - устройство захвата. Open/Close вызываются только источником снимков.
type Camera interface {
	Open(ctx context.Context) error
	Snapshot(ctx context.Context) (Frame, error)
	Close() error
}

// HTTPSnapshotCamera - IP-камера, отдающая JPEG по HTTP
type HTTPSnapshotCamera struct {
	url        string
	httpClient *http.Client

	mu     sync.Mutex
	opened bool
}

func NewHTTPSnapshotCamera(snapshotURL string, timeout time.Duration) *HTTPSnapshotCamera {
	return &HTTPSnapshotCamera{
		url:        snapshotURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPSnapshotCamera) Open(ctx context.Context) error {
	if _, err := url.ParseRequestURI(c.url); err != nil {
		return fmt.Errorf("invalid camera snapshot url: %w", err)
	}
	c.mu.Lock()
	c.opened = true
	c.mu.Unlock()
	return nil
}

func (c *HTTPSnapshotCamera) Snapshot(ctx context.Context) (Frame, error) {
	c.mu.Lock()
	opened := c.opened
	c.mu.Unlock()
	if !opened {
		return Frame{}, ErrCameraClosed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to create snapshot request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Frame{}, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Frame{}, fmt.Errorf("camera responded with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return Frame{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if len(data) == 0 {
		return Frame{}, ErrEmptyFrame
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return Frame{
		Data:        data,
		ContentType: contentType,
		CapturedAt:  time.Now().UTC(),
	}, nil
}

// Close идемпотентен
func (c *HTTPSnapshotCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		c.opened = false
		c.httpClient.CloseIdleConnections()
	}
	return nil
}
