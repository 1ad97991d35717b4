package capture

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shenikar/road_incident_triage/internal/config"
	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCamera struct {
	mu      sync.Mutex
	opens   int
	closes  int
	isOpen  bool
	openErr error
}

func (c *fakeCamera) Open(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return c.openErr
	}
	c.opens++
	c.isOpen = true
	return nil
}

func (c *fakeCamera) Snapshot(context.Context) (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOpen {
		return Frame{}, ErrCameraClosed
	}
	return Frame{Data: []byte{0xff, 0xd8}, ContentType: "image/jpeg"}, nil
}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	c.isOpen = false
	return nil
}

func (c *fakeCamera) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens, c.closes
}

// blockingProcessor держит каждый цикл до сигнала release
type blockingProcessor struct {
	started  chan struct{}
	release  chan struct{}
	active   atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
	ctxErrs  atomic.Int32
	lastAcq  atomic.Pointer[Acquisition]
	blocking bool
}

func newBlockingProcessor(blocking bool) *blockingProcessor {
	return &blockingProcessor{
		started:  make(chan struct{}, 100),
		release:  make(chan struct{}),
		blocking: blocking,
	}
}

func (p *blockingProcessor) Process(ctx context.Context, acq Acquisition) (*models.Capture, error) {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		m := p.maxSeen.Load()
		if n <= m || p.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	p.calls.Add(1)
	p.lastAcq.Store(&acq)
	p.started <- struct{}{}
	if p.blocking {
		<-p.release
	}
	if ctx.Err() != nil {
		p.ctxErrs.Add(1)
	}
	return &models.Capture{CameraID: acq.CameraID, Disposition: models.DispositionDiscard}, nil
}

type staticLocator struct{ loc *models.Location }

func (l staticLocator) Locate(context.Context) *models.Location { return l.loc }

func newTestSettings(interval time.Duration, tracking bool) *config.RuntimeSettings {
	return config.NewRuntimeSettings(config.Settings{
		CaptureInterval:  interval,
		LocationTracking: tracking,
		Thresholds:       config.Thresholds{AutoSubmit: 0.8, ManualReview: 0.5},
	})
}

func newTestSource(cam Camera, proc FrameProcessor, loc Locator, settings *config.RuntimeSettings) *Source {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return NewSource("cam-test", cam, loc, proc, settings, logger).WithInitialDelay(0)
}

func TestSource_StopWithoutStartIsNoop(t *testing.T) {
	cam := &fakeCamera{}
	src := newTestSource(cam, newBlockingProcessor(false), nil, newTestSettings(time.Hour, false))

	assert.NotPanics(t, func() {
		src.Stop()
		src.Stop()
	})
	opens, closes := cam.counts()
	assert.Zero(t, opens)
	assert.Zero(t, closes)
	assert.False(t, src.IsMonitoring())
}

func TestSource_StartStopIdempotent(t *testing.T) {
	cam := &fakeCamera{}
	proc := newBlockingProcessor(false)
	src := newTestSource(cam, proc, nil, newTestSettings(time.Hour, false))

	require.NoError(t, src.Start(context.Background()))
	assert.ErrorIs(t, src.Start(context.Background()), ErrAlreadyMonitoring)

	select {
	case <-proc.started:
	case <-time.After(time.Second):
		t.Fatal("initial capture did not run")
	}

	src.Stop()
	src.Stop()

	opens, closes := cam.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
	assert.False(t, src.Status().Monitoring)
}

func TestSource_StartFailsWhenCameraUnavailable(t *testing.T) {
	cam := &fakeCamera{openErr: errors.New("no device")}
	src := newTestSource(cam, newBlockingProcessor(false), nil, newTestSettings(time.Hour, false))

	err := src.Start(context.Background())
	require.Error(t, err)
	assert.False(t, src.IsMonitoring())
}

func TestSource_DropsTicksWhileCycleInFlight(t *testing.T) {
	cam := &fakeCamera{}
	proc := newBlockingProcessor(true)
	src := newTestSource(cam, proc, nil, newTestSettings(5*time.Millisecond, false))

	require.NoError(t, src.Start(context.Background()))
	<-proc.started

	// пока первый цикл висит, таймер продолжает тикать
	assert.Eventually(t, func() bool { return src.Status().Dropped >= 3 }, time.Second, 5*time.Millisecond)

	_, err := src.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrCaptureInProgress)
	assert.True(t, src.Status().Busy)

	close(proc.release)
	src.Stop()

	assert.Equal(t, int32(1), proc.maxSeen.Load())
}

func TestSource_StopWaitsForInFlightCycle(t *testing.T) {
	cam := &fakeCamera{}
	proc := newBlockingProcessor(true)
	src := newTestSource(cam, proc, nil, newTestSettings(time.Hour, false))

	require.NoError(t, src.Start(context.Background()))
	<-proc.started

	stopped := make(chan struct{})
	go func() {
		src.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight cycle finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(proc.release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}

	assert.Zero(t, proc.ctxErrs.Load(), "in-flight cycle must not be cancelled by Stop")
	assert.Equal(t, int64(1), src.Status().Completed)
	_, closes := cam.counts()
	assert.Equal(t, 1, closes)
}

func TestSource_ManualTriggerWithoutMonitoring(t *testing.T) {
	cam := &fakeCamera{}
	proc := newBlockingProcessor(false)
	want := &models.Location{Latitude: 12.97, Longitude: 77.59, Address: "MG Road"}
	src := newTestSource(cam, proc, staticLocator{loc: want}, newTestSettings(time.Hour, true))

	capture, err := src.Trigger(context.Background())
	require.NoError(t, err)
	require.NotNil(t, capture)

	acq := proc.lastAcq.Load()
	require.NotNil(t, acq)
	assert.True(t, acq.Manual)
	assert.Equal(t, want, acq.Location)

	opens, closes := cam.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes, "camera opened for a manual capture is released afterwards")
	assert.False(t, src.IsMonitoring())
}

func TestSource_ManualTriggerIgnoresCallerCancel(t *testing.T) {
	proc := newBlockingProcessor(false)
	src := newTestSource(&fakeCamera{}, proc, nil, newTestSettings(time.Hour, false))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	capture, err := src.Trigger(ctx)
	require.NoError(t, err)
	require.NotNil(t, capture)
	assert.Equal(t, int32(1), proc.calls.Load())
	assert.Equal(t, int32(0), proc.ctxErrs.Load(), "cycle runs on a context detached from the request")
	assert.Equal(t, int64(1), src.Status().Completed)
}

func TestSource_LocationTrackingDisabled(t *testing.T) {
	proc := newBlockingProcessor(false)
	src := newTestSource(&fakeCamera{}, proc, staticLocator{loc: &models.Location{Latitude: 1}}, newTestSettings(time.Hour, false))

	_, err := src.Trigger(context.Background())
	require.NoError(t, err)
	assert.Nil(t, proc.lastAcq.Load().Location)
}

func TestHTTPSnapshotCamera(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	}))
	defer srv.Close()

	cam := NewHTTPSnapshotCamera(srv.URL+"/snapshot.jpg", time.Second)
	_, err := cam.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrCameraClosed)

	require.NoError(t, cam.Open(context.Background()))
	frame, err := cam.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", frame.ContentType)
	assert.Len(t, frame.Data, 4)
	assert.False(t, frame.CapturedAt.IsZero())

	require.NoError(t, cam.Close())
	require.NoError(t, cam.Close())
}

func TestHTTPSnapshotCamera_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	cam := NewHTTPSnapshotCamera(srv.URL, time.Second)
	require.NoError(t, cam.Open(context.Background()))
	_, err := cam.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrEmptyFrame)
}
