package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/shenikar/road_incident_triage/internal/config"
	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/sirupsen/logrus"
)

const defaultInitialDelay = time.Second

var (
	ErrCaptureInProgress = errors.New("capture already in progress")
	ErrAlreadyMonitoring = errors.New("monitoring already active")
)

// Acquisition - полученный кадр с координатами, передается на обработку
type Acquisition struct {
	CameraID string
	Frame    Frame
	Location *models.Location
	Manual   bool
}

// FrameProcessor - следующий этап конвейера: классификация, маршрутизация, сохранение
type FrameProcessor interface {
	Process(ctx context.Context, acq Acquisition) (*models.Capture, error)
}

// Locator - best-effort определение места съемки, nil если недоступно
type Locator interface {
	Locate(ctx context.Context) *models.Location
}

// Status - состояние источника снимков
type Status struct {
	CameraID      string        `json:"camera_id"`
	Monitoring    bool          `json:"monitoring"`
	Busy          bool          `json:"busy"`
	Interval      time.Duration `json:"interval"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	LastCaptureAt *time.Time    `json:"last_capture_at,omitempty"`
	Completed     int64         `json:"completed"`
	Failed        int64         `json:"failed"`
	Dropped       int64         `json:"dropped"`
}

// Source владеет камерой и запускает циклы съемки по таймеру или вручную.
// Одновременно выполняется не более одного цикла, лишние запуски отбрасываются.
type Source struct {
	cameraID     string
	camera       Camera
	locator      Locator
	processor    FrameProcessor
	settings     *config.RuntimeSettings
	logger       *logrus.Logger
	initialDelay time.Duration

	// busy удерживается на время цикла
	busy     sync.Mutex
	inFlight atomic.Bool

	// deviceMu защищает камеру
	deviceMu   sync.Mutex
	cameraOpen bool

	mu            sync.Mutex
	monitoring    bool
	stopCh        chan struct{}
	loopDone      chan struct{}
	startedAt     *time.Time
	lastCaptureAt *time.Time

	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func NewSource(cameraID string, camera Camera, locator Locator, processor FrameProcessor, settings *config.RuntimeSettings, logger *logrus.Logger) *Source {
	return &Source{
		cameraID:     cameraID,
		camera:       camera,
		locator:      locator,
		processor:    processor,
		settings:     settings,
		logger:       logger,
		initialDelay: defaultInitialDelay,
	}
}

// WithInitialDelay задает задержку первого снимка после Start
func (s *Source) WithInitialDelay(d time.Duration) *Source {
	s.initialDelay = d
	return s
}

// Start открывает камеру и запускает съемку по таймеру
func (s *Source) Start(ctx context.Context) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":   "capture",
		"method":    "Start",
		"camera_id": s.cameraID,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.monitoring {
		return ErrAlreadyMonitoring
	}

	s.deviceMu.Lock()
	if !s.cameraOpen {
		if err := s.camera.Open(ctx); err != nil {
			s.deviceMu.Unlock()
			log.WithError(err).Error("Failed to open camera")
			return fmt.Errorf("capture: could not open camera: %w", err)
		}
		s.cameraOpen = true
	}
	s.deviceMu.Unlock()

	now := time.Now().UTC()
	s.monitoring = true
	s.startedAt = &now
	s.stopCh = make(chan struct{})
	s.loopDone = make(chan struct{})

	go s.loop(context.WithoutCancel(ctx), s.stopCh, s.loopDone)

	log.WithField("interval", s.settings.CaptureInterval()).Info("Monitoring started")
	return nil
}

// Stop сразу останавливает таймер, дожидается текущего цикла и освобождает камеру.
// Повторный вызов и вызов без Start ничего не делают.
func (s *Source) Stop() {
	s.mu.Lock()
	if !s.monitoring {
		s.mu.Unlock()
		return
	}
	s.monitoring = false
	s.startedAt = nil
	close(s.stopCh)
	loopDone := s.loopDone
	s.mu.Unlock()

	<-loopDone
	// дожидаемся текущего цикла
	s.busy.Lock()
	s.busy.Unlock()

	s.deviceMu.Lock()
	if s.cameraOpen {
		if err := s.camera.Close(); err != nil {
			s.logger.WithError(err).WithField("camera_id", s.cameraID).Warn("Failed to close camera")
		}
		s.cameraOpen = false
	}
	s.deviceMu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"service":   "capture",
		"method":    "Stop",
		"camera_id": s.cameraID,
	}).Info("Monitoring stopped")
}

// Trigger выполняет один снимок синхронно, независимо от режима мониторинга.
// Если цикл уже выполняется, возвращает ErrCaptureInProgress.
// Начатый цикл доводится до конца, даже если ctx вызывающего отменен.
func (s *Source) Trigger(ctx context.Context) (*models.Capture, error) {
	if !s.busy.TryLock() {
		s.dropped.Add(1)
		return nil, ErrCaptureInProgress
	}
	defer s.busy.Unlock()

	return s.cycle(context.WithoutCancel(ctx), true)
}

func (s *Source) Status() Status {
	s.mu.Lock()
	st := Status{
		CameraID:      s.cameraID,
		Monitoring:    s.monitoring,
		Interval:      s.settings.CaptureInterval(),
		StartedAt:     s.startedAt,
		LastCaptureAt: s.lastCaptureAt,
	}
	s.mu.Unlock()

	st.Busy = s.inFlight.Load()
	st.Completed = s.completed.Load()
	st.Failed = s.failed.Load()
	st.Dropped = s.dropped.Load()
	return st
}

func (s *Source) IsMonitoring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitoring
}

// loop - таймер съемки; интервал перечитывается перед каждым тиком
func (s *Source) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(s.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			s.tick(ctx)
			timer.Reset(s.settings.CaptureInterval())
		}
	}
}

// tick запускает цикл в отдельной горутине, чтобы медленный классификатор не задерживал таймер
func (s *Source) tick(ctx context.Context) {
	if !s.busy.TryLock() {
		s.dropped.Add(1)
		s.logger.WithField("camera_id", s.cameraID).Debug("Previous capture still in flight, tick dropped")
		return
	}
	go func() {
		defer s.busy.Unlock()
		if _, err := s.cycle(ctx, false); err != nil {
			sentry.CaptureException(err)
		}
	}()
}

func (s *Source) cycle(ctx context.Context, manual bool) (*models.Capture, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":   "capture",
		"method":    "cycle",
		"camera_id": s.cameraID,
		"manual":    manual,
	})

	s.inFlight.Store(true)
	defer s.inFlight.Store(false)

	frame, err := s.acquire(ctx)
	if err != nil {
		s.failed.Add(1)
		log.WithError(err).Error("Failed to acquire frame")
		return nil, fmt.Errorf("capture: could not acquire frame: %w", err)
	}

	var location *models.Location
	if s.settings.LocationTracking() && s.locator != nil {
		location = s.locator.Locate(ctx)
	}

	capture, err := s.processor.Process(ctx, Acquisition{
		CameraID: s.cameraID,
		Frame:    frame,
		Location: location,
		Manual:   manual,
	})

	now := time.Now().UTC()
	s.mu.Lock()
	s.lastCaptureAt = &now
	s.mu.Unlock()

	if err != nil {
		s.failed.Add(1)
		log.WithError(err).Error("Failed to process frame")
		return capture, err
	}
	s.completed.Add(1)
	return capture, nil
}

// acquire снимает кадр; если камера не открыта мониторингом, открывает ее на время снимка
func (s *Source) acquire(ctx context.Context) (Frame, error) {
	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()

	if !s.cameraOpen {
		if err := s.camera.Open(ctx); err != nil {
			return Frame{}, err
		}
		defer func() {
			if err := s.camera.Close(); err != nil {
				s.logger.WithError(err).Warn("Failed to release camera after manual capture")
			}
		}()
	}

	frame, err := s.camera.Snapshot(ctx)
	if err != nil {
		return Frame{}, err
	}
	if len(frame.Data) == 0 {
		return Frame{}, ErrEmptyFrame
	}
	if frame.CapturedAt.IsZero() {
		frame.CapturedAt = time.Now().UTC()
	}
	return frame, nil
}
