package colortracker

import (
	"context"
	"fmt"
	"gocv.io/x/gocv"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultEmitInterval is the minimum time between display frames, 25 FPS
	DefaultEmitInterval = 40 * time.Millisecond
	// DefaultStopTimeout is the grace period given to the acquisition loop
	// to exit when stopping
	DefaultStopTimeout = 500 * time.Millisecond
	// DefaultReadTimeout leaves blocking reads to the backend default.  A
	// read timeout is opt-in as only some backends honour it.
	DefaultReadTimeout = time.Duration(0)
)

// Callbacks are the caller supplied stages of the acquisition pipeline.  All
// of them are invoked from the acquisition goroutine in strict frame order and
// any of them may be nil.
type Callbacks[T any] struct {
	// ProcessData derives per frame data, such as a segmentation result.  The
	// frame is only borrowed for the duration of the call.
	ProcessData func(frame gocv.Mat) T
	// ProcessTime receives the time since the loop started together with the
	// result of ProcessData.  It is called for every frame, this is where
	// samples get recorded.
	ProcessTime func(ts time.Duration, data T)
	// ProcessUserImage draws onto the copy of the frame that is about to be
	// emitted for display, eg: overlays
	ProcessUserImage func(display *gocv.Mat, data T)
	// FrameAvailable receives the display frame.  It is throttled by the
	// emit interval and may skip frames.  The Mat is only valid during the
	// call.
	FrameAvailable func(display gocv.Mat)
}

// Options configure a Source
type Options struct {
	// EmitInterval is the minimum time between two display frames
	EmitInterval time.Duration
	// StopTimeout is the grace period used by Release and Handoff
	StopTimeout time.Duration
	// ReadTimeout is the read timeout the Device was opened with.  A failed
	// read that took at least this long is counted as a timeout and retried
	// instead of ending the stream, zero treats every failed read as the end
	// of the stream.
	ReadTimeout time.Duration
	// CPUAffinity pins the acquisition goroutine to the CPU cores in the
	// mask, zero leaves scheduling to the OS
	CPUAffinity uintptr
	// Logger receives lifecycle messages, defaults to slog.Default()
	Logger *slog.Logger
}

// DefaultOptions returns the default Source options
func DefaultOptions() Options {
	return Options{
		EmitInterval: DefaultEmitInterval,
		StopTimeout:  DefaultStopTimeout,
	}
}

// Stats are counters collected by the acquisition loop
type Stats struct {
	// Frames is the number of frames read and processed
	Frames uint64
	// Emitted is the number of frames surfaced for display
	Emitted uint64
	// Timeouts is the number of reads that timed out and were retried
	Timeouts uint64
	// MeanProcessing is the mean time spent in ProcessData and ProcessTime
	MeanProcessing time.Duration
	// Running is true while the acquisition loop is active
	Running bool
	// Ended is true when the loop exited because the stream ran out of
	// frames rather than being stopped
	Ended bool
}

// Source runs the acquisition loop for a Device.  Frames are read as fast as
// the device delivers them, every frame is processed, but display frames are
// only emitted once per EmitInterval.
type Source[T any] struct {
	dev   *Device
	lease *lease
	cb    Callbacks[T]
	opts  Options
	log   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool

	running    atomic.Bool
	ended      atomic.Bool
	frames     atomic.Uint64
	emitted    atomic.Uint64
	timeouts   atomic.Uint64
	processing atomic.Int64
}

// NewSource creates a Source that takes ownership of dev
func NewSource[T any](dev *Device, cb Callbacks[T], opts Options) (*Source[T], error) {

	l, err := dev.acquire()

	if err != nil {
		return nil, fmt.Errorf("error creating source for %s: %w", dev.selector, err)
	}

	return newSource(dev, l, cb, opts), nil
}

func newSource[T any](dev *Device, l *lease, cb Callbacks[T], opts Options) *Source[T] {

	if opts.EmitInterval <= 0 {
		opts.EmitInterval = DefaultEmitInterval
	}

	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}

	logger := opts.Logger

	if logger == nil {
		logger = slog.Default()
	}

	return &Source[T]{
		dev:   dev,
		lease: l,
		cb:    cb,
		opts:  opts,
		log:   logger.With("selector", dev.selector),
	}
}

// Width returns the frame width of the underlying device
func (s *Source[T]) Width() int {
	return s.dev.width
}

// Height returns the frame height of the underlying device
func (s *Source[T]) Height() int {
	return s.dev.height
}

// Device returns the underlying device handle
func (s *Source[T]) Device() *Device {
	return s.dev
}

// Start begins the acquisition loop on its own goroutine.  Calling Start on a
// running Source is a no-op.  A Source runs at most once, after it has
// stopped its device is either released or handed off.
func (s *Source[T]) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if !s.dev.owns(s.lease) {
		return ErrReleased
	}

	loopCtx, cancel := context.WithCancel(ctx)

	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	s.running.Store(true)

	s.log.Info("colortracker: acquisition started",
		"width", s.dev.width,
		"height", s.dev.height,
		"emit_interval", s.opts.EmitInterval,
	)

	go s.run(loopCtx, s.done)

	return nil
}

// Done returns a channel that is closed once the acquisition loop has exited,
// or nil if the Source was never started
func (s *Source[T]) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.done
}

// IsRunning reports if the acquisition loop is active
func (s *Source[T]) IsRunning() bool {
	return s.running.Load()
}

// Stats returns the counters of the acquisition loop
func (s *Source[T]) Stats() Stats {

	frames := s.frames.Load()
	st := Stats{
		Frames:   frames,
		Emitted:  s.emitted.Load(),
		Timeouts: s.timeouts.Load(),
		Running:  s.running.Load(),
		Ended:    s.ended.Load(),
	}

	if frames > 0 {
		st.MeanProcessing = time.Duration(s.processing.Load() / int64(frames))
	}

	return st
}

// run is the acquisition loop
func (s *Source[T]) run(ctx context.Context, done chan struct{}) {

	defer close(done)
	defer s.running.Store(false)

	if s.opts.CPUAffinity != 0 {
		// affinity applies to the OS thread so keep the loop on it
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := SetCPUAffinity(s.opts.CPUAffinity); err != nil {
			s.log.Warn("colortracker: could not pin acquisition loop", "error", err)
		} else if mask, err := GetCPUAffinity(); err == nil {
			s.log.Debug("colortracker: acquisition loop pinned", "mask", fmt.Sprintf("%b", mask))
		}
	}

	frame := gocv.NewMat()
	defer frame.Close()

	display := gocv.NewMat()
	defer display.Close()

	start := time.Now()
	last := time.Duration(-1)
	nextEmit := time.Duration(0)

loop:
	for {
		// cooperative cancellation, checked once per frame
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		readStart := time.Now()

		if ok := s.dev.capture.Read(&frame); !ok {
			// a stalled stream fails the read only once the timeout expired
			if s.opts.ReadTimeout > 0 && time.Since(readStart) >= s.opts.ReadTimeout {
				s.timeouts.Add(1)
				continue
			}

			// device exhausted or disconnected
			s.ended.Store(true)
			break loop
		}

		if frame.Empty() {
			continue
		}

		procStart := time.Now()

		var data T

		if s.cb.ProcessData != nil {
			data = s.cb.ProcessData(frame)
		}

		ts := time.Since(start)

		// keep timestamps strictly increasing on coarse clocks
		if ts <= last {
			ts = last + 1
		}

		last = ts

		if s.cb.ProcessTime != nil {
			s.cb.ProcessTime(ts, data)
		}

		s.processing.Add(int64(time.Since(procStart)))
		s.frames.Add(1)

		if ts >= nextEmit {
			nextEmit = ts + s.opts.EmitInterval

			if s.cb.FrameAvailable != nil {
				frame.CopyTo(&display)

				if s.cb.ProcessUserImage != nil {
					s.cb.ProcessUserImage(&display, data)
				}

				s.cb.FrameAvailable(display)
				s.emitted.Add(1)
			}
		}
	}

	s.log.Info("colortracker: acquisition stopped",
		"frames", s.frames.Load(),
		"emitted", s.emitted.Load(),
		"timeouts", s.timeouts.Load(),
		"stream_ended", s.ended.Load(),
	)

	// a handed off source no longer owns the device and leaves it open
	if err := s.dev.release(s.lease); err != nil {
		s.log.Error("colortracker: failed to release device", "error", err)
	}
}

// StopGracefully requests the acquisition loop to stop and waits up to
// timeout for it to exit.  It returns false if the loop was still blocked
// after the timeout, in which case the device is abandoned to the loop and
// must not be reused.
func (s *Source[T]) StopGracefully(timeout time.Duration) bool {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return true
	}

	cancel()

	select {
	case <-done:
		return true

	case <-time.After(timeout):
		s.dev.abandon()
		s.log.Warn("colortracker: acquisition loop did not stop, device abandoned",
			"timeout", timeout,
		)
		return false
	}
}

// Release stops the Source and closes the device if this Source still owns
// it.  Releasing a Source whose device was handed off does nothing.
func (s *Source[T]) Release() error {

	if !s.StopGracefully(s.opts.StopTimeout) {
		return ErrForcedTermination
	}

	return s.dev.release(s.lease)
}

// Handoff moves the device owned by src to a new Source using the given
// callbacks and stops src.  The device stays open, src becomes inert.  If src
// can not be stopped within its StopTimeout, ownership stays with the blocked
// loop, which closes the device when it finally exits, and
// ErrForcedTermination is returned.
func Handoff[T, U any](src *Source[T], cb Callbacks[U]) (*Source[U], error) {

	next, err := src.dev.transfer(src.lease)

	if err != nil {
		return nil, fmt.Errorf("error handing off %s: %w", src.dev.selector, err)
	}

	if !src.StopGracefully(src.opts.StopTimeout) {
		if err := src.dev.revert(next, src.lease); err != nil {
			src.log.Error("colortracker: failed to release device", "error", err)
		}
		return nil, fmt.Errorf("error handing off %s: %w", src.dev.selector,
			ErrForcedTermination)
	}

	src.log.Debug("colortracker: device handed off")

	return newSource(src.dev, next, cb, src.opts), nil
}
